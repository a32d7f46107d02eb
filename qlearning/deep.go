package qlearning

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"q2048/neuralnet"
)

// ErrDimensionMismatch is returned when a network does not fit an agent.
var ErrDimensionMismatch = errors.New("network dimensions do not match agent")

// DefaultIterationsBeforeNetTransfer is how many updates the target network
// takes before it is copied into the main network.
const DefaultIterationsBeforeNetTransfer = 100

// DeepQLearner approximates q-values with a neural network. Actions are
// chosen with the main network while updates train the target network,
// which is cloned into the main network every IterationsBeforeNetTransfer
// updates.
type DeepQLearner[S any, A comparable] struct {
	*Learner[S, A]

	IterationsBeforeNetTransfer int

	agent            DeepAgent[S, A]
	mainNet          *neuralnet.NeuralNet
	targetNet        *neuralnet.NeuralNet
	iterationCounter int
}

// NewDeepQLearner builds fresh networks sized for agent with the given
// hidden layers, all using activation.
func NewDeepQLearner[S any, A comparable](agent DeepAgent[S, A], middleNodes, middleLayers int, activation neuralnet.ActivationFunction, rng *rand.Rand) *DeepQLearner[S, A] {
	net := neuralnet.NewNeuralNet(agent.NeuralNetInputSize(), middleNodes, agent.OutputSize(), middleLayers, activation, rng)
	d, err := NewDeepQLearnerFromNet(agent, net, rng)
	if err != nil {
		// net was sized from agent
		panic(err)
	}
	return d
}

// NewDeepQLearnerFromNet starts both networks from net, which is not
// modified. It returns ErrDimensionMismatch if net's input or output size
// does not fit agent.
func NewDeepQLearnerFromNet[S any, A comparable](agent DeepAgent[S, A], net *neuralnet.NeuralNet, rng *rand.Rand) (*DeepQLearner[S, A], error) {
	if net.NumInputNodes() != agent.NeuralNetInputSize() || net.NumOutputNodes() != agent.OutputSize() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "network is %d->%d, agent needs %d->%d",
			net.NumInputNodes(), net.NumOutputNodes(), agent.NeuralNetInputSize(), agent.OutputSize())
	}
	d := &DeepQLearner[S, A]{
		Learner:                     newLearner[S, A](agent, rng),
		IterationsBeforeNetTransfer: DefaultIterationsBeforeNetTransfer,
		agent:                       agent,
		mainNet:                     net.Clone(),
		targetNet:                   net.Clone(),
	}
	d.strategy = d
	return d, nil
}

// MainNet is the network actions are chosen with.
func (d *DeepQLearner[S, A]) MainNet() *neuralnet.NeuralNet { return d.mainNet }

// TargetNet is the network updates are applied to.
func (d *DeepQLearner[S, A]) TargetNet() *neuralnet.NeuralNet { return d.targetNet }

func (d *DeepQLearner[S, A]) Alpha() float64 { return d.targetNet.Alpha }

// SetAlpha sets the learning rate of both networks.
func (d *DeepQLearner[S, A]) SetAlpha(alpha float64) {
	d.mainNet.Alpha = alpha
	d.targetNet.Alpha = alpha
}

// SetActivator changes the activation of one layer transform in both networks.
func (d *DeepQLearner[S, A]) SetActivator(startLayer int, activation neuralnet.ActivationFunction) {
	d.mainNet.SetActivator(startLayer, activation)
	d.targetNet.SetActivator(startLayer, activation)
}

func (d *DeepQLearner[S, A]) outputs(state S) *mat.VecDense {
	return d.mainNet.GetOutputValues(d.agent.NeuralNetFeatures(state))
}

// QValue is the main network's estimate for taking action in state.
func (d *DeepQLearner[S, A]) QValue(state S, action A) float64 {
	return d.outputs(state).AtVec(d.agent.NodeFromAction(action))
}

func (d *DeepQLearner[S, A]) Value(state S) float64 {
	_, values := d.legalValues(state)
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

func (d *DeepQLearner[S, A]) BestAction(state S) (action A, ok bool) {
	legal, values := d.legalValues(state)
	if len(legal) == 0 {
		return action, false
	}
	return pickBest(legal, values, d.rng), true
}

func (d *DeepQLearner[S, A]) legalValues(state S) ([]A, []float64) {
	legal := d.agent.LegalActions(state)
	if len(legal) == 0 {
		return nil, nil
	}
	out := d.outputs(state)
	values := make([]float64, len(legal))
	for i, a := range legal {
		values[i] = out.AtVec(d.agent.NodeFromAction(a))
	}
	return legal, values
}

// Update moves the target network's estimate for (state, action) towards
// reward plus the discounted value of next, keeping every other output at
// its current prediction.
func (d *DeepQLearner[S, A]) Update(state S, action A, next S, reward float64) error {
	input := d.agent.NeuralNetFeatures(state)
	value := 0.0
	if !d.agent.IsTerminal(next) {
		value = d.Value(next)
	}
	compare := d.targetNet.GetOutputValues(input)
	compare.SetVec(d.agent.NodeFromAction(action), reward+d.agent.Discount()*value)
	if err := d.targetNet.PerformGradientDescent(input, compare); err != nil {
		return errors.Wrap(err, "updating target network")
	}

	d.iterationCounter++
	if d.iterationCounter >= d.IterationsBeforeNetTransfer {
		d.iterationCounter = 0
		d.mainNet = d.targetNet.Clone()
	}
	d.totalRewards += reward
	return nil
}
