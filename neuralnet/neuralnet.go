package neuralnet

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch reports vectors or matrices whose sizes don't fit the network.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNotEvaluated reports a node derivative query made before any forward pass.
	ErrNotEvaluated = errors.New("network has not been evaluated")
	// ErrIndexOutOfRange reports a layer or node index outside the network.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// DefaultAlpha is the learning rate of a freshly built network.
const DefaultAlpha = 0.01

// NeuralNet is a dense feed-forward network:
//
//	nodes[i+1] = activation(weights[i] * nodes[i] + biases[i])
//
// It is not safe for concurrent use; Clone gives each goroutine its own copy.
type NeuralNet struct {
	transforms []*LayerTransform
	nodes      []*mat.VecDense
	evaluated  bool

	// Alpha is the gradient descent step size.
	Alpha float64

	loss      LossFunction
	optimizer Optimizer

	nodeToWeightCache map[weightKey]float64
	nodeToBiasCache   map[biasKey]float64
	nodeToNodeCache   map[nodeKey]float64

	// nil until CalculateLossDerivatives runs
	lossToWeightCache []*mat.Dense
	lossToBiasCache   []*mat.VecDense
}

// NewNeuralNet builds a network with numMiddleLayers hidden layers of
// numMiddleNodes each. Every layer transform starts with the given
// activation and Xavier-uniform weights and biases drawn from rng.
func NewNeuralNet(numInputNodes, numMiddleNodes, numOutputNodes, numMiddleLayers int, activation ActivationFunction, rng *rand.Rand) *NeuralNet {
	if numInputNodes <= 0 || numOutputNodes <= 0 || numMiddleLayers < 0 || (numMiddleLayers > 0 && numMiddleNodes <= 0) {
		panic(fmt.Sprintf("neuralnet: invalid shape %d-%dx%d-%d", numInputNodes, numMiddleNodes, numMiddleLayers, numOutputNodes))
	}
	sizes := layerSizes(numInputNodes, numMiddleNodes, numOutputNodes, numMiddleLayers)
	transforms := make([]*LayerTransform, len(sizes)-1)
	for i := range transforms {
		in, out := sizes[i], sizes[i+1]
		weights := mat.NewDense(out, in, nil)
		for r := 0; r < out; r++ {
			for c := 0; c < in; c++ {
				weights.Set(r, c, xavierInit(rng, in, out))
			}
		}
		biases := mat.NewVecDense(out, nil)
		for r := 0; r < out; r++ {
			biases.SetVec(r, xavierInit(rng, in, out))
		}
		transforms[i] = newLayerTransform(weights, biases, activation)
	}
	return fromTransforms(transforms)
}

func layerSizes(numInputNodes, numMiddleNodes, numOutputNodes, numMiddleLayers int) []int {
	sizes := make([]int, 0, numMiddleLayers+2)
	sizes = append(sizes, numInputNodes)
	for i := 0; i < numMiddleLayers; i++ {
		sizes = append(sizes, numMiddleNodes)
	}
	return append(sizes, numOutputNodes)
}

func fromTransforms(transforms []*LayerTransform) *NeuralNet {
	nn := &NeuralNet{
		transforms: transforms,
		nodes:      make([]*mat.VecDense, len(transforms)+1),
		Alpha:      DefaultAlpha,
		loss:       SquaredError{},
		optimizer:  SGD{},
	}
	nn.nodes[0] = mat.NewVecDense(transforms[0].InputSize(), nil)
	for i, t := range transforms {
		nn.nodes[i+1] = mat.NewVecDense(t.OutputSize(), nil)
	}
	nn.ResetDerivativeCaches()
	return nn
}

func xavierInit(rng *rand.Rand, numInputs, numOutputs int) float64 {
	limit := math.Sqrt(6.0 / float64(numInputs+numOutputs))
	return 2*rng.Float64()*limit - limit
}

func (nn *NeuralNet) NumInputNodes() int  { return nn.nodes[0].Len() }
func (nn *NeuralNet) NumOutputNodes() int { return nn.nodes[len(nn.nodes)-1].Len() }

// NumMiddleNodes is the hidden layer width, or 0 without hidden layers.
func (nn *NeuralNet) NumMiddleNodes() int {
	if len(nn.nodes) < 3 {
		return 0
	}
	return nn.nodes[1].Len()
}

func (nn *NeuralNet) NumMiddleLayers() int     { return len(nn.nodes) - 2 }
func (nn *NeuralNet) NumLayerTransforms() int { return len(nn.transforms) }

// LayerTransform returns the i-th transform. Mutate parameters through the
// network's setters so that derivative caches stay consistent.
func (nn *NeuralNet) LayerTransform(i int) *LayerTransform {
	return nn.transforms[i]
}

// Nodes returns copies of the node values of the last forward pass.
func (nn *NeuralNet) Nodes() []*mat.VecDense {
	nodes := make([]*mat.VecDense, len(nn.nodes))
	for i, n := range nn.nodes {
		nodes[i] = mat.VecDenseCopyOf(n)
	}
	return nodes
}

// GetOutputValues runs a forward pass and returns a copy of the output layer.
// It panics if input doesn't have NumInputNodes entries.
func (nn *NeuralNet) GetOutputValues(input mat.Vector) *mat.VecDense {
	if input.Len() != nn.NumInputNodes() {
		panic(fmt.Sprintf("neuralnet: input has %d values, network takes %d", input.Len(), nn.NumInputNodes()))
	}
	nn.ResetDerivativeCaches()
	nn.nodes[0].CopyVec(input)
	for i, t := range nn.transforms {
		t.TransformLayer(nn.nodes[i], nn.nodes[i+1])
	}
	nn.evaluated = true
	return mat.VecDenseCopyOf(nn.nodes[len(nn.nodes)-1])
}

// Loss returns the loss of a forward pass with input against compare.
func (nn *NeuralNet) Loss(input, compare mat.Vector) float64 {
	output := nn.GetOutputValues(input)
	return nn.loss.Compute(output, mat.VecDenseCopyOf(compare))
}

// SetWeight sets the weight from startNode in layer startLayer to endNode in
// layer startLayer+1.
func (nn *NeuralNet) SetWeight(startLayer, startNode, endNode int, value float64) {
	nn.transforms[startLayer].weights.Set(endNode, startNode, value)
	nn.ResetDerivativeCaches()
}

// SetBias sets the bias added to endNode in layer startLayer+1.
func (nn *NeuralNet) SetBias(startLayer, endNode int, value float64) {
	nn.transforms[startLayer].biases.SetVec(endNode, value)
	nn.ResetDerivativeCaches()
}

// SetActivator replaces the activation of one transform. nil means identity.
func (nn *NeuralNet) SetActivator(startLayer int, activation ActivationFunction) {
	nn.transforms[startLayer].activation = activation
	nn.ResetDerivativeCaches()
}

// SetLoss replaces the loss used for training. The default is SquaredError.
func (nn *NeuralNet) SetLoss(loss LossFunction) {
	nn.loss = loss
	nn.ResetDerivativeCaches()
}

// SetOptimizer replaces the parameter update rule. The default is SGD.
func (nn *NeuralNet) SetOptimizer(optimizer Optimizer) {
	nn.optimizer = optimizer
}

// ResetDerivativeCaches drops every memoized derivative.
func (nn *NeuralNet) ResetDerivativeCaches() {
	nn.resetNodeDerivativeCaches()
	nn.lossToWeightCache = nil
	nn.lossToBiasCache = nil
}

func (nn *NeuralNet) resetNodeDerivativeCaches() {
	nn.nodeToWeightCache = make(map[weightKey]float64)
	nn.nodeToBiasCache = make(map[biasKey]float64)
	nn.nodeToNodeCache = make(map[nodeKey]float64)
}

// CalculateLossDerivatives runs a forward pass with input and backpropagates
// the loss against compare. The returned slices are indexed by layer
// transform and have the shapes of its weights and biases.
func (nn *NeuralNet) CalculateLossDerivatives(input, compare mat.Vector) ([]*mat.Dense, []*mat.VecDense) {
	if compare.Len() != nn.NumOutputNodes() {
		panic(fmt.Sprintf("neuralnet: compare has %d values, network outputs %d", compare.Len(), nn.NumOutputNodes()))
	}
	weightDerivatives := make([]*mat.Dense, len(nn.transforms))
	biasDerivatives := make([]*mat.VecDense, len(nn.transforms))

	output := nn.GetOutputValues(input)

	// d loss / d nodes[layer+1] as a 1 x n row, starting at the output
	grad := nn.loss.Gradient(output, mat.VecDenseCopyOf(compare))
	nodeDerivatives := mat.NewDense(1, grad.Len(), grad.RawVector().Data)

	for layer := len(nn.transforms) - 1; layer >= 0; layer-- {
		t := nn.transforms[layer]
		endNodes := nn.nodes[layer+1]

		// activations are elementwise, so their Jacobian is diagonal
		diag := make([]float64, endNodes.Len())
		for i := range diag {
			diag[i] = t.ActivationDerivative(endNodes.AtVec(i))
		}
		var preActivation mat.Dense
		preActivation.Mul(nodeDerivatives, mat.NewDiagDense(len(diag), diag))

		weightDerivatives[layer] = mat.NewDense(endNodes.Len(), nn.nodes[layer].Len(), nil)
		weightDerivatives[layer].Mul(preActivation.T(), nn.nodes[layer].T())

		biasDerivatives[layer] = mat.VecDenseCopyOf(preActivation.RowView(0))

		next := mat.NewDense(1, nn.nodes[layer].Len(), nil)
		next.Mul(&preActivation, t.weights)
		nodeDerivatives = next
	}

	nn.lossToWeightCache = weightDerivatives
	nn.lossToBiasCache = biasDerivatives
	return weightDerivatives, biasDerivatives
}

// GetLossToWeightDerivative reads the cache of the last
// CalculateLossDerivatives call. ok is false when nothing is cached.
func (nn *NeuralNet) GetLossToWeightDerivative(startLayer, endNode, startNode int) (value float64, ok bool) {
	if nn.lossToWeightCache == nil {
		return 0, false
	}
	return nn.lossToWeightCache[startLayer].At(endNode, startNode), true
}

// GetLossToBiasDerivative reads the cache of the last CalculateLossDerivatives call.
func (nn *NeuralNet) GetLossToBiasDerivative(startLayer, endNode int) (value float64, ok bool) {
	if nn.lossToBiasCache == nil {
		return 0, false
	}
	return nn.lossToBiasCache[startLayer].AtVec(endNode), true
}

// PerformGradientDescent takes one training step on a single example.
func (nn *NeuralNet) PerformGradientDescent(input, compare mat.Vector) error {
	weightDerivatives, biasDerivatives := nn.CalculateLossDerivatives(input, compare)
	return nn.optimizer.Apply(nn, weightDerivatives, biasDerivatives)
}

// Clone returns a deep copy sharing no mutable state with nn.
func (nn *NeuralNet) Clone() *NeuralNet {
	transforms := make([]*LayerTransform, len(nn.transforms))
	for i, t := range nn.transforms {
		transforms[i] = t.Clone()
	}
	clone := fromTransforms(transforms)
	for i, n := range nn.nodes {
		clone.nodes[i].CopyVec(n)
	}
	clone.evaluated = nn.evaluated
	clone.Alpha = nn.Alpha
	clone.loss = nn.loss
	clone.optimizer = nn.optimizer
	return clone
}

// Equal reports whether both networks have the same shape, parameters and activations.
func (nn *NeuralNet) Equal(other *NeuralNet) bool {
	if len(nn.transforms) != len(other.transforms) {
		return false
	}
	for i, t := range nn.transforms {
		o := other.transforms[i]
		if !sameShape(t.weights, o.weights) || !mat.Equal(t.weights, o.weights) ||
			t.biases.Len() != o.biases.Len() || !mat.Equal(t.biases, o.biases) ||
			t.activation != o.activation {
			return false
		}
	}
	return true
}

func sameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}

// Debug
func (nn *NeuralNet) String() string {
	var sb strings.Builder
	for i, t := range nn.transforms {
		act, err := WriteActivation(t.activation)
		if err != nil {
			act = fmt.Sprintf("%T", t.activation)
		}
		sb.WriteString(fmt.Sprintf("Transform %d (%s):\n%v\nbiases %v\n", i, act,
			mat.Formatted(t.weights, mat.Prefix("  ")), mat.Formatted(t.biases.T())))
	}
	return sb.String()
}
