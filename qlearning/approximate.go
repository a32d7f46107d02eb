package qlearning

import "math/rand"

const DefaultApproximateAlpha = 0.004

// ApproximateQLearner estimates q-values as a weighted sum of features.
type ApproximateQLearner[S any, A comparable] struct {
	*Learner[S, A]

	Alpha   float64
	Weights map[string]float64

	agent ApproximateAgent[S, A]
}

func NewApproximateQLearner[S any, A comparable](agent ApproximateAgent[S, A], rng *rand.Rand) *ApproximateQLearner[S, A] {
	a := &ApproximateQLearner[S, A]{
		Learner: newLearner[S, A](agent, rng),
		Alpha:   DefaultApproximateAlpha,
		Weights: make(map[string]float64),
		agent:   agent,
	}
	a.strategy = a
	return a
}

// QValue is the dot product of the features of (state, action) with the
// weights. Features without a weight count as 0.
func (a *ApproximateQLearner[S, A]) QValue(state S, action A) float64 {
	q := 0.0
	for name, f := range a.agent.Features(state, action) {
		q += f * a.Weights[name]
	}
	return q
}

func (a *ApproximateQLearner[S, A]) Value(state S) float64 {
	legal := a.agent.LegalActions(state)
	if len(legal) == 0 {
		return 0
	}
	max := a.QValue(state, legal[0])
	for _, action := range legal[1:] {
		if q := a.QValue(state, action); q > max {
			max = q
		}
	}
	return max
}

func (a *ApproximateQLearner[S, A]) BestAction(state S) (action A, ok bool) {
	legal := a.agent.LegalActions(state)
	if len(legal) == 0 {
		return action, false
	}
	values := make([]float64, len(legal))
	for i, l := range legal {
		values[i] = a.QValue(state, l)
	}
	return pickBest(legal, values, a.rng), true
}

// Update moves every feature weight by Alpha times the temporal difference
// times the feature value.
func (a *ApproximateQLearner[S, A]) Update(state S, action A, next S, reward float64) error {
	correction := reward + a.agent.Discount()*a.Value(next) - a.QValue(state, action)
	for name, f := range a.agent.Features(state, action) {
		a.Weights[name] += a.Alpha * correction * f
	}
	a.totalRewards += reward
	return nil
}
