// Package qlearning trains agents with approximate and deep Q-learning.
package qlearning

import "gonum.org/v1/gonum/mat"

// Agent is the environment a learner plays in. S is the state type and A
// the action type. Everything except Restart and Perform must be free of
// side effects.
type Agent[S any, A comparable] interface {
	// Discount is how much future rewards count: 1 keeps them whole, 0 drops them.
	Discount() float64
	Restart()
	State() S
	Perform(action A)
	LegalActions(state S) []A
	Reward(state S, action A, next S) float64
	IsTerminal(state S) bool
	// Score is only used for statistics.
	Score(state S) float64
}

// DeepAgent can encode states as network input and map actions to output nodes.
type DeepAgent[S any, A comparable] interface {
	Agent[S, A]
	NeuralNetInputSize() int
	OutputSize() int
	NeuralNetFeatures(state S) *mat.VecDense
	// ActionFromNode and NodeFromAction are inverse bijections over [0, OutputSize).
	ActionFromNode(node int) A
	NodeFromAction(action A) int
}

// ApproximateAgent describes q-states by named features.
type ApproximateAgent[S any, A comparable] interface {
	Agent[S, A]
	Features(state S, action A) map[string]float64
}
