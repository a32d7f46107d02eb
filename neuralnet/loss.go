package neuralnet

import "gonum.org/v1/gonum/mat"

// LossFunction defines the interface for computing loss and its gradient.
type LossFunction interface {
	// Compute returns the loss value given the network output and the desired output.
	Compute(output, compare *mat.VecDense) float64
	// Gradient returns ∂L/∂output for each output node.
	Gradient(output, compare *mat.VecDense) *mat.VecDense
}

// SquaredError is the sum over output nodes of (output - compare)^2.
// The gradient keeps the factor of 2 and is not averaged over outputs.
type SquaredError struct{}

func (se SquaredError) Compute(output, compare *mat.VecDense) float64 {
	var diff mat.VecDense
	diff.SubVec(output, compare)
	return mat.Dot(&diff, &diff)
}

func (se SquaredError) Gradient(output, compare *mat.VecDense) *mat.VecDense {
	grad := mat.NewVecDense(output.Len(), nil)
	grad.SubVec(output, compare)
	grad.ScaleVec(2, grad)
	return grad
}
