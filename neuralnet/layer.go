package neuralnet

import "gonum.org/v1/gonum/mat"

// LayerTransform maps one layer to the next:
//
//	output = activation(weights * input + biases)
//
// Weights are indexed [end node, start node].
type LayerTransform struct {
	weights    *mat.Dense
	biases     *mat.VecDense
	activation ActivationFunction
}

func newLayerTransform(weights *mat.Dense, biases *mat.VecDense, activation ActivationFunction) *LayerTransform {
	return &LayerTransform{weights: weights, biases: biases, activation: activation}
}

// TransformLayer writes the next layer's values into output, which must
// already have one entry per end node.
func (l *LayerTransform) TransformLayer(input, output *mat.VecDense) {
	output.MulVec(l.weights, input)
	output.AddVec(output, l.biases)
	if l.activation == nil {
		return
	}
	for i := 0; i < output.Len(); i++ {
		output.SetVec(i, l.activation.Activate(output.AtVec(i)))
	}
}

// ActivationDerivative returns d activation / dx given the activated value.
// Without an activation the layer is linear and the derivative is 1.
func (l *LayerTransform) ActivationDerivative(y float64) float64 {
	if l.activation == nil {
		return 1
	}
	return l.activation.Derivative(y)
}

func (l *LayerTransform) Activation() ActivationFunction {
	return l.activation
}

// Weights returns a copy of the weight matrix.
func (l *LayerTransform) Weights() *mat.Dense {
	return mat.DenseCopyOf(l.weights)
}

// Biases returns a copy of the bias vector.
func (l *LayerTransform) Biases() *mat.VecDense {
	return mat.VecDenseCopyOf(l.biases)
}

func (l *LayerTransform) InputSize() int {
	_, c := l.weights.Dims()
	return c
}

func (l *LayerTransform) OutputSize() int {
	r, _ := l.weights.Dims()
	return r
}

// Clone copies weights and biases. Activations are stateless and shared.
func (l *LayerTransform) Clone() *LayerTransform {
	return &LayerTransform{
		weights:    mat.DenseCopyOf(l.weights),
		biases:     mat.VecDenseCopyOf(l.biases),
		activation: l.activation,
	}
}
