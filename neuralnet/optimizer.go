package neuralnet

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Optimizer applies loss derivatives to a network's parameters.
type Optimizer interface {
	Apply(nn *NeuralNet, weightDerivatives []*mat.Dense, biasDerivatives []*mat.VecDense) error
}

// SGD implements plain gradient descent: W -= Alpha * dW, b -= Alpha * db.
type SGD struct{}

func (o SGD) Apply(nn *NeuralNet, weightDerivatives []*mat.Dense, biasDerivatives []*mat.VecDense) error {
	if len(weightDerivatives) != len(nn.transforms) || len(biasDerivatives) != len(nn.transforms) {
		return errors.Wrapf(ErrShapeMismatch, "got %d weight and %d bias derivatives for %d layer transforms",
			len(weightDerivatives), len(biasDerivatives), len(nn.transforms))
	}
	for i, t := range nn.transforms {
		r, c := t.weights.Dims()
		dr, dc := weightDerivatives[i].Dims()
		if r != dr || c != dc || biasDerivatives[i].Len() != r {
			return errors.Wrapf(ErrShapeMismatch, "layer transform %d", i)
		}
	}
	for i, t := range nn.transforms {
		var step mat.Dense
		step.Scale(nn.Alpha, weightDerivatives[i])
		t.weights.Sub(t.weights, &step)
		t.biases.AddScaledVec(t.biases, -nn.Alpha, biasDerivatives[i])
	}
	nn.resetNodeDerivativeCaches()
	return nil
}
