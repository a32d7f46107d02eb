package neuralnet

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// FiniteDifferenceLossDerivatives estimates the same derivatives as
// CalculateLossDerivatives with central differences over every parameter.
// It works on a clone, so nn and its caches are left untouched.
func (nn *NeuralNet) FiniteDifferenceLossDerivatives(input, compare mat.Vector) ([]*mat.Dense, []*mat.VecDense) {
	probe := nn.Clone()
	target := mat.VecDenseCopyOf(compare)
	params := probe.flatParams()

	grad := fd.Gradient(nil, func(x []float64) float64 {
		probe.setFlatParams(x)
		return probe.loss.Compute(probe.GetOutputValues(input), target)
	}, params, &fd.Settings{Formula: fd.Central})

	weightDerivatives := make([]*mat.Dense, len(nn.transforms))
	biasDerivatives := make([]*mat.VecDense, len(nn.transforms))
	offset := 0
	for i, t := range nn.transforms {
		r, c := t.weights.Dims()
		weightDerivatives[i] = mat.NewDense(r, c, append([]float64(nil), grad[offset:offset+r*c]...))
		offset += r * c
		biasDerivatives[i] = mat.NewVecDense(r, append([]float64(nil), grad[offset:offset+r]...))
		offset += r
	}
	return weightDerivatives, biasDerivatives
}

// flatParams lists weights row-major then biases, transform by transform.
func (nn *NeuralNet) flatParams() []float64 {
	var params []float64
	for _, t := range nn.transforms {
		r, c := t.weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				params = append(params, t.weights.At(i, j))
			}
		}
		for i := 0; i < r; i++ {
			params = append(params, t.biases.AtVec(i))
		}
	}
	return params
}

func (nn *NeuralNet) setFlatParams(params []float64) {
	offset := 0
	for _, t := range nn.transforms {
		r, c := t.weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				t.weights.Set(i, j, params[offset])
				offset++
			}
		}
		for i := 0; i < r; i++ {
			t.biases.SetVec(i, params[offset])
			offset++
		}
	}
	nn.ResetDerivativeCaches()
}
