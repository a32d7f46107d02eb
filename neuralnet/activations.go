package neuralnet

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ActivationFunction is applied elementwise after each affine step.
// Derivative takes the already-activated value y = Activate(x), not x.
type ActivationFunction interface {
	Activate(x float64) float64
	Derivative(y float64) float64
}

type Sigmoid struct{}

func (s Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative of sigmoid(x) written in terms of y = sigmoid(x).
func (s Sigmoid) Derivative(y float64) float64 {
	return y * (1 - y)
}

// LeakyReLU has slope 1 above zero and 0.1 below.
type LeakyReLU struct{}

const leakySlope = 0.1

func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return leakySlope * x
}

func (l LeakyReLU) Derivative(y float64) float64 {
	if y > 0 {
		return 1
	}
	return leakySlope
}

// ReLUWithSlopes is a piecewise linear unit with configurable slopes on
// each side of zero.
type ReLUWithSlopes struct {
	positive float64
	negative float64
}

// NewReLUWithSlopes requires positive > 0 and negative >= 0 so that the
// sign of an activated value always equals the sign of its input.
func NewReLUWithSlopes(positive, negative float64) (ReLUWithSlopes, error) {
	if !(positive > 0) || !(negative >= 0) {
		return ReLUWithSlopes{}, errors.Errorf("relu slopes must satisfy positive > 0 and negative >= 0, got %v and %v", positive, negative)
	}
	return ReLUWithSlopes{positive: positive, negative: negative}, nil
}

func (r ReLUWithSlopes) PositiveSlope() float64 { return r.positive }
func (r ReLUWithSlopes) NegativeSlope() float64 { return r.negative }

func (r ReLUWithSlopes) Activate(x float64) float64 {
	if x > 0 {
		return r.positive * x
	}
	return r.negative * x
}

func (r ReLUWithSlopes) Derivative(y float64) float64 {
	if y > 0 {
		return r.positive
	}
	return r.negative
}

// NoActivation is the identity, used for unbounded outputs.
type NoActivation struct{}

func (n NoActivation) Activate(x float64) float64 {
	return x
}

func (n NoActivation) Derivative(y float64) float64 {
	return 1
}

// ErrUnknownActivation is returned for activation text that doesn't parse.
var ErrUnknownActivation = errors.New("unknown activation function")

// WriteActivation returns the canonical one-line form of an activation.
// A nil activation is written as NoActivation.
func WriteActivation(a ActivationFunction) (string, error) {
	switch act := a.(type) {
	case nil, NoActivation:
		return "NoActivation", nil
	case Sigmoid:
		return "Sigmoid", nil
	case LeakyReLU:
		return "LeakyReLU", nil
	case ReLUWithSlopes:
		return "ReLUWithSlopes " +
			strconv.FormatFloat(act.positive, 'g', -1, 64) + " " +
			strconv.FormatFloat(act.negative, 'g', -1, 64), nil
	default:
		return "", errors.Wrapf(ErrUnknownActivation, "%T", a)
	}
}

// ReadActivation parses the output of WriteActivation.
func ReadActivation(description string) (ActivationFunction, error) {
	words := strings.Fields(description)
	if len(words) == 0 {
		return nil, errors.Wrap(ErrUnknownActivation, "empty description")
	}
	switch words[0] {
	case "Sigmoid":
		return Sigmoid{}, nil
	case "LeakyReLU":
		return LeakyReLU{}, nil
	case "NoActivation":
		return NoActivation{}, nil
	case "ReLUWithSlopes":
		if len(words) != 3 {
			return nil, errors.Wrapf(ErrUnknownActivation, "%q: want two slopes", description)
		}
		pos, err := strconv.ParseFloat(words[1], 64)
		if err != nil {
			return nil, errors.Wrapf(ErrUnknownActivation, "%q: %v", description, err)
		}
		neg, err := strconv.ParseFloat(words[2], 64)
		if err != nil {
			return nil, errors.Wrapf(ErrUnknownActivation, "%q: %v", description, err)
		}
		r, err := NewReLUWithSlopes(pos, neg)
		if err != nil {
			return nil, errors.Wrapf(ErrUnknownActivation, "%q: %v", description, err)
		}
		return r, nil
	}
	return nil, errors.Wrapf(ErrUnknownActivation, "%q", description)
}
