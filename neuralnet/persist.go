package neuralnet

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrMalformedFile reports a network file that can't be parsed.
var ErrMalformedFile = errors.New("malformed network file")

// Save writes nn as newline separated text:
//
//	input node count
//	hidden layer width (0 without hidden layers)
//	output node count
//	hidden layer count
//	weights, transform by transform, row-major ([end node, start node])
//	biases, transform by transform
//	one activation per transform
func Save(w io.Writer, nn *NeuralNet) error {
	bw := bufio.NewWriter(w)
	for _, n := range []int{nn.NumInputNodes(), nn.NumMiddleNodes(), nn.NumOutputNodes(), nn.NumMiddleLayers()} {
		bw.WriteString(strconv.Itoa(n))
		bw.WriteByte('\n')
	}
	for _, t := range nn.transforms {
		r, c := t.weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				writeFloat(bw, t.weights.At(i, j))
			}
		}
	}
	for _, t := range nn.transforms {
		for i := 0; i < t.biases.Len(); i++ {
			writeFloat(bw, t.biases.AtVec(i))
		}
	}
	for i, t := range nn.transforms {
		act, err := WriteActivation(t.activation)
		if err != nil {
			return errors.Wrapf(err, "layer transform %d", i)
		}
		bw.WriteString(act)
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "write network")
}

func writeFloat(bw *bufio.Writer, v float64) {
	bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	bw.WriteByte('\n')
}

// SaveFile writes nn to path, replacing any existing file.
func SaveFile(path string, nn *NeuralNet) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create network file")
	}
	if err := Save(f, nn); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close network file")
}

// Load reads a network written by Save. Files without activation lines
// load with Sigmoid everywhere.
func Load(r io.Reader) (*NeuralNet, error) {
	sc := &lineScanner{sc: bufio.NewScanner(r)}

	var header [4]int
	for i := range header {
		line, err := sc.next()
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrMalformedFile, "missing header")
		}
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 {
			return nil, errors.Wrapf(ErrMalformedFile, "line %d: bad count %q", sc.line, line)
		}
		header[i] = n
	}
	numInput, numMiddle, numOutput, numMiddleLayers := header[0], header[1], header[2], header[3]
	if numInput == 0 || numOutput == 0 || (numMiddleLayers > 0 && numMiddle == 0) {
		return nil, errors.Wrapf(ErrMalformedFile, "invalid shape %d-%dx%d-%d", numInput, numMiddle, numMiddleLayers, numOutput)
	}

	sizes := layerSizes(numInput, numMiddle, numOutput, numMiddleLayers)
	transforms := make([]*LayerTransform, len(sizes)-1)
	for i := range transforms {
		transforms[i] = newLayerTransform(mat.NewDense(sizes[i+1], sizes[i], nil), mat.NewVecDense(sizes[i+1], nil), Sigmoid{})
	}
	nn := fromTransforms(transforms)

	for _, t := range transforms {
		r, c := t.weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v, err := sc.nextFloat()
				if err != nil {
					return nil, err
				}
				t.weights.Set(i, j, v)
			}
		}
	}
	for _, t := range transforms {
		for i := 0; i < t.biases.Len(); i++ {
			v, err := sc.nextFloat()
			if err != nil {
				return nil, err
			}
			t.biases.SetVec(i, v)
		}
	}
	nn.ResetDerivativeCaches()

	for l := range transforms {
		line, err := sc.next()
		if errors.Is(err, io.EOF) && l == 0 {
			break
		}
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrMalformedFile, "missing activation for layer transform %d", l)
		}
		if err != nil {
			return nil, err
		}
		act, err := ReadActivation(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", sc.line)
		}
		nn.SetActivator(l, act)
	}
	if line, err := sc.next(); err == nil {
		return nil, errors.Wrapf(ErrMalformedFile, "line %d: unexpected %q", sc.line, line)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}
	return nn, nil
}

// LoadFile reads a network file written by SaveFile.
func LoadFile(path string) (*NeuralNet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open network file")
	}
	defer f.Close()
	nn, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return nn, nil
}

// lineScanner yields trimmed, non-empty lines and tracks line numbers.
type lineScanner struct {
	sc   *bufio.Scanner
	line int
}

func (s *lineScanner) next() (string, error) {
	for s.sc.Scan() {
		s.line++
		if text := strings.TrimSpace(s.sc.Text()); text != "" {
			return text, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		return "", errors.Wrap(err, "read network")
	}
	return "", io.EOF
}

func (s *lineScanner) nextFloat() (float64, error) {
	line, err := s.next()
	if errors.Is(err, io.EOF) {
		return 0, errors.Wrapf(ErrMalformedFile, "unexpected end of file after line %d", s.line)
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedFile, "line %d: %v", s.line, err)
	}
	return v, nil
}
