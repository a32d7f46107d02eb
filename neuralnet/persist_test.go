package neuralnet

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	relu, _ := NewReLUWithSlopes(0.1, 0.001)
	nn := NewNeuralNet(16, 50, 4, 2, relu, rand.New(rand.NewSource(9)))
	nn.SetActivator(2, NoActivation{})

	path := filepath.Join(t.TempDir(), "net.txt")
	if err := SaveFile(path, nn); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NumInputNodes() != 16 || loaded.NumMiddleNodes() != 50 || loaded.NumOutputNodes() != 4 || loaded.NumMiddleLayers() != 2 {
		t.Fatalf("loaded shape %d-%dx%d-%d", loaded.NumInputNodes(), loaded.NumMiddleNodes(), loaded.NumMiddleLayers(), loaded.NumOutputNodes())
	}
	for i := 0; i < nn.NumLayerTransforms(); i++ {
		want, got := nn.LayerTransform(i), loaded.LayerTransform(i)
		if !mat.Equal(want.Weights(), got.Weights()) {
			t.Errorf("transform %d weights differ", i)
		}
		if !mat.Equal(want.Biases(), got.Biases()) {
			t.Errorf("transform %d biases differ", i)
		}
		if want.Activation() != got.Activation() {
			t.Errorf("transform %d activation %#v; want %#v", i, got.Activation(), want.Activation())
		}
	}
	if !loaded.Equal(nn) {
		t.Error("loaded network not Equal to the saved one")
	}
}

func TestLoadLayout(t *testing.T) {
	// 2 inputs, no hidden layers, 1 output: weights row-major then biases
	file := "2\n0\n1\n0\n1.5\n-2\n0.25\n"
	nn, err := Load(strings.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	w := nn.LayerTransform(0).Weights()
	if w.At(0, 0) != 1.5 || w.At(0, 1) != -2 {
		t.Errorf("weights %v; want [1.5 -2]", mat.Formatted(w))
	}
	if b := nn.LayerTransform(0).Biases().AtVec(0); b != 0.25 {
		t.Errorf("bias %v; want 0.25", b)
	}
	if _, ok := nn.LayerTransform(0).Activation().(Sigmoid); !ok {
		t.Errorf("activation %#v; want Sigmoid when the file has none", nn.LayerTransform(0).Activation())
	}
}

func TestSaveLayout(t *testing.T) {
	nn := NewNeuralNet(2, 3, 1, 1, Sigmoid{}, rand.New(rand.NewSource(2)))
	nn.SetActivator(1, NoActivation{})
	var buf bytes.Buffer
	if err := Save(&buf, nn); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// header + 6+3 weights + 3+1 biases + 2 activations
	if len(lines) != 4+9+4+2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if strings.Join(lines[:4], ",") != "2,3,1,1" {
		t.Errorf("header %v; want 2,3,1,1", lines[:4])
	}
	if lines[len(lines)-2] != "Sigmoid" || lines[len(lines)-1] != "NoActivation" {
		t.Errorf("activation lines %v", lines[len(lines)-2:])
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		file string
		want error
	}{
		{"empty", "", ErrMalformedFile},
		{"bad header", "2\nx\n1\n0\n", ErrMalformedFile},
		{"zero inputs", "0\n0\n1\n0\n", ErrMalformedFile},
		{"short weights", "2\n0\n1\n0\n1\n", ErrMalformedFile},
		{"bad float", "2\n0\n1\n0\n1\nnope\n0\n", ErrMalformedFile},
		{"trailing data", "2\n0\n1\n0\n1\n2\n3\nSigmoid\nextra\n", ErrMalformedFile},
		{"unknown activation", "2\n0\n1\n0\n1\n2\n3\nSoftplus\n", ErrUnknownActivation},
		{"missing activation", "1\n1\n1\n1\n1\n1\n1\n1\nSigmoid\n", ErrMalformedFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.file)); !errors.Is(err, tt.want) {
				t.Errorf("err = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("LoadFile of a missing file did not return error")
	}
}
