package main

import (
	"bytes"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"q2048/game2048"
	"q2048/neuralnet"
	"q2048/qlearning"
	"q2048/runlog"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "train" || cfg.Episodes != 100 || cfg.Hidden != 64 || cfg.Layers != 2 {
		t.Errorf("defaults %+v", cfg)
	}
	if _, ok := cfg.Activation.(neuralnet.LeakyReLU); !ok {
		t.Errorf("default activation %#v; want LeakyReLU", cfg.Activation)
	}
	if cfg.Seed == 0 {
		t.Error("seed 0 was not replaced")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-mode", "eval", "-load", "net.txt", "-episodes", "5",
		"-activation", "ReLUWithSlopes 0.1 0.001", "-seed", "42", "-transfer", "10",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	relu, ok := cfg.Activation.(neuralnet.ReLUWithSlopes)
	if !ok || relu.PositiveSlope() != 0.1 || relu.NegativeSlope() != 0.001 {
		t.Errorf("activation %#v", cfg.Activation)
	}
	if cfg.Mode != "eval" || cfg.Load != "net.txt" || cfg.Episodes != 5 || cfg.Seed != 42 || cfg.Transfer != 10 {
		t.Errorf("config %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"-mode", "watch"}},
		{"eval without net", []string{"-mode", "eval"}},
		{"bad activation", []string{"-activation", "Softplus"}},
		{"negative episodes", []string{"-episodes", "-1"}},
		{"layers without nodes", []string{"-hidden", "0", "-layers", "1"}},
		{"zero transfer", []string{"-transfer", "0"}},
		{"negative checkpoint", []string{"-checkpoint-every", "-1", "-save", "net"}},
		{"checkpoint without save", []string{"-checkpoint-every", "2"}},
		{"unknown flag", []string{"-colour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseConfig(tt.args, io.Discard); err == nil {
				t.Error("parseConfig did not return error")
			}
		})
	}
	_, err := parseConfig([]string{"-activation", "Softplus"}, io.Discard)
	if !errors.Is(err, neuralnet.ErrUnknownActivation) {
		t.Errorf("err = %v; want ErrUnknownActivation", err)
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestTrainThenEvaluate(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.sqlite3")
	cfg, err := parseConfig([]string{
		"-episodes", "2", "-hidden", "4", "-layers", "1", "-seed", "1",
		"-save", filepath.Join(dir, "net"), "-db", db,
		"-plot", filepath.Join(dir, "curve.png"), "-snapshot", filepath.Join(dir, "board.png"),
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run(cfg, quietLogger(), nil, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "episodes: 2") {
		t.Errorf("output %q", out.String())
	}
	for _, name := range []string{"net.txt", "curve.png", "board.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	net, err := neuralnet.LoadFile(filepath.Join(dir, "net.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if describeNet(net) != "256-4x1-4" {
		t.Errorf("saved network %s", describeNet(net))
	}
	if _, ok := net.LayerTransform(1).Activation().(neuralnet.NoActivation); !ok {
		t.Errorf("output activation %#v; want NoActivation", net.LayerTransform(1).Activation())
	}

	cfg, err = parseConfig([]string{"-mode", "eval", "-load", filepath.Join(dir, "net.txt"), "-episodes", "1", "-db", db}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := run(cfg, quietLogger(), nil, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "average score") {
		t.Errorf("output %q", out.String())
	}

	store, err := runlog.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Description != "train deep 256-4x1-4" {
		t.Fatalf("runs %+v", runs)
	}
	episodes, err := store.Episodes(runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 2 || episodes[1].Episode != 2 {
		t.Errorf("episodes %+v", episodes)
	}
}

func TestTrainCheckpoints(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig([]string{
		"-episodes", "3", "-checkpoint-every", "2", "-hidden", "4", "-layers", "1", "-seed", "6",
		"-save", filepath.Join(dir, "net"),
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if err := run(cfg, quietLogger(), nil, io.Discard); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"net_v1.txt", "net_v2.txt", "net.txt"} {
		net, err := neuralnet.LoadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if describeNet(net) != "256-4x1-4" {
			t.Errorf("%s holds %s", name, describeNet(net))
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "net_v3.txt")); !os.IsNotExist(err) {
		t.Errorf("net_v3.txt: err = %v; want not exist", err)
	}
}

func TestTrainApproximate(t *testing.T) {
	cfg, err := parseConfig([]string{"-approx", "-episodes", "1", "-seed", "3"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run(cfg, quietLogger(), nil, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"weight bias:", "weight highest in corner:", "weight max tile:", "weight reward:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestEvaluateDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.txt")
	if err := neuralnet.SaveFile(path, neuralnet.NewNeuralNet(3, 2, 4, 1, neuralnet.Sigmoid{}, rand.New(rand.NewSource(5)))); err != nil {
		t.Fatal(err)
	}
	cfg, err := parseConfig([]string{"-mode", "eval", "-load", path, "-episodes", "1"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if err := run(cfg, quietLogger(), nil, io.Discard); !errors.Is(err, qlearning.ErrDimensionMismatch) {
		t.Errorf("err = %v; want ErrDimensionMismatch", err)
	}
}

func TestPlay(t *testing.T) {
	dir := t.TempDir()
	boardFile := filepath.Join(dir, "board.txt")
	board := "# start\n2 0 0 0\n0 0 0 0\n\n0 0 0 0\n0 0 0 0\n"
	if err := os.WriteFile(boardFile, []byte(board), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := parseConfig([]string{"-mode", "play", "-board", boardFile, "-seed", "4", "-snapshot", filepath.Join(dir, "end.png")}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	in := strings.NewReader("left\nsideways\nright\nclose\n")
	if err := run(cfg, quietLogger(), in, &out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if strings.Count(text, "nothing moved") != 1 {
		t.Errorf("want one refused move:\n%s", text)
	}
	if !strings.Contains(text, `unknown direction "sideways"`) {
		t.Errorf("bad direction not reported:\n%s", text)
	}
	if _, err := os.Stat(filepath.Join(dir, "end.png")); err != nil {
		t.Error(err)
	}
}

func TestLoadBoard(t *testing.T) {
	dir := t.TempDir()
	write := func(content string) string {
		path := filepath.Join(dir, "b.txt")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	b, err := loadBoard(write("2 4 8 16\n0 0 0 0\n0 0 0 0\n0 0 0 2048\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := game2048.Board{{2, 4, 8, 16}, {}, {}, {0, 0, 0, 2048}}
	if b != want {
		t.Errorf("loadBoard = %v; want %v", b, want)
	}

	for _, bad := range []string{
		"2 4 8\n0 0 0 0\n0 0 0 0\n0 0 0 0\n",
		"3 0 0 0\n0 0 0 0\n0 0 0 0\n0 0 0 0\n",
		"0 0 0 0\n0 0 0 0\n0 0 0 0\n",
		"0 0 0 0\n0 0 0 0\n0 0 0 0\n0 0 0 0\n0 0 0 0\n",
		"x 0 0 0\n0 0 0 0\n0 0 0 0\n0 0 0 0\n",
	} {
		if _, err := loadBoard(write(bad)); err == nil {
			t.Errorf("loadBoard(%q) did not return error", bad)
		}
	}
}

func TestPlotLearningProgress(t *testing.T) {
	if err := plotLearningProgress(nil, filepath.Join(t.TempDir(), "p.png")); err == nil {
		t.Error("plotting no episodes did not return error")
	}
	results := []qlearning.EpisodeResult{{Episode: 1, Score: 64, Reward: 30}, {Episode: 2, Score: 128, Reward: 55}}
	path := filepath.Join(t.TempDir(), "p.png")
	if err := plotLearningProgress(results, path); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("plot not written: %v", err)
	}
}
