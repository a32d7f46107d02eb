package main

import (
	"flag"
	"io"
	"time"

	"github.com/pkg/errors"

	"q2048/neuralnet"
)

type Config struct {
	Mode     string
	Episodes int

	Hidden     int
	Layers     int
	Activation neuralnet.ActivationFunction
	Approx     bool

	// Alpha 0 keeps the learner's default.
	Alpha        float64
	Epsilon      float64
	EpsilonDecay float64
	MinEpsilon   float64
	Transfer     int

	// CheckpointEvery > 0 saves <Save>_v<n>.txt after every block of that
	// many training episodes.
	CheckpointEvery int

	Load     string
	Save     string
	DB       string
	Plot     string
	Board    string
	Snapshot string

	Seed int64
}

func parseConfig(args []string, output io.Writer) (*Config, error) {
	cfg := new(Config)
	fs := flag.NewFlagSet("q2048", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.Mode, "mode", "train", "train, eval or play")
	fs.IntVar(&cfg.Episodes, "episodes", 100, "Number of episodes to train or evaluate")

	fs.IntVar(&cfg.Hidden, "hidden", 64, "Nodes per hidden layer")
	fs.IntVar(&cfg.Layers, "layers", 2, "Number of hidden layers")
	activation := fs.String("activation", "LeakyReLU", "Hidden layer activation, e.g. Sigmoid or \"ReLUWithSlopes 0.1 0.001\"")
	fs.BoolVar(&cfg.Approx, "approx", false, "Train the linear feature learner instead of a network")

	fs.Float64Var(&cfg.Alpha, "alpha", 0, "Learning rate, 0 for the learner default")
	fs.Float64Var(&cfg.Epsilon, "epsilon", 1, "Starting exploration rate")
	fs.Float64Var(&cfg.EpsilonDecay, "epsilon-decay", 0.99, "Exploration decay per episode")
	fs.Float64Var(&cfg.MinEpsilon, "min-epsilon", 0.01, "Exploration floor")
	fs.IntVar(&cfg.Transfer, "transfer", 100, "Updates between target to main network copies")
	fs.IntVar(&cfg.CheckpointEvery, "checkpoint-every", 0, "Save a versioned network every N training episodes, 0 to disable")

	fs.StringVar(&cfg.Load, "load", "", "Load the starting network from file")
	fs.StringVar(&cfg.Save, "save", "", "Save the trained network to <prefix>.txt")
	fs.StringVar(&cfg.DB, "db", "", "Record runs in this SQLite file")
	fs.StringVar(&cfg.Plot, "plot", "", "Write a learning curve PNG")
	fs.StringVar(&cfg.Board, "board", "", "Start play mode from a board file")
	fs.StringVar(&cfg.Snapshot, "snapshot", "", "Write the final board as a PNG")

	fs.Int64Var(&cfg.Seed, "seed", 0, "Random seed, 0 for time based")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case "train", "eval", "play":
	default:
		return nil, errors.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Mode == "eval" && cfg.Load == "" {
		return nil, errors.New("eval needs a network, set -load")
	}
	if cfg.Episodes < 0 || cfg.Hidden < 0 || cfg.Layers < 0 || cfg.CheckpointEvery < 0 {
		return nil, errors.New("counts must not be negative")
	}
	if cfg.Layers > 0 && cfg.Hidden == 0 {
		return nil, errors.New("hidden layers need at least one node")
	}
	if cfg.Transfer < 1 {
		return nil, errors.Errorf("transfer must be at least 1, got %d", cfg.Transfer)
	}
	if cfg.CheckpointEvery > 0 && cfg.Save == "" {
		return nil, errors.New("-checkpoint-every needs -save")
	}
	act, err := neuralnet.ReadActivation(*activation)
	if err != nil {
		return nil, errors.Wrap(err, "-activation")
	}
	cfg.Activation = act
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, nil
}
