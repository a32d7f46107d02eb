// Command q2048 trains, evaluates and plays 2048 agents.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"q2048/agent2048"
	"q2048/game2048"
	"q2048/neuralnet"
	"q2048/qlearning"
	"q2048/runlog"
)

type (
	learner     = qlearning.Learner[game2048.Board, game2048.Direction]
	deepLearner = qlearning.DeepQLearner[game2048.Board, game2048.Direction]
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := log.New(os.Stderr, "q2048 ", log.LstdFlags)
	if err := run(cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Fatal(err)
	}
}

func run(cfg *Config, logger *log.Logger, in io.Reader, out io.Writer) error {
	rng := rand.New(rand.NewSource(cfg.Seed))
	switch cfg.Mode {
	case "eval":
		return evaluate(cfg, logger, rng, out)
	case "play":
		return play(cfg, rng, in, out)
	}
	return train(cfg, logger, rng, out)
}

func newDeepLearner(cfg *Config, agent *agent2048.Agent, rng *rand.Rand) (*deepLearner, error) {
	var d *deepLearner
	if cfg.Load != "" {
		net, err := neuralnet.LoadFile(cfg.Load)
		if err != nil {
			return nil, err
		}
		d, err = qlearning.NewDeepQLearnerFromNet[game2048.Board, game2048.Direction](agent, net, rng)
		if err != nil {
			return nil, errors.Wrap(err, cfg.Load)
		}
	} else {
		d = qlearning.NewDeepQLearner[game2048.Board, game2048.Direction](agent, cfg.Hidden, cfg.Layers, cfg.Activation, rng)
		// q-values are unbounded
		d.SetActivator(d.MainNet().NumLayerTransforms()-1, neuralnet.NoActivation{})
	}
	if cfg.Alpha != 0 {
		d.SetAlpha(cfg.Alpha)
	}
	d.IterationsBeforeNetTransfer = cfg.Transfer
	return d, nil
}

func describeNet(nn *neuralnet.NeuralNet) string {
	return fmt.Sprintf("%d-%dx%d-%d", nn.NumInputNodes(), nn.NumMiddleNodes(), nn.NumMiddleLayers(), nn.NumOutputNodes())
}

// recorder keeps every episode result and mirrors it to the run log.
type recorder struct {
	store   *runlog.Store
	runID   int64
	results []qlearning.EpisodeResult
	err     error
}

func openRecorder(cfg *Config, description string) (*recorder, error) {
	r := new(recorder)
	if cfg.DB == "" {
		return r, nil
	}
	store, err := runlog.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	id, err := store.StartRun(description)
	if err != nil {
		store.Close()
		return nil, err
	}
	r.store, r.runID = store, id
	return r, nil
}

func (r *recorder) observe(res qlearning.EpisodeResult) {
	r.results = append(r.results, res)
	if r.store != nil && r.err == nil {
		r.err = r.store.Record(r.runID, res)
	}
}

func (r *recorder) close() error {
	if r.store == nil {
		return r.err
	}
	if err := r.store.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

func configure(l *learner, cfg *Config, logger *log.Logger, rec *recorder) {
	l.Epsilon = cfg.Epsilon
	l.EpsilonDecay = cfg.EpsilonDecay
	l.MinEpsilon = cfg.MinEpsilon
	l.Logger = logger
	l.Observer = rec.observe
}

func train(cfg *Config, logger *log.Logger, rng *rand.Rand, out io.Writer) error {
	agent := agent2048.New(rng)

	var (
		l           *learner
		deep        *deepLearner
		approx      *qlearning.ApproximateQLearner[game2048.Board, game2048.Direction]
		description string
	)
	if cfg.Approx {
		approx = qlearning.NewApproximateQLearner[game2048.Board, game2048.Direction](agent, rng)
		if cfg.Alpha != 0 {
			approx.Alpha = cfg.Alpha
		}
		l = approx.Learner
		description = "train approximate"
	} else {
		var err error
		deep, err = newDeepLearner(cfg, agent, rng)
		if err != nil {
			return err
		}
		l = deep.Learner
		description = "train deep " + describeNet(deep.MainNet())
	}

	rec, err := openRecorder(cfg, description)
	if err != nil {
		return err
	}
	configure(l, cfg, logger, rec)
	trainErr := trainInBlocks(cfg, logger, l, deep)
	if err := rec.close(); err != nil {
		return errors.Wrap(err, "run log")
	}
	if trainErr != nil {
		return trainErr
	}

	printAverages(out, l)
	if approx != nil {
		names := make([]string, 0, len(approx.Weights))
		for name := range approx.Weights {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "weight %s: %g\n", name, approx.Weights[name])
		}
	}
	if deep != nil && cfg.Save != "" {
		path := cfg.Save + ".txt"
		if err := neuralnet.SaveFile(path, deep.TargetNet()); err != nil {
			return err
		}
		logger.Printf("saved network to %s", path)
	}
	return writeOutputs(cfg, rec, agent)
}

// trainInBlocks runs cfg.Episodes training episodes. With a checkpoint
// interval set, the deep learner's target network is saved as a new version
// after every block.
func trainInBlocks(cfg *Config, logger *log.Logger, l *learner, deep *deepLearner) error {
	if cfg.CheckpointEvery == 0 || deep == nil {
		return l.PerformQLearning(cfg.Episodes)
	}
	for version, done := 1, 0; done < cfg.Episodes; version++ {
		block := cfg.CheckpointEvery
		if rest := cfg.Episodes - done; rest < block {
			block = rest
		}
		if err := l.PerformQLearning(block); err != nil {
			return err
		}
		done += block
		path := fmt.Sprintf("%s_v%d.txt", cfg.Save, version)
		if err := neuralnet.SaveFile(path, deep.TargetNet()); err != nil {
			return err
		}
		logger.Printf("checkpoint after %d episodes: %s", done, path)
	}
	return nil
}

func evaluate(cfg *Config, logger *log.Logger, rng *rand.Rand, out io.Writer) error {
	agent := agent2048.New(rng)
	d, err := newDeepLearner(cfg, agent, rng)
	if err != nil {
		return err
	}
	rec, err := openRecorder(cfg, "eval "+cfg.Load)
	if err != nil {
		return err
	}
	configure(d.Learner, cfg, logger, rec)
	evalErr := d.PerformWithoutTraining(cfg.Episodes)
	if err := rec.close(); err != nil {
		return errors.Wrap(err, "run log")
	}
	if evalErr != nil {
		return evalErr
	}
	printAverages(out, d.Learner)
	return writeOutputs(cfg, rec, agent)
}

func printAverages(out io.Writer, l *learner) {
	fmt.Fprintf(out, "episodes: %d\naverage score: %g\naverage reward: %g\n",
		l.EpisodesCompleted(), l.AverageScore(), l.AverageRewards())
}

func writeOutputs(cfg *Config, rec *recorder, agent *agent2048.Agent) error {
	if cfg.Plot != "" && len(rec.results) > 0 {
		if err := plotLearningProgress(rec.results, cfg.Plot); err != nil {
			return err
		}
	}
	if cfg.Snapshot != "" {
		return saveBoardImage(agent2048.Grid(agent.State()), cfg.Snapshot)
	}
	return nil
}

func play(cfg *Config, rng *rand.Rand, in io.Reader, out io.Writer) error {
	g := game2048.New(rng)
	if cfg.Board != "" {
		b, err := loadBoard(cfg.Board)
		if err != nil {
			return err
		}
		g = game2048.FromBoard(b, rng)
	}
	agent := agent2048.FromGame(g)

	var hint *deepLearner
	if cfg.Load != "" {
		var err error
		if hint, err = newDeepLearner(cfg, agent, rng); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%v\n", agent2048.Grid(g.Board()))
		if g.Over() {
			fmt.Fprintf(out, "game over, max tile %d\n", g.Board().MaxTile())
			break
		}
		if hint != nil {
			if d, ok := hint.BestAction(g.Board()); ok {
				fmt.Fprintf(out, "suggested: %v\n", d)
			}
		}
		fmt.Fprint(out, "move (left, right, up, down, close): ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "close" {
			break
		}
		d, err := game2048.ParseDirection(text)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if !g.Move(d) {
			fmt.Fprintln(out, "nothing moved")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if cfg.Snapshot != "" {
		return saveBoardImage(agent2048.Grid(g.Board()), cfg.Snapshot)
	}
	return nil
}
