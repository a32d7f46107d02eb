package agent2048

import (
	"math/rand"
	"testing"

	"q2048/game2048"
	"q2048/neuralnet"
	"q2048/qlearning"
)

// pairIndex is the feature index of the ordered cell pair (j, k).
func pairIndex(j, k int) int {
	if k > j {
		k--
	}
	return numCells + j*(numCells-1) + k
}

func TestNeuralNetFeatures(t *testing.T) {
	a := New(rand.New(rand.NewSource(1)))
	b := game2048.Board{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 2048},
	}
	f := a.NeuralNetFeatures(b)
	if f.Len() != 256 {
		t.Fatalf("got %d features; want 256", f.Len())
	}
	if f.AtVec(0) != 2.0/10000 || f.AtVec(15) != 2048.0/10000 || f.AtVec(2) != 0 {
		t.Errorf("tile features %v %v %v", f.AtVec(0), f.AtVec(2), f.AtVec(15))
	}

	ones := 0
	for i := numCells; i < f.Len(); i++ {
		switch f.AtVec(i) {
		case 1:
			ones++
		case 0:
		default:
			t.Errorf("pair feature %d = %v; want 0 or 1", i, f.AtVec(i))
		}
	}
	if ones != 2 {
		t.Errorf("%d pair flags set; want 2", ones)
	}
	if f.AtVec(pairIndex(0, 1)) != 1 || f.AtVec(pairIndex(1, 0)) != 1 {
		t.Error("equal tiles in cells 0 and 1 not flagged in both orders")
	}
	// empty cells are equal but never flagged
	if f.AtVec(pairIndex(2, 3)) != 0 {
		t.Error("empty cells flagged as a pair")
	}
}

func TestReward(t *testing.T) {
	a := New(rand.New(rand.NewSource(2)))
	tests := []struct {
		name       string
		from, next game2048.Board
		want       float64
	}{
		{"max tile grew", game2048.Board{{4, 4}}, game2048.Board{{8, 2}}, 4},
		{"more tiles", game2048.Board{{4, 2}}, game2048.Board{{4, 2, 2}}, -1},
		{"merge without growth", game2048.Board{{8, 2, 2}}, game2048.Board{{8, 4, 2}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Reward(tt.from, game2048.Left, tt.next); got != tt.want {
				t.Errorf("Reward = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNodeMapping(t *testing.T) {
	a := New(rand.New(rand.NewSource(3)))
	want := []game2048.Direction{game2048.Up, game2048.Right, game2048.Down, game2048.Left}
	for node, d := range want {
		if got := a.ActionFromNode(node); got != d {
			t.Errorf("ActionFromNode(%d) = %v; want %v", node, got, d)
		}
		if got := a.NodeFromAction(d); got != node {
			t.Errorf("NodeFromAction(%v) = %d; want %d", d, got, node)
		}
	}
}

func TestFeatures(t *testing.T) {
	a := New(rand.New(rand.NewSource(4)))
	b := game2048.Board{{2, 2, 0, 0}}
	f := a.Features(b, game2048.Left)
	if f["reward"] != 2.0/500 {
		t.Errorf("reward feature %v; want %v", f["reward"], 2.0/500)
	}
	if f["max tile"] != 4.0/500 {
		t.Errorf("max tile feature %v; want %v", f["max tile"], 4.0/500)
	}
	if f["highest in corner"] != 0.1 || f["bias"] != 0.1 {
		t.Errorf("features %v", f)
	}
	if f := a.Features(b, game2048.Down); f["highest in corner"] != 0.1 {
		t.Errorf("after Down the highest tile sits at the bottom left, got %v", f["highest in corner"])
	}
	if f := a.Features(game2048.Board{{}, {0, 4}}, game2048.Right); f["highest in corner"] != 0 {
		t.Errorf("highest tile away from corners flagged: %v", f)
	}
}

func TestGrid(t *testing.T) {
	b := game2048.Board{{2}, {0, 4}, {}, {0, 0, 0, 8}}
	g := Grid(b)
	if shape := g.Shape(); len(shape) != 2 || shape[0] != 4 || shape[1] != 4 {
		t.Fatalf("shape %v; want (4, 4)", shape)
	}
	for _, c := range []struct {
		row, col int
		want     float64
	}{{0, 0, 2}, {1, 1, 4}, {3, 3, 8}, {2, 2, 0}} {
		v, err := g.At(c.row, c.col)
		if err != nil {
			t.Fatal(err)
		}
		if v.(float64) != c.want {
			t.Errorf("At(%d, %d) = %v; want %v", c.row, c.col, v, c.want)
		}
	}
}

func TestTerminalAndScore(t *testing.T) {
	a := New(rand.New(rand.NewSource(5)))
	stuck := game2048.Board{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 16},
	}
	if !a.IsTerminal(stuck) || len(a.LegalActions(stuck)) != 0 {
		t.Error("stuck board not terminal")
	}
	if a.Score(stuck) != 16 {
		t.Errorf("Score = %v; want 16", a.Score(stuck))
	}
}

func TestDeepQLearnerPlaysGame(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := New(rng)
	d := qlearning.NewDeepQLearner[game2048.Board, game2048.Direction](a, 8, 1, neuralnet.LeakyReLU{}, rng)
	d.SetActivator(1, neuralnet.NoActivation{})
	if err := d.PerformQLearning(1); err != nil {
		t.Fatal(err)
	}
	if d.EpisodesCompleted() != 1 {
		t.Fatalf("EpisodesCompleted = %d; want 1", d.EpisodesCompleted())
	}
	if !a.Game().Over() {
		t.Error("episode ended before the game was over")
	}
	if d.AverageScore() < 4 {
		t.Errorf("score %v; a finished game always has a tile of at least 4", d.AverageScore())
	}
}

func TestApproximateQLearnerPlaysGame(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := New(rng)
	l := qlearning.NewApproximateQLearner[game2048.Board, game2048.Direction](a, rng)
	if err := l.PerformQLearning(2); err != nil {
		t.Fatal(err)
	}
	if len(l.Weights) != 4 {
		t.Errorf("weights %v; want one per feature", l.Weights)
	}
}
