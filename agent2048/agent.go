// Package agent2048 lets the qlearning learners play 2048.
package agent2048

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"q2048/game2048"
)

const (
	numCells = game2048.Size * game2048.Size

	// InputSize is the tile values followed by one flag per ordered pair of cells.
	InputSize = numCells + numCells*(numCells-1)
	// OutputSize is one q-value per direction.
	OutputSize = len(game2048.Directions)

	tileScale    = 10000
	featureScale = 500
)

// Agent plays a single game. States are boards and actions are directions.
type Agent struct {
	game *game2048.Game
}

func New(rng *rand.Rand) *Agent {
	return &Agent{game: game2048.New(rng)}
}

// FromGame wraps an existing game, e.g. one started from a saved board.
func FromGame(g *game2048.Game) *Agent {
	return &Agent{game: g}
}

func (a *Agent) Game() *game2048.Game { return a.game }

func (a *Agent) Discount() float64     { return 1 }
func (a *Agent) Restart()              { a.game.Restart() }
func (a *Agent) State() game2048.Board { return a.game.Board() }

func (a *Agent) Perform(d game2048.Direction) { a.game.Move(d) }

func (a *Agent) LegalActions(b game2048.Board) []game2048.Direction {
	return b.LegalMoves()
}

// Reward is the growth of the largest tile if it grew. Otherwise a move
// that left more tiles on the board costs 1 and any other move earns 1.
func (a *Agent) Reward(b game2048.Board, d game2048.Direction, next game2048.Board) float64 {
	if growth := next.MaxTile() - b.MaxTile(); growth > 0 {
		return float64(growth)
	}
	if occupied(next) > occupied(b) {
		return -1
	}
	return 1
}

func (a *Agent) IsTerminal(b game2048.Board) bool { return b.Over() }

// Score is the largest tile.
func (a *Agent) Score(b game2048.Board) float64 { return float64(b.MaxTile()) }

func (a *Agent) NeuralNetInputSize() int { return InputSize }
func (a *Agent) OutputSize() int         { return OutputSize }

// NeuralNetFeatures encodes b as the 16 tile values scaled down by 10000,
// then for every ordered pair of distinct cells a 1 if both hold the same
// non-zero tile, else 0.
func (a *Agent) NeuralNetFeatures(b game2048.Board) *mat.VecDense {
	tiles := Grid(b).Data().([]float64)
	features := mat.NewVecDense(InputSize, nil)
	for i, v := range tiles {
		features.SetVec(i, v/tileScale)
	}
	i := numCells
	for j := range tiles {
		for k := range tiles {
			if j == k {
				continue
			}
			if tiles[j] != 0 && tiles[j] == tiles[k] {
				features.SetVec(i, 1)
			}
			i++
		}
	}
	return features
}

// ActionFromNode maps output nodes 0..3 to Up, Right, Down, Left.
func (a *Agent) ActionFromNode(node int) game2048.Direction {
	return game2048.Directions[node]
}

func (a *Agent) NodeFromAction(d game2048.Direction) int {
	for node, dir := range game2048.Directions {
		if dir == d {
			return node
		}
	}
	panic("agent2048: unknown direction " + d.String())
}

// Features describes moving d from b by the board it slides to, before a
// new tile spawns.
func (a *Agent) Features(b game2048.Board, d game2048.Direction) map[string]float64 {
	next := b.Slide(d)
	return map[string]float64{
		"reward":            a.Reward(b, d, next) / featureScale,
		"max tile":          float64(next.MaxTile()) / featureScale,
		"highest in corner": highestInCorner(next),
		"bias":              0.1,
	}
}

// Grid returns b as a 4x4 float64 tensor.
func Grid(b game2048.Board) *tensor.Dense {
	data := make([]float64, 0, numCells)
	for _, v := range b.Tiles() {
		data = append(data, float64(v))
	}
	return tensor.New(tensor.WithShape(game2048.Size, game2048.Size), tensor.WithBacking(data))
}

func occupied(b game2048.Board) int {
	return numCells - b.EmptySpaces()
}

func highestInCorner(b game2048.Board) float64 {
	max := b.MaxTile()
	last := game2048.Size - 1
	for _, v := range [...]int{b[0][0], b[0][last], b[last][0], b[last][last]} {
		if v == max && max != 0 {
			return 0.1
		}
	}
	return 0
}
