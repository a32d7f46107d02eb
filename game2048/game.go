// Package game2048 implements the board mechanics of 2048.
package game2048

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

const (
	Size = 4

	probabilityTwo = 0.9
)

// Board holds tile values, 0 for empty. Board[0][0] is the top left tile.
type Board [Size][Size]int

type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Directions lists every move in node order.
var Directions = [...]Direction{Up, Right, Down, Left}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "unknown"
}

// ParseDirection reads "left", "right", "up" or "down", ignoring case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	}
	return 0, errors.Errorf("unknown direction %q", s)
}

// Slide returns the board after moving every tile in direction d, without
// spawning a new tile. Each tile merges at most once per move.
func (b Board) Slide(d Direction) Board {
	r := b.rotate(rotationsToLeft(d))
	for row := range r {
		r[row] = slideRowLeft(r[row])
	}
	return r.rotate((Size - rotationsToLeft(d)) % Size)
}

// CanMove reports whether moving in direction d changes the board.
func (b Board) CanMove(d Direction) bool {
	return b.Slide(d) != b
}

// LegalMoves lists the directions that change the board.
func (b Board) LegalMoves() []Direction {
	var moves []Direction
	for _, d := range Directions {
		if b.CanMove(d) {
			moves = append(moves, d)
		}
	}
	return moves
}

// Over reports whether no move changes the board.
func (b Board) Over() bool {
	return len(b.LegalMoves()) == 0
}

func (b Board) MaxTile() int {
	max := 0
	for _, row := range b {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}

func (b Board) EmptySpaces() int {
	n := 0
	for _, row := range b {
		for _, v := range row {
			if v == 0 {
				n++
			}
		}
	}
	return n
}

// Tiles returns the board row by row.
func (b Board) Tiles() []int {
	tiles := make([]int, 0, Size*Size)
	for _, row := range b {
		tiles = append(tiles, row[:]...)
	}
	return tiles
}

// rotationsToLeft is how many clockwise turns make d point left.
func rotationsToLeft(d Direction) int {
	switch d {
	case Up:
		return 3
	case Right:
		return 2
	case Down:
		return 1
	}
	return 0
}

func (b Board) rotate(turns int) Board {
	for ; turns > 0; turns-- {
		var r Board
		for row := 0; row < Size; row++ {
			for col := 0; col < Size; col++ {
				r[row][col] = b[Size-1-col][row]
			}
		}
		b = r
	}
	return b
}

func slideRowLeft(row [Size]int) [Size]int {
	var out [Size]int
	n := 0
	merged := false
	for _, v := range row {
		if v == 0 {
			continue
		}
		if n > 0 && !merged && out[n-1] == v {
			out[n-1] *= 2
			merged = true
			continue
		}
		out[n] = v
		n++
		merged = false
	}
	return out
}

// Game is a 2048 game that spawns tiles from its own random source.
type Game struct {
	board Board
	rng   *rand.Rand
}

// New starts a game with two random tiles.
func New(rng *rand.Rand) *Game {
	g := &Game{rng: rng}
	g.Restart()
	return g
}

// FromBoard starts a game at a given position.
func FromBoard(b Board, rng *rand.Rand) *Game {
	return &Game{board: b, rng: rng}
}

// Restart clears the board and adds two tiles.
func (g *Game) Restart() {
	g.board = Board{}
	g.AddTile()
	g.AddTile()
}

func (g *Game) Board() Board { return g.board }
func (g *Game) Over() bool   { return g.board.Over() }

// AddTile puts a 2 (90%) or a 4 on a random empty square. It returns false
// when the board is full.
func (g *Game) AddTile() bool {
	empty := g.board.EmptySpaces()
	if empty == 0 {
		return false
	}
	choice := g.rng.Intn(empty)
	value := 4
	if g.rng.Float64() < probabilityTwo {
		value = 2
	}
	for row := range g.board {
		for col := range g.board[row] {
			if g.board[row][col] != 0 {
				continue
			}
			if choice == 0 {
				g.board[row][col] = value
				return true
			}
			choice--
		}
	}
	return false
}

// Move slides the board and, if anything moved, adds a tile. It reports
// whether the board changed.
func (g *Game) Move(d Direction) bool {
	next := g.board.Slide(d)
	if next == g.board {
		return false
	}
	g.board = next
	g.AddTile()
	return true
}
