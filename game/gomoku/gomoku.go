// Package gomoku is the reference game.Board implementation: a plain
// five-in-a-row board for all three rule variants.
package gomoku

import (
	"fmt"

	"github.com/Joker2770/rapfi/game"
	"github.com/pkg/errors"
)

var _ game.Board = &Board{}

var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// Board is a gomoku position with move history.
type Board struct {
	cells      []game.Color // indexed by y*size+x
	size       int
	rule       game.Rule
	sideToMove game.Color
	history    []game.Pos
}

// New creates an empty board. The size must lie in [5, game.MaxBoardSize].
func New(size int, rule game.Rule) (*Board, error) {
	if size < 5 || size > game.MaxBoardSize {
		return nil, errors.Errorf("board size %d out of range [5, %d]", size, game.MaxBoardSize)
	}
	return &Board{
		cells:      make([]game.Color, size*size),
		size:       size,
		rule:       rule,
		sideToMove: game.Black,
		history:    make([]game.Pos, 0, size*size),
	}, nil
}

func (b *Board) Format(s fmt.State, c rune) {
	for i, cell := range b.cells {
		if i%b.size == 0 {
			fmt.Fprint(s, "⎢ ")
		}
		fmt.Fprintf(s, "%s ", cell)
		if (i+1)%b.size == 0 {
			fmt.Fprint(s, "⎥\n")
		}
	}
}

func (b *Board) Size() int              { return b.size }
func (b *Board) Rule() game.Rule        { return b.rule }
func (b *Board) SideToMove() game.Color { return b.sideToMove }
func (b *Board) Ply() int               { return len(b.history) }

func (b *Board) Get(p game.Pos) game.Color {
	x, y := p.X(), p.Y()
	if x < 0 || x >= b.size || y < 0 || y >= b.size {
		return game.Empty
	}
	return b.cells[y*b.size+x]
}

func (b *Board) LastMove() game.Pos {
	if len(b.history) == 0 {
		return game.PosNone
	}
	return b.history[len(b.history)-1]
}

func (b *Board) MoveAt(ply int) game.Pos {
	if ply < 0 || ply >= len(b.history) {
		return game.PosNone
	}
	return b.history[ply]
}

// In reports whether a coordinate lies on the board.
func (b *Board) In(x, y int) bool {
	return x >= 0 && x < b.size && y >= 0 && y < b.size
}

// IsLegal reports whether p is an empty on-board cell.
func (b *Board) IsLegal(p game.Pos) bool {
	return b.In(p.X(), p.Y()) && b.cells[p.Y()*b.size+p.X()] == game.Empty
}

func (b *Board) Make(p game.Pos) {
	if !b.IsLegal(p) {
		panic(fmt.Sprintf("illegal move %s", p))
	}
	b.cells[p.Y()*b.size+p.X()] = b.sideToMove
	b.history = append(b.history, p)
	b.sideToMove = game.Opponent(b.sideToMove)
}

func (b *Board) Undo() {
	if len(b.history) == 0 {
		panic("undo on empty board")
	}
	p := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.cells[p.Y()*b.size+p.X()] = game.Empty
	b.sideToMove = game.Opponent(b.sideToMove)
}

// Reset clears the board back to the opening position.
func (b *Board) Reset() {
	for i := range b.cells {
		b.cells[i] = game.Empty
	}
	b.history = b.history[:0]
	b.sideToMove = game.Black
}

// lineInfo is the stone count and open-end count of one direction's line
// through a cell, assuming a stone of the probed color sits on the cell.
func (b *Board) lineInfo(x, y int, c game.Color, dir [2]int) (count, open int) {
	count = 1
	for _, sign := range [2]int{1, -1} {
		cx, cy := x+sign*dir[0], y+sign*dir[1]
		for b.In(cx, cy) && b.cells[cy*b.size+cx] == c {
			count++
			cx += sign * dir[0]
			cy += sign * dir[1]
		}
		if b.In(cx, cy) && b.cells[cy*b.size+cx] == game.Empty {
			open++
		}
	}
	return count, open
}

// PatternAt classifies the best line a stone of color c would make on
// cell p. Standard and Renju require exactly five; Freestyle counts
// overlines as five too.
func (b *Board) PatternAt(p game.Pos, c game.Color) game.Pattern4 {
	x, y := p.X(), p.Y()
	if !b.In(x, y) {
		return game.P4None
	}
	best := game.P4None
	for _, dir := range directions {
		count, open := b.lineInfo(x, y, c, dir)
		if b.rule != game.Freestyle && count > 5 {
			continue
		}
		var pat game.Pattern4
		switch {
		case count >= 5:
			pat = game.P4Five
		case count == 4 && open == 2:
			pat = game.P4FlexFour
		case count == 4 && open == 1:
			pat = game.P4BlockFour
		case count == 3 && open == 2:
			pat = game.P4FlexThree
		case count == 3 && open == 1:
			pat = game.P4BlockThree
		}
		if pat > best {
			best = pat
		}
	}
	return best
}

// Winner returns the color with five in a row, or Empty if there is none
// yet.
func (b *Board) Winner() game.Color {
	last := b.LastMove()
	if last.IsNone() {
		return game.Empty
	}
	// only the last move can have completed a line
	c := b.cells[last.Y()*b.size+last.X()]
	if c == game.Empty {
		return game.Empty
	}
	for _, dir := range directions {
		count, _ := b.lineInfo(last.X(), last.Y(), c, dir)
		if count >= 5 && (b.rule == game.Freestyle || count == 5) {
			return c
		}
	}
	return game.Empty
}

// Full reports whether no empty cell remains.
func (b *Board) Full() bool { return len(b.history) == b.size*b.size }

// Candidates appends all empty cells within chebyshev distance 2 of an
// existing stone. On an empty board it yields the center.
func (b *Board) Candidates(buf []game.Pos) []game.Pos {
	if len(b.history) == 0 {
		return append(buf, game.MakePos(b.size/2, b.size/2))
	}
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			if b.cells[y*b.size+x] != game.Empty {
				continue
			}
			if b.nearStone(x, y, 2) {
				buf = append(buf, game.MakePos(x, y))
			}
		}
	}
	return buf
}

func (b *Board) nearStone(x, y, dist int) bool {
	for dy := -dist; dy <= dist; dy++ {
		for dx := -dist; dx <= dist; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			cx, cy := x+dx, y+dy
			if b.In(cx, cy) && b.cells[cy*b.size+cx] != game.Empty {
				return true
			}
		}
	}
	return false
}
