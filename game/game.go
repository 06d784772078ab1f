// Package game declares the board capability contract consumed by the
// search and evaluation packages. A Board implementation owns stone
// placement, legality and per-cell line-pattern classification; the
// engine core only ever talks to this interface.
package game

import "fmt"

// Color is the content of a single board cell.
type Color int32

const (
	Empty Color = iota
	Black
	White
	ColorNb = 2 // number of stone colors, for table sizing
)

func (c Color) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v': // used in debug
		switch c {
		case Empty:
			fmt.Fprint(s, "Empty")
		case Black:
			fmt.Fprint(s, "Black")
		case White:
			fmt.Fprint(s, "White")
		}
	case 's': // used in board printouts
		switch c {
		case Empty:
			fmt.Fprint(s, "·")
		case Black:
			fmt.Fprint(s, "X")
		case White:
			fmt.Fprint(s, "O")
		}
	}
}

// Opponent returns the other stone color.
func Opponent(c Color) Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	}
	panic("Unreachable")
}

// Side is a 0/1 index derived from a stone color, used to address
// per-side tables.
func (c Color) Side() int {
	switch c {
	case Black:
		return 0
	case White:
		return 1
	}
	panic("no side for empty cell")
}

const (
	// MaxBoardSize is the largest supported board edge.
	MaxBoardSize = 22
	// PosStride is the row stride of the Pos encoding. It is a power of
	// two larger than MaxBoardSize so that x and y unpack with masks.
	posShift  = 5
	PosStride = 1 << posShift
	// CellCount is the size of any table indexed by Pos.
	CellCount = PosStride * PosStride
)

// Pos encodes a board coordinate as y*PosStride + x in a single number,
// in the same spirit as a row-major cell index.
//		- 0 represents the top left
//		- negative values are the special non-board moves below
type Pos int32

const (
	PosNone Pos = -1
	PosPass Pos = -2
)

// MakePos builds a Pos from cartesian coordinates.
func MakePos(x, y int) Pos { return Pos(y*PosStride + x) }

func (p Pos) X() int { return int(p) & (PosStride - 1) }
func (p Pos) Y() int { return int(p) >> posShift }

// IsNone returns true for the sentinel "no move" value.
func (p Pos) IsNone() bool { return p == PosNone }

// IsPass returns true for the pass move.
func (p Pos) IsPass() bool { return p == PosPass }

func (p Pos) Format(s fmt.State, verb rune) {
	switch {
	case p.IsNone():
		fmt.Fprint(s, "none")
	case p.IsPass():
		fmt.Fprint(s, "pass")
	default:
		fmt.Fprintf(s, "%c%d", 'a'+p.X(), p.Y()+1)
	}
}

// Rule selects the game variant. Every tuned constant in the engine is a
// per-rule table indexed by this value; behavior is never branched on it
// structurally.
type Rule int32

const (
	Freestyle Rule = iota
	Standard
	Renju
	RuleNb
)

func (r Rule) String() string {
	switch r {
	case Freestyle:
		return "freestyle"
	case Standard:
		return "standard"
	case Renju:
		return "renju"
	}
	return "UNKNOWN RULE"
}

// Pattern4 classifies the best line shape a stone of a given color would
// form on a cell, combining all four directions.
type Pattern4 uint8

const (
	P4None Pattern4 = iota
	P4BlockThree
	P4FlexThree
	P4BlockFour
	P4FlexFour
	P4Five
	Pattern4Nb
)

// IsFour reports whether the pattern is an immediate four threat (or
// better).
func (p Pattern4) IsFour() bool { return p >= P4BlockFour }

func (p Pattern4) String() string {
	switch p {
	case P4None:
		return "none"
	case P4BlockThree:
		return "block3"
	case P4FlexThree:
		return "flex3"
	case P4BlockFour:
		return "block4"
	case P4FlexFour:
		return "flex4"
	case P4Five:
		return "five"
	}
	return "UNKNOWN PATTERN"
}

// Board is the position capability the engine core searches on. The
// implementation is external to the core; see the gomoku subpackage for
// the reference one.
type Board interface {
	// Position state
	Size() int            // board edge length
	Rule() Rule           // variant the board is played under
	Get(p Pos) Color      // cell occupancy
	SideToMove() Color    // color of the next stone to be placed
	Ply() int             // number of stones on the board
	LastMove() Pos        // most recent move, PosNone on an empty board
	MoveAt(ply int) Pos   // move made at a given ply

	// Pattern classification
	PatternAt(p Pos, c Color) Pattern4

	// Mutation. Make must only be called with a legal move; Undo with at
	// least one stone on the board.
	Make(p Pos)
	Undo()

	// Candidates appends the cells worth considering for the side to
	// move and returns the extended slice.
	Candidates(buf []Pos) []Pos
}

// MetaState wraps a Board with self-play bookkeeping, consumed by output
// encoders.
type MetaState interface {
	Name() string
	GameNumber() int
	Board() Board
	Winner() Color
}
