package search

import "github.com/Joker2770/rapfi/game"

// HistoryMax bounds every saturating history statistic to
// [-HistoryMax, HistoryMax]. The backing int16 keeps headroom above it.
const HistoryMax = 10692

// HistEntry is a single saturating history statistic. It is mutated only
// through Shift, never by plain assignment during search.
type HistEntry int16

// Get returns the current statistic.
func (e HistEntry) Get() int { return int(e) }

// Shift applies a bonus with an exponential-moving-average style
// saturation: the magnitude can never leave [-HistoryMax, HistoryMax],
// and stale extremes decay automatically. The bonus must satisfy
// |bonus| <= HistoryMax.
func (e *HistEntry) Shift(bonus int) {
	if bonus > HistoryMax || bonus < -HistoryMax {
		panic("history bonus out of range")
	}
	v := int(*e)
	v += bonus - v*absInt(bonus)/HistoryMax
	*e = HistEntry(v)
}

// MoveHistType splits main history statistics by move class.
type MoveHistType int

const (
	HistAttack MoveHistType = iota
	HistQuiet
	MoveHistTypeNb
)

// MoveHistTypeOf classifies a move for main history indexing: moves that
// create a four threat (or better) count as attacks.
func MoveHistTypeOf(p4 game.Pattern4) MoveHistType {
	if p4.IsFour() {
		return HistAttack
	}
	return HistQuiet
}

// Oppo4HistType indexes continuation history by whether the opponent's
// last move made a four.
type Oppo4HistType int

const (
	Oppo4No Oppo4HistType = iota
	Oppo4Yes
	Oppo4Nb
)

// MainHistory records how often a move of a given class on a given cell
// caused a beta cutoff during the current search. Indexed by side of the
// move, the move's cell, and the move's class.
type MainHistory [game.ColorNb][game.CellCount][MoveHistTypeNb]HistEntry

// Init resets all statistics to neutral.
func (h *MainHistory) Init() { *h = MainHistory{} }

// CounterMove is a suggested reply together with the pattern it makes.
type CounterMove struct {
	Pos      game.Pos
	Pattern4 game.Pattern4
}

// CounterMoveHistory records a natural reply to a move irrespective of
// the rest of the position. Indexed by side and cell of the previous
// move. Unlike the scalar histories, its update is plain overwrite.
type CounterMoveHistory [game.ColorNb][game.CellCount]CounterMove

// Init resets all replies to "no suggestion".
func (h *CounterMoveHistory) Init() {
	for s := range h {
		for c := range h[s] {
			h[s][c] = CounterMove{Pos: game.PosNone}
		}
	}
}

// MoveHistory is a per-cell saturating statistic table, the element type
// of ContinuationHistory.
type MoveHistory [game.CellCount]HistEntry

// ContinuationHistory records the combined strength of a pair of
// consecutive moves. Indexed first by whether the opponent's previous
// move made a four, then by the previous move's cell; the element is a
// per-cell table addressed by the current move.
type ContinuationHistory [Oppo4Nb][game.CellCount]MoveHistory

// Init resets all statistics to neutral.
func (h *ContinuationHistory) Init() { *h = ContinuationHistory{} }

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
