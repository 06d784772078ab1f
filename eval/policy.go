package eval

import "github.com/Joker2770/rapfi/game"

// PolicyBuffer carries per-cell policy scores for one evaluation. Cells
// are addressed by game.Pos, so the buffer works for any board size up
// to game.MaxBoardSize.
type PolicyBuffer struct {
	boardSize int
	compute   [game.CellCount]bool
	scores    [game.CellCount]float32
}

// NewPolicyBuffer returns a buffer with every on-board cell flagged for
// computation.
func NewPolicyBuffer(boardSize int) *PolicyBuffer {
	b := &PolicyBuffer{boardSize: boardSize}
	b.ComputeAll()
	return b
}

// SetComputeFlag requests a policy score for p.
func (b *PolicyBuffer) SetComputeFlag(p game.Pos) { b.compute[p] = true }

// ClearComputeFlags drops every pending request.
func (b *PolicyBuffer) ClearComputeFlags() {
	b.compute = [game.CellCount]bool{}
}

// ComputeAll requests a score for every on-board cell.
func (b *PolicyBuffer) ComputeAll() {
	for y := 0; y < b.boardSize; y++ {
		for x := 0; x < b.boardSize; x++ {
			b.compute[game.MakePos(x, y)] = true
		}
	}
}

// ComputeFlag reports whether p is flagged.
func (b *PolicyBuffer) ComputeFlag(p game.Pos) bool { return b.compute[p] }

// Score returns the computed policy score of p.
func (b *PolicyBuffer) Score(p game.Pos) float32 { return b.scores[p] }

func (b *PolicyBuffer) setScore(p game.Pos, s float32) { b.scores[p] = s }
