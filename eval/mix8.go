package eval

import (
	"github.com/Joker2770/rapfi/game"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// ValueType is a game outcome distribution from the side to move's
// point of view.
type ValueType struct {
	winProb, lossProb, drawProb float32
}

// NewValueType converts raw win/loss/draw logits into probabilities.
func NewValueType(winLogit, lossLogit, drawLogit float32) ValueType {
	m := math32.Max(winLogit, math32.Max(lossLogit, drawLogit))
	w := math32.Exp(winLogit - m)
	l := math32.Exp(lossLogit - m)
	d := math32.Exp(drawLogit - m)
	s := w + l + d
	return ValueType{winProb: w / s, lossProb: l / s, drawProb: d / s}
}

// Win returns the probability that the side to move wins.
func (v ValueType) Win() float32 { return v.winProb }

// Loss returns the probability that the side to move loses.
func (v ValueType) Loss() float32 { return v.lossProb }

// Draw returns the draw probability.
func (v ValueType) Draw() float32 { return v.drawProb }

// Value returns the expectation win - loss, in [-1, 1].
func (v ValueType) Value() float32 { return v.winProb - v.lossProb }

// moveCache is one deferred board delta. Deltas only reach the
// accumulators when an evaluation needs them, so a make that is undone
// before any evaluation costs nothing.
type moveCache struct {
	oldColor, newColor game.Color
	x, y               int
}

// isContraryMove reports whether b exactly reverses a.
func isContraryMove(a, b moveCache) bool {
	return a.x == b.x && a.y == b.y &&
		a.oldColor == b.newColor && a.newColor == b.oldColor
}

// Mix8Evaluator evaluates positions with a Mix8 network, maintaining one
// incremental accumulator per side.
type Mix8Evaluator struct {
	weights   *Mix8WeightTwoSide
	boardSize int

	accum   [game.ColorNb]*Accumulator
	backups [game.ColorNb][][ValueDim]int32
	cache   []moveCache

	// value head scratch
	valueIn, hidden1, hidden2, logits *tensor.Dense
}

// NewMix8Evaluator builds an evaluator for one board size.
func NewMix8Evaluator(boardSize int, weights *Mix8WeightTwoSide) (*Mix8Evaluator, error) {
	if weights == nil {
		return nil, errors.New("nil weights")
	}
	e := &Mix8Evaluator{
		weights:   weights,
		boardSize: boardSize,
		valueIn:   tensor.New(tensor.WithShape(2*ValueDim), tensor.Of(tensor.Float32)),
		hidden1:   tensor.New(tensor.WithShape(ValueDim), tensor.Of(tensor.Float32)),
		hidden2:   tensor.New(tensor.WithShape(ValueDim), tensor.Of(tensor.Float32)),
		logits:    tensor.New(tensor.WithShape(3), tensor.Of(tensor.Float32)),
	}
	for side := range e.accum {
		a, err := NewAccumulator(boardSize)
		if err != nil {
			return nil, err
		}
		e.accum[side] = a
		e.backups[side] = make([][ValueDim]int32, 0, boardSize*boardSize)
	}
	e.InitEmptyBoard()
	return e, nil
}

// BoardSize returns the edge length this evaluator was built for.
func (e *Mix8Evaluator) BoardSize() int { return e.boardSize }

// checkBoard panics when a board does not match the size the
// accumulators were built for. A mismatched delta would fold foreign
// coordinates into valid shape indices and corrupt the accumulator.
func (e *Mix8Evaluator) checkBoard(board game.Board) {
	if board.Size() != e.boardSize {
		panic(errors.Errorf("eval: board size %d does not match evaluator size %d", board.Size(), e.boardSize))
	}
}

// InitEmptyBoard resets both accumulators to an empty board.
func (e *Mix8Evaluator) InitEmptyBoard() {
	for side := range e.accum {
		e.accum[side].Clear(e.weights.side[side])
		e.backups[side] = e.backups[side][:0]
	}
	e.cache = e.cache[:0]
}

// SyncBoard rebuilds the accumulators to match an arbitrary position.
// Use it when the evaluator did not observe the moves that produced the
// board; incremental tracking resumes from there.
func (e *Mix8Evaluator) SyncBoard(board game.Board) {
	e.checkBoard(board)
	e.InitEmptyBoard()
	c := game.Black
	for ply := 0; ply < board.Ply(); ply++ {
		p := board.MoveAt(ply)
		e.addCache(moveCache{oldColor: game.Empty, newColor: c, x: p.X(), y: p.Y()})
		c = game.Opponent(c)
	}
}

// BeforeMove records a stone about to be placed. Call it before the
// board state changes, while the mover is still the side to move.
func (e *Mix8Evaluator) BeforeMove(board game.Board, p game.Pos) {
	e.checkBoard(board)
	e.addCache(moveCache{
		oldColor: game.Empty,
		newColor: board.SideToMove(),
		x:        p.X(),
		y:        p.Y(),
	})
}

// AfterUndo records a stone just removed. Call it after the board state
// reverted, when the mover is again the side to move.
func (e *Mix8Evaluator) AfterUndo(board game.Board, p game.Pos) {
	e.checkBoard(board)
	e.addCache(moveCache{
		oldColor: board.SideToMove(),
		newColor: game.Empty,
		x:        p.X(),
		y:        p.Y(),
	})
}

func (e *Mix8Evaluator) addCache(mc moveCache) {
	if n := len(e.cache); n > 0 && isContraryMove(e.cache[n-1], mc) {
		e.cache = e.cache[:n-1]
		return
	}
	e.cache = append(e.cache, mc)
}

// relativeCell maps a board color to one side's cell state.
func relativeCell(c game.Color, side int) uint8 {
	switch {
	case c == game.Empty:
		return cellEmpty
	case c.Side() == side:
		return cellSelf
	default:
		return cellOppo
	}
}

// flushCache applies every deferred delta to both accumulators.
func (e *Mix8Evaluator) flushCache() {
	for _, mc := range e.cache {
		for side := range e.accum {
			w := e.weights.side[side]
			oldC := relativeCell(mc.oldColor, side)
			newC := relativeCell(mc.newColor, side)
			if mc.newColor != game.Empty {
				e.backups[side] = append(e.backups[side], [ValueDim]int32{})
				bk := &e.backups[side][len(e.backups[side])-1]
				e.accum[side].Update(w, UpdateMove, oldC, newC, mc.x, mc.y, bk)
			} else {
				n := len(e.backups[side])
				bk := &e.backups[side][n-1]
				e.accum[side].Update(w, UpdateUndo, oldC, newC, mc.x, mc.y, bk)
				e.backups[side] = e.backups[side][:n-1]
			}
		}
	}
	e.cache = e.cache[:0]
}

// valueFeatures fills the value head input: the side to move's features
// followed by the opponent's.
func (e *Mix8Evaluator) valueFeatures(stm game.Color) []float32 {
	in := e.valueIn.Data().([]float32)
	self, oppo := stm.Side(), game.Opponent(stm).Side()
	e.accum[self].ValueFeatures(e.weights.side[self], in[:ValueDim])
	e.accum[oppo].ValueFeatures(e.weights.side[oppo], in[ValueDim:])
	return in
}

func relu(xs []float32) {
	for i, v := range xs {
		if v < 0 {
			xs[i] = 0
		}
	}
}

// EvaluateValue runs the value head for the current side to move.
func (e *Mix8Evaluator) EvaluateValue(board game.Board) ValueType {
	e.checkBoard(board)
	e.flushCache()
	stm := board.SideToMove()
	e.valueFeatures(stm)
	bk := e.weights.Side(stm).Bucket()

	if _, err := tensor.MatVecMul(bk.ValueL1Weight, e.valueIn, tensor.WithReuse(e.hidden1)); err != nil {
		panic(errors.Wrap(err, "value layer 1"))
	}
	h1 := e.hidden1.Data().([]float32)
	vecf32.Add(h1, bk.ValueL1Bias)
	relu(h1)

	if _, err := tensor.MatVecMul(bk.ValueL2Weight, e.hidden1, tensor.WithReuse(e.hidden2)); err != nil {
		panic(errors.Wrap(err, "value layer 2"))
	}
	h2 := e.hidden2.Data().([]float32)
	vecf32.Add(h2, bk.ValueL2Bias)
	relu(h2)

	if _, err := tensor.MatVecMul(bk.ValueL3Weight, e.hidden2, tensor.WithReuse(e.logits)); err != nil {
		panic(errors.Wrap(err, "value layer 3"))
	}
	out := e.logits.Data().([]float32)
	vecf32.Add(out, bk.ValueL3Bias[:])

	return NewValueType(out[0], out[1], out[2])
}

// EvaluatePolicy scores every cell flagged in buf for the current side
// to move. The pointwise conv weights are derived from the value
// features, so the policy adapts to the whole-board state.
func (e *Mix8Evaluator) EvaluatePolicy(board game.Board, buf *PolicyBuffer) {
	e.checkBoard(board)
	e.flushCache()
	stm := board.SideToMove()
	w := e.weights.Side(stm)
	bk := w.Bucket()
	feats := e.valueFeatures(stm)[:ValueDim]

	var pw [PolicyDim]float32
	pwData := bk.PolicyPWConvWeight.Data().([]float32)
	for ch := 0; ch < PolicyDim; ch++ {
		s := bk.PolicyPWConvBias[ch]
		row := pwData[ch*ValueDim : (ch+1)*ValueDim]
		for i, f := range feats {
			s += row[i] * f
		}
		if s < 0 {
			s = 0
		}
		pw[ch] = s
	}

	e.accum[stm.Side()].PolicyScores(w, &pw, buf)
}
