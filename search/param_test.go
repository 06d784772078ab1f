package search

import (
	"testing"

	"github.com/Joker2770/rapfi/game"
	"github.com/stretchr/testify/assert"
)

func TestAspirationWindowGrowth(t *testing.T) {
	assert := assert.New(t)

	d := NextAspirationWindowDelta(0)
	assert.Equal(Value(17), d, "initial window")
	d = NextAspirationWindowDelta(d)
	assert.Equal(Value(30), d, "second window")

	// the window keeps widening monotonically
	prev := d
	for i := 0; i < 20; i++ {
		d = NextAspirationWindowDelta(d)
		assert.True(d > prev, "window must grow: %d -> %d", prev, d)
		prev = d
	}
}

func TestRazorMarginThreshold(t *testing.T) {
	assert := assert.New(t)

	// finite below the depth threshold
	assert.True(RazorMargin(3.35) < MarginInfinite)
	assert.True(RazorMargin(1) < MarginInfinite)
	// infinite at and beyond it, which disables razoring
	assert.Equal(MarginInfinite, RazorMargin(3.36))
	assert.Equal(MarginInfinite, RazorMargin(10))
	// never negative
	assert.Equal(ValueZero, RazorMargin(-5))
}

func TestRazorMarginValues(t *testing.T) {
	// spot checks of the quadratic
	assert.Equal(t, Value(49), RazorMargin(0))
	assert.Equal(t, Value(49+46+0), RazorMargin(1))
	assert.Equal(t, Value(49+92+0), RazorMargin(2)) // 0.125*4 = 0.5 truncates
}

func TestFutilityMoveCount(t *testing.T) {
	assert := assert.New(t)
	for d := Depth(1); d < 20; d += 0.5 {
		imp := FutilityMoveCount(d, true)
		noimp := FutilityMoveCount(d, false)
		assert.True(imp >= noimp, "improving allows more moves at depth %v", d)
		assert.True(imp >= 3, "at least the base move count")
	}
	// deeper searches try more moves
	assert.True(FutilityMoveCount(10, true) > FutilityMoveCount(2, true))
}

func TestReductionLUT(t *testing.T) {
	assert := assert.New(t)
	var lut [MaxMoves + 1]Depth
	InitReductionLUT(&lut, 1)

	assert.Equal(Depth(0), lut[0])
	for i := 2; i <= MaxMoves; i++ {
		assert.True(lut[i] >= lut[i-1], "reductions grow with move index")
	}

	// more threads search wider, reducing less aggressively never holds;
	// the scale grows with the thread count
	var lut4 [MaxMoves + 1]Depth
	InitReductionLUT(&lut4, 4)
	assert.True(lut4[100] > lut[100])
}

func TestReduction(t *testing.T) {
	assert := assert.New(t)
	var lut [MaxMoves + 1]Depth
	InitReductionLUT(&lut, 1)

	pv := Reduction(&lut, true, 10, 8, 1, 50, 100)
	nonPv := Reduction(&lut, false, 10, 8, 1, 50, 100)
	assert.True(pv <= nonPv, "pv nodes reduce no more than non-pv")
	assert.True(pv >= 0)

	// failing to improve costs an extra ply at larger reductions
	notImproving := Reduction(&lut, false, 10, 30, -1, 50, 100)
	improving := Reduction(&lut, false, 10, 30, 1, 50, 100)
	assert.True(notImproving >= improving+1)

	assert.Panics(func() { Reduction(&lut, false, 0, 1, 0, 1, 1) })
	assert.Panics(func() { Reduction(&lut, false, 1, 0, 0, 1, 1) })
}

func TestMateValues(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(ValueMate, MateIn(0))
	assert.Equal(-ValueMate, MatedIn(0))
	assert.True(MateIn(5) < MateIn(3), "faster mates are worth more")
	assert.True(MatedIn(5) > MatedIn(3), "longer defenses are worth more")
	assert.True(MateIn(MaxPly) > ValueZero)
	assert.True(MateIn(0) < ValueInfinite)
}

func TestComplexityReduction(t *testing.T) {
	assert := assert.New(t)
	for r := game.Freestyle; r < game.RuleNb; r++ {
		trivialDistracted := ComplexityReduction(r, true, false, true)
		trivial := ComplexityReduction(r, true, false, false)
		unimportant := ComplexityReduction(r, false, false, false)
		important := ComplexityReduction(r, false, true, false)
		assert.True(trivialDistracted > trivial, "rule %v", r)
		assert.True(trivial > unimportant, "rule %v", r)
		assert.True(unimportant > important, "rule %v", r)
		assert.True(important > 0, "rule %v", r)
	}
}

func TestFutilityMargin(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Value(270), FutilityMargin(5, false))
	assert.Equal(Value(216), FutilityMargin(5, true))
	// never negative at tiny depths
	assert.Equal(Value(0), FutilityMargin(0.5, true))
}

func TestNullMoveMargin(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(MarginInfinite, NullMoveMargin(7.5), "disabled below depth 8")
	assert.Equal(Value(464), NullMoveMargin(8))
	// the depth term saturates at 20
	assert.Equal(Value(140), NullMoveMargin(20))
	assert.Equal(Value(140), NullMoveMargin(30))
}

func TestNullMoveReduction(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(5.91, float64(NullMoveReduction(10)), 1e-3)
	assert.True(NullMoveReduction(12) > NullMoveReduction(8), "reduction grows with depth")
}

func TestFailMargins(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Value(240), FailHighMargin(6, false))
	assert.Equal(Value(320), FailHighMargin(6, true), "a pending four raises the margin")
	assert.Equal(Value(400), FailLowMargin(6))
}

func TestSingularParams(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Value(16), SingularMargin(8, false))
	assert.Equal(Value(24), SingularMargin(8, true))
	assert.Equal(Depth(4), SingularReduction(8, false))
	assert.Equal(Depth(3), SingularReduction(8, true))
}

func TestDoubleSEMargin(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Value(69), DoubleSEMargin(2))
	assert.Equal(Value(65), DoubleSEMargin(10))
	// the depth discount saturates at 20
	assert.Equal(Value(50), DoubleSEMargin(50))
}

func TestQVCFDeltaMargin(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Value(2500), QVCFDeltaMargin(game.Freestyle, 0))
	assert.Equal(Value(2500), QVCFDeltaMargin(game.Standard, 0))
	assert.Equal(Value(4000), QVCFDeltaMargin(game.Renju, 0))
	assert.Equal(Value(3360), QVCFDeltaMargin(game.Renju, -10))
	// floored deep into the quiescence search
	assert.Equal(Value(600), QVCFDeltaMargin(game.Freestyle, -40))
}

func TestLateMoveCount(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(13, LateMoveCount(10, false))
	assert.Equal(16, LateMoveCount(10, true))
	for d := Depth(1); d <= 20; d++ {
		assert.True(LateMoveCount(d, true) >= LateMoveCount(d, false),
			"improving admits more moves at depth %v", d)
	}
}
