package search

import (
	"math"

	"github.com/Joker2770/rapfi/game"
	"github.com/chewxy/math32"
)

/*
Every numeric control value the alpha-beta driver consumes lives here:
margins, reductions, extensions and move-count thresholds. All of them
are closed-form formulas fit offline against tuning data, so the exact
arithmetic (order of operations, truncation points) matters and must not
be "simplified".
*/

// Depth is remaining search effort in fractional plies. Reductions and
// extensions apply sub-integer adjustments, hence not an int.
type Depth = float32

// Value is a bounded integer position score.
type Value int32

// Search limits.
const (
	MaxDepth = 200
	MaxPly   = 256
	MaxMoves = game.MaxBoardSize * game.MaxBoardSize
)

// Value constants.
const (
	ValueZero     Value = 0
	ValueInfinite Value = 20000
	ValueMate     Value = 10000

	// MarginInfinite marks a pruning margin that can never be satisfied.
	MarginInfinite Value = math.MaxInt16
)

// MateIn returns the value of winning in ply moves.
func MateIn(ply int) Value { return ValueMate - Value(ply) }

// MatedIn returns the value of getting mated in ply moves.
func MatedIn(ply int) Value { return -ValueMate + Value(ply) }

// Depth thresholds and constants, one entry per rule.
var (
	AspirationDepth  Depth              = 5.0
	IIDDepth         [game.RuleNb]Depth = [game.RuleNb]Depth{12.86, 12.12, 12.68}
	IIRReduction     [game.RuleNb]Depth = [game.RuleNb]Depth{0.93, 0.69, 0.51}
	IIRReductionPV   [game.RuleNb]Depth = [game.RuleNb]Depth{2.15, 2.09, 1.61}
	SEDepth          [game.RuleNb]Depth = [game.RuleNb]Depth{6.68, 6.14, 8.75}
	SETTEDepth       [game.RuleNb]Depth = [game.RuleNb]Depth{2.33, 2.62, 2.77}
	LMRDepth         [game.RuleNb]Depth = [game.RuleNb]Depth{2.78, 2.51, 2.54}
	RazorPrunDepth   [game.RuleNb]Depth = [game.RuleNb]Depth{2.89, 2.16, 2.74}
	TrivialPrunDepth [game.RuleNb]Depth = [game.RuleNb]Depth{5.88, 4.45, 4.95}
)

// NextAspirationWindowDelta returns the initial aspiration window
// half-width when prevDelta is zero, and the next expanded half-width
// otherwise.
func NextAspirationWindowDelta(prevDelta Value) Value {
	if prevDelta != 0 {
		return prevDelta*3/2 + 5
	}
	return 17
}

// RazorMargin is the razoring margin for a given depth. Above the depth
// threshold razoring never triggers.
func RazorMargin(d Depth) Value {
	if d < 3.36 {
		v := Value(0.125*d*d+46*d) + 49
		if v < 0 {
			v = 0
		}
		return v
	}
	return MarginInfinite
}

// RazorVerifyMargin is the margin for the verification search after a
// successful razor.
func RazorVerifyMargin(d Depth) Value { return RazorMargin(d - 2.9) }

// FutilityMargin is the static futility pruning margin.
func FutilityMargin(d Depth, improving bool) Value {
	v := Value(54 * (d - b2f(improving)))
	if v < 0 {
		v = 0
	}
	return v
}

// NullMoveMargin is the static margin required to try a null move.
func NullMoveMargin(d Depth) Value {
	if d >= 8.0 {
		return Value(680 - 27*minInt(int(d), 20))
	}
	return MarginInfinite
}

// NullMoveReduction is the depth reduction of the null move verification
// search.
func NullMoveReduction(d Depth) Depth { return 3.21 + 0.27*d }

// IIDDepthReduction is the internal iterative deepening reduction.
func IIDDepthReduction(d Depth) Depth { return 7.0 }

// FailHighMargin is the margin for fail-high reductions. A pending four
// from the opponent raises it.
func FailHighMargin(d Depth, oppoFour bool) Value {
	return Value(40 * (int(d) + b2i(oppoFour)*2))
}

// FailLowMargin is the margin for fail-low reductions.
func FailLowMargin(d Depth) Value { return Value(100 + int(50*d)) }

// futilityMC[i] = 3 + i^1.4, built once at startup.
var futilityMC = func() [MaxMoves + 1]int {
	var mc [MaxMoves + 1]int
	for i := 1; i < len(mc); i++ {
		mc[i] = 3 + int(math.Pow(float64(i), 1.4))
	}
	return mc
}()

// FutilityMoveCount is the move-count pruning threshold: once a
// non-losing move exists, moves beyond it are pruned outright.
func FutilityMoveCount(d Depth, improving bool) int {
	return futilityMC[maxInt(int(d), 0)] / (2 - b2i(improving))
}

// SingularMargin is the margin of the singular extension test search.
func SingularMargin(d Depth, formerPv bool) Value {
	return Value(float32(2+b2i(formerPv)) * d)
}

// SingularReduction is the depth reduction of the singular test search.
func SingularReduction(d Depth, formerPv bool) Depth {
	return d*0.5 - b2f(formerPv)
}

// DoubleSEMargin is the margin for a double singular extension.
func DoubleSEMargin(d Depth) Value {
	return Value(70 - minInt(int(d)/2, 20))
}

// QVCFDeltaMargin is the delta pruning margin of the quiescence VCF
// search. Note that d <= 0 there.
func QVCFDeltaMargin(rule game.Rule, d Depth) Value {
	base := 2500
	if rule == game.Renju {
		base = 4000
	}
	return Value(maxInt(base+64*int(d), 600))
}

// LateMoveCount is the move count after which late move reduction
// applies unconditionally at non-PV nodes.
func LateMoveCount(d Depth, improving bool) int {
	f := float32(1.2)
	if improving {
		f = 1.35
	}
	return 1 + 2*b2i(improving) + int(f*d)
}

// InitReductionLUT fills the depth/move-count indexed reduction lookup.
// More search workers shift reductions slightly up, compensating for
// parallel redundancy.
func InitReductionLUT(lut *[MaxMoves + 1]Depth, numThreads int) {
	factor := 1.0 / math.Sqrt(1.95)
	threadBias := 0.1 * math.Log(float64(numThreads))
	lut[0] = 0
	for i := 1; i < len(lut); i++ {
		lut[i] = Depth(factor * (math.Log(float64(i)) + threadBias))
	}
}

// Reduction computes the basic LMR depth reduction. At PV nodes the
// reduction shrinks with the relative window position and is floored at
// zero; at non-PV nodes it grows by one when the position is not
// improving and the base reduction is already significant.
func Reduction(lut *[MaxMoves + 1]Depth, pvNode bool, d Depth, moveCount int, improvement int, delta, rootDelta Value) Depth {
	if d <= 0 {
		panic("reduction requires positive depth")
	}
	if moveCount <= 0 || moveCount >= len(lut) {
		panic("move count out of reduction table bounds")
	}
	r := lut[int(d)] * lut[moveCount]
	if pvNode {
		return math32.Max(r-Depth(delta)/Depth(rootDelta), 0)
	}
	if improvement <= 0 && r > 1.0 {
		return r + 1
	}
	return r
}

// Per-rule complexity reduction constants.
var (
	cr1 = [game.RuleNb]Depth{0.01 * 8.475, 0.01 * 9.0, 0.01 * 7.200}
	cr2 = [game.RuleNb]Depth{0.01 * 4.143, 0.01 * 4.0, 0.01 * 3.628}
	cr3 = [game.RuleNb]Depth{0.01 * 2.189, 0.01 * 2.0, 0.01 * 1.950}
	cr4 = [game.RuleNb]Depth{0.01 * 0.719, 0.01 * 0.7, 0.01 * 0.681}

	PolicyReductionScale = [game.RuleNb]Depth{2.818, 3.2, 3.469}
	PolicyReductionBias  = [game.RuleNb]Depth{3.724, 5.0, 5.205}
	PolicyReductionMax   = [game.RuleNb]Depth{3.696, 4.0, 4.047}
)

// ComplexityReduction selects a policy-based reduction from a small
// decision table of node-local flags.
func ComplexityReduction(rule game.Rule, trivialMove, importantMove, distract bool) Depth {
	switch {
	case trivialMove && distract:
		return cr1[rule]
	case trivialMove:
		return cr2[rule]
	case !importantMove:
		return cr3[rule]
	default:
		return cr4[rule]
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func b2f(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
