package search

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/Joker2770/rapfi/game"
	"github.com/pkg/errors"
)

// Evaluator scores positions for the search. Implementations may keep
// incremental state, which the Before/After hooks maintain: BeforeMove is
// invoked before the board changes, AfterUndo after it reverts.
type Evaluator interface {
	Reset()
	BeforeMove(b game.Board, p game.Pos)
	AfterUndo(b game.Board, p game.Pos)
	Evaluate(b game.Board) Value
	Policy(b game.Board, moves []game.Pos, scores []float32)
}

// Config tunes a Searcher.
type Config struct {
	Rule       game.Rule
	MaxDepth   Depth  // iterative deepening stops past this depth
	MaxNodes   uint64 // 0 means unbounded
	NumThreads int    // sizing hint for the reduction table
}

func (c *Config) setDefaults() error {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 64
	}
	if c.MaxDepth > MaxDepth {
		c.MaxDepth = MaxDepth
	}
	if c.NumThreads <= 0 {
		c.NumThreads = 1
	}
	if c.Rule < 0 || c.Rule >= game.RuleNb {
		return errors.Errorf("invalid rule %d", c.Rule)
	}
	return nil
}

// RootMove is one candidate at the root with its statistics from the
// latest finished iteration.
type RootMove struct {
	Pos       game.Pos
	Value     Value
	PrevValue Value
	Nodes     uint64
}

type stackFrame struct {
	moves      []game.Pos
	scores     []float32
	quiets     []game.Pos
	staticEval Value
}

// Searcher runs iterative-deepening alpha-beta over a Board, ordering
// moves with the evaluator's policy and the history tables.
type Searcher struct {
	cfg  Config
	eval Evaluator

	reductions [MaxMoves + 1]Depth

	mainHist    MainHistory
	counterHist CounterMoveHistory
	contHist    ContinuationHistory

	rootMoves []RootMove
	rootDelta Value
	nodes     uint64
	stopped   atomic.Bool
	ctx       context.Context

	stack [MaxPly]stackFrame
}

// NewSearcher builds a Searcher around an evaluator.
func NewSearcher(cfg Config, ev Evaluator) (*Searcher, error) {
	if ev == nil {
		return nil, errors.New("nil evaluator")
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	s := &Searcher{cfg: cfg, eval: ev}
	InitReductionLUT(&s.reductions, cfg.NumThreads)
	for i := range s.stack {
		s.stack[i].moves = make([]game.Pos, 0, MaxMoves)
		s.stack[i].scores = make([]float32, 0, MaxMoves)
		s.stack[i].quiets = make([]game.Pos, 0, MaxMoves)
	}
	return s, nil
}

// Nodes returns the node count of the last Search call.
func (s *Searcher) Nodes() uint64 { return s.nodes }

// RootMoves returns the root statistics of the last Search call, best
// move first. The slice is owned by the Searcher.
func (s *Searcher) RootMoves() []RootMove { return s.rootMoves }

// clearState resets all per-search statistics.
func (s *Searcher) clearState() {
	s.mainHist.Init()
	s.counterHist.Init()
	s.contHist.Init()
	s.nodes = 0
	s.stopped.Store(false)
}

// Search picks the best move for the side to move. It returns the move
// and its value from the mover's point of view. Search stops early when
// ctx is cancelled or the node budget runs out, returning the best move
// of the last finished iteration.
func (s *Searcher) Search(ctx context.Context, board game.Board) (game.Pos, Value, error) {
	s.clearState()
	s.ctx = ctx
	s.eval.Reset()

	s.rootMoves = s.genRootMoves(board, s.rootMoves[:0])
	if len(s.rootMoves) == 0 {
		return game.PosNone, ValueZero, errors.New("no legal moves")
	}
	// a forced five is played without searching
	for _, rm := range s.rootMoves {
		if board.PatternAt(rm.Pos, board.SideToMove()) == game.P4Five {
			return rm.Pos, MateIn(board.Ply()), nil
		}
	}

	value := ValueZero
	for d := Depth(1); d <= s.cfg.MaxDepth; d++ {
		for i := range s.rootMoves {
			s.rootMoves[i].PrevValue = s.rootMoves[i].Value
		}

		alpha, beta := -ValueInfinite, ValueInfinite
		delta := ValueZero
		if d >= AspirationDepth {
			delta = NextAspirationWindowDelta(0)
			alpha = maxValue(value-delta, -ValueInfinite)
			beta = minValue(value+delta, ValueInfinite)
		}

		for {
			s.rootDelta = beta - alpha
			v := s.searchRoot(board, d, alpha, beta)
			if s.stopped.Load() {
				break
			}
			if v <= alpha {
				beta = (alpha + beta) / 2
				alpha = maxValue(v-delta, -ValueInfinite)
			} else if v >= beta {
				beta = minValue(v+delta, ValueInfinite)
			} else {
				value = v
				break
			}
			delta = NextAspirationWindowDelta(delta)
		}

		sort.SliceStable(s.rootMoves, func(i, j int) bool {
			return s.rootMoves[i].Value > s.rootMoves[j].Value
		})
		if s.stopped.Load() {
			break
		}
		if value >= MateIn(MaxPly) || value <= MatedIn(MaxPly) {
			break
		}
	}
	return s.rootMoves[0].Pos, s.rootMoves[0].Value, nil
}

func (s *Searcher) genRootMoves(board game.Board, out []RootMove) []RootMove {
	frame := &s.stack[0]
	frame.moves = board.Candidates(frame.moves[:0])
	frame.scores = append(frame.scores[:0], make([]float32, len(frame.moves))...)
	s.eval.Policy(board, frame.moves, frame.scores)
	for i, p := range frame.moves {
		out = append(out, RootMove{Pos: p, Value: Value(frame.scores[i])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	for i := range out {
		out[i].Value = -ValueInfinite
	}
	return out
}

func (s *Searcher) searchRoot(board game.Board, depth Depth, alpha, beta Value) Value {
	bestValue := -ValueInfinite
	stm := board.SideToMove()
	for i := range s.rootMoves {
		rm := &s.rootMoves[i]
		nodesBefore := s.nodes

		s.makeMove(board, rm.Pos)
		var v Value
		if i == 0 {
			v = -s.search(board, 1, depth-1, -beta, -alpha, true, false)
		} else {
			v = -s.search(board, 1, depth-1, -(alpha + 1), -alpha, false, true)
			if v > alpha && !s.stopped.Load() {
				v = -s.search(board, 1, depth-1, -beta, -alpha, true, false)
			}
		}
		s.undoMove(board, rm.Pos)

		rm.Nodes += s.nodes - nodesBefore
		if s.stopped.Load() {
			return bestValue
		}
		rm.Value = v
		if v > bestValue {
			bestValue = v
			if v > alpha {
				alpha = v
				if v >= beta {
					s.updateHistories(board, stm, rm.Pos, depth, s.stack[0].quiets[:0])
					return v
				}
			}
		}
	}
	return bestValue
}

func (s *Searcher) makeMove(board game.Board, p game.Pos) {
	s.eval.BeforeMove(board, p)
	board.Make(p)
	s.nodes++
}

func (s *Searcher) undoMove(board game.Board, p game.Pos) {
	board.Undo()
	s.eval.AfterUndo(board, p)
}

func (s *Searcher) shouldStop() bool {
	if s.stopped.Load() {
		return true
	}
	if s.cfg.MaxNodes > 0 && s.nodes >= s.cfg.MaxNodes {
		s.stopped.Store(true)
		return true
	}
	if s.nodes&1023 == 0 && s.ctx.Err() != nil {
		s.stopped.Store(true)
		return true
	}
	return false
}

// search is the recursive alpha-beta core.
func (s *Searcher) search(board game.Board, ply int, depth Depth, alpha, beta Value, pvNode, cutNode bool) Value {
	if s.shouldStop() {
		return ValueZero
	}
	rule := s.cfg.Rule
	stm := board.SideToMove()
	oppo := game.Opponent(stm)

	// the previous move may have completed a five
	if last := board.LastMove(); !last.IsNone() && !last.IsPass() {
		if board.PatternAt(last, oppo) == game.P4Five {
			return MatedIn(ply)
		}
	}
	if board.Ply() == board.Size()*board.Size() {
		return ValueZero // draw by full board
	}
	if ply >= MaxPly {
		return s.staticEval(board)
	}

	// mate distance pruning
	alpha = maxValue(alpha, MatedIn(ply))
	beta = minValue(beta, MateIn(ply+1))
	if alpha >= beta {
		return alpha
	}

	if depth <= 0 {
		return s.staticEval(board)
	}

	frame := &s.stack[ply]
	frame.staticEval = s.staticEval(board)
	eval := frame.staticEval
	improving := ply < 2 || frame.staticEval > s.stack[ply-2].staticEval

	oppoFour := false
	if last := board.LastMove(); !last.IsNone() && !last.IsPass() {
		oppoFour = board.PatternAt(last, oppo).IsFour()
	}

	if !pvNode && !oppoFour {
		// razoring: a node far below alpha is abandoned at shallow depth
		if depth < RazorPrunDepth[rule] && eval+RazorMargin(depth) <= alpha {
			return eval
		}
		// reverse futility: a node far above beta returns early
		if eval-FutilityMargin(depth, improving) >= beta {
			return eval
		}
	}

	moves := board.Candidates(frame.moves[:0])
	frame.moves = moves
	if len(moves) == 0 {
		return ValueZero
	}
	frame.scores = append(frame.scores[:0], make([]float32, len(moves))...)
	s.eval.Policy(board, moves, frame.scores)
	s.orderMoves(board, ply, stm, moves, frame.scores)

	bestValue := -ValueInfinite
	bestMove := game.PosNone
	quiets := frame.quiets[:0]
	moveCountLimit := FutilityMoveCount(depth, improving)
	if oppoFour {
		moveCountLimit = len(moves) // all defenses are considered
	}

	moveCount := 0
	for mi, p := range moves {
		p4 := board.PatternAt(p, stm)
		if oppoFour && !p4.IsFour() && !defendsFour(board, p, oppo) {
			continue // not a defense and not a counter four
		}
		moveCount++

		// move count based pruning of late quiet moves
		if !pvNode && bestValue > MatedIn(MaxPly) && moveCount > moveCountLimit && !p4.IsFour() {
			continue
		}

		newDepth := depth - 1
		s.makeMove(board, p)

		var v Value
		if depth >= LMRDepth[rule] && moveCount > 1+b2i(pvNode) && !p4.IsFour() {
			r := Reduction(&s.reductions, pvNode, depth, moveCount,
				b2i(improving)-b2i(!improving), beta-alpha, s.rootDelta)
			r += policyReduction(rule, frame.scores[mi])
			if cutNode {
				r += 1
			}
			d := maxDepth(newDepth-r, 1)
			v = -s.search(board, ply+1, d, -(alpha + 1), -alpha, false, true)
			if v > alpha && d < newDepth {
				v = -s.search(board, ply+1, newDepth, -(alpha + 1), -alpha, false, !cutNode)
			}
		} else if !pvNode || moveCount > 1 {
			v = -s.search(board, ply+1, newDepth, -(alpha + 1), -alpha, false, !cutNode)
		}
		if pvNode && (moveCount == 1 || v > alpha) {
			v = -s.search(board, ply+1, newDepth, -beta, -alpha, true, false)
		}

		s.undoMove(board, p)
		if s.stopped.Load() {
			return bestValue
		}

		if v > bestValue {
			bestValue = v
			if v > alpha {
				bestMove = p
				alpha = v
				if v >= beta {
					break
				}
			}
		}
		if !p4.IsFour() {
			quiets = append(quiets, p)
		}
	}
	frame.quiets = quiets

	if moveCount == 0 {
		// every candidate was pruned as a non-defense; the four converts
		return MatedIn(ply + 2)
	}
	if bestValue >= beta && !bestMove.IsNone() {
		s.updateHistories(board, stm, bestMove, depth, quiets)
	}
	return bestValue
}

func (s *Searcher) staticEval(board game.Board) Value {
	v := s.eval.Evaluate(board)
	return clampValue(v, MatedIn(MaxPly)+1, MateIn(MaxPly)-1)
}

// defendsFour reports whether playing at p stops the opponent's pending
// five threat.
func defendsFour(board game.Board, p game.Pos, oppo game.Color) bool {
	return board.PatternAt(p, oppo).IsFour()
}

// orderMoves sorts candidates by policy score blended with history
// statistics, with the counter move promoted to the front.
func (s *Searcher) orderMoves(board game.Board, ply int, stm game.Color, moves []game.Pos, scores []float32) {
	counter := game.PosNone
	var contTable *MoveHistory
	if last := board.LastMove(); !last.IsNone() && !last.IsPass() {
		oppo := game.Opponent(stm)
		cm := s.counterHist[oppo.Side()][last]
		counter = cm.Pos
		oppo4 := Oppo4No
		if board.PatternAt(last, oppo).IsFour() {
			oppo4 = Oppo4Yes
		}
		contTable = &s.contHist[oppo4][last]
	}
	for i, p := range moves {
		ht := MoveHistTypeOf(board.PatternAt(p, stm))
		h := s.mainHist[stm.Side()][p][ht].Get()
		if contTable != nil {
			h += contTable[p].Get()
		}
		scores[i] += float32(h) / 64
		if p == counter {
			scores[i] += float32(HistoryMax)
		}
	}
	sortMovesByScore(moves, scores)
}

func sortMovesByScore(moves []game.Pos, scores []float32) {
	// insertion sort keeps it stable and cheap on mostly ordered input
	for i := 1; i < len(moves); i++ {
		m, sc := moves[i], scores[i]
		j := i - 1
		for j >= 0 && scores[j] < sc {
			moves[j+1], scores[j+1] = moves[j], scores[j]
			j--
		}
		moves[j+1], scores[j+1] = m, sc
	}
}

// statBonus scales a history update with depth, capped so the saturating
// shift never overflows its bound.
func statBonus(d Depth) int {
	return minInt(int(6*d*d)+120, HistoryMax)
}

// updateHistories rewards the cutoff move and penalizes the quiet moves
// searched before it.
func (s *Searcher) updateHistories(board game.Board, stm game.Color, bestMove game.Pos, depth Depth, quiets []game.Pos) {
	bonus := statBonus(depth)
	bestType := MoveHistTypeOf(board.PatternAt(bestMove, stm))
	s.mainHist[stm.Side()][bestMove][bestType].Shift(bonus)

	var contTable *MoveHistory
	if last := board.LastMove(); !last.IsNone() && !last.IsPass() {
		oppo := game.Opponent(stm)
		s.counterHist[oppo.Side()][last] = CounterMove{
			Pos:      bestMove,
			Pattern4: board.PatternAt(bestMove, stm),
		}
		oppo4 := Oppo4No
		if board.PatternAt(last, oppo).IsFour() {
			oppo4 = Oppo4Yes
		}
		contTable = &s.contHist[oppo4][last]
		contTable[bestMove].Shift(bonus)
	}

	for _, q := range quiets {
		if q == bestMove {
			continue
		}
		qt := MoveHistTypeOf(board.PatternAt(q, stm))
		s.mainHist[stm.Side()][q][qt].Shift(-bonus)
		if contTable != nil {
			contTable[q].Shift(-bonus)
		}
	}
}

// policyReduction converts a (log-domain) policy score into an extra
// reduction for weak moves.
func policyReduction(rule game.Rule, score float32) Depth {
	r := -Depth(score)/PolicyReductionScale[rule] - PolicyReductionBias[rule]
	if r < 0 {
		return 0
	}
	if r > PolicyReductionMax[rule] {
		return PolicyReductionMax[rule]
	}
	return r
}

func minValue(a, b Value) Value {
	if a < b {
		return a
	}
	return b
}

func maxValue(a, b Value) Value {
	if a > b {
		return a
	}
	return b
}

func clampValue(v, lo, hi Value) Value {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxDepth(a, b Depth) Depth {
	if a > b {
		return a
	}
	return b
}
