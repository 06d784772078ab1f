// Package rapfi wires the gomoku board, the Mix8 network evaluator and
// the alpha-beta searcher into a playable engine.
package rapfi

import (
	"context"

	"github.com/Joker2770/rapfi/eval"
	"github.com/Joker2770/rapfi/game"
	"github.com/Joker2770/rapfi/game/gomoku"
	"github.com/Joker2770/rapfi/search"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// valueScale converts between win rates and centi-stone values.
const valueScale = 200.0

// winRateToValue maps a win-loss expectation in [-1, 1] onto the search
// value scale with a logistic transform.
func winRateToValue(v float32) search.Value {
	wr := math32.Min(math32.Max((v+1)/2, 1e-6), 1-1e-6)
	cv := valueScale * math32.Log(wr/(1-wr))
	return search.Value(math32.Round(math32.Min(math32.Max(cv, -6000), 6000)))
}

// nnEvaluator adapts a Mix8 evaluator to the searcher's contract.
type nnEvaluator struct {
	ev    *eval.Mix8Evaluator
	board game.Board
	buf   *eval.PolicyBuffer
}

var _ search.Evaluator = &nnEvaluator{}

func (a *nnEvaluator) Reset() { a.ev.SyncBoard(a.board) }

func (a *nnEvaluator) BeforeMove(b game.Board, p game.Pos) { a.ev.BeforeMove(b, p) }
func (a *nnEvaluator) AfterUndo(b game.Board, p game.Pos)  { a.ev.AfterUndo(b, p) }

func (a *nnEvaluator) Evaluate(b game.Board) search.Value {
	return winRateToValue(a.ev.EvaluateValue(b).Value())
}

func (a *nnEvaluator) Policy(b game.Board, moves []game.Pos, scores []float32) {
	a.buf.ClearComputeFlags()
	for _, p := range moves {
		a.buf.SetComputeFlag(p)
	}
	a.ev.EvaluatePolicy(b, a.buf)
	for i, p := range moves {
		scores[i] = a.buf.Score(p)
	}
}

// Config assembles an Engine.
type Config struct {
	Name      string
	BoardSize int
	Rule      game.Rule
	Weights   *eval.Mix8WeightTwoSide
	Search    search.Config
}

// DefaultConfig returns a playable configuration with shared random
// weights, suitable for demos and tests.
func DefaultConfig(boardSize int, rule game.Rule) Config {
	return Config{
		Name:      "Gomoku",
		BoardSize: boardSize,
		Rule:      rule,
		Weights:   eval.NewWeightTwoSide(eval.NewRandomWeight(1)),
		Search:    search.Config{MaxDepth: 8, MaxNodes: 100000},
	}
}

// An Engine is one playable game instance. It implements game.MetaState,
// so output encoders can consume it directly.
type Engine struct {
	name       string
	gameNumber int

	board    *gomoku.Board
	ev       *eval.Mix8Evaluator
	adapter  *nnEvaluator
	searcher *search.Searcher
}

// New builds an engine. The weights must match the evaluator
// architecture; use eval.NewRandomWeight for a weightless engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Weights == nil {
		return nil, errors.New("nil weights")
	}
	board, err := gomoku.New(cfg.BoardSize, cfg.Rule)
	if err != nil {
		return nil, err
	}
	ev, err := eval.NewMix8Evaluator(cfg.BoardSize, cfg.Weights)
	if err != nil {
		return nil, err
	}
	adapter := &nnEvaluator{
		ev:    ev,
		board: board,
		buf:   eval.NewPolicyBuffer(cfg.BoardSize),
	}
	cfg.Search.Rule = cfg.Rule
	searcher, err := search.NewSearcher(cfg.Search, adapter)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = "UNKNOWN GAME"
	}
	return &Engine{
		name:     name,
		board:    board,
		ev:       ev,
		adapter:  adapter,
		searcher: searcher,
	}, nil
}

// Name implements game.MetaState.
func (e *Engine) Name() string { return e.name }

// GameNumber implements game.MetaState.
func (e *Engine) GameNumber() int { return e.gameNumber }

// Board implements game.MetaState.
func (e *Engine) Board() game.Board { return e.board }

// Winner implements game.MetaState. It returns Empty while the game is
// running or drawn.
func (e *Engine) Winner() game.Color { return e.board.Winner() }

// Searcher exposes the underlying searcher for statistics.
func (e *Engine) Searcher() *search.Searcher { return e.searcher }

// Genmove searches for the best move without playing it.
func (e *Engine) Genmove(ctx context.Context) (game.Pos, search.Value, error) {
	return e.searcher.Search(ctx, e.board)
}

// Play places a stone for the side to move.
func (e *Engine) Play(p game.Pos) error {
	if !e.board.IsLegal(p) {
		return errors.Errorf("illegal move %s", p)
	}
	e.board.Make(p)
	return nil
}

// Ended reports whether the game is over, and the winner (Empty on a
// draw).
func (e *Engine) Ended() (bool, game.Color) {
	if w := e.board.Winner(); w != game.Empty {
		return true, w
	}
	if e.board.Full() {
		return true, game.Empty
	}
	return false, game.Empty
}

// Reset starts a new game on the same board size and bumps the game
// number.
func (e *Engine) Reset() {
	e.board.Reset()
	e.ev.InitEmptyBoard()
	e.gameNumber++
}

// FrameEncoder receives one frame per position. The gif encoder
// satisfies it.
type FrameEncoder interface {
	Encode(ms game.MetaState) error
}

// SelfPlay plays the engine against itself until the game ends or ctx is
// cancelled. When enc is non-nil, every position is encoded as a frame.
// It returns the moves played and the winner (Empty on a draw).
func (e *Engine) SelfPlay(ctx context.Context, enc FrameEncoder) ([]game.Pos, game.Color, error) {
	var moves []game.Pos
	if enc != nil {
		if err := enc.Encode(e); err != nil {
			return moves, game.Empty, err
		}
	}
	for {
		if done, winner := e.Ended(); done {
			return moves, winner, nil
		}
		p, _, err := e.Genmove(ctx)
		if err != nil {
			return moves, game.Empty, err
		}
		if err := e.Play(p); err != nil {
			return moves, game.Empty, err
		}
		moves = append(moves, p)
		if enc != nil {
			if err := enc.Encode(e); err != nil {
				return moves, game.Empty, err
			}
		}
		if ctx.Err() != nil {
			return moves, game.Empty, ctx.Err()
		}
	}
}
