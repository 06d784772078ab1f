package gomoku

import (
	"testing"

	"github.com/Joker2770/rapfi/game"
)

// place puts alternating stones, padding with far-away white moves so
// that every move in ps lands for black.
func placeBlack(t *testing.T, b *Board, ps ...game.Pos) {
	t.Helper()
	fx, fy := 0, 0
	for _, p := range ps {
		b.Make(p)
		// throwaway white move along the top edge, spaced so the
		// padding stones never line up themselves
		for !b.IsLegal(game.MakePos(fx, fy)) {
			fx += 2
			if fx >= b.Size() {
				fx, fy = 0, fy+1
			}
		}
		b.Make(game.MakePos(fx, fy))
		fx += 2
	}
}

func TestNewBoardSize(t *testing.T) {
	if _, err := New(4, game.Freestyle); err == nil {
		t.Error("expected error for size 4")
	}
	if _, err := New(game.MaxBoardSize+1, game.Freestyle); err == nil {
		t.Error("expected error above the max size")
	}
	b, err := New(15, game.Standard)
	if err != nil {
		t.Fatal(err)
	}
	if b.Size() != 15 || b.Rule() != game.Standard {
		t.Error("board does not carry its configuration")
	}
	if b.SideToMove() != game.Black {
		t.Error("black moves first")
	}
}

func TestMakeUndo(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	p := game.MakePos(7, 7)
	b.Make(p)
	if b.Get(p) != game.Black {
		t.Error("expected a black stone")
	}
	if b.SideToMove() != game.White {
		t.Error("white to move after black")
	}
	if b.LastMove() != p {
		t.Error("last move not recorded")
	}
	b.Undo()
	if b.Get(p) != game.Empty {
		t.Error("undo must clear the cell")
	}
	if b.SideToMove() != game.Black || b.Ply() != 0 {
		t.Error("undo must restore side and ply")
	}
}

func TestMakeUndoPanics(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	assertPanics(t, func() { b.Undo() }, "undo on empty board")
	b.Make(game.MakePos(7, 7))
	assertPanics(t, func() { b.Make(game.MakePos(7, 7)) }, "occupied cell")
	assertPanics(t, func() { b.Make(game.MakePos(-1, 3)) }, "off-board move")
}

func TestWinnerHorizontal(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	placeBlack(t, b,
		game.MakePos(5, 7),
		game.MakePos(6, 7),
		game.MakePos(7, 7),
		game.MakePos(8, 7),
	)
	if b.Winner() != game.Empty {
		t.Fatal("no winner with four in a row")
	}
	b.Make(game.MakePos(9, 7))
	if b.Winner() != game.Black {
		t.Errorf("expected black to win, got %v", b.Winner())
	}
}

func TestOverline(t *testing.T) {
	// six in a row: a win in freestyle, nothing in standard
	for _, tc := range []struct {
		rule game.Rule
		win  bool
	}{
		{game.Freestyle, true},
		{game.Standard, false},
		{game.Renju, false},
	} {
		b, _ := New(15, tc.rule)
		placeBlack(t, b,
			game.MakePos(4, 7),
			game.MakePos(5, 7),
			game.MakePos(6, 7),
			game.MakePos(8, 7),
			game.MakePos(9, 7),
		)
		b.Make(game.MakePos(7, 7)) // completes six
		won := b.Winner() == game.Black
		if won != tc.win {
			t.Errorf("rule %v: overline win = %v, want %v", tc.rule, won, tc.win)
		}
	}
}

func TestPatternAt(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	placeBlack(t, b,
		game.MakePos(5, 7),
		game.MakePos(6, 7),
		game.MakePos(7, 7),
		game.MakePos(8, 7),
	)
	// both ends open: placing at either makes five
	if got := b.PatternAt(game.MakePos(9, 7), game.Black); got != game.P4Five {
		t.Errorf("expected five, got %v", got)
	}
	if got := b.PatternAt(game.MakePos(4, 7), game.Black); got != game.P4Five {
		t.Errorf("expected five, got %v", got)
	}
	// white sees no pattern there
	if got := b.PatternAt(game.MakePos(9, 7), game.White); got.IsFour() {
		t.Errorf("white should not have a four, got %v", got)
	}
}

func TestPatternFours(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	placeBlack(t, b,
		game.MakePos(5, 7),
		game.MakePos(6, 7),
		game.MakePos(7, 7),
	)
	// extending to four with both ends open
	if got := b.PatternAt(game.MakePos(8, 7), game.Black); got != game.P4FlexFour {
		t.Errorf("expected flex four, got %v", got)
	}
	// block one end
	b.Make(game.MakePos(12, 12)) // black plays elsewhere
	b.Make(game.MakePos(4, 7))   // white blocks
	if got := b.PatternAt(game.MakePos(8, 7), game.Black); got != game.P4BlockFour {
		t.Errorf("expected block four, got %v", got)
	}
}

func TestCandidates(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	cands := b.Candidates(nil)
	if len(cands) != 1 || cands[0] != game.MakePos(7, 7) {
		t.Errorf("empty board candidates = %v, want just the center", cands)
	}

	b.Make(game.MakePos(7, 7))
	cands = b.Candidates(nil)
	if len(cands) != 24 {
		t.Errorf("expected the 24 cells around the stone, got %d", len(cands))
	}
	for _, p := range cands {
		if !b.IsLegal(p) {
			t.Errorf("candidate %s is not legal", p)
		}
	}
}

func TestFullAndReset(t *testing.T) {
	b, _ := New(5, game.Freestyle)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if b.Full() {
				t.Fatal("board full too early")
			}
			if b.IsLegal(game.MakePos(x, y)) {
				b.Make(game.MakePos(x, y))
			}
		}
	}
	if !b.Full() {
		t.Error("board should be full")
	}
	b.Reset()
	if b.Ply() != 0 || b.SideToMove() != game.Black || b.Full() {
		t.Error("reset must restore the opening position")
	}
}

func TestMoveAt(t *testing.T) {
	b, _ := New(15, game.Freestyle)
	moves := []game.Pos{game.MakePos(7, 7), game.MakePos(8, 8), game.MakePos(6, 6)}
	for _, p := range moves {
		b.Make(p)
	}
	for i, p := range moves {
		if b.MoveAt(i) != p {
			t.Errorf("MoveAt(%d) = %s, want %s", i, b.MoveAt(i), p)
		}
	}
	if b.MoveAt(3) != game.PosNone || b.MoveAt(-1) != game.PosNone {
		t.Error("out of range plies must return PosNone")
	}
}

func assertPanics(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic: %s", msg)
		}
	}()
	f()
}
