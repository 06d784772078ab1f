package eval

import (
	"testing"

	"github.com/Joker2770/rapfi/game"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

type accumSnapshot struct {
	indexTable []uint32
	mapSum     []int16
	mapConv    []int32
	valueSum   [ValueDim]int32
}

func snapshot(a *Accumulator) accumSnapshot {
	return accumSnapshot{
		indexTable: append([]uint32(nil), a.indexTable...),
		mapSum:     append([]int16(nil), a.mapSum...),
		mapConv:    append([]int32(nil), a.mapConv...),
		valueSum:   a.valueSum,
	}
}

func diffSnapshots(t *testing.T, want accumSnapshot, a *Accumulator) {
	t.Helper()
	if d := cmp.Diff(want.indexTable, a.indexTable); d != "" {
		t.Errorf("index table differs:\n%s", d)
	}
	if d := cmp.Diff(want.mapSum, a.mapSum); d != "" {
		t.Errorf("map sum differs:\n%s", d)
	}
	if d := cmp.Diff(want.mapConv, a.mapConv); d != "" {
		t.Errorf("conv grid differs:\n%s", d)
	}
	if d := cmp.Diff(want.valueSum, a.valueSum); d != "" {
		t.Errorf("value sum differs:\n%s", d)
	}
}

func TestNewAccumulatorValidation(t *testing.T) {
	if _, err := NewAccumulator(4); err == nil {
		t.Error("expected error below the minimum size")
	}
	if _, err := NewAccumulator(game.MaxBoardSize + 1); err == nil {
		t.Error("expected error above the maximum size")
	}
	a, err := NewAccumulator(15)
	if err != nil {
		t.Fatal(err)
	}
	if a.BoardSize() != 15 {
		t.Errorf("board size = %d, want 15", a.BoardSize())
	}
}

func TestAccumulatorMoveUndoRoundTrip(t *testing.T) {
	w := NewRandomWeight(1)
	a, err := NewAccumulator(9)
	if err != nil {
		t.Fatal(err)
	}
	a.Clear(w)
	base := snapshot(a)

	var bk [ValueDim]int32
	a.Update(w, UpdateMove, cellEmpty, cellSelf, 4, 4, &bk)
	if d := cmp.Diff(base.valueSum, a.valueSum); d == "" {
		t.Fatal("a move must change the value sum")
	}
	a.Update(w, UpdateUndo, cellSelf, cellEmpty, 4, 4, &bk)
	diffSnapshots(t, base, a)
}

func TestAccumulatorRoundTripNearEdge(t *testing.T) {
	// edge cells have truncated windows; the inverse must hold there too
	w := NewRandomWeight(2)
	a, _ := NewAccumulator(9)
	a.Clear(w)
	base := snapshot(a)

	for _, xy := range [][2]int{{0, 0}, {8, 0}, {0, 8}, {8, 8}, {1, 4}} {
		var bk [ValueDim]int32
		a.Update(w, UpdateMove, cellEmpty, cellOppo, xy[0], xy[1], &bk)
		a.Update(w, UpdateUndo, cellOppo, cellEmpty, xy[0], xy[1], &bk)
		diffSnapshots(t, base, a)
	}
}

func TestAccumulatorDeepRoundTrip(t *testing.T) {
	w := NewRandomWeight(3)
	a, _ := NewAccumulator(9)
	a.Clear(w)
	base := snapshot(a)

	moves := []struct {
		c    uint8
		x, y int
	}{
		{cellSelf, 4, 4},
		{cellOppo, 4, 5},
		{cellSelf, 5, 5},
		{cellOppo, 3, 3},
		{cellSelf, 5, 4},
	}
	var backups [5][ValueDim]int32
	for i, m := range moves {
		a.Update(w, UpdateMove, cellEmpty, m.c, m.x, m.y, &backups[i])
	}
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		a.Update(w, UpdateUndo, m.c, cellEmpty, m.x, m.y, &backups[i])
	}
	diffSnapshots(t, base, a)
}

func TestAccumulatorPathIndependence(t *testing.T) {
	// a position's state must not depend on how it was reached
	w := NewRandomWeight(4)

	direct, _ := NewAccumulator(9)
	direct.Clear(w)
	var bk [ValueDim]int32
	direct.Update(w, UpdateMove, cellEmpty, cellSelf, 2, 3, &bk)

	detour, _ := NewAccumulator(9)
	detour.Clear(w)
	var bk1, bk2 [ValueDim]int32
	detour.Update(w, UpdateMove, cellEmpty, cellSelf, 2, 3, &bk1)
	detour.Update(w, UpdateMove, cellEmpty, cellOppo, 5, 5, &bk2)
	detour.Update(w, UpdateUndo, cellOppo, cellEmpty, 5, 5, &bk2)

	diffSnapshots(t, snapshot(direct), detour)
}

func TestValueFeatures(t *testing.T) {
	assert := assert.New(t)
	w := NewRandomWeight(5)
	a, _ := NewAccumulator(9)
	a.Clear(w)

	out := make([]float32, ValueDim)
	a.ValueFeatures(w, out)
	for i, v := range out {
		assert.False(v != v, "feature %d is NaN", i)
	}
}

func TestPolicyBufferFlags(t *testing.T) {
	assert := assert.New(t)
	buf := NewPolicyBuffer(9)
	assert.True(buf.ComputeFlag(game.MakePos(0, 0)))
	assert.True(buf.ComputeFlag(game.MakePos(8, 8)))

	buf.ClearComputeFlags()
	assert.False(buf.ComputeFlag(game.MakePos(4, 4)))
	buf.SetComputeFlag(game.MakePos(4, 4))
	assert.True(buf.ComputeFlag(game.MakePos(4, 4)))
}

func TestPolicyScoresHonorFlags(t *testing.T) {
	w := NewRandomWeight(6)
	a, _ := NewAccumulator(9)
	a.Clear(w)
	var bk [ValueDim]int32
	a.Update(w, UpdateMove, cellEmpty, cellSelf, 4, 4, &bk)

	buf := NewPolicyBuffer(9)
	buf.ClearComputeFlags()
	buf.SetComputeFlag(game.MakePos(4, 5))

	var pw [PolicyDim]float32
	for i := range pw {
		pw[i] = 1
	}
	a.PolicyScores(w, &pw, buf)

	if buf.Score(game.MakePos(3, 3)) != 0 {
		t.Error("unflagged cells must not be scored")
	}
	s := buf.Score(game.MakePos(4, 5))
	if s != s {
		t.Error("flagged cell score is NaN")
	}
}
