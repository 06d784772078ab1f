package search

import (
	"testing"

	"github.com/Joker2770/rapfi/game"
	"github.com/stretchr/testify/assert"
)

func TestHistEntrySaturation(t *testing.T) {
	assert := assert.New(t)

	var e HistEntry
	for i := 0; i < 1000; i++ {
		e.Shift(HistoryMax)
		assert.True(e.Get() <= HistoryMax, "entry must stay within bound, got %d", e.Get())
	}
	assert.Equal(HistoryMax, e.Get(), "repeated max bonuses converge to the bound")

	for i := 0; i < 1000; i++ {
		e.Shift(-HistoryMax)
		assert.True(e.Get() >= -HistoryMax, "entry must stay within bound, got %d", e.Get())
	}
	assert.Equal(-HistoryMax, e.Get())
}

func TestHistEntryGradualShift(t *testing.T) {
	assert := assert.New(t)

	var e HistEntry
	e.Shift(5000)
	assert.Equal(5000, e.Get(), "first bonus lands fully on a neutral entry")

	// the same bonus applied again moves the entry by less
	prev := e.Get()
	e.Shift(5000)
	gain := e.Get() - prev
	assert.True(gain < 5000 && gain > 0, "gain shrinks as the entry grows, got %d", gain)

	// a negative bonus always moves the value down
	prev = e.Get()
	e.Shift(-50)
	assert.True(e.Get() < prev)
}

func TestHistEntryBonusBound(t *testing.T) {
	var e HistEntry
	assert.Panics(t, func() { e.Shift(HistoryMax + 1) })
	assert.Panics(t, func() { e.Shift(-HistoryMax - 1) })
	assert.NotPanics(t, func() { e.Shift(HistoryMax) })
}

func TestHistEntryFixpoint(t *testing.T) {
	// once at the bound, the update is a no-op for the same bonus
	e := HistEntry(HistoryMax)
	e.Shift(HistoryMax)
	assert.Equal(t, HistoryMax, e.Get())

	e = HistEntry(-HistoryMax)
	e.Shift(-HistoryMax)
	assert.Equal(t, -HistoryMax, e.Get())
}

func TestMainHistoryInit(t *testing.T) {
	var h MainHistory
	h[game.Black.Side()][game.MakePos(3, 3)][HistQuiet].Shift(500)
	h.Init()
	assert.Equal(t, 0, h[game.Black.Side()][game.MakePos(3, 3)][HistQuiet].Get())
}

func TestMoveHistTypeOf(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(HistQuiet, MoveHistTypeOf(game.P4None))
	assert.Equal(HistQuiet, MoveHistTypeOf(game.P4FlexThree))
	assert.Equal(HistAttack, MoveHistTypeOf(game.P4BlockFour))
	assert.Equal(HistAttack, MoveHistTypeOf(game.P4FlexFour))
	assert.Equal(HistAttack, MoveHistTypeOf(game.P4Five))
}

func TestCounterMoveOverwrite(t *testing.T) {
	assert := assert.New(t)

	var h CounterMoveHistory
	h.Init()
	last := game.MakePos(7, 7)
	assert.Equal(game.PosNone, h[game.White.Side()][last].Pos)

	h[game.White.Side()][last] = CounterMove{Pos: game.MakePos(7, 8), Pattern4: game.P4BlockFour}
	h[game.White.Side()][last] = CounterMove{Pos: game.MakePos(8, 8), Pattern4: game.P4None}
	assert.Equal(game.MakePos(8, 8), h[game.White.Side()][last].Pos, "counter moves overwrite, not blend")
}

func TestContinuationHistory(t *testing.T) {
	assert := assert.New(t)

	var h ContinuationHistory
	prev := game.MakePos(5, 5)
	cur := game.MakePos(5, 6)
	h[Oppo4Yes][prev][cur].Shift(300)
	assert.Equal(300, h[Oppo4Yes][prev][cur].Get())
	assert.Equal(0, h[Oppo4No][prev][cur].Get(), "the two opponent-four classes are independent")

	h.Init()
	assert.Equal(0, h[Oppo4Yes][prev][cur].Get())
}
