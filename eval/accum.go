package eval

import (
	"github.com/Joker2770/rapfi/game"
	"github.com/pkg/errors"
)

// Side-relative cell states used in line shape encoding.
const (
	cellEmpty uint8 = 0
	cellSelf  uint8 = 1
	cellOppo  uint8 = 2
)

// The four line directions of the shape window.
var shapeDirs = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// pow3 holds powers of three for ternary shape arithmetic.
var pow3 = func() [shapeWinLen + 1]int32 {
	var p [shapeWinLen + 1]int32
	p[0] = 1
	for i := 1; i < len(p); i++ {
		p[i] = p[i-1] * 3
	}
	return p
}()

// Accumulator is one side's incrementally maintained network state. Its
// contents are always exactly the composition of every move applied
// since the last Clear; Update with inverse arguments restores the
// previous state bit for bit.
type Accumulator struct {
	boardSize int
	fullSize  int     // boardSize + 2, conv padding ring
	scale     float32 // 1 / cell count

	// Index of each cell's line shape per direction. A move changes one
	// ternary digit of each affected index.
	indexTable []uint32 // [cells * 4]
	// Summed mapping features of the four directions per cell.
	mapSum []int16 // [cells * FeatureDim]
	// Depthwise conv accumulation over PReLU features, padded.
	mapConv []int32 // [fullSize^2 * FeatureDWConvDim]
	// Value feature sum of the whole board.
	valueSum [ValueDim]int32

	// update scratch
	version  int32
	cellMark []int32
	convMark []int32
	cellList []int32
	convList []int32
	oldFeat  [][FeatureDim]int16
	polFeat  []int16 // policy conv input scratch, [cells * PolicyDim]
}

// NewAccumulator allocates state for one board size. Board sizes outside
// [5, game.MaxBoardSize] are a configuration error.
func NewAccumulator(boardSize int) (*Accumulator, error) {
	if boardSize < 5 || boardSize > game.MaxBoardSize {
		return nil, errors.Errorf("invalid board size %d for accumulator", boardSize)
	}
	cells := boardSize * boardSize
	full := boardSize + 2
	maxAffected := 4*(shapeWinLen-1) + 1
	return &Accumulator{
		boardSize:  boardSize,
		fullSize:   full,
		scale:      1 / float32(cells),
		indexTable: make([]uint32, cells*4),
		mapSum:     make([]int16, cells*FeatureDim),
		mapConv:    make([]int32, full*full*FeatureDWConvDim),
		cellMark:   make([]int32, cells),
		convMark:   make([]int32, cells),
		cellList:   make([]int32, 0, maxAffected),
		convList:   make([]int32, 0, maxAffected*9),
		oldFeat:    make([][FeatureDim]int16, maxAffected),
		polFeat:    make([]int16, cells*PolicyDim),
	}, nil
}

// BoardSize returns the edge length this accumulator was built for.
func (a *Accumulator) BoardSize() int { return a.boardSize }

func (a *Accumulator) in(x, y int) bool {
	return x >= 0 && x < a.boardSize && y >= 0 && y < a.boardSize
}

// emptyShapeIndex is the line shape of a cell on an empty board:
// on-board window cells are empty, cells beyond the edge read as
// opponent stones (blockers).
func (a *Accumulator) emptyShapeIndex(x, y, dir int) uint32 {
	idx := int32(dir) * pow3[shapeWinLen]
	for d := 0; d < shapeWinLen; d++ {
		cx := x + (d-shapeWinHalf)*shapeDirs[dir][0]
		cy := y + (d-shapeWinHalf)*shapeDirs[dir][1]
		if !a.in(cx, cy) {
			idx += int32(cellOppo) * pow3[d]
		}
	}
	return uint32(idx)
}

// prelu computes the post-mapping feature vector of one cell.
func (a *Accumulator) prelu(w *Mix8Weight, cell int, out *[FeatureDim]int16) {
	ms := cell * FeatureDim
	for i := 0; i < FeatureDim; i++ {
		v := a.mapSum[ms+i]
		if v < 0 {
			v = int16(int32(v) * int32(w.MapPReLU[i]) >> preluShift)
		}
		out[i] = v
	}
}

func creluConv(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 32767 {
		return 32767
	}
	return v
}

// paddedIndex maps board coordinates into the conv grid with its 1-cell
// ring.
func (a *Accumulator) paddedIndex(x, y int) int {
	return ((y+1)*a.fullSize + x + 1) * FeatureDWConvDim
}

// Clear resets the accumulator to the empty-board baseline for the given
// weights.
func (a *Accumulator) Clear(w *Mix8Weight) {
	size := a.boardSize
	a.valueSum = [ValueDim]int32{}
	a.version = 0
	for i := range a.cellMark {
		a.cellMark[i] = 0
		a.convMark[i] = 0
	}

	// conv grid starts at the bias
	for i := 0; i < len(a.mapConv); i += FeatureDWConvDim {
		for ch := 0; ch < FeatureDWConvDim; ch++ {
			a.mapConv[i+ch] = w.DWConvBias[ch]
		}
	}

	var feat [FeatureDim]int16
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			cell := y*size + x
			ms := cell * FeatureDim
			for i := 0; i < FeatureDim; i++ {
				a.mapSum[ms+i] = 0
			}
			for dir := 0; dir < 4; dir++ {
				idx := a.emptyShapeIndex(x, y, dir)
				a.indexTable[cell*4+dir] = idx
				row := int(idx) * FeatureDim
				for i := 0; i < FeatureDim; i++ {
					a.mapSum[ms+i] += w.Mapping[row+i]
				}
			}
			a.prelu(w, cell, &feat)
			a.spreadConv(w, x, y, &feat, nil)
			for i := FeatureDWConvDim; i < ValueDim; i++ {
				a.valueSum[i] += int32(feat[i])
			}
		}
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pi := a.paddedIndex(x, y)
			for ch := 0; ch < FeatureDWConvDim; ch++ {
				a.valueSum[ch] += creluConv(a.mapConv[pi+ch])
			}
		}
	}
}

// spreadConv folds a cell's feature delta (newFeat - oldFeat, or the
// full feature when oldFeat is nil) into the nine conv cells it touches.
func (a *Accumulator) spreadConv(w *Mix8Weight, x, y int, newFeat, oldFeat *[FeatureDim]int16) {
	k := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			// target is always inside the padded grid
			ti := ((y+dy+1)*a.fullSize + x + dx + 1) * FeatureDWConvDim
			wk := &w.DWConvWeight[k]
			for ch := 0; ch < FeatureDWConvDim; ch++ {
				delta := int32(newFeat[ch])
				if oldFeat != nil {
					delta -= int32(oldFeat[ch])
				}
				a.mapConv[ti+ch] += int32(wk[ch]) * delta
			}
			k++
		}
	}
}

// UpdateKind distinguishes making a move from unmaking one.
type UpdateKind int

const (
	UpdateMove UpdateKind = iota
	UpdateUndo
)

// Update applies one board delta at (x, y): oldColor and newColor are
// side-relative cell states. For UpdateMove the pre-move value sum is
// saved into backup; for UpdateUndo the value sum is restored from it,
// which together with the exact integer inverses on the index table,
// map sum and conv grid makes a move/undo pair bit-identical.
func (a *Accumulator) Update(w *Mix8Weight, kind UpdateKind, oldColor, newColor uint8, x, y int, backup *[ValueDim]int32) {
	if kind == UpdateMove {
		*backup = a.valueSum
	}
	digitDelta := int32(newColor) - int32(oldColor)
	size := a.boardSize

	// pass 1: collect unique affected cells, snapshot their features
	a.version++
	cells := a.cellList[:0]
	for dir := 0; dir < 4; dir++ {
		for d := 0; d < shapeWinLen; d++ {
			cx := x + (d-shapeWinHalf)*shapeDirs[dir][0]
			cy := y + (d-shapeWinHalf)*shapeDirs[dir][1]
			if !a.in(cx, cy) {
				continue
			}
			ci := int32(cy*size + cx)
			if a.cellMark[ci] != a.version {
				a.cellMark[ci] = a.version
				a.prelu(w, int(ci), &a.oldFeat[len(cells)])
				cells = append(cells, ci)
			}
		}
	}
	a.cellList = cells

	// conv outputs within one cell of any affected cell will change
	convCells := a.convList[:0]
	for _, ci := range cells {
		cx, cy := int(ci)%size, int(ci)/size
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if !a.in(nx, ny) {
					continue
				}
				ni := int32(ny*size + nx)
				if a.convMark[ni] != a.version {
					a.convMark[ni] = a.version
					convCells = append(convCells, ni)
				}
			}
		}
	}
	a.convList = convCells

	if kind == UpdateMove {
		for row := range cells {
			for i := FeatureDWConvDim; i < ValueDim; i++ {
				a.valueSum[i] -= int32(a.oldFeat[row][i])
			}
		}
		for _, ni := range convCells {
			pi := a.paddedIndex(int(ni)%size, int(ni)/size)
			for ch := 0; ch < FeatureDWConvDim; ch++ {
				a.valueSum[ch] -= creluConv(a.mapConv[pi+ch])
			}
		}
	}

	// pass 2: shift one ternary digit per affected (cell, direction)
	// and fold the mapping row delta into the map sum
	for dir := 0; dir < 4; dir++ {
		for d := 0; d < shapeWinLen; d++ {
			cx := x + (d-shapeWinHalf)*shapeDirs[dir][0]
			cy := y + (d-shapeWinHalf)*shapeDirs[dir][1]
			if !a.in(cx, cy) {
				continue
			}
			ci := cy*size + cx
			digit := shapeWinLen - 1 - d // position of (x, y) in ci's window
			ti := ci*4 + dir
			oldIdx := a.indexTable[ti]
			newIdx := uint32(int32(oldIdx) + digitDelta*pow3[digit])
			a.indexTable[ti] = newIdx

			ms := ci * FeatureDim
			oldRow := int(oldIdx) * FeatureDim
			newRow := int(newIdx) * FeatureDim
			for i := 0; i < FeatureDim; i++ {
				a.mapSum[ms+i] += w.Mapping[newRow+i] - w.Mapping[oldRow+i]
			}
		}
	}

	// pass 3: refresh features, conv grid and value sum
	var feat [FeatureDim]int16
	for row, ci := range cells {
		a.prelu(w, int(ci), &feat)
		a.spreadConv(w, int(ci)%size, int(ci)/size, &feat, &a.oldFeat[row])
		if kind == UpdateMove {
			for i := FeatureDWConvDim; i < ValueDim; i++ {
				a.valueSum[i] += int32(feat[i])
			}
		}
	}
	if kind == UpdateMove {
		for _, ni := range convCells {
			pi := a.paddedIndex(int(ni)%size, int(ni)/size)
			for ch := 0; ch < FeatureDWConvDim; ch++ {
				a.valueSum[ch] += creluConv(a.mapConv[pi+ch])
			}
		}
	} else {
		a.valueSum = *backup
	}
}

// ValueFeatures writes this side's scaled value feature vector into out,
// which must hold ValueDim entries.
func (a *Accumulator) ValueFeatures(w *Mix8Weight, out []float32) {
	_ = out[ValueDim-1]
	for i := 0; i < FeatureDWConvDim; i++ {
		out[i] = float32(a.valueSum[i]) * w.ValueSumScaleAfterConv * a.scale
	}
	for i := FeatureDWConvDim; i < ValueDim; i++ {
		out[i] = float32(a.valueSum[i]) * w.ValueSumScaleDirect * a.scale
	}
}

// policy conv taps: the center plus four directions with radius 4.
var policyTaps = func() [policyWinLen][2]int {
	var taps [policyWinLen][2]int
	n := 1
	for _, dir := range shapeDirs {
		for off := -4; off <= 4; off++ {
			if off == 0 {
				continue
			}
			taps[n] = [2]int{dir[0] * off, dir[1] * off}
			n++
		}
	}
	return taps
}()

// PolicyScores runs the policy head over every cell whose compute flag
// is set: a depthwise conv over the line window, a dynamic pointwise
// conv with the supplied derived weights, and the final PReLU.
func (a *Accumulator) PolicyScores(w *Mix8Weight, pwWeight *[PolicyDim]float32, buf *PolicyBuffer) {
	size := a.boardSize
	bk := w.Bucket()

	// policy conv input for the whole board
	var feat [FeatureDim]int16
	for cell := 0; cell < size*size; cell++ {
		a.prelu(w, cell, &feat)
		copy(a.polFeat[cell*PolicyDim:(cell+1)*PolicyDim], feat[:PolicyDim])
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := game.MakePos(x, y)
			if !buf.ComputeFlag(p) {
				continue
			}
			var acc [PolicyDim]int32
			for ch := 0; ch < PolicyDim; ch++ {
				acc[ch] = bk.PolicyDWConvBias[ch]
			}
			for t := 0; t < policyWinLen; t++ {
				tx, ty := x+policyTaps[t][0], y+policyTaps[t][1]
				if !a.in(tx, ty) {
					continue
				}
				fi := (ty*size + tx) * PolicyDim
				wt := &bk.PolicyDWConvWeight[t]
				for ch := 0; ch < PolicyDim; ch++ {
					acc[ch] += int32(wt[ch]) * int32(a.polFeat[fi+ch])
				}
			}
			var s float32
			for ch := 0; ch < PolicyDim; ch++ {
				s += pwWeight[ch] * float32(creluConv(acc[ch]))
			}
			if s < 0 {
				s *= bk.PolicyNegWeight
			} else {
				s *= bk.PolicyPosWeight
			}
			buf.setScore(p, s)
		}
	}
}
