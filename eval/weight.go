// Package eval implements the incremental Mix8 network evaluator: a
// per-position accumulator state that is updated in time proportional to
// a move's local influence, plus the value and policy heads reading it.
package eval

import (
	"encoding/binary"
	"io"
	"math/rand"
	"os"

	"github.com/Joker2770/rapfi/game"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Network dimensions. These are compiled in; a weight file carrying
// different shapes is rejected at load time.
const (
	// ShapeNum is the mapping table height: 4 directions times 3^11
	// ternary encodings of an 11-cell line window.
	ShapeNum         = 708588
	PolicyDim        = 32
	ValueDim         = 96
	FeatureDim       = 96 // max(PolicyDim, ValueDim)
	FeatureDWConvDim = 32
	NumBuckets       = 1

	shapeWinLen  = 11
	shapeWinHalf = 5
	policyWinLen = 33 // 4 directions * radius 4 + center

	// preluShift is the fixed-point scale of the mapping PReLU slopes:
	// a slope weight of 1<<preluShift is an identity slope.
	preluShift = 6
)

// ArchHash identifies the compiled-in network architecture.
const ArchHash uint32 = 0x00712850 ^ ShapeNum ^ (FeatureDim<<16 | PolicyDim<<8 | ValueDim)

var weightMagic = [4]byte{'R', 'P', 'F', 'W'}

// Mix8Weight is one side's immutable weight blob.
type Mix8Weight struct {
	// mapping layer: one row of FeatureDim features per line shape
	Mapping []int16 // [ShapeNum * FeatureDim]

	// PReLU slopes after mapping, Q6 fixed point
	MapPReLU [FeatureDim]int16

	// 3x3 depthwise conv over the first FeatureDWConvDim feature dims
	DWConvWeight [9][FeatureDWConvDim]int16
	DWConvBias   [FeatureDWConvDim]int32

	// value sum scales
	ValueSumScaleAfterConv float32
	ValueSumScaleDirect    float32

	Buckets [NumBuckets]HeadBucket
}

// HeadBucket holds the value MLP and policy head of one bucket.
type HeadBucket struct {
	// policy depthwise conv over the line window
	PolicyDWConvWeight [policyWinLen][PolicyDim]int16
	PolicyDWConvBias   [PolicyDim]int32

	// dynamic pointwise conv: weights derived from the value feature sum
	PolicyPWConvWeight *tensor.Dense // (PolicyDim, ValueDim) float32
	PolicyPWConvBias   [PolicyDim]float32

	// value MLP
	ValueL1Weight *tensor.Dense // (ValueDim, ValueDim*2) float32
	ValueL1Bias   []float32     // [ValueDim]
	ValueL2Weight *tensor.Dense // (ValueDim, ValueDim) float32
	ValueL2Bias   []float32     // [ValueDim]
	ValueL3Weight *tensor.Dense // (3, ValueDim) float32
	ValueL3Bias   [3]float32

	PolicyNegWeight float32
	PolicyPosWeight float32
}

// Bucket returns the head bucket for the current position. A single
// bucket is compiled in for now.
func (w *Mix8Weight) Bucket() *HeadBucket { return &w.Buckets[0] }

func newEmptyWeight() *Mix8Weight {
	w := &Mix8Weight{Mapping: make([]int16, ShapeNum*FeatureDim)}
	for b := range w.Buckets {
		bk := &w.Buckets[b]
		bk.PolicyPWConvWeight = tensor.New(tensor.WithShape(PolicyDim, ValueDim), tensor.Of(tensor.Float32))
		bk.ValueL1Weight = tensor.New(tensor.WithShape(ValueDim, ValueDim*2), tensor.Of(tensor.Float32))
		bk.ValueL1Bias = make([]float32, ValueDim)
		bk.ValueL2Weight = tensor.New(tensor.WithShape(ValueDim, ValueDim), tensor.Of(tensor.Float32))
		bk.ValueL2Bias = make([]float32, ValueDim)
		bk.ValueL3Weight = tensor.New(tensor.WithShape(3, ValueDim), tensor.Of(tensor.Float32))
	}
	return w
}

// NewRandomWeight builds a deterministic pseudo-random weight blob. It
// carries no playing knowledge and exists for tests and demos that have
// no trained weight file at hand.
func NewRandomWeight(seed int64) *Mix8Weight {
	r := rand.New(rand.NewSource(seed))
	w := newEmptyWeight()
	for i := range w.Mapping {
		w.Mapping[i] = int16(r.Intn(33) - 16)
	}
	for i := range w.MapPReLU {
		w.MapPReLU[i] = int16(r.Intn(1 << preluShift)) // slopes in [0, 1)
	}
	for k := range w.DWConvWeight {
		for i := range w.DWConvWeight[k] {
			w.DWConvWeight[k][i] = int16(r.Intn(17) - 8)
		}
	}
	for i := range w.DWConvBias {
		w.DWConvBias[i] = int32(r.Intn(129) - 64)
	}
	w.ValueSumScaleAfterConv = 1.0 / 512
	w.ValueSumScaleDirect = 1.0 / 128
	for b := range w.Buckets {
		bk := &w.Buckets[b]
		for k := range bk.PolicyDWConvWeight {
			for i := range bk.PolicyDWConvWeight[k] {
				bk.PolicyDWConvWeight[k][i] = int16(r.Intn(17) - 8)
			}
		}
		for i := range bk.PolicyDWConvBias {
			bk.PolicyDWConvBias[i] = int32(r.Intn(129) - 64)
		}
		randFill(r, bk.PolicyPWConvWeight.Data().([]float32))
		randFill(r, bk.PolicyPWConvBias[:])
		randFill(r, bk.ValueL1Weight.Data().([]float32))
		randFill(r, bk.ValueL1Bias)
		randFill(r, bk.ValueL2Weight.Data().([]float32))
		randFill(r, bk.ValueL2Bias)
		randFill(r, bk.ValueL3Weight.Data().([]float32))
		randFill(r, bk.ValueL3Bias[:])
		bk.PolicyNegWeight = 0.5
		bk.PolicyPosWeight = 1.0
	}
	return w
}

func randFill(r *rand.Rand, a []float32) {
	for i := range a {
		a[i] = float32(r.NormFloat64()) * 0.1
	}
}

// LoadWeight reads one side's weight blob. The format is little-endian:
// a 4-byte magic, the architecture hash, then every tensor in
// declaration order. Any structural mismatch is a load-time error.
func LoadWeight(path string) (*Mix8Weight, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open weight file %q", path)
	}
	defer f.Close()
	w, err := readWeight(f)
	if err != nil {
		return nil, errors.Wrapf(err, "weight file %q", path)
	}
	return w, nil
}

// SaveWeight writes one side's weight blob in the format LoadWeight
// reads.
func SaveWeight(path string, w *Mix8Weight) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create weight file %q", path)
	}
	if err := writeWeight(f, w); err != nil {
		f.Close()
		return errors.Wrapf(err, "weight file %q", path)
	}
	return f.Close()
}

func writeWeight(out io.Writer, w *Mix8Weight) error {
	header := struct {
		Magic    [4]byte
		ArchHash uint32
	}{Magic: weightMagic, ArchHash: ArchHash}
	if err := binary.Write(out, binary.LittleEndian, &header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i, sec := range weightSections(w) {
		if err := binary.Write(out, binary.LittleEndian, sec); err != nil {
			return errors.Wrapf(err, "write weight section %d", i)
		}
	}
	return nil
}

func readWeight(r io.Reader) (*Mix8Weight, error) {
	var header struct {
		Magic    [4]byte
		ArchHash uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if header.Magic != weightMagic {
		return nil, errors.Errorf("bad magic %q", header.Magic[:])
	}
	if header.ArchHash != ArchHash {
		return nil, errors.Errorf("architecture hash mismatch: file 0x%08x, compiled 0x%08x", header.ArchHash, ArchHash)
	}

	w := newEmptyWeight()
	for i, sec := range weightSections(w) {
		if err := binary.Read(r, binary.LittleEndian, sec); err != nil {
			return nil, errors.Wrapf(err, "read weight section %d", i)
		}
	}
	return w, nil
}

// weightSections lists every tensor of the blob in file order.
func weightSections(w *Mix8Weight) []interface{} {
	sections := []interface{}{
		w.Mapping,
		&w.MapPReLU,
		&w.DWConvWeight,
		&w.DWConvBias,
		&w.ValueSumScaleAfterConv,
		&w.ValueSumScaleDirect,
	}
	for b := range w.Buckets {
		bk := &w.Buckets[b]
		sections = append(sections,
			&bk.PolicyDWConvWeight,
			&bk.PolicyDWConvBias,
			bk.PolicyPWConvWeight.Data().([]float32),
			&bk.PolicyPWConvBias,
			bk.ValueL1Weight.Data().([]float32),
			bk.ValueL1Bias,
			bk.ValueL2Weight.Data().([]float32),
			bk.ValueL2Bias,
			bk.ValueL3Weight.Data().([]float32),
			&bk.ValueL3Bias,
			&bk.PolicyNegWeight,
			&bk.PolicyPosWeight,
		)
	}
	return sections
}

// Mix8WeightTwoSide pairs per-side weight blobs. When the game is
// symmetric for both colors the two sides may alias one physical blob.
type Mix8WeightTwoSide struct {
	side [2]*Mix8Weight
}

// NewWeightTwoSide shares a single blob between both sides.
func NewWeightTwoSide(common *Mix8Weight) *Mix8WeightTwoSide {
	return &Mix8WeightTwoSide{side: [2]*Mix8Weight{common, common}}
}

// NewWeightTwoSidePair uses independent blobs for black and white.
func NewWeightTwoSidePair(black, white *Mix8Weight) *Mix8WeightTwoSide {
	return &Mix8WeightTwoSide{side: [2]*Mix8Weight{black, white}}
}

// Side returns the blob for a stone color.
func (w *Mix8WeightTwoSide) Side(c game.Color) *Mix8Weight { return w.side[c.Side()] }

// IsShared reports whether both sides alias one blob.
func (w *Mix8WeightTwoSide) IsShared() bool { return w.side[0] == w.side[1] }
