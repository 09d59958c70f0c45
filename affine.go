package anychain

import (
	"math"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Affine
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAffine)
}

// Affine is a column-wise affine map.
//
// Applied to a matrix, it computes
//
//     Scale[j]*x[i][j] + Offset[j]
//
// for every entry.
type Affine struct {
	Scale  anyvec.Vector
	Offset anyvec.Vector
}

// DeserializeAffine deserializes an Affine.
func DeserializeAffine(d []byte) (*Affine, error) {
	var s, o *anyvecsave.S
	if err := serializer.DeserializeAny(d, &s, &o); err != nil {
		return nil, essentials.AddCtx("deserialize Affine", err)
	}
	return &Affine{Scale: s.Vector, Offset: o.Vector}, nil
}

// ComputeScaleOffset fits, for every column j, the scale
// and offset which best predict column j of input2 from
// column j of input1 in the least-squares sense.
//
// The fit and the treatment of columns of input1 with
// no spread are chosen by opts.Fit and opts.Degenerate.
// The result never contains NaNs for finite inputs.
func ComputeScaleOffset(input1, input2 *anyvec.Matrix, opts *Options) *Affine {
	checkSameShape("fit scale and offset", input1, input2)
	rows1 := matrixRows(input1)
	rows2 := matrixRows(input2)
	scale := make([]float64, input1.Cols)
	offset := make([]float64, input1.Cols)
	if input1.Rows == 0 {
		c := input1.Data.Creator()
		return &Affine{Scale: makeVector(c, scale), Offset: makeVector(c, offset)}
	}

	n := float64(input1.Rows)
	for col := range scale {
		var sumX, sumY float64
		for i := range rows1 {
			sumX += rows1[i][col]
			sumY += rows2[i][col]
		}
		meanX, meanY := sumX/n, sumY/n

		var num, denom float64
		for i := range rows1 {
			x, y := rows1[i][col], rows2[i][col]
			if opts.Fit == FitCentered {
				x -= meanX
				y -= meanY
			}
			num += x * y
			denom += x * x
		}

		if opts.Degenerate == DegenerateEpsilon {
			scale[col] = num / math.Max(denom, opts.epsilon())
		} else if denom > 0 {
			scale[col] = num / denom
		}
		if math.IsInf(scale[col], 0) || math.IsNaN(scale[col]) {
			scale[col] = 0
		}
		offset[col] = meanY - scale[col]*meanX
	}

	c := input1.Data.Creator()
	return &Affine{Scale: makeVector(c, scale), Offset: makeVector(c, offset)}
}

// Apply computes the affine map of every row of m.
func (a *Affine) Apply(m *anyvec.Matrix) *anyvec.Matrix {
	if m.Cols != a.Scale.Len() || m.Cols != a.Offset.Len() {
		panic("column count must match scale and offset")
	}
	out := m.Data.Copy()
	anyvec.ScaleRepeated(out, a.Scale)
	anyvec.AddRepeated(out, a.Offset)
	return &anyvec.Matrix{Data: out, Rows: m.Rows, Cols: m.Cols}
}

// SerializerType returns the unique ID used to serialize
// an Affine with the serializer package.
func (a *Affine) SerializerType() string {
	return "github.com/unixpickle/anychain.Affine"
}

// Serialize serializes the affine map.
func (a *Affine) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: a.Scale},
		&anyvecsave.S{Vector: a.Offset},
	)
}
