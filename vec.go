package anychain

import (
	"fmt"
	"math"

	"github.com/unixpickle/anyvec"
)

// vectorFloats converts a vector's data to a []float64.
// The result may alias the vector's data.
func vectorFloats(v anyvec.Vector) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case []float32:
		s := make([]float64, len(d))
		for i, x := range d {
			s[i] = float64(x)
		}
		return s
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", d))
	}
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}

func makeVector(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}

// addScaledInto adds scale*src to dest.
// It is the only way contributions enter a derivative
// buffer.
func addScaledInto(dest anyvec.Vector, scale float64, src anyvec.Vector) {
	if dest.Len() != src.Len() {
		panic(fmt.Sprintf("cannot accumulate length %d into length %d",
			src.Len(), dest.Len()))
	}
	tmp := src.Copy()
	tmp.Scale(tmp.Creator().MakeNumeric(scale))
	dest.Add(tmp)
}

// addFloatsInto adds scale*src to dest.
func addFloatsInto(dest anyvec.Vector, scale float64, src []float64) {
	addScaledInto(dest, scale, makeVector(dest.Creator(), src))
}

// setZero zeros a vector, even if it contains NaNs.
func setZero(v anyvec.Vector) {
	v.Set(v.Creator().MakeVector(v.Len()))
}

// sumSquares accumulates in float64 regardless of the
// vector's numeric type.
func sumSquares(v anyvec.Vector) float64 {
	var res float64
	for _, x := range vectorFloats(v) {
		res += x * x
	}
	return res
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// matrixRows splits a row-major matrix into float64
// rows.
func matrixRows(m *anyvec.Matrix) [][]float64 {
	data := vectorFloats(m.Data)
	res := make([][]float64, m.Rows)
	for i := range res {
		res[i] = data[i*m.Cols : (i+1)*m.Cols]
	}
	return res
}

func checkSameShape(name string, m1, m2 *anyvec.Matrix) {
	if m1.Rows != m2.Rows || m1.Cols != m2.Cols {
		panic(fmt.Sprintf("%s: shape %dx%d does not match %dx%d", name,
			m2.Rows, m2.Cols, m1.Rows, m1.Cols))
	}
}
