package anychain

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

const testLabelDim = 4

var testCreator = anyvec64.CurrentCreator()

// testDenGraph creates a fully-connected graph over all
// of the test labels.
func testDenGraph() *anyfsa.Graph {
	g := anyfsa.NewGraph(testLabelDim)
	for s := 0; s < testLabelDim; s++ {
		g.SetInitial(s, -math.Log(testLabelDim))
		g.SetFinal(s, 0)
		for d := 0; d < testLabelDim; d++ {
			g.AddArc(s, d, d, -math.Log(testLabelDim))
		}
	}
	return g
}

// testNumGraph creates a graph which accepts a run of
// label first followed by a run of label second.
func testNumGraph(first, second int) *anyfsa.Graph {
	g := anyfsa.NewGraph(2)
	g.SetInitial(0, 0)
	g.SetFinal(1, 0)
	g.AddArc(0, 0, first, 0)
	g.AddArc(0, 1, second, 0)
	g.AddArc(1, 1, second, 0)
	return g
}

func testSupervision(numSeqs, frames int, weight float64) *Supervision {
	sup := &Supervision{
		Weight:            weight,
		NumSequences:      numSeqs,
		FramesPerSequence: frames,
		LabelDim:          testLabelDim,
	}
	for i := 0; i < numSeqs; i++ {
		sup.Graphs = append(sup.Graphs, testNumGraph(i%testLabelDim, (i+1)%testLabelDim))
	}
	return sup
}

func randomMatrix(rows, cols int) *anyvec.Matrix {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rand.NormFloat64()
	}
	return &anyvec.Matrix{Data: makeVector(testCreator, data), Rows: rows, Cols: cols}
}

func zeroMatrix(rows, cols int) *anyvec.Matrix {
	return &anyvec.Matrix{Data: testCreator.MakeVector(rows * cols), Rows: rows, Cols: cols}
}

func constMatrix(rows, cols int, value float64) *anyvec.Matrix {
	m := zeroMatrix(rows, cols)
	m.Data.AddScalar(testCreator.MakeNumeric(value))
	return m
}

func matrixFloats(m *anyvec.Matrix) []float64 {
	return append([]float64{}, vectorFloats(m.Data)...)
}

func assertClose(t *testing.T, name string, expected, actual []float64, prec float64) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("%s: expected length %d but got %d", name, len(expected), len(actual))
	}
	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(a) || math.Abs(x-a) > prec {
			t.Errorf("%s: entry %d: expected %f but got %f", name, i, x, a)
		}
	}
}

// fakeNumerator returns a fixed log probability and adds
// a fixed derivative.
type fakeNumerator struct {
	LogProb float64
	Deriv   float64
}

func (f *fakeNumerator) Forward() float64 {
	return f.LogProb
}

func (f *fakeNumerator) Backward(deriv anyvec.Vector) {
	deriv.AddScalar(deriv.Creator().MakeNumeric(f.Deriv))
}

// fakeDenominator returns a fixed log probability and
// adds scale times a fixed derivative.
type fakeDenominator struct {
	LogProb   float64
	Deriv     float64
	OK        bool
	Backwards int
}

func (f *fakeDenominator) Forward() float64 {
	return f.LogProb
}

func (f *fakeDenominator) Backward(scale float64, deriv anyvec.Vector) bool {
	f.Backwards++
	deriv.AddScalar(deriv.Creator().MakeNumeric(scale * f.Deriv))
	return f.OK
}

func fakeObjective(opts *Options, num *fakeNumerator, den *fakeDenominator) *Objective {
	return &Objective{
		Options: opts,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Numerator: func(*Supervision, *anyvec.Matrix) NumeratorEngine {
			return num
		},
		Denominator: func(*Options, *anyfsa.Graph, int, *anyvec.Matrix) DenominatorEngine {
			return den
		},
	}
}
