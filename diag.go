package anychain

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// FrameDerivEnergies computes, for every frame offset,
// the squared norm of the derivative rows at that offset
// averaged over sequences.
//
// Derivatives are usually smaller near the edges of the
// sequences, which this makes easy to see.
func FrameDerivEnergies(deriv *anyvec.Matrix, numSequences,
	framesPerSequence int) []float64 {
	if deriv.Rows != numSequences*framesPerSequence {
		panic(fmt.Sprintf("expected %d rows but got %d", numSequences*framesPerSequence,
			deriv.Rows))
	}
	squares := deriv.Data.Copy()
	squares.Mul(deriv.Data)
	rowSums := vectorFloats(anyvec.SumCols(squares, deriv.Rows))

	res := make([]float64, framesPerSequence)
	for i, x := range rowSums {
		res[i/numSequences] += x
	}
	for i := range res {
		res[i] /= float64(numSequences)
	}
	return res
}
