package anychain

import (
	"testing"

	"github.com/unixpickle/anyvec"
)

func TestFrameDerivEnergies(t *testing.T) {
	// Two sequences, three frames, two columns.
	deriv := &anyvec.Matrix{
		Data: makeVector(testCreator, []float64{
			1, 0, // frame 0, seq 0
			0, 2, // frame 0, seq 1
			1, 1, // frame 1, seq 0
			3, 0, // frame 1, seq 1
			0, 0, // frame 2, seq 0
			-1, -1, // frame 2, seq 1
		}),
		Rows: 6,
		Cols: 2,
	}
	actual := FrameDerivEnergies(deriv, 2, 3)
	assertClose(t, "energies", []float64{2.5, 5.5, 1}, actual, 1e-12)
}
