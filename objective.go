package anychain

import (
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anyvec"
)

// DefaultObjfPerFrame is the objective reported for
// every unit of frame weight when the computation breaks
// down numerically.
const DefaultObjfPerFrame = -10

// Result stores the scalar outputs of an objective
// computation.
type Result struct {
	// Objf is the numerator log probability minus the
	// weighted denominator log probability.
	// It is not normalized by Weight.
	Objf float64

	// L2Term is the (non-positive) L2 penalty.
	L2Term float64

	// Weight is the supervision weight times the number
	// of frames.
	Weight float64

	// XentObjf is the dot product of the cross-entropy
	// output with the numerator posteriors.
	// It is only computed when both the cross-entropy
	// output and its derivative are present.
	XentObjf float64

	// Fallback is true if Objf was replaced by the default
	// objective because of a numerical failure.
	Fallback bool

	// DenominatorOK is the result of the denominator's
	// backward pass, or true if it was not run.
	DenominatorOK bool
}

// Total returns Objf + L2Term.
func (r *Result) Total() float64 {
	return r.Objf + r.L2Term
}

// An Objective computes the chain objective and its
// derivatives for minibatches.
type Objective struct {
	// Options configures the objective.
	// If nil, DefaultOptions() is used.
	Options *Options

	// DenGraph is the denominator graph shared by every
	// sequence.
	DenGraph *anyfsa.Graph

	// Numerator and Denominator create the engines.
	// If nil, NewNumerator and NewDenominator are used.
	Numerator   NumeratorFunc
	Denominator DenominatorFunc

	// Pool, if non-nil, is used by the default engines to
	// process sequences in parallel.
	Pool *workerpool.Pool

	// Logger receives warnings and diagnostics.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Verbose enables the per-frame derivative log when
	// it is at least 1.
	Verbose int
}

// ComputeObjfAndDeriv computes the objective for a
// minibatch with the default engines.
//
// See Objective.Compute for details.
func ComputeObjfAndDeriv(opts *Options, denGraph *anyfsa.Graph, sup *Supervision,
	nnetOut, xentOut, nnetDeriv, xentDeriv *anyvec.Matrix) *Result {
	o := &Objective{Options: opts, DenGraph: denGraph}
	return o.Compute(sup, nnetOut, xentOut, nnetDeriv, xentDeriv)
}

// Compute computes the objective for a minibatch.
//
// The xentOut matrix is the optional auxiliary output.
// It may be nil or have zero rows to indicate that there
// is no auxiliary output.
//
// The derivative matrices are optional.
// If present, they are overwritten with the derivative
// of Objf+L2Term with respect to the corresponding
// outputs, except that the cross-entropy derivative
// holds the numerator posteriors in place of a true
// derivative of Objf.
//
// If the objective is not finite or the denominator
// fails, the derivatives are discarded, Objf is set to
// DefaultObjfPerFrame times the weight, and a warning is
// logged.
// The L2 term is still computed and added afterwards.
//
// Mismatched shapes cause a panic.
func (o *Objective) Compute(sup *Supervision, nnetOut, xentOut, nnetDeriv,
	xentDeriv *anyvec.Matrix) *Result {
	return o.compute(sup, nnetOut, xentOut, nnetDeriv, xentDeriv, xentDeriv)
}

// compute is like Compute, but the L2 derivative for the
// cross-entropy output is added to xentL2Deriv, which may
// differ from xentDeriv.
func (o *Objective) compute(sup *Supervision, nnetOut, xentOut, nnetDeriv, xentDeriv,
	xentL2Deriv *anyvec.Matrix) *Result {
	opts := o.options()
	o.checkShapes(sup, nnetOut, xentOut, nnetDeriv, xentDeriv)

	if nnetDeriv != nil {
		setZero(nnetDeriv.Data)
	}

	num := o.newNumerator(sup, nnetOut)
	numLogprobWeighted := num.Forward()
	if nnetDeriv != nil {
		num.Backward(nnetDeriv.Data)
		if xentDeriv != nil {
			xentDeriv.Data.Set(nnetDeriv.Data)
		}
	} else if xentDeriv != nil {
		setZero(xentDeriv.Data)
		num.Backward(xentDeriv.Data)
	}

	den := o.newDenominator(opts, sup.NumSequences, nnetOut)
	denLogprob := den.Forward()
	ok := true
	if nnetDeriv != nil {
		ok = den.Backward(-sup.Weight, nnetDeriv.Data)
	}

	res := &Result{
		Objf:          numLogprobWeighted - sup.Weight*denLogprob,
		Weight:        sup.TotalWeight(),
		DenominatorOK: ok,
	}
	if !isFinite(res.Objf) || !ok {
		if nnetDeriv != nil {
			setZero(nnetDeriv.Data)
		}
		if xentDeriv != nil {
			setZero(xentDeriv.Data)
		}
		o.logger().Warn("objective function is not finite or denominator failed",
			"objf", res.Objf, "denominator_ok", ok,
			"default_objf_per_frame", DefaultObjfPerFrame)
		res.Objf = DefaultObjfPerFrame * res.Weight
		res.Fallback = true
	}

	if o.Verbose >= 1 && nnetDeriv != nil {
		energies := FrameDerivEnergies(nnetDeriv, sup.NumSequences, sup.FramesPerSequence)
		o.logger().Info("derivs per frame", "energies", energies)
	}

	if hasRows(xentOut) && xentDeriv != nil {
		res.XentObjf = numericFloat(xentOut.Data.Dot(xentDeriv.Data))
	}

	res.L2Term = o.addL2(opts, sup, nnetOut, xentOut, nnetDeriv, xentL2Deriv)
	return res
}

// addL2 computes the L2 term and adds its derivatives.
//
// Without an auxiliary output, the chain output itself is
// penalized.
// Otherwise, the chain output is penalized for deviating
// from the best column-wise affine function of the
// auxiliary output.
// The fitted map is treated as a constant.
// With FitCentered it minimizes the penalty, so this
// gives the exact derivative.
func (o *Objective) addL2(opts *Options, sup *Supervision, nnetOut, xentOut,
	nnetDeriv, xentDeriv *anyvec.Matrix) float64 {
	if opts.L2Regularize == 0 {
		return 0
	}
	scaleCoeff := sup.Weight * opts.L2Regularize

	if !hasRows(xentOut) {
		if nnetDeriv != nil {
			addScaledInto(nnetDeriv.Data, -scaleCoeff, nnetOut.Data)
		}
		return -0.5 * scaleCoeff * sumSquares(nnetOut.Data)
	}

	fit := ComputeScaleOffset(xentOut, nnetOut, opts)
	diff := fit.Apply(xentOut).Data
	diff.Sub(nnetOut.Data)

	if nnetDeriv != nil {
		addScaledInto(nnetDeriv.Data, scaleCoeff, diff)
	}
	if xentDeriv != nil {
		scaledDiff := diff.Copy()
		anyvec.ScaleRepeated(scaledDiff, fit.Scale)
		addScaledInto(xentDeriv.Data, -scaleCoeff, scaledDiff)
	}
	return -0.5 * scaleCoeff * sumSquares(diff)
}

func (o *Objective) checkShapes(sup *Supervision, nnetOut, xentOut, nnetDeriv,
	xentDeriv *anyvec.Matrix) {
	if nnetOut.Rows != sup.NumRows() {
		panic(fmt.Sprintf("expected %d output rows but got %d", sup.NumRows(),
			nnetOut.Rows))
	}
	if nnetOut.Data.Len() != nnetOut.Rows*nnetOut.Cols {
		panic("output data does not match its shape")
	}
	if hasRows(xentOut) {
		checkSameShape("xent output", nnetOut, xentOut)
	}
	if nnetDeriv != nil {
		checkSameShape("output derivative", nnetOut, nnetDeriv)
	}
	if xentDeriv != nil {
		checkSameShape("xent derivative", nnetOut, xentDeriv)
	}
}

func (o *Objective) options() *Options {
	if o.Options == nil {
		return DefaultOptions()
	}
	return o.Options
}

func (o *Objective) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Objective) newNumerator(sup *Supervision, nnetOut *anyvec.Matrix) NumeratorEngine {
	if o.Numerator != nil {
		return o.Numerator(sup, nnetOut)
	}
	return NewNumerator(sup, nnetOut, o.Pool)
}

func (o *Objective) newDenominator(opts *Options, numSeqs int,
	nnetOut *anyvec.Matrix) DenominatorEngine {
	if o.Denominator != nil {
		return o.Denominator(opts, o.DenGraph, numSeqs, nnetOut)
	}
	if o.DenGraph == nil {
		panic("no denominator graph")
	}
	return NewDenominator(opts, o.DenGraph, numSeqs, nnetOut, o.Pool)
}

func hasRows(m *anyvec.Matrix) bool {
	return m != nil && m.Rows != 0
}
