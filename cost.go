package anychain

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// ObjectiveRes is an anydiff.Res holding the chain
// objective of a minibatch.
//
// Its output has one component,
//
//     Objf + L2Term + XentRegularize*XentObjf
//
// Propagation sends the chain derivative to the chain
// output.
// The cross-entropy output receives XentRegularize times
// the numerator posteriors plus the full derivative of
// L2Term.
// The numerator posteriors act as fixed targets for the
// cross-entropy output, so no derivative flows from the
// cross-entropy term into the chain output.
type ObjectiveRes struct {
	NnetOut anydiff.Res
	XentOut anydiff.Res

	NnetDeriv anyvec.Vector
	XentDeriv anyvec.Vector

	// XentL2Deriv is the derivative of L2Term with respect
	// to the cross-entropy output.
	// It is kept apart from XentDeriv since it is not
	// scaled by XentRegularize.
	XentL2Deriv anyvec.Vector

	XentRegularize float64

	// Result is the result of the underlying computation.
	Result *Result

	OutVec anyvec.Vector
	V      anydiff.VarSet
}

// Res computes the objective for a minibatch as an
// anydiff.Res.
//
// The xentOut argument may be nil.
// Both outputs are packed like the arguments to Compute,
// with sup.NumRows() rows.
func (o *Objective) Res(sup *Supervision, nnetOut, xentOut anydiff.Res) *ObjectiveRes {
	c := nnetOut.Output().Creator()
	rows := sup.NumRows()
	nnetMat := resMatrix(nnetOut, rows)
	nnetDeriv := &anyvec.Matrix{
		Data: c.MakeVector(nnetMat.Data.Len()),
		Rows: nnetMat.Rows,
		Cols: nnetMat.Cols,
	}
	res := &ObjectiveRes{
		NnetOut:        nnetOut,
		NnetDeriv:      nnetDeriv.Data,
		XentRegularize: o.options().XentRegularize,
		V:              nnetOut.Vars(),
	}

	var xentMat, xentDeriv, xentL2Deriv *anyvec.Matrix
	if xentOut != nil && xentOut.Output().Len() > 0 {
		xentMat = resMatrix(xentOut, rows)
		xentDeriv = &anyvec.Matrix{
			Data: c.MakeVector(xentMat.Data.Len()),
			Rows: xentMat.Rows,
			Cols: xentMat.Cols,
		}
		xentL2Deriv = &anyvec.Matrix{
			Data: c.MakeVector(xentMat.Data.Len()),
			Rows: xentMat.Rows,
			Cols: xentMat.Cols,
		}
		res.XentOut = xentOut
		res.XentDeriv = xentDeriv.Data
		res.XentL2Deriv = xentL2Deriv.Data
		res.V = anydiff.MergeVarSets(res.V, xentOut.Vars())
	}

	res.Result = o.compute(sup, nnetMat, xentMat, nnetDeriv, xentDeriv, xentL2Deriv)
	total := res.Result.Total() + res.XentRegularize*res.Result.XentObjf
	res.OutVec = makeVector(c, []float64{total})
	return res
}

// Cost is like Res, but it negates the objective so that
// it can be minimized.
func (o *Objective) Cost(sup *Supervision, nnetOut, xentOut anydiff.Res) anydiff.Res {
	res := o.Res(sup, nnetOut, xentOut)
	return anydiff.Scale(res, res.OutVec.Creator().MakeNumeric(-1))
}

// Output returns the objective.
func (o *ObjectiveRes) Output() anyvec.Vector {
	return o.OutVec
}

// Vars returns the variables of both outputs.
func (o *ObjectiveRes) Vars() anydiff.VarSet {
	return o.V
}

// Propagate propagates through both outputs.
func (o *ObjectiveRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := numericFloat(anyvec.Sum(u))
	c := u.Creator()
	if g.Intersects(o.NnetOut.Vars()) {
		down := o.NnetDeriv.Copy()
		down.Scale(c.MakeNumeric(upstream))
		o.NnetOut.Propagate(down, g)
	}
	if o.XentOut != nil && g.Intersects(o.XentOut.Vars()) {
		down := o.XentL2Deriv.Copy()
		addScaledInto(down, o.XentRegularize, o.XentDeriv)
		down.Scale(c.MakeNumeric(upstream))
		o.XentOut.Propagate(down, g)
	}
}

func resMatrix(r anydiff.Res, rows int) *anyvec.Matrix {
	n := r.Output().Len()
	if rows == 0 || n%rows != 0 {
		panic("output length not divisible by row count")
	}
	return &anyvec.Matrix{Data: r.Output(), Rows: rows, Cols: n / rows}
}
