package anychain

import (
	"errors"

	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Batch stores the packed input frames of a minibatch
// and the corresponding supervision.
//
// Row t*NumSequences+s of Inputs is frame t of sequence
// s.
type Batch struct {
	Inputs      anydiff.Res
	Supervision *Supervision
}

// A Trainer creates batches and computes gradients of the
// chain objective.
type Trainer struct {
	// Func applies the network to packed inputs with the
	// given number of rows.
	// It returns the chain output and, optionally, the
	// cross-entropy output (or nil).
	Func   func(in anydiff.Res, rows int) (nnetOut, xentOut anydiff.Res)
	Params []*anydiff.Var

	Objective *Objective

	// LabelDim is the number of chain output columns.
	LabelDim int

	// Average indicates whether or not the cost should be
	// divided by the total frame weight before computing
	// gradients.
	Average bool

	// After every gradient computation, LastCost is set to
	// the cost from the batch and LastResult to the
	// detailed result.
	LastCost   anyvec.Numeric
	LastResult *Result

	// Stats accumulates every result.
	Stats Stats
}

// Fetch produces a *Batch for the subset of samples.
// The s argument must implement SampleList.
// The batch may not be empty, and all of its samples must
// have the same length and weight, since their
// supervisions are combined with MergeSupervisions.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	if s.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	l := s.(SampleList)
	samples := make([]*Sample, l.Len())
	for i := range samples {
		sample, err := l.GetSample(i)
		if err != nil {
			return nil, essentials.AddCtx("fetch batch", err)
		}
		samples[i] = sample
	}

	sups := make([]*Supervision, len(samples))
	for i, sample := range samples {
		sups[i] = &Supervision{
			Weight:            sampleWeight(sample),
			NumSequences:      1,
			FramesPerSequence: len(sample.Input),
			LabelDim:          t.LabelDim,
			Graphs:            []*anyfsa.Graph{sample.Supervision},
		}
	}
	sup, err := MergeSupervisions(sups...)
	if err != nil {
		return nil, essentials.AddCtx("fetch batch", err)
	}
	if err := sup.Validate(); err != nil {
		return nil, essentials.AddCtx("fetch batch", err)
	}

	numFrames := sup.FramesPerSequence
	rows := make([]anyvec.Vector, 0, numFrames*len(samples))
	for frame := 0; frame < numFrames; frame++ {
		for _, sample := range samples {
			rows = append(rows, sample.Input[frame])
		}
	}
	return &Batch{
		Inputs:      anydiff.NewConst(l.Creator().Concat(rows...)),
		Supervision: sup,
	}, nil
}

// TotalCost computes the negative objective for the
// batch.
func (t *Trainer) TotalCost(b *Batch) anydiff.Res {
	cost, _ := t.totalCost(b)
	return cost
}

// Gradient computes the gradient for the batch's cost.
// It also sets t.LastCost and t.LastResult, and adds the
// result to t.Stats.
//
// The b argument must be a *Batch.
func (t *Trainer) Gradient(b anysgd.Batch) anydiff.Grad {
	res := anydiff.NewGrad(t.Params...)

	cost, result := t.totalCost(b.(*Batch))
	t.LastCost = anyvec.Sum(cost.Output())
	t.LastResult = result
	t.Stats.Add(result)

	c := cost.Output().Creator()
	data := c.MakeNumericList([]float64{1})
	upstream := c.MakeVectorData(data)
	cost.Propagate(upstream, res)

	return res
}

func (t *Trainer) totalCost(b *Batch) (anydiff.Res, *Result) {
	rows := b.Supervision.NumRows()
	nnetOut, xentOut := t.Func(b.Inputs, rows)
	objective := t.Objective.Res(b.Supervision, nnetOut, xentOut)
	cost := anydiff.Scale(objective, objective.OutVec.Creator().MakeNumeric(-1))
	if t.Average && objective.Result.Weight > 0 {
		scaler := cost.Output().Creator().MakeNumeric(1 / objective.Result.Weight)
		return anydiff.Scale(cost, scaler), objective.Result
	}
	return cost, objective.Result
}

func sampleWeight(s *Sample) float64 {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}
