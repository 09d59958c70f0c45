package anychain

import (
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// A Sample is a sequence of input frames paired with a
// numerator graph describing its allowed labelings.
type Sample struct {
	Input       []anyvec.Vector
	Supervision *anyfsa.Graph

	// Weight scales the sample's objective.
	// If it is 0, a weight of 1 is used.
	Weight float64
}

// A SampleList is an anysgd.SampleList that produces
// chain samples.
type SampleList interface {
	anysgd.SampleList

	GetSample(idx int) (*Sample, error)
	Creator() anyvec.Creator
}

// A SliceSampleList is a concrete SampleList with
// predetermined samples.
type SliceSampleList struct {
	Samples []*Sample
	C       anyvec.Creator
}

// Len returns the number of samples.
func (s *SliceSampleList) Len() int {
	return len(s.Samples)
}

// Swap swaps two samples.
func (s *SliceSampleList) Swap(i, j int) {
	s.Samples[i], s.Samples[j] = s.Samples[j], s.Samples[i]
}

// Slice copies a sub-slice of the list.
func (s *SliceSampleList) Slice(i, j int) anysgd.SampleList {
	return &SliceSampleList{
		Samples: append([]*Sample{}, s.Samples[i:j]...),
		C:       s.C,
	}
}

// GetSample returns the sample at the index.
func (s *SliceSampleList) GetSample(idx int) (*Sample, error) {
	return s.Samples[idx], nil
}

// Creator returns the creator for the input vectors.
func (s *SliceSampleList) Creator() anyvec.Creator {
	return s.C
}
