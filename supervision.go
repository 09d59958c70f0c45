package anychain

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/essentials"
)

// Supervision describes the allowed label sequences for
// a minibatch of equally long, packed sequences.
//
// Supervisions are read-only once they are passed to an
// Objective.
type Supervision struct {
	// Weight scales the objective and its derivatives.
	Weight float64

	NumSequences      int
	FramesPerSequence int

	// LabelDim is the number of network output columns.
	LabelDim int

	// Graphs contains one numerator graph per sequence.
	Graphs []*anyfsa.Graph
}

// Validate checks that the supervision is consistent.
func (s *Supervision) Validate() error {
	if s.NumSequences <= 0 || s.FramesPerSequence <= 0 {
		return fmt.Errorf("invalid shape: %d sequences of %d frames",
			s.NumSequences, s.FramesPerSequence)
	}
	if s.Weight < 0 {
		return errors.New("weight must be non-negative")
	}
	if len(s.Graphs) != s.NumSequences {
		return fmt.Errorf("expected %d graphs but got %d", s.NumSequences,
			len(s.Graphs))
	}
	for i, g := range s.Graphs {
		if err := g.Validate(s.LabelDim); err != nil {
			return essentials.AddCtx(fmt.Sprintf("sequence %d", i), err)
		}
	}
	return nil
}

// NumRows returns the number of network output rows
// covered by the supervision.
func (s *Supervision) NumRows() int {
	return s.NumSequences * s.FramesPerSequence
}

// TotalWeight returns the frame-mass normalizer of the
// minibatch: the weight times the number of frames.
func (s *Supervision) TotalWeight() float64 {
	return s.Weight * float64(s.NumSequences) * float64(s.FramesPerSequence)
}

// MergeSupervisions combines supervisions with the same
// weight, frame count, and label dimension into one
// supervision for all of their sequences.
func MergeSupervisions(sups ...*Supervision) (*Supervision, error) {
	if len(sups) == 0 {
		return nil, errors.New("merge supervisions: nothing to merge")
	}
	res := &Supervision{
		Weight:            sups[0].Weight,
		FramesPerSequence: sups[0].FramesPerSequence,
		LabelDim:          sups[0].LabelDim,
	}
	for i, s := range sups {
		if s.Weight != res.Weight || s.FramesPerSequence != res.FramesPerSequence ||
			s.LabelDim != res.LabelDim {
			return nil, fmt.Errorf("merge supervisions: supervision %d is incompatible", i)
		}
		res.NumSequences += s.NumSequences
		res.Graphs = append(res.Graphs, s.Graphs...)
	}
	return res, nil
}
