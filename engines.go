package anychain

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anyvec"
)

// A NumeratorEngine runs forward-backward over the
// supervised label sequences.
type NumeratorEngine interface {
	// Forward returns the total log probability of the
	// supervision, already multiplied by its weight.
	Forward() float64

	// Backward adds the weighted derivative of the log
	// probability to deriv.
	// It must be called after Forward.
	Backward(deriv anyvec.Vector)
}

// A DenominatorEngine runs forward-backward over the
// denominator graph.
type DenominatorEngine interface {
	// Forward returns the total, unweighted log
	// probability of every sequence.
	Forward() float64

	// Backward adds scale times the derivative of the
	// log probability to deriv.
	// It must be called after Forward.
	// It returns false if the computation failed.
	Backward(scale float64, deriv anyvec.Vector) bool
}

// A NumeratorFunc creates a NumeratorEngine.
type NumeratorFunc func(sup *Supervision, nnetOut *anyvec.Matrix) NumeratorEngine

// A DenominatorFunc creates a DenominatorEngine.
type DenominatorFunc func(opts *Options, graph *anyfsa.Graph, numSequences int,
	nnetOut *anyvec.Matrix) DenominatorEngine

// Numerator is the default NumeratorEngine.
// It runs one anyfsa forward-backward per sequence.
type Numerator struct {
	sup   *Supervision
	batch *sequenceBatch
}

// NewNumerator creates a Numerator.
// If pool is non-nil, sequences are processed on it in
// parallel.
func NewNumerator(sup *Supervision, nnetOut *anyvec.Matrix,
	pool *workerpool.Pool) *Numerator {
	return &Numerator{
		sup:   sup,
		batch: newSequenceBatch(sup.NumSequences, nnetOut, pool),
	}
}

// Forward computes the weighted log probability.
func (n *Numerator) Forward() float64 {
	return n.sup.Weight * n.batch.Forward(func(seq int) *anyfsa.Graph {
		return n.sup.Graphs[seq]
	}, 0)
}

// Backward adds the weighted posteriors to deriv.
func (n *Numerator) Backward(deriv anyvec.Vector) {
	n.batch.Backward(n.sup.Weight, deriv)
}

// Denominator is the default DenominatorEngine.
// It runs the shared graph over every sequence, using
// the leaky HMM coefficient from the options.
type Denominator struct {
	opts  *Options
	graph *anyfsa.Graph
	batch *sequenceBatch
}

// NewDenominator creates a Denominator.
// If pool is non-nil, sequences are processed on it in
// parallel.
func NewDenominator(opts *Options, graph *anyfsa.Graph, numSequences int,
	nnetOut *anyvec.Matrix, pool *workerpool.Pool) *Denominator {
	return &Denominator{
		opts:  opts,
		graph: graph,
		batch: newSequenceBatch(numSequences, nnetOut, pool),
	}
}

// Forward computes the unweighted log probability.
func (d *Denominator) Forward() float64 {
	return d.batch.Forward(func(int) *anyfsa.Graph {
		return d.graph
	}, d.opts.LeakyHMMCoefficient)
}

// Backward adds the scaled posteriors to deriv.
func (d *Denominator) Backward(scale float64, deriv anyvec.Vector) bool {
	return d.batch.Backward(scale, deriv)
}

// sequenceBatch runs forward-backward on the sequences
// packed into a network output matrix.
type sequenceBatch struct {
	numSeqs  int
	rows     [][]float64
	pool     *workerpool.Pool
	lattices []*anyfsa.Lattice
}

func newSequenceBatch(numSeqs int, nnetOut *anyvec.Matrix,
	pool *workerpool.Pool) *sequenceBatch {
	if numSeqs <= 0 || nnetOut.Rows%numSeqs != 0 {
		panic(fmt.Sprintf("%d rows cannot hold %d sequences", nnetOut.Rows, numSeqs))
	}
	return &sequenceBatch{
		numSeqs: numSeqs,
		rows:    matrixRows(nnetOut),
		pool:    pool,
	}
}

func (s *sequenceBatch) numFrames() int {
	return len(s.rows) / s.numSeqs
}

// sequenceRows returns the rows belonging to a sequence.
func (s *sequenceBatch) sequenceRows(seq int) [][]float64 {
	res := make([][]float64, s.numFrames())
	for t := range res {
		res[t] = s.rows[t*s.numSeqs+seq]
	}
	return res
}

func (s *sequenceBatch) Forward(graph func(seq int) *anyfsa.Graph, leak float64) float64 {
	s.lattices = make([]*anyfsa.Lattice, s.numSeqs)
	s.each(func(seq int) {
		s.lattices[seq] = graph(seq).Forward(s.sequenceRows(seq), leak)
	})
	var sum float64
	for _, l := range s.lattices {
		sum += l.LogProb()
	}
	return sum
}

func (s *sequenceBatch) Backward(scale float64, deriv anyvec.Vector) bool {
	if s.lattices == nil {
		panic("backward called before forward")
	}
	var cols int
	if len(s.rows) > 0 {
		cols = len(s.rows[0])
	}
	if deriv.Len() != len(s.rows)*cols {
		panic(fmt.Sprintf("derivative length %d should be %d", deriv.Len(),
			len(s.rows)*cols))
	}
	flat := make([]float64, len(s.rows)*cols)
	oks := make([]bool, s.numSeqs)
	s.each(func(seq int) {
		posts, ok := s.lattices[seq].Backward()
		oks[seq] = ok
		for t, row := range posts {
			copy(flat[(t*s.numSeqs+seq)*cols:], row)
		}
	})
	addFloatsInto(deriv, scale, flat)
	for _, ok := range oks {
		if !ok {
			return false
		}
	}
	return true
}

func (s *sequenceBatch) each(f func(seq int)) {
	if s.pool == nil {
		for i := 0; i < s.numSeqs; i++ {
			f(i)
		}
		return
	}
	s.pool.ParallelForAtomic(s.numSeqs, f)
}
