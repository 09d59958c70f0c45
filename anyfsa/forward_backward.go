package anyfsa

import (
	"fmt"
	"math"
)

// PosteriorTolerance bounds how far the posteriors of a
// single frame may stray from summing to 1 before
// Backward reports a failure.
const PosteriorTolerance = 1e-3

// A Lattice stores the forward pass of a graph over a
// sequence of frames, so that the backward pass can be
// run later.
type Lattice struct {
	graph *Graph
	input [][]float64

	logLeak    float64
	logInitial []float64

	// alphas[t] holds the forward log probabilities of
	// every state after t frames (after leaking).
	alphas  [][]float64
	logProb float64
}

// Forward runs the forward pass of the graph.
//
// The input contains one row of label scores per frame.
// Each row must be at least as long as the graph's
// largest label.
//
// If leak is positive, a leaky-HMM transition is applied
// after every frame: a fraction leak of the total
// probability mass is redistributed to all states
// according to the normalized initial weights.
func (g *Graph) Forward(input [][]float64, leak float64) *Lattice {
	numLabels := g.NumLabels()
	for t, row := range input {
		if len(row) < numLabels {
			panic(fmt.Sprintf("frame %d has %d labels but graph needs %d", t,
				len(row), numLabels))
		}
	}
	l := &Lattice{
		graph:   g,
		input:   input,
		logLeak: math.Inf(-1),
		alphas:  make([][]float64, len(input)+1),
	}
	if leak > 0 {
		l.logLeak = math.Log(leak)
		l.logInitial = append([]float64{}, g.Initial...)
		if norm := logSumExp(l.logInitial); isFinite(norm) {
			for i := range l.logInitial {
				l.logInitial[i] -= norm
			}
		}
	}

	l.alphas[0] = append([]float64{}, g.Initial...)
	for t, row := range input {
		last := l.alphas[t]
		next := negInfSlice(g.NumStates)
		for _, a := range g.Arcs {
			if math.IsInf(last[a.Src], -1) {
				continue
			}
			next[a.Dst] = addLogs(next[a.Dst], last[a.Src]+a.Weight+row[a.Label])
		}
		if l.leaky() {
			leaked := l.logLeak + logSumExp(next)
			for s := range next {
				next[s] = addLogs(next[s], leaked+l.logInitial[s])
			}
		}
		l.alphas[t+1] = next
	}

	final := l.alphas[len(input)]
	terms := make([]float64, g.NumStates)
	for s := range terms {
		terms[s] = final[s] + g.Final[s]
	}
	l.logProb = logSumExp(terms)
	return l
}

// LogProb returns the total log probability of all the
// paths through the graph.
func (l *Lattice) LogProb() float64 {
	return l.logProb
}

// Backward computes, for every frame and label, the
// posterior probability that a path takes an arc with
// that label at that frame.
// This is the derivative of LogProb() with respect to
// the input scores.
//
// The second return value is false if the total log
// probability is not finite or if the posteriors of some
// frame do not sum to 1 (within PosteriorTolerance).
// When the log probability is not finite, all the
// posteriors are zero.
func (l *Lattice) Backward() ([][]float64, bool) {
	g := l.graph
	posts := make([][]float64, len(l.input))
	for t, row := range l.input {
		posts[t] = make([]float64, len(row))
	}
	if !isFinite(l.logProb) {
		return posts, false
	}

	ok := true
	beta := append([]float64{}, g.Final...)
	for t := len(l.input) - 1; t >= 0; t-- {
		// Derivative w.r.t. the pre-leak forward values.
		preBeta := beta
		if l.leaky() {
			preBeta = append([]float64{}, beta...)
			terms := make([]float64, g.NumStates)
			for s := range terms {
				terms[s] = l.logInitial[s] + beta[s]
			}
			leaked := l.logLeak + logSumExp(terms)
			for s := range preBeta {
				preBeta[s] = addLogs(preBeta[s], leaked)
			}
		}

		alpha := l.alphas[t]
		row := l.input[t]
		newBeta := negInfSlice(g.NumStates)
		var frameTotal float64
		for _, a := range g.Arcs {
			if math.IsInf(preBeta[a.Dst], -1) {
				continue
			}
			x := a.Weight + row[a.Label] + preBeta[a.Dst]
			newBeta[a.Src] = addLogs(newBeta[a.Src], x)
			if math.IsInf(alpha[a.Src], -1) {
				continue
			}
			occ := math.Exp(alpha[a.Src] + x - l.logProb)
			posts[t][a.Label] += occ
			frameTotal += occ
		}
		if !(math.Abs(frameTotal-1) <= PosteriorTolerance) {
			ok = false
		}
		beta = newBeta
	}
	return posts, ok
}

func (l *Lattice) leaky() bool {
	return !math.IsInf(l.logLeak, -1)
}
