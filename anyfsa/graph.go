package anyfsa

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g Graph
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGraph)
}

// An Arc is a transition between two states which
// consumes one frame.
type Arc struct {
	Src int `json:"src"`
	Dst int `json:"dst"`

	// Label is the output column whose score is added
	// when the arc is taken.
	Label int `json:"label"`

	// Weight is the log weight of the transition.
	Weight float64 `json:"weight"`
}

// A Graph is a weighted acceptor over frame labels.
//
// All weights are in the log domain.
// States which should not be initial (or final) have an
// Initial (or Final) weight of -Inf.
type Graph struct {
	NumStates int
	Arcs      []Arc
	Initial   []float64
	Final     []float64
}

// NewGraph creates a graph with no arcs and no initial
// or final states.
func NewGraph(numStates int) *Graph {
	g := &Graph{
		NumStates: numStates,
		Initial:   make([]float64, numStates),
		Final:     make([]float64, numStates),
	}
	for i := 0; i < numStates; i++ {
		g.Initial[i] = math.Inf(-1)
		g.Final[i] = math.Inf(-1)
	}
	return g
}

// DeserializeGraph deserializes a Graph.
func DeserializeGraph(d []byte) (*Graph, error) {
	var numStates serializer.Int
	var arcInts serializer.IntSlice
	var weights, initial, final serializer.Float64Slice
	err := serializer.DeserializeAny(d, &numStates, &arcInts, &weights, &initial, &final)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Graph", err)
	}
	if len(arcInts) != 3*len(weights) {
		return nil, errors.New("deserialize Graph: arc data mismatch")
	}
	g := &Graph{
		NumStates: int(numStates),
		Arcs:      make([]Arc, len(weights)),
		Initial:   []float64(initial),
		Final:     []float64(final),
	}
	for i := range g.Arcs {
		g.Arcs[i] = Arc{
			Src:    arcInts[3*i],
			Dst:    arcInts[3*i+1],
			Label:  arcInts[3*i+2],
			Weight: weights[i],
		}
	}
	if err := g.Validate(-1); err != nil {
		return nil, essentials.AddCtx("deserialize Graph", err)
	}
	return g, nil
}

// AddArc adds an arc to the graph.
func (g *Graph) AddArc(src, dst, label int, weight float64) {
	g.Arcs = append(g.Arcs, Arc{Src: src, Dst: dst, Label: label, Weight: weight})
}

// SetInitial sets the initial log weight of a state.
func (g *Graph) SetInitial(state int, weight float64) {
	g.Initial[state] = weight
}

// SetFinal sets the final log weight of a state.
func (g *Graph) SetFinal(state int, weight float64) {
	g.Final[state] = weight
}

// NumLabels returns one more than the largest label on
// any arc, or 0 if there are no arcs.
func (g *Graph) NumLabels() int {
	var res int
	for _, a := range g.Arcs {
		if a.Label+1 > res {
			res = a.Label + 1
		}
	}
	return res
}

// Validate checks that the graph is well-formed.
//
// If labelDim is non-negative, every label must be
// less than labelDim.
func (g *Graph) Validate(labelDim int) error {
	if g.NumStates <= 0 {
		return errors.New("graph has no states")
	}
	if len(g.Initial) != g.NumStates || len(g.Final) != g.NumStates {
		return fmt.Errorf("expected %d initial and final weights but got %d and %d",
			g.NumStates, len(g.Initial), len(g.Final))
	}
	for i, a := range g.Arcs {
		if a.Src < 0 || a.Src >= g.NumStates || a.Dst < 0 || a.Dst >= g.NumStates {
			return fmt.Errorf("arc %d: state out of range", i)
		}
		if a.Label < 0 || (labelDim >= 0 && a.Label >= labelDim) {
			return fmt.Errorf("arc %d: label %d out of range", i, a.Label)
		}
		if math.IsNaN(a.Weight) || math.IsInf(a.Weight, 1) {
			return fmt.Errorf("arc %d: invalid weight %f", i, a.Weight)
		}
	}
	return nil
}

// SerializerType returns the unique ID used to serialize
// a Graph with the serializer package.
func (g *Graph) SerializerType() string {
	return "github.com/unixpickle/anychain/anyfsa.Graph"
}

// Serialize serializes the graph.
func (g *Graph) Serialize() ([]byte, error) {
	arcInts := make([]int, 0, 3*len(g.Arcs))
	weights := make([]float64, len(g.Arcs))
	for i, a := range g.Arcs {
		arcInts = append(arcInts, a.Src, a.Dst, a.Label)
		weights[i] = a.Weight
	}
	return serializer.SerializeAny(
		serializer.Int(g.NumStates),
		serializer.IntSlice(arcInts),
		serializer.Float64Slice(weights),
		serializer.Float64Slice(g.Initial),
		serializer.Float64Slice(g.Final),
	)
}
