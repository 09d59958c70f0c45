package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/unixpickle/anychain"
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anyvec"
)

// stateWeight assigns a log weight to a state.
// States which are not listed get a weight of -Inf.
type stateWeight struct {
	State  int     `json:"state"`
	Weight float64 `json:"weight"`
}

type graphJSON struct {
	NumStates int           `json:"num_states"`
	Arcs      []anyfsa.Arc  `json:"arcs"`
	Initial   []stateWeight `json:"initial"`
	Final     []stateWeight `json:"final"`
}

type supervisionJSON struct {
	Weight            float64      `json:"weight"`
	NumSequences      int          `json:"num_sequences"`
	FramesPerSequence int          `json:"frames_per_sequence"`
	Graphs            []*graphJSON `json:"graphs"`
}

// minibatchJSON is the dump format read by compute.
type minibatchJSON struct {
	DenGraph    *graphJSON       `json:"den_graph"`
	Supervision *supervisionJSON `json:"supervision"`
	NnetOutput  [][]float64      `json:"nnet_output"`
	XentOutput  [][]float64      `json:"xent_output"`
}

type resultJSON struct {
	Objf          float64     `json:"objf"`
	L2Term        float64     `json:"l2_term"`
	Weight        float64     `json:"weight"`
	ObjfPerFrame  float64     `json:"objf_per_frame"`
	XentObjf      float64     `json:"xent_objf"`
	Fallback      bool        `json:"fallback"`
	DenominatorOK bool        `json:"denominator_ok"`
	NnetDeriv     [][]float64 `json:"nnet_output_deriv,omitempty"`
	XentDeriv     [][]float64 `json:"xent_output_deriv,omitempty"`
}

func readInput(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}

func (g *graphJSON) Graph() (*anyfsa.Graph, error) {
	if g == nil {
		return nil, errors.New("missing graph")
	}
	res := anyfsa.NewGraph(g.NumStates)
	res.Arcs = append(res.Arcs, g.Arcs...)
	for _, lists := range []struct {
		weights []stateWeight
		set     func(int, float64)
	}{{g.Initial, res.SetInitial}, {g.Final, res.SetFinal}} {
		for _, w := range lists.weights {
			if w.State < 0 || w.State >= g.NumStates {
				return nil, fmt.Errorf("state %d out of range", w.State)
			}
			lists.set(w.State, w.Weight)
		}
	}
	return res, res.Validate(-1)
}

func (s *supervisionJSON) Supervision(labelDim int) (*anychain.Supervision, error) {
	if s == nil {
		return nil, errors.New("missing supervision")
	}
	res := &anychain.Supervision{
		Weight:            s.Weight,
		NumSequences:      s.NumSequences,
		FramesPerSequence: s.FramesPerSequence,
		LabelDim:          labelDim,
	}
	for i, g := range s.Graphs {
		graph, err := g.Graph()
		if err != nil {
			return nil, fmt.Errorf("supervision graph %d: %w", i, err)
		}
		res.Graphs = append(res.Graphs, graph)
	}
	return res, res.Validate()
}

// matrixFromRows packs rows into a matrix.
// An empty list of rows yields nil.
func matrixFromRows(c anyvec.Creator, rows [][]float64) (*anyvec.Matrix, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns (expected %d)", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return &anyvec.Matrix{
		Data: c.MakeVectorData(c.MakeNumericList(data)),
		Rows: len(rows),
		Cols: cols,
	}, nil
}

func matrixToRows(m *anyvec.Matrix) [][]float64 {
	if m == nil {
		return nil
	}
	var data []float64
	switch d := m.Data.Data().(type) {
	case []float64:
		data = d
	case []float32:
		for _, x := range d {
			data = append(data, float64(x))
		}
	}
	res := make([][]float64, m.Rows)
	for i := range res {
		res[i] = append([]float64{}, data[i*m.Cols:(i+1)*m.Cols]...)
	}
	return res
}
