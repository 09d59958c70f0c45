package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/unixpickle/anyvec/anyvec64"
)

const testMinibatch = `{
  "den_graph": {
    "num_states": 1,
    "arcs": [
      {"src": 0, "dst": 0, "label": 0, "weight": -0.6931471805599453},
      {"src": 0, "dst": 0, "label": 1, "weight": -0.6931471805599453}
    ],
    "initial": [{"state": 0, "weight": 0}],
    "final": [{"state": 0, "weight": 0}]
  },
  "supervision": {
    "weight": 1,
    "num_sequences": 1,
    "frames_per_sequence": 2,
    "graphs": [{
      "num_states": 3,
      "arcs": [
        {"src": 0, "dst": 1, "label": 0, "weight": 0},
        {"src": 1, "dst": 2, "label": 1, "weight": 0}
      ],
      "initial": [{"state": 0, "weight": 0}],
      "final": [{"state": 2, "weight": 0}]
    }]
  },
  "nnet_output": [[0.5, -0.5], [1, 2]]
}`

func TestReadMinibatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mb.json")
	if err := os.WriteFile(path, []byte(testMinibatch), 0644); err != nil {
		t.Fatal(err)
	}
	var mb minibatchJSON
	if err := readInput(path, &mb); err != nil {
		t.Fatal(err)
	}

	den, err := mb.DenGraph.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if den.NumStates != 1 || len(den.Arcs) != 2 || den.Initial[0] != 0 {
		t.Errorf("unexpected denominator graph: %+v", den)
	}

	sup, err := mb.Supervision.Supervision(2)
	if err != nil {
		t.Fatal(err)
	}
	if sup.NumRows() != 2 || len(sup.Graphs) != 1 {
		t.Errorf("unexpected supervision: %+v", sup)
	}
	num := sup.Graphs[0]
	if !math.IsInf(num.Initial[1], -1) || !math.IsInf(num.Final[0], -1) {
		t.Error("unlisted states should have -Inf weights")
	}

	m, err := matrixFromRows(anyvec64.CurrentCreator(), mb.NnetOutput)
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("bad shape %dx%d", m.Rows, m.Cols)
	}
	rows := matrixToRows(m)
	if rows[1][1] != 2 || rows[0][1] != -0.5 {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestGraphStateRange(t *testing.T) {
	var g graphJSON
	err := json.Unmarshal([]byte(`{"num_states": 1, "initial": [{"state": 3, "weight": 0}]}`), &g)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Graph(); err == nil {
		t.Error("expected error for out-of-range state")
	}
	var missing *graphJSON
	if _, err := missing.Graph(); err == nil {
		t.Error("expected error for missing graph")
	}
}

func TestMatrixFromRowsRagged(t *testing.T) {
	c := anyvec64.CurrentCreator()
	if _, err := matrixFromRows(c, [][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged rows")
	}
	if m, err := matrixFromRows(c, nil); m != nil || err != nil {
		t.Errorf("expected nil matrix, got %v %v", m, err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	data := "l2_regularize: 0.01\nfit: uncentered\nworkers: 3\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.L2Regularize == nil || *cfg.L2Regularize != 0.01 {
		t.Errorf("bad l2_regularize: %v", cfg.L2Regularize)
	}
	if cfg.Fit == nil || *cfg.Fit != "uncentered" {
		t.Errorf("bad fit: %v", cfg.Fit)
	}
	if cfg.Workers == nil || *cfg.Workers != 3 {
		t.Errorf("bad workers: %v", cfg.Workers)
	}
	if cfg.XentRegularize != nil {
		t.Error("unset field should be nil")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("bad log level: %s", cfg.LogLevel)
	}

	empty, err := loadConfig("")
	if err != nil || empty.L2Regularize != nil {
		t.Errorf("empty path should give empty config: %+v %v", empty, err)
	}
}
