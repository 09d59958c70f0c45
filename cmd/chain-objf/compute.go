package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/goccy/go-json"
	"github.com/unixpickle/anychain"
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
	"github.com/urfave/cli/v3"
)

func computeCmd() *cli.Command {
	return &cli.Command{
		Name:  "compute",
		Usage: "Compute the objective (and optionally derivatives) of a JSON minibatch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"in"},
				Usage:   "Minibatch JSON path, or - for stdin",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "den-graph",
				Usage: "Serialized denominator graph (overrides den_graph in the input)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Optional YAML options file",
			},
			&cli.FloatFlag{Name: "l2-regularize", Usage: "L2 penalty on the chain output"},
			&cli.FloatFlag{Name: "leaky-hmm-coefficient", Usage: "Denominator leak probability"},
			&cli.FloatFlag{Name: "xent-regularize", Usage: "Cross-entropy objective scale"},
			&cli.FloatFlag{Name: "epsilon", Usage: "Denominator clamp for --degenerate=epsilon"},
			&cli.StringFlag{
				Name:  "fit",
				Usage: "Scale/offset fit: centered|uncentered",
				Value: "centered",
			},
			&cli.StringFlag{
				Name:  "degenerate",
				Usage: "Constant-column policy: zero-scale|epsilon",
				Value: "zero-scale",
			},
			&cli.BoolFlag{Name: "derivs", Usage: "Include derivatives in the output"},
			&cli.BoolFlag{Name: "float32", Usage: "Compute with 32-bit vectors"},
			&cli.IntFlag{Name: "workers", Usage: "Parallel sequence workers (0 disables)"},
			&cli.IntFlag{Name: "verbose", Usage: "Diagnostic verbosity"},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug|info|warn|error",
				Value: "info",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts, err := buildOptions(c, cfg)
			if err != nil {
				return fmt.Errorf("options: %w", err)
			}
			level := c.String("log-level")
			if !c.IsSet("log-level") && cfg.LogLevel != "" {
				level = cfg.LogLevel
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLevel(level),
			}))

			var mb minibatchJSON
			if err := readInput(c.String("input"), &mb); err != nil {
				return fmt.Errorf("read minibatch: %w", err)
			}

			var creator anyvec.Creator = anyvec64.CurrentCreator()
			if c.Bool("float32") {
				creator = anyvec32.CurrentCreator()
			}
			nnetOut, err := matrixFromRows(creator, mb.NnetOutput)
			if err != nil {
				return fmt.Errorf("read nnet output: %w", err)
			} else if nnetOut == nil {
				return errors.New("minibatch has no nnet_output")
			}
			xentOut, err := matrixFromRows(creator, mb.XentOutput)
			if err != nil {
				return fmt.Errorf("read xent output: %w", err)
			}
			sup, err := mb.Supervision.Supervision(nnetOut.Cols)
			if err != nil {
				return fmt.Errorf("read supervision: %w", err)
			}
			denGraph, err := loadDenGraph(c.String("den-graph"), mb.DenGraph)
			if err != nil {
				return fmt.Errorf("read denominator graph: %w", err)
			}
			if err := denGraph.Validate(nnetOut.Cols); err != nil {
				return fmt.Errorf("denominator graph: %w", err)
			}
			if nnetOut.Rows != sup.NumRows() {
				return fmt.Errorf("nnet output has %d rows but supervision needs %d",
					nnetOut.Rows, sup.NumRows())
			}
			if xentOut != nil && (xentOut.Rows != nnetOut.Rows || xentOut.Cols != nnetOut.Cols) {
				return fmt.Errorf("xent output shape %dx%d does not match %dx%d",
					xentOut.Rows, xentOut.Cols, nnetOut.Rows, nnetOut.Cols)
			}

			obj := &anychain.Objective{
				Options:  opts,
				DenGraph: denGraph,
				Logger:   logger,
				Verbose:  intSetting(c, "verbose", cfg.Verbose),
			}
			if workers := intSetting(c, "workers", cfg.Workers); workers > 0 {
				obj.Pool = workerpool.New(workers)
				defer obj.Pool.Close()
			}

			var nnetDeriv, xentDeriv *anyvec.Matrix
			if c.Bool("derivs") {
				nnetDeriv = zeroLike(nnetOut)
				if xentOut != nil {
					xentDeriv = zeroLike(xentOut)
				}
			}
			res := obj.Compute(sup, nnetOut, xentOut, nnetDeriv, xentDeriv)
			logger.Debug("computed objective", "objf", res.Objf, "l2_term", res.L2Term,
				"weight", res.Weight)

			out := resultJSON{
				Objf:          res.Objf,
				L2Term:        res.L2Term,
				Weight:        res.Weight,
				XentObjf:      res.XentObjf,
				Fallback:      res.Fallback,
				DenominatorOK: res.DenominatorOK,
				NnetDeriv:     matrixToRows(nnetDeriv),
				XentDeriv:     matrixToRows(xentDeriv),
			}
			if res.Weight > 0 {
				out.ObjfPerFrame = res.Objf / res.Weight
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(&out)
		},
	}
}

func loadDenGraph(path string, inline *graphJSON) (*anyfsa.Graph, error) {
	if path == "" {
		return inline.Graph()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g *anyfsa.Graph
	if err := serializer.DeserializeAny(data, &g); err != nil {
		return nil, err
	}
	return g, nil
}

func zeroLike(m *anyvec.Matrix) *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: m.Data.Creator().MakeVector(m.Data.Len()),
		Rows: m.Rows,
		Cols: m.Cols,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
