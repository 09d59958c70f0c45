// Command toychain trains a small network with the chain
// objective on synthetic label sequences.
package main

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"os"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/unixpickle/anychain"
	"github.com/unixpickle/anychain/anyfsa"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/urfave/cli/v3"
)

const (
	LabelDim   = 3
	InputDim   = 6
	HiddenSize = 32
	NumFrames  = 12
)

func main() {
	app := &cli.Command{
		Name:  "toychain",
		Usage: "Train a tiny network on synthetic chain supervision",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "samples", Value: 512},
			&cli.IntFlag{Name: "batch", Value: 16},
			&cli.IntFlag{Name: "iters", Value: 300},
			&cli.FloatFlag{Name: "step", Value: 0.003},
			&cli.FloatFlag{Name: "l2-regularize", Value: 0.0005},
			&cli.FloatFlag{Name: "xent-regularize", Value: 0.1},
			&cli.IntFlag{Name: "workers", Value: 4},
		},
		Action: run,
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	creator := anyvec32.CurrentCreator()

	trunk := anynet.Net{
		anynet.NewFC(creator, InputDim, HiddenSize),
		anynet.Tanh,
	}
	chainHead := anynet.NewFC(creator, HiddenSize, LabelDim)
	xentHead := anynet.Net{
		anynet.NewFC(creator, HiddenSize, LabelDim),
		anynet.LogSoftmax,
	}
	var params []*anydiff.Var
	params = append(params, trunk.Parameters()...)
	params = append(params, chainHead.Parameters()...)
	params = append(params, xentHead.Parameters()...)

	opts := anychain.DefaultOptions()
	opts.L2Regularize = c.Float("l2-regularize")
	opts.XentRegularize = c.Float("xent-regularize")
	if err := opts.Validate(); err != nil {
		return err
	}

	pool := workerpool.New(c.Int("workers"))
	defer pool.Close()

	t := &anychain.Trainer{
		Func: func(in anydiff.Res, rows int) (anydiff.Res, anydiff.Res) {
			hidden := trunk.Apply(in, rows)
			return chainHead.Apply(hidden, rows), xentHead.Apply(hidden, rows)
		},
		Params: params,
		Objective: &anychain.Objective{
			Options:  opts,
			DenGraph: unigramGraph(),
			Pool:     pool,
		},
		LabelDim: LabelDim,
		Average:  true,
	}

	samples := syntheticSamples(creator, c.Int("samples"))
	adam := &anysgd.Adam{}
	batchSize := c.Int("batch")
	idx := samples.Len()

	slog.Info("training", "samples", samples.Len(), "batch", batchSize,
		"iters", c.Int("iters"))
	for iter := 0; iter < c.Int("iters"); iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if idx+batchSize > samples.Len() {
			anysgd.Shuffle(samples)
			idx = 0
		}
		batch, err := t.Fetch(samples.Slice(idx, idx+batchSize))
		if err != nil {
			return err
		}
		idx += batchSize

		grad := adam.Transform(t.Gradient(batch))
		grad.Scale(creator.MakeNumeric(-c.Float("step")))
		grad.AddToVars()

		if iter%20 == 0 {
			slog.Info("iteration", "iter", iter, "cost", t.LastCost,
				"objf", t.LastResult.Objf, "fallback", t.LastResult.Fallback)
		}
	}
	slog.Info("done", "stats", t.Stats.String())
	return nil
}

// unigramGraph accepts any label sequence with uniform
// transition weights.
func unigramGraph() *anyfsa.Graph {
	g := anyfsa.NewGraph(1)
	g.SetInitial(0, 0)
	g.SetFinal(0, 0)
	for label := 0; label < LabelDim; label++ {
		g.AddArc(0, 0, label, -math.Log(LabelDim))
	}
	return g
}

// alignmentGraph accepts exactly the given frame labels.
func alignmentGraph(labels []int) *anyfsa.Graph {
	g := anyfsa.NewGraph(len(labels) + 1)
	g.SetInitial(0, 0)
	g.SetFinal(len(labels), 0)
	for i, label := range labels {
		g.AddArc(i, i+1, label, 0)
	}
	return g
}

// syntheticSamples produces sequences of runs of labels,
// where each frame is a noisy encoding of its label.
func syntheticSamples(c anyvec.Creator, count int) *anychain.SliceSampleList {
	res := &anychain.SliceSampleList{C: c}
	for i := 0; i < count; i++ {
		labels := make([]int, NumFrames)
		label := rand.Intn(LabelDim)
		for t := range labels {
			if rand.Intn(4) == 0 {
				label = rand.Intn(LabelDim)
			}
			labels[t] = label
		}
		input := make([]anyvec.Vector, NumFrames)
		for t, label := range labels {
			frame := make([]float64, InputDim)
			for j := range frame {
				frame[j] = rand.NormFloat64() * 0.3
			}
			frame[label] += 1
			frame[LabelDim+(label+1)%LabelDim] -= 1
			input[t] = c.MakeVectorData(c.MakeNumericList(frame))
		}
		res.Samples = append(res.Samples, &anychain.Sample{
			Input:       input,
			Supervision: alignmentGraph(labels),
		})
	}
	return res
}
