package main

import (
	"context"
	"fmt"
	"os"

	"github.com/unixpickle/serializer"
	"github.com/urfave/cli/v3"
)

func packGraphCmd() *cli.Command {
	return &cli.Command{
		Name:  "pack-graph",
		Usage: "Convert a JSON graph into the serialized form read by --den-graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"in"},
				Usage:   "Graph JSON path, or - for stdin",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"out"},
				Usage:    "Output path",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var g graphJSON
			if err := readInput(c.String("input"), &g); err != nil {
				return fmt.Errorf("read graph: %w", err)
			}
			graph, err := g.Graph()
			if err != nil {
				return fmt.Errorf("read graph: %w", err)
			}
			data, err := serializer.SerializeAny(graph)
			if err != nil {
				return fmt.Errorf("serialize graph: %w", err)
			}
			if err := os.WriteFile(c.String("output"), data, 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote graph with %d states and %d arcs to %s\n", graph.NumStates,
				len(graph.Arcs), c.String("output"))
			return nil
		},
	}
}
