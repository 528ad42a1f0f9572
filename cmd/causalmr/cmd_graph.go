package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/relation"
)

func (a *app) generateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random causal DAG in DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.Generator
			f := cmd.Flags()
			if f.Changed("nodes") {
				opts.Nodes, _ = f.GetInt("nodes")
			}
			if f.Changed("p-edge") {
				opts.PEdge, _ = f.GetFloat64("p-edge")
			}
			if f.Changed("p-conditional") {
				opts.PConditional, _ = f.GetFloat64("p-conditional")
			}

			g, err := generator.Generate(rand.New(rand.NewSource(a.cfg.Seed)), opts)
			if err != nil {
				return err
			}
			dot, err := graph.MarshalDOT(g, graph.Metadata{
				"seed":          a.cfg.Seed,
				"p_edge":        opts.PEdge,
				"p_conditional": opts.PConditional,
			})
			if err != nil {
				return err
			}
			a.logger.Info("dag_generated", "seed", a.cfg.Seed, "nodes", g.NumNodes(), "edges", g.NumEdges())
			return writeOutput(cmd, dot, out)
		},
	}
	cmd.Flags().Int("nodes", 0, "number of variables")
	cmd.Flags().Float64("p-edge", 0, "edge probability")
	cmd.Flags().Float64("p-conditional", 0, "probability that a non-terminal sink is conditional")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the DAG to this file")
	return cmd
}

func (a *app) mutateCmd() *cobra.Command {
	var (
		out     string
		pInvert float64
	)
	cmd := &cobra.Command{
		Use:   "mutate DAG.dot",
		Short: "Write a misspecified copy of a DAG",
		Long: "Each causal edge and each non-causal pair is toggled with probability\n" +
			"--p-invert. Edges whose insertion would close a cycle are never added.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pInvert < 0 || pInvert > 1 {
				return fmt.Errorf("%w: p-invert %v not in [0,1]", generator.ErrInvalidOptions, pInvert)
			}
			g, meta, err := readDAG(args[0])
			if err != nil {
				return err
			}
			seed := a.dagSeed(cmd, meta)
			m := generator.Misspecify(g, []float64{pInvert}, seed)[0]
			dot, err := graph.MarshalDOT(m.Graph, m.Metadata(seed))
			if err != nil {
				return err
			}
			a.logger.Info("dag_mutated", "p_invert", pInvert, "shd", m.SHD, "edges", m.Graph.NumEdges())
			return writeOutput(cmd, dot, out)
		},
	}
	cmd.Flags().Float64Var(&pInvert, "p-invert", 0.25, "probability of toggling each edge or non-edge")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the DAG to this file")
	return cmd
}

func (a *app) relationsCmd() *cobra.Command {
	var (
		out     string
		jsonFmt bool
	)
	cmd := &cobra.Command{
		Use:   "relations DAG.dot",
		Short: "List the metamorphic relations implied by a DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := readDAG(args[0])
			if err != nil {
				return err
			}
			rels := relation.Derive(g)
			if jsonFmt {
				return writeJSON(cmd, rels, out)
			}
			var b strings.Builder
			for _, r := range rels {
				b.WriteString(r.ID())
				b.WriteByte('\n')
			}
			a.logger.Debug("relations_derived", "count", len(rels))
			return writeOutput(cmd, []byte(b.String()), out)
		},
	}
	cmd.Flags().BoolVar(&jsonFmt, "json", false, "output JSON")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file")
	return cmd
}

func (a *app) mutationConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "mutation-config DAG.dot",
		Short: "Write the mutation-testing configuration for a DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := readDAG(args[0])
			if err != nil {
				return err
			}
			opts := a.mutationOptions(cmd)
			spec := mutation.FromGraph(g, opts)
			doc, err := spec.MarshalTOML()
			if err != nil {
				return err
			}
			a.logger.Info("mutation_config_written",
				"deletions", spec.Count(mutation.OpDeleteEdge),
				"insertions", spec.Count(mutation.OpInsertEdge),
			)
			return writeOutput(cmd, doc, out)
		},
	}
	cmd.Flags().String("module-path", "", "module the executor mutates")
	cmd.Flags().String("test-command", "", "command the executor runs per mutant")
	cmd.Flags().Float64("timeout", 0, "per-mutant timeout in seconds")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file")
	return cmd
}

func (a *app) mutationOptions(cmd *cobra.Command) mutation.Options {
	opts := a.cfg.Mutation.Options()
	f := cmd.Flags()
	if f.Changed("module-path") {
		opts.ModulePath, _ = f.GetString("module-path")
	}
	if f.Changed("test-command") {
		opts.TestCommand, _ = f.GetString("test-command")
	}
	if f.Changed("timeout") {
		opts.Timeout, _ = f.GetFloat64("timeout")
	}
	return opts
}

// dagSeed picks the sampling seed for a DAG file: an explicit --seed, then
// the seed recorded in the file, then the configured seed.
func (a *app) dagSeed(cmd *cobra.Command, meta graph.Metadata) int64 {
	if cmd.Flags().Changed("seed") {
		return a.cfg.Seed
	}
	switch v := meta["seed"].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return a.cfg.Seed
}
