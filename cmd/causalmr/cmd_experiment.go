package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/blob"
	"github.com/rmax-ai/causalmr/pkg/experiment"
	"github.com/rmax-ai/causalmr/pkg/mcp"
	"github.com/rmax-ai/causalmr/pkg/store"
)

func (a *app) experimentCmd() *cobra.Command {
	var (
		campaigns bool
		jsonFmt   bool
		out       string
	)
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Generate DAGs, programs and misspecified variants under --out-dir",
		Long: "Draws one seed per DAG from --seed and writes, per seed:\n\n" +
			"  seed_<n>/program.yaml\n" +
			"  seed_<n>/dags/original_dag/{DAG.dot,mutation_config.toml}\n" +
			"  seed_<n>/dags/misspecified_dag_<pct>/{DAG.dot,mutation_config.toml}\n\n" +
			"With --campaigns every variant is also scored and results.json is written\n" +
			"next to its DAG.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("dags") {
				a.cfg.DAGs, _ = cmd.Flags().GetInt("dags")
			}

			var results store.ResultStore
			if campaigns {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				results = st
			}

			artifacts := blob.NewLocalStore(a.cfg.OutDir)
			res, err := experiment.New(artifacts, results, a.logger).Run(ctx, experiment.Options{
				Seed:         a.cfg.Seed,
				DAGs:         a.cfg.DAGs,
				Generator:    a.cfg.Generator,
				Tests:        a.cfg.Tests,
				Range:        a.cfg.Range,
				Levels:       a.cfg.Levels,
				Mutation:     a.cfg.Mutation.Options(),
				Mode:         a.cfg.ExecutionMode(),
				Workers:      a.cfg.Workers,
				RunCampaigns: campaigns,
			})
			if err != nil {
				return err
			}
			if campaigns {
				if err := a.writeMetrics(); err != nil {
					return err
				}
			}
			if jsonFmt {
				return writeJSON(cmd, res, out)
			}
			return writeOutput(cmd, experimentReport(res, artifacts.Root()), out)
		},
	}
	cmd.Flags().Int("dags", 0, "number of DAGs to generate")
	cmd.Flags().BoolVar(&campaigns, "campaigns", false, "run a mutation campaign for every DAG variant")
	cmd.Flags().BoolVar(&jsonFmt, "json", false, "output JSON")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the report to this file")
	return cmd
}

func experimentReport(res *experiment.Result, root string) []byte {
	var buf bytes.Buffer
	p := res.Params
	fmt.Fprintf(&buf, "\n--- Experiment Report: %s ---\n", root)
	fmt.Fprintf(&buf, "Master seed: %d | DAGs: %d | Avg nodes: %.2f | Avg edges: %.2f\n",
		p.MasterSeed, p.DAGs, p.AverageNodes, p.AverageEdges)
	for _, d := range res.DAGs {
		fmt.Fprintf(&buf, "\nseed_%d: %d nodes, %d edges, %d relations\n", d.Seed, d.Nodes, d.Edges, d.Relations)
		for _, v := range d.Variants {
			fmt.Fprintf(&buf, "  %-22s shd=%-3d edges=%-3d", v.Name, v.SHD, v.Edges)
			if v.Score != nil {
				fmt.Fprintf(&buf, " score=%s", v.Score)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve DAG tools and campaign results over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			a.logger.Info("mcp_serving", "version", Version)
			return mcp.NewServer(st, Version).Serve()
		},
	}
}
