package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/blob"
	"github.com/rmax-ai/causalmr/pkg/campaign"
	"github.com/rmax-ai/causalmr/pkg/experiment"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/program"
	"github.com/rmax-ai/causalmr/pkg/reports"
	"github.com/rmax-ai/causalmr/pkg/score"
)

// campaignName derives a campaign name from a DAG path. Experiment layouts
// store every variant as DAG.dot, so those are named by their directory.
func campaignName(dagPath string) string {
	if filepath.Base(dagPath) == blob.GraphFile {
		return filepath.ToSlash(filepath.Dir(filepath.Clean(dagPath)))
	}
	return strings.TrimSuffix(filepath.Base(dagPath), filepath.Ext(dagPath))
}

func (a *app) campaignCmd() *cobra.Command {
	var (
		progPath    string
		saveProgram string
		name        string
		out         string
		jsonFmt     bool
	)
	cmd := &cobra.Command{
		Use:   "campaign DAG.dot",
		Short: "Run a mutation campaign and score the DAG's relations",
		Long: "Runs the baseline program and one mutant per edge deletion and edge\n" +
			"insertion of the DAG, stores every result record and scores them.\n" +
			"Without --program a linear program is synthesized from the DAG.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, meta, err := readDAG(args[0])
			if err != nil {
				return err
			}
			seed := a.dagSeed(cmd, meta)
			if name == "" {
				name = campaignName(args[0])
			}

			var prog *program.Linear
			if progPath != "" {
				if prog, err = program.Load(progPath); err != nil {
					return err
				}
			} else {
				suite, err := oracle.Prepare(g, a.cfg.OracleOptions(seed))
				if err != nil {
					return err
				}
				var attempts int
				if prog, attempts, err = experiment.Synthesize(ctx, g, suite, seed, 0); err != nil {
					return err
				}
				a.logger.Info("program_synthesized", "attempts", attempts)
			}
			if saveProgram != "" {
				doc, err := prog.Marshal()
				if err != nil {
					return err
				}
				if err := writeOutput(cmd, doc, saveProgram); err != nil {
					return err
				}
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := campaign.NewRunner(st, a.logger).Run(ctx, campaign.Campaign{
				Name:     name,
				Graph:    g,
				Program:  prog,
				Oracle:   a.cfg.OracleOptions(seed),
				Mutation: a.cfg.Mutation.Options(),
				Mode:     a.cfg.ExecutionMode(),
				Workers:  a.cfg.Workers,
			})
			if err != nil {
				return err
			}
			if err := a.writeMetrics(); err != nil {
				return err
			}
			if jsonFmt {
				return writeJSON(cmd, res, out)
			}
			return writeOutput(cmd, campaignReport(res), out)
		},
	}
	cmd.Flags().StringVar(&progPath, "program", "", "linear program YAML (default: synthesized)")
	cmd.Flags().StringVar(&saveProgram, "save-program", "", "write the program used to this file")
	cmd.Flags().StringVar(&name, "name", "", "campaign name (default: DAG file name, or its directory for "+blob.GraphFile+")")
	cmd.Flags().BoolVar(&jsonFmt, "json", false, "output JSON")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the report to this file")
	return cmd
}

func (a *app) writeMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	if err := campaign.WriteMetrics(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.logger.Debug("metrics_written", "path", a.cfg.MetricsFile)
	return nil
}

func campaignReport(res *campaign.Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n--- Campaign Report: %s ---\n", res.Campaign)
	fmt.Fprintf(&buf, "Duration: %s | Seed: %d | Mode: %s\n", res.Duration, res.Seed, res.Mode)
	fmt.Fprintf(&buf, "Relations: %d | Tests per relation: %d | Deletions: %d | Insertions: %d\n",
		res.Relations, res.Tests, res.Deletions, res.Insertions)
	writeSummary(&buf, res.Summary)
	if len(res.Errors) > 0 {
		buf.WriteString("\nAborted jobs:\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&buf, "[ERROR] %s %s: %s\n", e.Job, e.Mutation, e.Error)
		}
	}
	return buf.Bytes()
}

func writeSummary(w io.Writer, s score.Summary) {
	fmt.Fprintf(w, "Mutation score: %s\n", s.Score)
	fmt.Fprintf(w, "Baseline failures: %d\n", s.BaselineFailed)
	fmt.Fprintf(w, "TP: %d | FP: %d | TN: %d | FN: %d | Contradictory jobs: %d\n",
		s.TruePositives, s.FalsePositives, s.TrueNegatives, s.FalseNegatives, s.Contradictory)
}

func (a *app) scoreCmd() *cobra.Command {
	var (
		name    string
		records string
		out     string
		jsonFmt bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a campaign from stored or exported result records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				summary score.Summary
				err     error
			)
			switch {
			case records != "":
				summary, err = scoreFile(records)
			case name != "":
				st, serr := a.openStore(cmd.Context())
				if serr != nil {
					return serr
				}
				defer st.Close()
				summary, err = campaign.NewRunner(st, a.logger).Score(cmd.Context(), name)
			default:
				return errors.New("one of --campaign or --records is required")
			}
			if err != nil {
				return err
			}
			if jsonFmt {
				return writeJSON(cmd, summary, out)
			}
			var buf bytes.Buffer
			writeSummary(&buf, summary)
			return writeOutput(cmd, buf.Bytes(), out)
		},
	}
	cmd.Flags().StringVar(&name, "campaign", "", "campaign name in the result store")
	cmd.Flags().StringVar(&records, "records", "", "JSON file holding an array of result records")
	cmd.Flags().BoolVar(&jsonFmt, "json", false, "output JSON")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file")
	cmd.MarkFlagsMutuallyExclusive("campaign", "records")
	return cmd
}

func scoreFile(path string) (score.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return score.Summary{}, fmt.Errorf("failed to read records: %w", err)
	}
	jobs, err := reports.DecodeRecords(data)
	if err != nil {
		return score.Summary{}, err
	}
	baseline, mutants := score.Split(jobs)
	return score.Score(baseline, mutants)
}

func (a *app) reportCmd() *cobra.Command {
	var (
		name       string
		reportType string
		format     string
		kind       string
		rel        string
		failedOnly bool
		out        string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a campaign's records as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := reports.NewReportGenerator(reports.ReportType(reportType), st)
			if err != nil {
				return err
			}
			filters := map[string]interface{}{}
			if kind != "" {
				filters["kind"] = kind
			}
			if rel != "" {
				filters["relation"] = rel
			}
			if failedOnly {
				filters["failed_only"] = true
			}
			r, err := gen.Generate(cmd.Context(), reports.ReportParams{
				Campaign: name,
				Format:   reports.ReportFormat(format),
				Filters:  filters,
			})
			if err != nil {
				return err
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			return writeOutput(cmd, data, out)
		},
	}
	cmd.Flags().StringVar(&name, "campaign", "", "campaign name")
	cmd.Flags().StringVar(&reportType, "type", string(reports.ReportTypeRelations), "report type: relations|jobs|failures")
	cmd.Flags().StringVar(&format, "format", string(reports.ReportFormatCSV), "output format: csv|json")
	cmd.Flags().StringVar(&kind, "kind", "", "only baseline or mutant records")
	cmd.Flags().StringVar(&rel, "relation", "", "only this relation id")
	cmd.Flags().BoolVar(&failedOnly, "failed-only", false, "only failed relations")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}
