package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/program"
	"github.com/rmax-ai/causalmr/pkg/reports"
	"github.com/rmax-ai/causalmr/pkg/store"
)

func (a *app) testCmd() *cobra.Command {
	var (
		progPath string
		execLine string
		record   string
		name     string
	)
	cmd := &cobra.Command{
		Use:   "test DAG.dot",
		Short: "Run a DAG's metamorphic relations against a program",
		Long: "Samples tests for every relation of the DAG and runs them against either a\n" +
			"linear program (--program) or an external command (--exec) that reads the\n" +
			"inputs as JSON on stdin and prints the sink values as JSON on stdout.\n" +
			"Exits 1 when any relation fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, meta, err := readDAG(args[0])
			if err != nil {
				return err
			}
			prog, err := loadProgram(progPath, execLine)
			if err != nil {
				return err
			}
			if prog == nil {
				return errors.New("one of --program or --exec is required")
			}

			seed := a.dagSeed(cmd, meta)
			suite, err := oracle.Prepare(g, a.cfg.OracleOptions(seed))
			if err != nil {
				return err
			}
			started := time.Now().UTC()
			outcomes, err := suite.Run(cmd.Context(), prog, a.cfg.ExecutionMode())
			if err != nil {
				return err
			}
			finished := time.Now().UTC()

			var buf bytes.Buffer
			for _, o := range outcomes {
				if o.Passed {
					fmt.Fprintf(&buf, "[PASS] %s (%d/%d tests failed)\n", o.Relation.ID(), len(o.Failures), o.Total)
					continue
				}
				fmt.Fprintf(&buf, "[FAIL] %v\n", oracle.Verdict(o.Relation, o.Failures, o.Total))
			}
			failed := len(oracle.Failed(outcomes))
			fmt.Fprintf(&buf, "\n%d relations, %d failed\n", len(outcomes), failed)
			if err := writeOutput(cmd, buf.Bytes(), ""); err != nil {
				return err
			}

			if record != "" {
				job := oracle.Record(outcomes)
				job.Campaign = name
				if job.Campaign == "" {
					job.Campaign = campaignName(args[0])
				}
				job.JobID = store.BaselineJobID
				job.Kind = store.JobKindBaseline
				job.Seed = seed
				job.StartedAt, job.FinishedAt = started, finished
				if err := reports.ValidateJob(job); err != nil {
					return err
				}
				if err := writeJSON(cmd, []*store.JobResult{job}, record); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errRelationsFailed, failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&progPath, "program", "", "linear program YAML")
	cmd.Flags().StringVar(&execLine, "exec", "", "external program command line")
	cmd.Flags().StringVar(&record, "record", "", "write the result record to this file")
	cmd.Flags().StringVar(&name, "name", "", "campaign name stored in the record (default: DAG file name)")
	cmd.MarkFlagsMutuallyExclusive("program", "exec")
	return cmd
}

// loadProgram returns the program selected by the flags, or nil when
// neither is set.
func loadProgram(progPath, execLine string) (oracle.Program, error) {
	switch {
	case progPath != "":
		return program.Load(progPath)
	case execLine != "":
		argv := strings.Fields(execLine)
		if len(argv) == 0 {
			return nil, errors.New("--exec is empty")
		}
		return &program.Exec{Argv: argv}, nil
	}
	return nil, nil
}
