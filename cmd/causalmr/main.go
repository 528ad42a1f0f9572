package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/config"
	"github.com/rmax-ai/causalmr/pkg/logging"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	exitSuccess = 0
	exitFailed  = 1
	exitError   = 2
)

// errRelationsFailed makes the process exit with exitFailed: the run
// itself worked but the program did not satisfy every relation.
var errRelationsFailed = errors.New("relations failed")

type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errRelationsFailed) {
			os.Exit(exitFailed)
		}
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "causalmr",
		Short:             "Causal metamorphic testing: DAGs, relations, oracles and mutation scores",
		Version:           fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", os.Getenv("CAUSALMR_CONFIG"), "path to YAML config")
	f.Int64("seed", 0, "random seed")
	f.Int("tests", 0, "tests sampled per relation")
	f.String("mode", "", "evaluation error handling: fail-fast|tolerant")
	f.Int("workers", 0, "parallel jobs")
	f.String("out-dir", "", "experiment output directory")
	f.String("db", "", "path to the SQLite result store")
	f.String("redis", "", "Redis address; used instead of SQLite when set")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	f.String("log-level", "", "log level: debug|info|warn|error")
	f.String("log-format", "", "log format: text|json")

	root.AddCommand(
		a.generateCmd(),
		a.mutateCmd(),
		a.relationsCmd(),
		a.testCmd(),
		a.mutationConfigCmd(),
		a.campaignCmd(),
		a.scoreCmd(),
		a.reportCmd(),
		a.experimentCmd(),
		a.mcpCmd(),
	)
	return root
}

// load builds the configuration: file, then environment, then flags.
func (a *app) load(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("tests") {
		cfg.Tests, _ = f.GetInt("tests")
	}
	if f.Changed("mode") {
		cfg.Mode, _ = f.GetString("mode")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("out-dir") {
		dir, _ := f.GetString("out-dir")
		if cfg.OutDir, err = filepath.Abs(dir); err != nil {
			return err
		}
		if !f.Changed("db") {
			cfg.DBPath = filepath.Join(cfg.OutDir, "causalmr.db")
		}
	}
	if f.Changed("db") {
		db, _ := f.GetString("db")
		if cfg.DBPath, err = filepath.Abs(db); err != nil {
			return err
		}
	}
	if f.Changed("redis") {
		cfg.RedisAddr, _ = f.GetString("redis")
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile, _ = f.GetString("metrics-file")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	lc := cfg.Log.Logging("causalmr")
	lc.Output = cmd.ErrOrStderr()
	a.logger = logging.New(lc)
	return nil
}
