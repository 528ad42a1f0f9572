// Package config loads causalmr run configuration: a YAML file, then
// CAUSALMR_* environment overrides, then validation. Command-line flags are
// applied by the caller on top of the loaded value.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/logging"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/sampler"
)

const (
	defaultNodes   = 10
	defaultPEdge   = 0.25
	defaultDAGs    = 1
	defaultWorkers = 4
	defaultOutDir  = "out"
	defaultDBName  = "causalmr.db"
)

// Config is the full run configuration.
type Config struct {
	Seed      int64             `yaml:"seed"`
	Generator generator.Options `yaml:"generator"`
	Tests     int               `yaml:"tests" validate:"min=1"`
	Range     sampler.Range     `yaml:"range"`
	Mode      string            `yaml:"mode" validate:"oraclemode"`

	// DAGs is the number of DAGs an experiment generates from Seed.
	DAGs   int       `yaml:"dags" validate:"min=1"`
	Levels []float64 `yaml:"misspecification_levels" validate:"dive,gt=0,lte=1"`

	Workers   int    `yaml:"workers" validate:"min=1"`
	OutDir    string `yaml:"out_dir" validate:"required"`
	DBPath    string `yaml:"db_path"`
	RedisAddr string `yaml:"redis_addr"`
	// MetricsFile, when set, receives campaign metrics in Prometheus text
	// format.
	MetricsFile string `yaml:"metrics_file"`

	Mutation MutationConfig `yaml:"mutation"`
	Log      LogConfig      `yaml:"log"`
}

// MutationConfig overrides the mutation configuration defaults.
type MutationConfig struct {
	ModulePath  string  `yaml:"module_path"`
	TestCommand string  `yaml:"test_command"`
	Timeout     float64 `yaml:"timeout" validate:"gt=0"`
}

// Options converts to mutation.Options.
func (m MutationConfig) Options() mutation.Options {
	return mutation.Options{ModulePath: m.ModulePath, TestCommand: m.TestCommand, Timeout: m.Timeout}
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Logging converts to logging.Config. Level must already be valid.
func (l LogConfig) Logging(component string) logging.Config {
	level, _ := logging.ParseLevel(l.Level)
	return logging.Config{Level: level, JSON: l.Format == "json", Component: component}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("oraclemode", func(fl validator.FieldLevel) bool {
		_, err := oracle.ParseMode(fl.Field().String())
		return err == nil
	})
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Generator: generator.Options{Nodes: defaultNodes, PEdge: defaultPEdge},
		Tests:     oracle.DefaultTests,
		Range:     sampler.DefaultRange,
		Mode:      "fail-fast",
		DAGs:      defaultDAGs,
		Levels:    append([]float64(nil), generator.DefaultLevels...),
		Workers:   defaultWorkers,
		OutDir:    defaultOutDir,
		Mutation: MutationConfig{
			ModulePath:  mutation.DefaultModulePath,
			TestCommand: mutation.DefaultTestCommand,
			Timeout:     mutation.DefaultTimeout,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (skipped when empty) over the defaults, applies
// environment overrides, resolves relative paths against the working
// directory and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}
	cfg.OutDir = resolvePath(cfg.OutDir, cwd)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.OutDir, defaultDBName)
	}
	cfg.DBPath = resolvePath(cfg.DBPath, cwd)
	cfg.MetricsFile = resolvePath(cfg.MetricsFile, cwd)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExecutionMode parses Mode. Mode is validated by Load.
func (c Config) ExecutionMode() oracle.Mode {
	m, _ := oracle.ParseMode(c.Mode)
	return m
}

// OracleOptions returns the sampling options for a DAG seeded with seed.
func (c Config) OracleOptions(seed int64) oracle.Options {
	return oracle.Options{Tests: c.Tests, Range: c.Range, Seed: seed}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CAUSALMR_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CAUSALMR_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("CAUSALMR_TESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CAUSALMR_TESTS: %w", err)
		}
		cfg.Tests = n
	}
	if v := os.Getenv("CAUSALMR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CAUSALMR_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	cfg.Mode = envOrDefault("CAUSALMR_MODE", cfg.Mode)
	cfg.OutDir = envOrDefault("CAUSALMR_OUT_DIR", cfg.OutDir)
	cfg.DBPath = envOrDefault("CAUSALMR_DB_PATH", cfg.DBPath)
	cfg.RedisAddr = envOrDefault("CAUSALMR_REDIS_ADDR", cfg.RedisAddr)
	cfg.MetricsFile = envOrDefault("CAUSALMR_METRICS_FILE", cfg.MetricsFile)
	cfg.Log.Level = strings.ToLower(envOrDefault("CAUSALMR_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(envOrDefault("CAUSALMR_LOG_FORMAT", cfg.Log.Format))
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
