package blob

import (
	"fmt"
	"path"
)

// Artifact file names inside a DAG directory.
const (
	GraphFile          = "DAG.dot"
	MutationConfigFile = "mutation_config.toml"
	ResultsFile        = "results.json"
	ProgramFile        = "program.yaml"
	ParamsFile         = "params.json"
	OriginalDAG        = "original_dag"
)

// Layout maps one seed of an experiment onto artifact keys:
//
//	seed_<n>/program.yaml
//	seed_<n>/dags/original_dag/DAG.dot
//	seed_<n>/dags/misspecified_dag_25/mutation_config.toml
type Layout struct {
	Seed int64
}

// SeedDir is the directory of the seed.
func (l Layout) SeedDir() string { return fmt.Sprintf("seed_%d", l.Seed) }

// DAGDir is the directory of one DAG variant of the seed.
func (l Layout) DAGDir(variant string) string {
	return path.Join(l.SeedDir(), "dags", variant)
}

// Program is the key of the seed's program.
func (l Layout) Program() string { return path.Join(l.SeedDir(), ProgramFile) }

// Graph is the key of a variant's graph file.
func (l Layout) Graph(variant string) string { return path.Join(l.DAGDir(variant), GraphFile) }

// MutationConfig is the key of a variant's mutation configuration.
func (l Layout) MutationConfig(variant string) string {
	return path.Join(l.DAGDir(variant), MutationConfigFile)
}

// Results is the key of a variant's campaign results.
func (l Layout) Results(variant string) string { return path.Join(l.DAGDir(variant), ResultsFile) }
