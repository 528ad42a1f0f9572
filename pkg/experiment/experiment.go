// Package experiment drives the evaluation study: DAGs drawn from a master
// seed, a program synthesized for each, misspecified copies at several
// inversion levels, and optionally a mutation campaign per variant.
//
// Artifacts are laid out per seed:
//
//	seed_<n>/program.yaml
//	seed_<n>/dags/original_dag/{DAG.dot,mutation_config.toml,results.json}
//	seed_<n>/dags/misspecified_dag_25/...
//	params.json
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/causalmr/pkg/blob"
	"github.com/rmax-ai/causalmr/pkg/campaign"
	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/logging"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/program"
	"github.com/rmax-ai/causalmr/pkg/reports"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// ErrNoProgram is returned when no synthesized program passes every
// relation of its own DAG within MaxAttempts tries.
var ErrNoProgram = errors.New("no program satisfies the DAG")

// Experiment runs experiments against an artifact store and, when
// campaigns are enabled, a result store.
type Experiment struct {
	artifacts blob.ArtifactStore
	results   store.ResultStore
	logger    *slog.Logger
}

// New returns an experiment writing to artifacts. results may be nil if
// campaigns are never run.
func New(artifacts blob.ArtifactStore, results store.ResultStore, logger *slog.Logger) *Experiment {
	return &Experiment{artifacts: artifacts, results: results, logger: logging.OrDiscard(logger)}
}

// Seeds draws n DAG seeds from the master seed.
func Seeds(master int64, n int) []int64 {
	rng := rand.New(rand.NewSource(master))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	return seeds
}

// Run generates opts.DAGs DAGs, at most opts.Workers at a time.
func (e *Experiment) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.DAGs < 1 {
		return nil, fmt.Errorf("%w: dags must be positive, got %d", generator.ErrInvalidOptions, opts.DAGs)
	}
	if opts.RunCampaigns && e.results == nil {
		return nil, errors.New("campaigns require a result store")
	}
	if len(opts.Levels) == 0 {
		opts.Levels = generator.DefaultLevels
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	seeds := Seeds(opts.Seed, opts.DAGs)
	res := &Result{DAGs: make([]DAGResult, len(seeds))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range seeds {
		g.Go(func() error {
			d, err := e.runSeed(gctx, opts, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			mu.Lock()
			res.DAGs[i] = *d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Params = params(opts, seeds, res.DAGs)
	data, err := reports.Canonical(res.Params)
	if err != nil {
		return nil, err
	}
	if err := blob.PutBytes(ctx, e.artifacts, blob.ParamsFile, data); err != nil {
		return nil, err
	}
	e.logger.Info("experiment_finished",
		"dags", len(seeds),
		"average_nodes", res.Params.AverageNodes,
		"average_edges", res.Params.AverageEdges,
	)
	return res, nil
}

func params(opts Options, seeds []int64, dags []DAGResult) Params {
	p := Params{
		MasterSeed: opts.Seed,
		DAGs:       opts.DAGs,
		Generator:  opts.Generator,
		Tests:      opts.Tests,
		Range:      opts.Range,
		Levels:     opts.Levels,
		Seeds:      seeds,
	}
	if p.Tests == 0 {
		p.Tests = oracle.DefaultTests
	}
	for _, d := range dags {
		p.AverageNodes += float64(d.Nodes)
		p.AverageEdges += float64(d.Edges)
	}
	p.AverageNodes /= float64(len(dags))
	p.AverageEdges /= float64(len(dags))
	return p
}

type variantGraph struct {
	v    Variant
	g    *graph.Graph
	meta graph.Metadata
}

func (e *Experiment) runSeed(ctx context.Context, opts Options, seed int64) (*DAGResult, error) {
	logger := e.logger.With("seed", seed)
	layout := blob.Layout{Seed: seed}

	g, err := generator.Generate(rand.New(rand.NewSource(seed)), opts.Generator)
	if err != nil {
		return nil, err
	}
	oracleOpts := oracle.Options{Tests: opts.Tests, Range: opts.Range, Seed: seed}
	suite, err := oracle.Prepare(g, oracleOpts)
	if err != nil {
		return nil, err
	}

	prog, attempts, err := Synthesize(ctx, g, suite, seed, opts.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if attempts > 1 {
		logger.Debug("programs_rejected", "rejected", attempts-1)
	}
	doc, err := prog.Marshal()
	if err != nil {
		return nil, err
	}
	if err := blob.PutBytes(ctx, e.artifacts, layout.Program(), doc); err != nil {
		return nil, err
	}

	d := &DAGResult{
		Seed:      seed,
		Nodes:     g.NumNodes(),
		Edges:     g.NumEdges(),
		Relations: len(suite.Relations),
		Attempts:  attempts,
	}

	variants := []variantGraph{{
		v:    Variant{Name: blob.OriginalDAG, Edges: g.NumEdges()},
		g:    g,
		meta: graph.Metadata{"seed": seed, "attempts": attempts},
	}}
	for _, m := range generator.Misspecify(g, opts.Levels, seed) {
		variants = append(variants, variantGraph{
			v:    Variant{Name: m.Dir(), PInvert: m.PInvert, SHD: m.SHD, Edges: m.Graph.NumEdges()},
			g:    m.Graph,
			meta: m.Metadata(seed),
		})
	}

	for _, vt := range variants {
		v := vt.v
		if err := e.writeVariant(ctx, layout, v.Name, vt.g, vt.meta, opts.Mutation); err != nil {
			return nil, err
		}
		if opts.RunCampaigns {
			if err := e.runCampaign(ctx, opts, layout, &v, vt.g, prog, seed); err != nil {
				return nil, err
			}
		}
		d.Variants = append(d.Variants, v)
	}

	logger.Info("dag_generated", "nodes", d.Nodes, "edges", d.Edges, "relations", d.Relations)
	return d, nil
}

// Synthesize draws programs until one passes every relation of the suite
// and returns it with the number of attempts made. maxAttempts < 1 means 10.
// The structure only fixes which variables a sink reads, so a program can
// still cancel a dependency (a conditional sink folding two values onto one).
func Synthesize(ctx context.Context, g *graph.Graph, suite *oracle.Suite, seed int64, maxAttempts int) (*program.Linear, int, error) {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	rng := rand.New(rand.NewSource(seed))
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p := program.Synthesize(g, rng)
		outcomes, err := suite.Run(ctx, p, oracle.FailFast)
		if err != nil {
			if ctx.Err() != nil {
				return nil, attempt, ctx.Err()
			}
			continue
		}
		if len(oracle.Failed(outcomes)) == 0 {
			return p, attempt, nil
		}
	}
	return nil, maxAttempts, fmt.Errorf("%w after %d attempts", ErrNoProgram, maxAttempts)
}

func (e *Experiment) writeVariant(ctx context.Context, layout blob.Layout, name string, g *graph.Graph, meta graph.Metadata, opts mutation.Options) error {
	dot, err := graph.MarshalDOT(g, meta)
	if err != nil {
		return err
	}
	if err := blob.PutBytes(ctx, e.artifacts, layout.Graph(name), dot); err != nil {
		return err
	}
	doc, err := mutation.FromGraph(g, opts).MarshalTOML()
	if err != nil {
		return err
	}
	return blob.PutBytes(ctx, e.artifacts, layout.MutationConfig(name), doc)
}

func (e *Experiment) runCampaign(ctx context.Context, opts Options, layout blob.Layout, v *Variant, g *graph.Graph, prog *program.Linear, seed int64) error {
	runner := campaign.NewRunner(e.results, e.logger)
	res, err := runner.Run(ctx, campaign.Campaign{
		Name:     layout.DAGDir(v.Name),
		Graph:    g,
		Program:  prog,
		Oracle:   oracle.Options{Tests: opts.Tests, Range: opts.Range, Seed: seed},
		Mutation: opts.Mutation,
		Mode:     opts.Mode,
		Workers:  opts.Workers,
	})
	if err != nil {
		return err
	}

	data, err := reports.Canonical(res)
	if err != nil {
		return err
	}
	if err := blob.PutBytes(ctx, e.artifacts, layout.Results(v.Name), data); err != nil {
		return err
	}
	digest, err := reports.Digest(res.Summary)
	if err != nil {
		return err
	}
	v.Digest = digest
	v.Score = &res.Summary.Score
	v.Result = res
	return nil
}
