// Package campaign runs a mutation campaign: the baseline program and every
// mutant of it against one shared relation suite, with results persisted to
// a store and scored from there.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/causalmr/pkg/logging"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// ErrBaseline is returned when the baseline job cannot complete.
var ErrBaseline = errors.New("baseline job failed")

// Runner executes campaigns.
type Runner struct {
	store  store.ResultStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner returns a runner persisting to st. A nil logger discards.
func NewRunner(st store.ResultStore, logger *slog.Logger) *Runner {
	return &Runner{
		store:  st,
		logger: logging.OrDiscard(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run prepares the relation suite of c.Graph, runs the baseline, then every
// mutant job with at most c.Workers in flight, and scores the stored
// records. Any records already stored under c.Name are removed first. Mutant
// jobs that abort are reported in Result.Errors; a baseline that aborts
// fails the whole campaign.
func (r *Runner) Run(ctx context.Context, c Campaign) (*Result, error) {
	start := r.now()
	if c.Name == "" {
		return nil, errors.New("campaign name is required")
	}
	if c.Program == nil {
		return nil, errors.New("campaign program is required")
	}

	suite, err := oracle.Prepare(c.Graph, c.Oracle)
	if err != nil {
		return nil, fmt.Errorf("prepare suite: %w", err)
	}

	spec := mutation.FromGraph(c.Graph, c.Mutation)
	rec, err := spec.Record(c.Name)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = start
	// Records of an earlier run under the same name would be scored with
	// this run's baseline.
	if err := r.store.DeleteCampaign(ctx, c.Name); err != nil {
		return nil, fmt.Errorf("reset campaign %s: %w", c.Name, err)
	}
	if err := r.store.SaveMutationSpec(ctx, rec); err != nil {
		return nil, err
	}
	jobs, err := spec.Jobs(c.Name)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("campaign", c.Name)
	logger.Info("campaign_started",
		"relations", len(suite.Relations),
		"mutants", len(jobs),
		"mode", c.Mode.String(),
	)

	baseline, err := r.runJob(ctx, c, suite, store.BaselineJobID, nil, c.Program)
	if err != nil {
		JobsTotal.WithLabelValues(string(store.JobKindBaseline), "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrBaseline, err)
	}
	observeJob(baseline, nil)
	if n := baseline.FailedCount(); n > 0 {
		logger.Warn("baseline_relations_failed", "failed", n)
	}

	res := &Result{
		Campaign:   c.Name,
		Seed:       c.Oracle.Seed,
		Mode:       c.Mode.String(),
		Relations:  len(suite.Relations),
		Tests:      testsPerRelation(suite),
		Deletions:  rec.Deletions,
		Insertions: rec.Insertions,
	}

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		g.Go(func() error {
			record, err := r.runMutant(gctx, c, suite, job)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				JobsTotal.WithLabelValues(string(store.JobKindMutant), "error").Inc()
				logger.Warn("mutant_aborted", "job", job.ID, "mutation", job.String(), "error", err)
				mu.Lock()
				res.Errors = append(res.Errors, JobError{Job: job.ID, Mutation: job.String(), Error: err.Error()})
				mu.Unlock()
				return nil
			}
			cls, err := score.Classify(baseline, record)
			if err != nil {
				return err
			}
			killed := cls.Killed()
			observeJob(record, &killed)
			logger.Debug("mutant_finished", "job", job.ID, "mutation", job.String(), "killed", killed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Job < res.Errors[j].Job })

	summary, err := r.Score(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	res.Summary = summary
	res.Duration = r.now().Sub(start)
	observeSummary(c.Name, summary)

	logger.Info("campaign_finished",
		"score", summary.Score.String(),
		"aborted", len(res.Errors),
		"duration", res.Duration,
	)
	return res, nil
}

// Score loads the stored records of a campaign and scores them.
func (r *Runner) Score(ctx context.Context, campaign string) (score.Summary, error) {
	jobs, err := r.store.ListJobs(ctx, store.JobFilter{Campaign: campaign})
	if err != nil {
		return score.Summary{}, err
	}
	baseline, mutants := score.Split(jobs)
	return score.Score(baseline, mutants)
}

func (r *Runner) runMutant(ctx context.Context, c Campaign, suite *oracle.Suite, job mutation.Job) (*store.JobResult, error) {
	prog, err := c.Program.Mutant(job)
	if err != nil {
		return nil, fmt.Errorf("build mutant: %w", err)
	}
	return r.runJob(ctx, c, suite, job.ID, job.Mutation(), prog)
}

func (r *Runner) runJob(ctx context.Context, c Campaign, suite *oracle.Suite, id store.JobID, m *store.Mutation, prog oracle.Program) (*store.JobResult, error) {
	started := r.now()
	outcomes, err := suite.Run(ctx, prog, c.Mode)
	if err != nil {
		return nil, err
	}

	job := oracle.Record(outcomes)
	job.Campaign = c.Name
	job.JobID = id
	job.Kind = store.JobKindMutant
	if m == nil {
		job.Kind = store.JobKindBaseline
	}
	job.Mutation = m
	job.Seed = c.Oracle.Seed
	job.StartedAt = started
	job.FinishedAt = r.now()

	if err := r.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}
	return job, nil
}

func testsPerRelation(s *oracle.Suite) int {
	if len(s.Tests) == 0 {
		return 0
	}
	return len(s.Tests[0])
}
