// Package storetest holds the conformance suite shared by ResultStore
// implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/store"
)

func ptr(f float64) *float64 { return &f }

// Baseline returns a small baseline record for campaign.
func Baseline(campaign string) *store.JobResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &store.JobResult{
		Campaign: campaign,
		JobID:    store.BaselineJobID,
		Kind:     store.JobKindBaseline,
		Seed:     17,
		Relations: []store.RelationResult{
			{Relation: "X1 --> Y1 | [X2]", Kind: "should_cause", Total: 10},
			{Relation: "X1 _||_ Y2", Kind: "should_not_cause", Total: 10},
		},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

// Mutant returns a mutant record in which the first relation failed.
func Mutant(campaign string, id store.JobID) *store.JobResult {
	job := Baseline(campaign)
	job.JobID = id
	job.Kind = store.JobKindMutant
	job.Mutation = &store.Mutation{Operator: "core/VariableReplacer", Cause: "X1", Effect: "Y1"}
	job.Relations[0].Failures = 10
	job.Relations[0].Failed = true
	job.Failures = []store.FailureRecord{{
		Relation:      "X1 --> Y1 | [X2]",
		Cause:         "X1",
		Output:        "Y1",
		SourceValue:   -3,
		FollowUpValue: 4,
		Others:        map[string]int{"X2": 7},
		Control:       ptr(7),
		Treatment:     ptr(7),
	}, {
		Relation:      "X1 --> Y1 | [X2]",
		Cause:         "X1",
		Output:        "Y1",
		SourceValue:   0,
		FollowUpValue: 1,
		Others:        map[string]int{"X2": 0},
		Error:         "division by zero",
	}}
	return job
}

// RunResultStoreTests exercises a ResultStore implementation. newStore must
// return an empty store.
func RunResultStoreTests(t *testing.T, newStore func(t *testing.T) store.ResultStore) {
	ctx := context.Background()

	t.Run("SaveJob and GetJob", func(t *testing.T) {
		s := newStore(t)
		want := Mutant("c1", "m-1")
		require.NoError(t, s.SaveJob(ctx, want))

		got, err := s.GetJob(ctx, "c1", "m-1")
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Mutation, got.Mutation)
		assert.Equal(t, want.Seed, got.Seed)
		assert.Equal(t, want.Relations, got.Relations)
		assert.Equal(t, want.Failures, got.Failures)
		assert.True(t, want.StartedAt.Equal(got.StartedAt))
		assert.True(t, want.FinishedAt.Equal(got.FinishedAt))
	})

	t.Run("GetJob missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetJob(ctx, "c1", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SaveJob replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveJob(ctx, Mutant("c1", "m-1")))

		replacement := Baseline("c1")
		replacement.JobID = "m-1"
		replacement.Kind = store.JobKindMutant
		require.NoError(t, s.SaveJob(ctx, replacement))

		got, err := s.GetJob(ctx, "c1", "m-1")
		require.NoError(t, err)
		assert.Zero(t, got.FailedCount())
		assert.Empty(t, got.Failures)
		assert.Nil(t, got.Mutation)
	})

	t.Run("ListJobs", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveJob(ctx, Mutant("c1", "m-2")))
		require.NoError(t, s.SaveJob(ctx, Mutant("c1", "m-1")))
		require.NoError(t, s.SaveJob(ctx, Baseline("c1")))
		require.NoError(t, s.SaveJob(ctx, Baseline("c2")))

		jobs, err := s.ListJobs(ctx, store.JobFilter{Campaign: "c1"})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, store.BaselineJobID, jobs[0].JobID)
		assert.Equal(t, store.JobID("m-1"), jobs[1].JobID)
		assert.Equal(t, store.JobID("m-2"), jobs[2].JobID)

		mutants, err := s.ListJobs(ctx, store.JobFilter{Campaign: "c1", Kind: store.JobKindMutant})
		require.NoError(t, err)
		assert.Len(t, mutants, 2)

		all, err := s.ListJobs(ctx, store.JobFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		limited, err := s.ListJobs(ctx, store.JobFilter{Campaign: "c1", Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, store.BaselineJobID, limited[0].JobID)
	})

	t.Run("MutationSpec", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetMutationSpec(ctx, "c1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		spec := &store.MutationSpecRecord{
			Campaign:   "c1",
			Format:     "toml",
			Document:   []byte("[cosmic-ray]\ntimeout = 20.0\n"),
			Deletions:  2,
			Insertions: 3,
		}
		require.NoError(t, s.SaveMutationSpec(ctx, spec))

		got, err := s.GetMutationSpec(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, spec.Document, got.Document)
		assert.Equal(t, 2, got.Deletions)
		assert.Equal(t, 3, got.Insertions)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("DeleteCampaign", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveJob(ctx, Baseline("c1")))
		require.NoError(t, s.SaveJob(ctx, Mutant("c1", "m-1")))
		require.NoError(t, s.SaveJob(ctx, Baseline("c2")))
		require.NoError(t, s.SaveMutationSpec(ctx, &store.MutationSpecRecord{Campaign: "c1", Format: "toml"}))

		require.NoError(t, s.DeleteCampaign(ctx, "c1"))

		jobs, err := s.ListJobs(ctx, store.JobFilter{Campaign: "c1"})
		require.NoError(t, err)
		assert.Empty(t, jobs)
		_, err = s.GetJob(ctx, "c1", "m-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetMutationSpec(ctx, "c1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		others, err := s.ListJobs(ctx, store.JobFilter{})
		require.NoError(t, err)
		require.Len(t, others, 1)
		assert.Equal(t, "c2", others[0].Campaign)

		assert.NoError(t, s.DeleteCampaign(ctx, "never-saved"))
	})

	t.Run("Concurrent SaveJob", func(t *testing.T) {
		s := newStore(t)
		const workers = 8

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.SaveJob(ctx, Mutant("c1", store.JobID(fmt.Sprintf("m-%02d", i))))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		jobs, err := s.ListJobs(ctx, store.JobFilter{Campaign: "c1"})
		require.NoError(t, err)
		assert.Len(t, jobs, workers)
	})
}
