package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveJob writes job, replacing any previous record with the same
// campaign and id.
func (s *Store) SaveJob(ctx context.Context, job *JobResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE campaign = ? AND job_id = ?`, job.Campaign, string(job.JobID)); err != nil {
		return fmt.Errorf("failed to clear job %s: %w", job.JobID, err)
	}

	var operator, cause, effect sql.NullString
	if m := job.Mutation; m != nil {
		operator = sql.NullString{String: m.Operator, Valid: true}
		cause = sql.NullString{String: m.Cause, Valid: true}
		effect = sql.NullString{String: m.Effect, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (campaign, job_id, kind, operator, cause, effect, seed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.Campaign, string(job.JobID), string(job.Kind), operator, cause, effect,
		job.Seed, job.StartedAt.UTC(), job.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.JobID, err)
	}

	for _, r := range job.Relations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO relation_results (campaign, job_id, relation, kind, total, failures, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, job.Campaign, string(job.JobID), r.Relation, r.Kind, r.Total, r.Failures, r.Failed)
		if err != nil {
			return fmt.Errorf("failed to insert result for %q: %w", r.Relation, err)
		}
	}

	for _, f := range job.Failures {
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal failure: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_failures (campaign, job_id, relation, payload)
			VALUES (?, ?, ?, ?)
		`, job.Campaign, string(job.JobID), f.Relation, payload)
		if err != nil {
			return fmt.Errorf("failed to insert failure for %q: %w", f.Relation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job %s: %w", job.JobID, err)
	}
	return nil
}

// GetJob loads one job with its relation results and failures.
func (s *Store) GetJob(ctx context.Context, campaign string, id JobID) (*JobResult, error) {
	job := &JobResult{Campaign: campaign, JobID: id}
	var kind string
	var operator, cause, effect sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT kind, operator, cause, effect, seed, started_at, finished_at
		FROM jobs WHERE campaign = ? AND job_id = ?
	`, campaign, string(id)).Scan(&kind, &operator, &cause, &effect, &job.Seed, &job.StartedAt, &job.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s/%s: %w", campaign, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	job.Kind = JobKind(kind)
	if operator.Valid {
		job.Mutation = &Mutation{Operator: operator.String, Cause: cause.String, Effect: effect.String}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT relation, kind, total, failures, failed
		FROM relation_results WHERE campaign = ? AND job_id = ?
		ORDER BY relation ASC
	`, campaign, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query relation results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r RelationResult
		if err := rows.Scan(&r.Relation, &r.Kind, &r.Total, &r.Failures, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan relation result: %w", err)
		}
		job.Relations = append(job.Relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM test_failures WHERE campaign = ? AND job_id = ?
		ORDER BY id ASC
	`, campaign, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var payload []byte
		if err := frows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		var f FailureRecord
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure: %w", err)
		}
		job.Failures = append(job.Failures, f)
	}
	if err := frows.Err(); err != nil {
		return nil, err
	}

	job.StartedAt = job.StartedAt.UTC()
	job.FinishedAt = job.FinishedAt.UTC()
	return job, nil
}

// ListJobs returns every job matching filter, baseline first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*JobResult, error) {
	var conds []string
	var args []any
	if filter.Campaign != "" {
		conds = append(conds, "campaign = ?")
		args = append(args, filter.Campaign)
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := "SELECT campaign, job_id FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY campaign ASC, kind = 'baseline' DESC, job_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	type key struct {
		campaign string
		id       string
	}
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.campaign, &k.id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job key: %w", err)
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jobs := make([]*JobResult, 0, len(keys))
	for _, k := range keys {
		job, err := s.GetJob(ctx, k.campaign, JobID(k.id))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SaveMutationSpec stores the mutation specification of a campaign,
// replacing a previous one.
func (s *Store) SaveMutationSpec(ctx context.Context, spec *MutationSpecRecord) error {
	created := spec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutation_specs (campaign, format, document, deletions, insertions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign) DO UPDATE SET
			format = excluded.format,
			document = excluded.document,
			deletions = excluded.deletions,
			insertions = excluded.insertions,
			created_at = excluded.created_at
	`, spec.Campaign, spec.Format, spec.Document, spec.Deletions, spec.Insertions, created.UTC())
	if err != nil {
		return fmt.Errorf("failed to save mutation spec: %w", err)
	}
	return nil
}

// GetMutationSpec loads the mutation specification of a campaign.
func (s *Store) GetMutationSpec(ctx context.Context, campaign string) (*MutationSpecRecord, error) {
	spec := &MutationSpecRecord{Campaign: campaign}
	err := s.db.QueryRowContext(ctx, `
		SELECT format, document, deletions, insertions, created_at
		FROM mutation_specs WHERE campaign = ?
	`, campaign).Scan(&spec.Format, &spec.Document, &spec.Deletions, &spec.Insertions, &spec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mutation spec %s: %w", campaign, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mutation spec: %w", err)
	}
	spec.CreatedAt = spec.CreatedAt.UTC()
	return spec, nil
}

// DeleteCampaign removes the jobs and mutation spec of campaign. Relation
// results and failures go with their jobs.
func (s *Store) DeleteCampaign(ctx context.Context, campaign string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE campaign = ?`, campaign); err != nil {
		return fmt.Errorf("failed to delete jobs of %s: %w", campaign, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mutation_specs WHERE campaign = ?`, campaign); err != nil {
		return fmt.Errorf("failed to delete mutation spec of %s: %w", campaign, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", campaign, err)
	}
	return nil
}
