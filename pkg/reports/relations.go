package reports

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rmax-ai/causalmr/pkg/store"
)

// RelationReport lists every relation outcome of every job of a campaign.
type RelationReport struct {
	store ReportStore
}

// NewRelationReport creates a new RelationReport generator.
func NewRelationReport(s ReportStore) *RelationReport {
	return &RelationReport{store: s}
}

type relationRow struct {
	JobID    store.JobID `json:"job_id"`
	Kind     string      `json:"kind"`
	Mutation string      `json:"mutation"`
	Relation string      `json:"relation"`
	Type     string      `json:"relation_kind"`
	Total    int         `json:"total"`
	Failures int         `json:"failures"`
	Passed   bool        `json:"passed"`
}

func (r relationRow) record() []string {
	return []string{
		string(r.JobID),
		r.Kind,
		r.Mutation,
		r.Relation,
		r.Type,
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Failures),
		strconv.FormatBool(r.Passed),
	}
}

var relationHeader = []string{"job_id", "kind", "mutation", "relation", "relation_kind", "total", "failures", "passed"}

// Generate creates the report. Jobs are validated before any row is
// written.
func (r *RelationReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	jobs, err := loadJobs(ctx, r.store, params)
	if err != nil {
		return nil, err
	}

	relation := params.stringFilter("relation")
	failedOnly := params.boolFilter("failed_only")

	var rows []row
	for _, job := range jobs {
		for _, rel := range job.Relations {
			if relation != "" && rel.Relation != relation {
				continue
			}
			if failedOnly && !rel.Failed {
				continue
			}
			rows = append(rows, relationRow{
				JobID:    job.JobID,
				Kind:     string(job.Kind),
				Mutation: describe(job.Mutation),
				Relation: rel.Relation,
				Type:     rel.Kind,
				Total:    rel.Total,
				Failures: rel.Failures,
				Passed:   !rel.Failed,
			})
		}
	}
	return render(params.Format, relationHeader, rows)
}

func loadJobs(ctx context.Context, s ReportStore, params ReportParams) ([]*store.JobResult, error) {
	if params.Campaign == "" {
		return nil, fmt.Errorf("campaign is required")
	}
	filter := store.JobFilter{Campaign: params.Campaign}
	if kind := params.stringFilter("kind"); kind != "" {
		filter.Kind = store.JobKind(kind)
	}

	jobs, err := s.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	for _, job := range jobs {
		if err := ValidateJob(job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func describe(m *store.Mutation) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s(%s, %s)", m.Operator, m.Cause, m.Effect)
}
