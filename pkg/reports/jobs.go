package reports

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// JobReport classifies every mutant of a campaign against its baseline.
type JobReport struct {
	store ReportStore
}

// NewJobReport creates a new JobReport generator.
func NewJobReport(s ReportStore) *JobReport {
	return &JobReport{store: s}
}

type jobRow struct {
	JobID    store.JobID `json:"job_id"`
	Mutation string      `json:"mutation"`
	TP       int         `json:"true_positive"`
	FP       int         `json:"false_positive"`
	TN       int         `json:"true_negative"`
	FN       int         `json:"false_negative"`
	Killed   bool        `json:"killed"`
}

func (r jobRow) record() []string {
	return []string{
		string(r.JobID),
		r.Mutation,
		strconv.Itoa(r.TP),
		strconv.Itoa(r.FP),
		strconv.Itoa(r.TN),
		strconv.Itoa(r.FN),
		strconv.FormatBool(r.Killed),
	}
}

var jobHeader = []string{"job_id", "mutation", "true_positive", "false_positive", "true_negative", "false_negative", "killed"}

// Generate creates the report. The "kind" filter is ignored since the
// baseline is always needed.
func (r *JobReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	params.Filters = nil
	jobs, err := loadJobs(ctx, r.store, params)
	if err != nil {
		return nil, err
	}

	baseline, mutants := score.Split(jobs)
	if baseline == nil {
		return nil, fmt.Errorf("%w: campaign %s has no baseline record", score.ErrIntegrity, params.Campaign)
	}

	rows := make([]row, 0, len(mutants))
	for _, m := range mutants {
		c, err := score.Classify(baseline, m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, jobRow{
			JobID:    m.JobID,
			Mutation: describe(m.Mutation),
			TP:       c.TP,
			FP:       c.FP,
			TN:       c.TN,
			FN:       c.FN,
			Killed:   c.Killed(),
		})
	}
	return render(params.Format, jobHeader, rows)
}
