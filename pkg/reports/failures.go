package reports

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rmax-ai/causalmr/pkg/store"
)

// FailureReport lists every failed test of a campaign with its inputs.
type FailureReport struct {
	store ReportStore
}

// NewFailureReport creates a new FailureReport generator.
func NewFailureReport(s ReportStore) *FailureReport {
	return &FailureReport{store: s}
}

type failureRow struct {
	JobID         store.JobID    `json:"job_id"`
	Relation      string         `json:"relation"`
	Cause         string         `json:"cause"`
	Output        string         `json:"output"`
	SourceValue   int            `json:"source_value"`
	FollowUpValue int            `json:"follow_up_value"`
	Others        map[string]int `json:"others"`
	Control       *float64       `json:"control"`
	Treatment     *float64       `json:"treatment"`
	Error         string         `json:"error,omitempty"`
}

func (r failureRow) record() []string {
	keys := make([]string, 0, len(r.Others))
	for k := range r.Others {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	others := make([]string, len(keys))
	for i, k := range keys {
		others[i] = k + "=" + strconv.Itoa(r.Others[k])
	}

	return []string{
		string(r.JobID),
		r.Relation,
		r.Cause,
		r.Output,
		strconv.Itoa(r.SourceValue),
		strconv.Itoa(r.FollowUpValue),
		strings.Join(others, " "),
		formatValue(r.Control),
		formatValue(r.Treatment),
		r.Error,
	}
}

var failureHeader = []string{"job_id", "relation", "cause", "output", "source_value", "follow_up_value", "others", "control", "treatment", "error"}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// Generate creates the report.
func (r *FailureReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	jobs, err := loadJobs(ctx, r.store, params)
	if err != nil {
		return nil, err
	}

	relation := params.stringFilter("relation")
	var rows []row
	for _, job := range jobs {
		for _, f := range job.Failures {
			if relation != "" && f.Relation != relation {
				continue
			}
			rows = append(rows, failureRow{
				JobID:         job.JobID,
				Relation:      f.Relation,
				Cause:         f.Cause,
				Output:        f.Output,
				SourceValue:   f.SourceValue,
				FollowUpValue: f.FollowUpValue,
				Others:        f.Others,
				Control:       f.Control,
				Treatment:     f.Treatment,
				Error:         f.Error,
			})
		}
	}
	return render(params.Format, failureHeader, rows)
}
