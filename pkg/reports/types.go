package reports

import (
	"context"
	"io"

	"github.com/rmax-ai/causalmr/pkg/store"
)

type ReportType string

const (
	ReportTypeRelations ReportType = "relations"
	ReportTypeJobs      ReportType = "jobs"
	ReportTypeFailures  ReportType = "failures"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

type ReportParams struct {
	Campaign string
	Format   ReportFormat
	// Filters narrow the rows. Supported keys: "kind" (baseline|mutant),
	// "relation" (relation id) and "failed_only" (bool).
	Filters map[string]interface{}
}

func (p ReportParams) stringFilter(key string) string {
	v, _ := p.Filters[key].(string)
	return v
}

func (p ReportParams) boolFilter(key string) bool {
	v, _ := p.Filters[key].(bool)
	return v
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.JobResult, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
