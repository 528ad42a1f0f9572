package reports

import (
	"fmt"
)

// NewReportGenerator creates a report generator based on the report type.
func NewReportGenerator(reportType ReportType, s ReportStore) (Generator, error) {
	switch reportType {
	case ReportTypeRelations:
		return NewRelationReport(s), nil
	case ReportTypeJobs:
		return NewJobReport(s), nil
	case ReportTypeFailures:
		return NewFailureReport(s), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
