package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// row is one line of a tabular report. The JSON form uses the row's struct
// tags, the CSV form its record.
type row interface {
	record() []string
}

func render(format ReportFormat, header []string, rows []row) (io.Reader, error) {
	switch format {
	case "", ReportFormatCSV:
		return renderCSV(header, rows)
	case ReportFormatJSON:
		if rows == nil {
			rows = []row{}
		}
		data, err := Canonical(rows)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(append(data, '\n')), nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}

func renderCSV(header []string, rows []row) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(r.record()); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}
	return buf, nil
}
