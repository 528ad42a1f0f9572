package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

type mockReportStore struct {
	jobs []*store.JobResult
}

func (m *mockReportStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.JobResult, error) {
	var results []*store.JobResult
	for _, j := range m.jobs {
		if filter.Campaign != "" && j.Campaign != filter.Campaign {
			continue
		}
		if filter.Kind != "" && j.Kind != filter.Kind {
			continue
		}
		results = append(results, j)
	}
	return results, nil
}

func fptr(v float64) *float64 { return &v }

func fixtureJobs() []*store.JobResult {
	relations := func(failed string) []store.RelationResult {
		return []store.RelationResult{
			{Relation: "X1 --> Y1 | [X2]", Kind: "should_cause", Total: 10, Failures: 0, Failed: failed == "X1 --> Y1 | [X2]"},
			{Relation: "X1 _||_ Y2", Kind: "should_not_cause", Total: 10, Failures: 0, Failed: failed == "X1 _||_ Y2"},
		}
	}
	base := &store.JobResult{Campaign: "c1", JobID: store.BaselineJobID, Kind: store.JobKindBaseline, Relations: relations("")}
	killed := &store.JobResult{
		Campaign:  "c1",
		JobID:     "m-killed",
		Kind:      store.JobKindMutant,
		Mutation:  &store.Mutation{Operator: "core/VariableInserter", Cause: "X1", Effect: "Y2"},
		Relations: relations("X1 _||_ Y2"),
		Failures: []store.FailureRecord{{
			Relation:      "X1 _||_ Y2",
			Cause:         "X1",
			Output:        "Y2",
			SourceValue:   -3,
			FollowUpValue: 4,
			Others:        map[string]int{"X2": 1},
			Control:       fptr(-3),
			Treatment:     fptr(4),
		}},
	}
	killed.Relations[1].Failures = 1
	survived := &store.JobResult{
		Campaign:  "c1",
		JobID:     "m-survived",
		Kind:      store.JobKindMutant,
		Mutation:  &store.Mutation{Operator: "core/VariableReplacer", Cause: "X2", Effect: "Y1"},
		Relations: relations(""),
	}
	other := &store.JobResult{Campaign: "c2", JobID: store.BaselineJobID, Kind: store.JobKindBaseline, Relations: relations("")}
	return []*store.JobResult{base, killed, survived, other}
}

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	return records
}

func TestRelationReport(t *testing.T) {
	r := NewRelationReport(&mockReportStore{jobs: fixtureJobs()})

	reader, err := r.Generate(context.Background(), ReportParams{Campaign: "c1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records := readCSV(t, reader)
	if len(records) != 7 { // Header + 3 jobs x 2 relations
		t.Fatalf("Expected 7 records, got %d", len(records))
	}
	if records[0][3] != "relation" {
		t.Errorf("Expected relation header, got %s", records[0][3])
	}

	reader, err = r.Generate(context.Background(), ReportParams{
		Campaign: "c1",
		Filters:  map[string]interface{}{"failed_only": true},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records = readCSV(t, reader)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[1][0] != "m-killed" || records[1][2] != "core/VariableInserter(X1, Y2)" || records[1][7] != "false" {
		t.Errorf("Unexpected row %v", records[1])
	}

	reader, err = r.Generate(context.Background(), ReportParams{
		Campaign: "c1",
		Filters:  map[string]interface{}{"kind": "baseline"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if records = readCSV(t, reader); len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestJobReport(t *testing.T) {
	r := NewJobReport(&mockReportStore{jobs: fixtureJobs()})

	reader, err := r.Generate(context.Background(), ReportParams{Campaign: "c1", Format: ReportFormatJSON})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	var rows []jobRow
	if err := json.NewDecoder(reader).Decode(&rows); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	byID := map[store.JobID]jobRow{rows[0].JobID: rows[0], rows[1].JobID: rows[1]}
	if k := byID["m-killed"]; !k.Killed || k.TP != 1 || k.TN != 1 {
		t.Errorf("Unexpected killed row %+v", k)
	}
	if s := byID["m-survived"]; s.Killed || s.TN != 2 {
		t.Errorf("Unexpected survived row %+v", s)
	}

	_, err = r.Generate(context.Background(), ReportParams{Campaign: "missing"})
	if !errors.Is(err, score.ErrIntegrity) {
		t.Errorf("Expected integrity error, got %v", err)
	}
}

func TestFailureReport(t *testing.T) {
	r := NewFailureReport(&mockReportStore{jobs: fixtureJobs()})

	reader, err := r.Generate(context.Background(), ReportParams{Campaign: "c1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records := readCSV(t, reader)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	want := []string{"m-killed", "X1 _||_ Y2", "X1", "Y2", "-3", "4", "X2=1", "-3", "4", ""}
	for i, v := range want {
		if records[1][i] != v {
			t.Errorf("column %s: expected %q, got %q", failureHeader[i], v, records[1][i])
		}
	}
}

func TestGenerate_RejectsInvalidRecords(t *testing.T) {
	jobs := fixtureJobs()
	jobs[2].Mutation = nil // a mutant must say what it mutated

	r := NewRelationReport(&mockReportStore{jobs: jobs})
	_, err := r.Generate(context.Background(), ReportParams{Campaign: "c1"})
	if err == nil || !strings.Contains(err.Error(), "m-survived") {
		t.Fatalf("Expected validation error for m-survived, got %v", err)
	}

	if _, err := r.Generate(context.Background(), ReportParams{}); err == nil {
		t.Error("Expected error without campaign")
	}
}

func TestNewReportGenerator(t *testing.T) {
	s := &mockReportStore{}
	for _, rt := range []ReportType{ReportTypeRelations, ReportTypeJobs, ReportTypeFailures} {
		if _, err := NewReportGenerator(rt, s); err != nil {
			t.Errorf("%s: %v", rt, err)
		}
	}
	if _, err := NewReportGenerator("usage", s); err == nil {
		t.Error("Expected error for unknown report type")
	}

	g := NewRelationReport(&mockReportStore{jobs: fixtureJobs()})
	if _, err := g.Generate(context.Background(), ReportParams{Campaign: "c1", Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestCanonical(t *testing.T) {
	a, err := Canonical(map[string]any{"b": 1.0, "a": "X1 --> Y1"})
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if string(a) != `{"a":"X1 --> Y1","b":1}` {
		t.Errorf("Unexpected canonical form %s", a)
	}

	d1, err := Digest(fixtureJobs()[1])
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	d2, _ := Digest(fixtureJobs()[1])
	d3, _ := Digest(fixtureJobs()[2])
	if d1 != d2 || d1 == d3 || len(d1) != 64 {
		t.Errorf("Unexpected digests %s %s %s", d1, d2, d3)
	}
}

func TestDecodeRecords(t *testing.T) {
	data, err := json.Marshal(fixtureJobs())
	if err != nil {
		t.Fatal(err)
	}
	jobs, err := DecodeRecords(data)
	if err != nil {
		t.Fatalf("DecodeRecords failed: %v", err)
	}
	if len(jobs) != 4 || jobs[1].Failures[0].Others["X2"] != 1 {
		t.Errorf("Unexpected decode %+v", jobs)
	}

	bad := `[{"campaign": "c1", "job_id": "m", "kind": "mutant", "relations": []}]`
	if _, err := DecodeRecords([]byte(bad)); err == nil {
		t.Error("Expected schema error for mutant without mutation")
	}
	bad = `[{"campaign": "c1", "job_id": "baseline", "kind": "baseline", "relations": [{"relation": "A -> B", "total": 1, "failures": 0, "failed": false}]}]`
	if _, err := DecodeRecords([]byte(bad)); err == nil {
		t.Error("Expected schema error for malformed relation id")
	}
}
