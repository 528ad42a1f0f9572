package reports

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rmax-ai/causalmr/pkg/store"
)

const jobResultSchemaURL = "https://causalmr.dev/schema/job_result.json"

//go:embed schema/job_result.schema.json
var jobResultSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(jobResultSchemaURL, bytes.NewReader(jobResultSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(jobResultSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateRecord checks a raw JSON result record against the job result
// schema.
func ValidateRecord(raw []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("invalid result record: %w", err)
	}
	return nil
}

// ValidateJob checks a decoded record by round-tripping it through JSON.
func ValidateJob(job *store.JobResult) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := ValidateRecord(raw); err != nil {
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}
	return nil
}

// DecodeRecords parses a JSON array of result records, validating each
// one before decoding it.
func DecodeRecords(data []byte) ([]*store.JobResult, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	jobs := make([]*store.JobResult, 0, len(raws))
	for i, raw := range raws {
		if err := ValidateRecord(raw); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		var job store.JobResult
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
