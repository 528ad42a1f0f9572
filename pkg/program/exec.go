package program

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/oracle"
)

// Exec runs an external program once per evaluation. The inputs are
// written to stdin as a JSON object keyed by node name ({"X1": 3, "Y2": 0})
// and the program must print a JSON object of sink values to stdout.
type Exec struct {
	Argv []string
	Env  map[string]string
}

var _ oracle.Program = (*Exec)(nil)

// Run executes the command. A non-zero exit status is an evaluation error
// carrying the command's stderr.
func (e *Exec) Run(ctx context.Context, inputs map[graph.Node]int) (oracle.Outputs, error) {
	if len(e.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}

	// #nosec G204 -- argv comes from the operator's configuration.
	cmd := exec.CommandContext(ctx, e.Argv[0], e.Argv[1:]...)
	if len(e.Env) != 0 {
		keys := make([]string, 0, len(e.Env))
		for k := range e.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		merged := cmd.Environ()
		for _, k := range keys {
			merged = append(merged, fmt.Sprintf("%s=%s", k, e.Env[k]))
		}
		cmd.Env = merged
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run %q failed: %w: %s", e.Argv, err, msg)
		}
		return nil, fmt.Errorf("run %q failed: %w", e.Argv, err)
	}

	var out oracle.Outputs
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode output of %q: %w", e.Argv, err)
	}
	return out, nil
}
