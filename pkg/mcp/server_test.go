package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/store"
	"github.com/rmax-ai/causalmr/pkg/store/storetest"
)

const scenarioDOT = `strict digraph G {
	X1; X2; Y1; Y2;
	X1 -> Y1;
	X2 -> Y1;
}`

func newTestServer(t *testing.T) (*Server, store.ResultStore) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewServer(st, "test"), st
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestMCPServer_GenerateDAG(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleGenerateDAG(context.Background(), callTool("generate_dag", map[string]interface{}{
		"nodes":  6.0,
		"p_edge": 0.5,
		"seed":   42.0,
	}))
	if err != nil {
		t.Fatalf("handleGenerateDAG failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", resultText(t, result))
	}

	g, meta, err := graph.UnmarshalDOT([]byte(resultText(t, result)))
	if err != nil {
		t.Fatalf("Generated DOT does not parse: %v", err)
	}
	if g.NumNodes() != 6 {
		t.Errorf("Expected 6 nodes, got %d", g.NumNodes())
	}
	if meta["seed"] == nil {
		t.Errorf("Expected seed metadata, got %v", meta)
	}

	result, err = s.handleGenerateDAG(context.Background(), callTool("generate_dag", map[string]interface{}{
		"nodes":  0.0,
		"p_edge": 0.5,
	}))
	if err != nil {
		t.Fatalf("handleGenerateDAG failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result for zero nodes")
	}
}

func TestMCPServer_DeriveRelations(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleDeriveRelations(context.Background(), callTool("derive_relations", map[string]interface{}{
		"dag": scenarioDOT,
	}))
	if err != nil {
		t.Fatalf("handleDeriveRelations failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "5 relations\n") {
		t.Errorf("Unexpected header: %q", text)
	}
	for _, id := range []string{"X1 --> Y1 | [X2]", "Y1 _||_ Y2 | [X1, X2]"} {
		if !strings.Contains(text, id) {
			t.Errorf("Expected relation %q in %q", id, text)
		}
	}

	for _, bad := range []string{"", "not a graph", "strict digraph { X1 -> Y1; Y1 -> Y2; Y2 -> Y1; }"} {
		result, err := s.handleDeriveRelations(context.Background(), callTool("derive_relations", map[string]interface{}{"dag": bad}))
		if err != nil {
			t.Fatalf("handleDeriveRelations failed: %v", err)
		}
		if !result.IsError {
			t.Errorf("Expected error result for %q", bad)
		}
	}
}

func TestMCPServer_MutationConfig(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleMutationConfig(context.Background(), callTool("mutation_config", map[string]interface{}{
		"dag":         scenarioDOT,
		"module_path": "model.py",
	}))
	if err != nil {
		t.Fatalf("handleMutationConfig failed: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"[cosmic-ray]", "model.py", "core/VariableReplacer", "core/VariableInserter"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in %q", want, text)
		}
	}
}

func TestMCPServer_MutationScore(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	if err := st.SaveJob(ctx, storetest.Baseline("c1")); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveJob(ctx, storetest.Mutant("c1", "m1")); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleMutationScore(ctx, callTool("mutation_score", map[string]interface{}{"campaign": "c1"}))
	if err != nil {
		t.Fatalf("handleMutationScore failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "Mutation score: ") {
		t.Errorf("Unexpected result %q", resultText(t, result))
	}

	result, err = s.handleMutationScore(ctx, callTool("mutation_score", map[string]interface{}{"campaign": "nothing"}))
	if err != nil {
		t.Fatalf("handleMutationScore failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error for a campaign without baseline")
	}

	read, err := s.handleReadJobs(ctx, mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "causalmr://jobs"}})
	if err != nil {
		t.Fatalf("handleReadJobs failed: %v", err)
	}
	content, ok := read[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("Expected TextResourceContents")
	}
	var jobs []map[string]interface{}
	if err := json.Unmarshal([]byte(content.Text), &jobs); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s, _ := newTestServer(t)

	req := mcp.GetPromptRequest{}
	req.Params.Name = "causalmr-aware"
	res, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Errorf("Expected 1 message, got %d", len(res.Messages))
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("Expected error for unknown prompt")
	}
}
