package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/relation"
	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

const recentJobsLimit = 50

// Server exposes DAG generation, relation derivation and campaign scoring
// over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	store     store.ResultStore
}

// NewServer creates a new MCP server instance backed by st.
func NewServer(st store.ResultStore, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"causalmr",
			version,
		),
		store: st,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"causalmr://jobs",
		"Recent Job Results",
		mcp.WithResourceDescription("Most recent baseline and mutant result records"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadJobs)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"generate_dag",
		mcp.WithDescription("Generate a random causal DAG. Returns it in DOT format."),
		mcp.WithNumber("nodes", mcp.Required(), mcp.Description("Number of variables")),
		mcp.WithNumber("p_edge", mcp.Required(), mcp.Description("Edge probability in [0,1]")),
		mcp.WithNumber("p_conditional", mcp.Description("Probability that a non-terminal sink is conditional (default 0)")),
		mcp.WithNumber("seed", mcp.Description("Random seed (default 0)")),
	), s.handleGenerateDAG)

	s.mcpServer.AddTool(mcp.NewTool(
		"derive_relations",
		mcp.WithDescription("Derive the metamorphic relations of a DAG given in DOT format."),
		mcp.WithString("dag", mcp.Required(), mcp.Description("The DAG in DOT format")),
	), s.handleDeriveRelations)

	s.mcpServer.AddTool(mcp.NewTool(
		"mutation_config",
		mcp.WithDescription("Build the mutation configuration (TOML) for a DAG given in DOT format."),
		mcp.WithString("dag", mcp.Required(), mcp.Description("The DAG in DOT format")),
		mcp.WithString("module_path", mcp.Description("Module under test (default program.py)")),
	), s.handleMutationConfig)

	s.mcpServer.AddTool(mcp.NewTool(
		"mutation_score",
		mcp.WithDescription("Score a stored campaign: killed mutants over total mutants."),
		mcp.WithString("campaign", mcp.Required(), mcp.Description("The campaign name")),
	), s.handleMutationScore)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"causalmr-aware",
		mcp.WithPromptDescription("Provides context about causal metamorphic testing (DAGs, relations, mutants)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadJobs(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{Limit: recentJobsLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jobs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGenerateDAG(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := generator.Options{
		Nodes:        int(mcp.ParseFloat64(request, "nodes", 0)),
		PEdge:        mcp.ParseFloat64(request, "p_edge", 0),
		PConditional: mcp.ParseFloat64(request, "p_conditional", 0),
	}
	seed := int64(mcp.ParseFloat64(request, "seed", 0))

	g, err := generator.Generate(rand.New(rand.NewSource(seed)), opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dot, err := graph.MarshalDOT(g, graph.Metadata{"seed": seed})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode DAG: %v", err)), nil
	}
	return mcp.NewToolResultText(string(dot)), nil
}

func (s *Server) handleDeriveRelations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResult := parseDAG(request)
	if errResult != nil {
		return errResult, nil
	}

	rels, err := deriveSafely(g)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(rels))
	for i, r := range rels {
		lines[i] = r.ID()
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d relations\n%s", len(rels), strings.Join(lines, "\n"))), nil
}

func (s *Server) handleMutationConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResult := parseDAG(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := g.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	spec := mutation.FromGraph(g, mutation.Options{ModulePath: mcp.ParseString(request, "module_path", "")})
	doc, err := spec.MarshalTOML()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) handleMutationScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	campaign := mcp.ParseString(request, "campaign", "")
	if campaign == "" {
		return mcp.NewToolResultError("campaign is required"), nil
	}

	jobs, err := s.store.ListJobs(ctx, store.JobFilter{Campaign: campaign})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}
	baseline, mutants := score.Split(jobs)
	summary, err := score.Score(baseline, mutants)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resultMsg := fmt.Sprintf("Mutation score: %s\nTrue positives: %d\nFalse positives: %d\nContradictory mutants: %d",
		summary.Score, summary.TruePositives, summary.FalsePositives, summary.Contradictory)
	return mcp.NewToolResultText(resultMsg), nil
}

func parseDAG(request mcp.CallToolRequest) (*graph.Graph, *mcp.CallToolResult) {
	dot := mcp.ParseString(request, "dag", "")
	if strings.TrimSpace(dot) == "" {
		return nil, mcp.NewToolResultError("dag is required")
	}
	g, _, err := graph.UnmarshalDOT([]byte(dot))
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid DAG: %v", err))
	}
	return g, nil
}

// deriveSafely turns an invariant violation into an error so a bad graph
// from a client cannot take the server down.
func deriveSafely(g *graph.Graph) (rels []relation.Relation, err error) {
	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(*graph.InvariantViolation); ok {
				err = v
				return
			}
			panic(r)
		}
	}()
	return relation.Derive(g), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "causalmr-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are working with causalmr, a causal metamorphic testing toolkit.

Concepts:
- DAG: a causal graph over source variables (X1, X2, ...) and sink variables (Y1, Y2, ...).
- Relation: a testable claim derived from the DAG. "X1 --> Y1 | [X2]" says changing X1 must change Y1
  while X2 is held fixed. "X1 _||_ Y2" says changing X1 must not change Y2.
- Mutant: the program with one causal edge deleted or one non-edge inserted.
- Mutation score: killed mutants over total mutants. A mutant is killed when a relation that passed
  on the baseline fails on it.

Use 'generate_dag' to create a DAG, 'derive_relations' to list its relations, 'mutation_config' to
build the mutation configuration and 'mutation_score' to score a campaign that has been run.
`

	return mcp.NewGetPromptResult(
		"causalmr-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
