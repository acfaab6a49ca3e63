package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ariadne-labs/ariadne/internal/engine"
	"github.com/ariadne-labs/ariadne/internal/memory"
	"github.com/ariadne-labs/ariadne/internal/scheduler"
	"github.com/ariadne-labs/ariadne/internal/store"
	"github.com/ariadne-labs/ariadne/internal/streaming"
)

// AriadneServerDeps holds the dependencies for creating an AriadneServer.
type AriadneServerDeps struct {
	Engine    *engine.Engine
	Store     store.Store
	Memory    *memory.Graph
	Scheduler *scheduler.Scheduler
	Hub       streaming.EventHub
	Logger    *slog.Logger
}

// AriadneServer wraps an MCP server with research orchestration tool handlers.
type AriadneServer struct {
	engine    *engine.Engine
	store     store.Store
	memory    *memory.Graph
	scheduler *scheduler.Scheduler
	hub       streaming.EventHub
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewAriadneServer creates a new AriadneServer with all tools registered.
func NewAriadneServer(deps AriadneServerDeps) *AriadneServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &AriadneServer{
		engine:    deps.Engine,
		store:     deps.Store,
		memory:    deps.Memory,
		scheduler: deps.Scheduler,
		hub:       deps.Hub,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"ariadne",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Ariadne is a research orchestration engine. Use research.plan to decompose a query into a plan, research.execute to run it, research.status and research.results to inspect it, research.capabilities to list providers, memory.store/memory.retrieve/memory.graph for the context memory graph, and research.schedule for recurring queries."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *AriadneServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AriadneServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *AriadneServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: planTool(), Handler: s.handlePlan},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: resultsTool(), Handler: s.handleResults},
		{Tool: capabilitiesTool(), Handler: s.handleCapabilities},
		{Tool: memoryStoreTool(), Handler: s.handleMemoryStore},
		{Tool: memoryRetrieveTool(), Handler: s.handleMemoryRetrieve},
		{Tool: memoryGraphTool(), Handler: s.handleMemoryGraph},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
	}
}

// --- Tool definitions ---

func planTool() mcp.Tool {
	return mcp.NewTool("research.plan",
		mcp.WithDescription("Decompose a research query into a dependency-ordered plan"),
		mcp.WithString("query", mcp.Required(), mcp.Description("The research query to plan")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user owning the plan")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("research.execute",
		mcp.WithDescription("Execute a research plan to a terminal state"),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("ID of the plan to execute")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the calling user; must own the plan")),
		mcp.WithString("mode", mcp.Enum("sync", "async"), mcp.Description("sync waits for the run; async schedules it (default: sync)")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("research.status",
		mcp.WithDescription("Get plan execution status"),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("ID of the plan to query")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the calling user; must own the plan")),
	)
}

func resultsTool() mcp.Tool {
	return mcp.NewTool("research.results",
		mcp.WithDescription("Get detailed plan results, optionally projected with a jq expression"),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("ID of the plan to query")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the calling user; must own the plan")),
		mcp.WithString("filter", mcp.Description("Optional jq expression applied to the results document")),
	)
}

func capabilitiesTool() mcp.Tool {
	return mcp.NewTool("research.capabilities",
		mcp.WithDescription("List registered capability providers"),
	)
}

func memoryStoreTool() mcp.Tool {
	return mcp.NewTool("memory.store",
		mcp.WithDescription("Store a research context in the memory graph"),
		mcp.WithString("query", mcp.Required(), mcp.Description("The query this context answers")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the owning user")),
		mcp.WithObject("data", mcp.Description("Context data (content, sources, relevance_score)")),
	)
}

func memoryRetrieveTool() mcp.Tool {
	return mcp.NewTool("memory.retrieve",
		mcp.WithDescription("Retrieve relevant contexts for a query from the memory graph"),
		mcp.WithString("query", mcp.Required(), mcp.Description("The query to match against stored contexts")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the owning user")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of contexts to return (default: 5)")),
	)
}

func memoryGraphTool() mcp.Tool {
	return mcp.NewTool("memory.graph",
		mcp.WithDescription("Build the knowledge graph of a user's concepts for visualization"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the owning user")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("research.schedule",
		mcp.WithDescription("Manage recurring research queries driven by cron expressions"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("create", "list", "enable", "disable", "delete"),
			mcp.Description("Operation to perform"),
		),
		mcp.WithString("query", mcp.Description("Research query text (required for create)")),
		mcp.WithString("user_id", mcp.Description("ID of the owning user (required for create)")),
		mcp.WithString("cron", mcp.Description("Cron expression, five fields (required for create)")),
		mcp.WithString("schedule_id", mcp.Description("Scheduled query ID (required for enable/disable/delete)")),
	)
}
