package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ariadne-labs/ariadne/internal/store"
)

// handlePlan decomposes a query into a new research plan.
func (s *AriadneServer) handlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	plan, planErr := s.engine.CreatePlan(ctx, query, userID)
	if planErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan creation failed: %v", planErr)), nil
	}

	return marshalResult(plan)
}

// handleExecute runs a plan, synchronously or on the worker pool.
func (s *AriadneServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	if req.GetString("mode", "sync") == "async" {
		if runErr := s.engine.ExecutePlanAsync(ctx, planID, userID); runErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("execution scheduling failed: %v", runErr)), nil
		}
		return marshalResult(map[string]any{
			"plan_id":   planID,
			"scheduled": true,
		})
	}

	plan, runErr := s.engine.ExecutePlan(ctx, planID, userID)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", runErr)), nil
	}
	return marshalResult(plan)
}

// handleStatus returns the read-only status projection of a plan.
func (s *AriadneServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	status, statusErr := s.engine.Status(ctx, planID, userID)
	if statusErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", statusErr)), nil
	}
	return marshalResult(status)
}

// handleResults returns detailed plan results, optionally jq-projected.
func (s *AriadneServer) handleResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := req.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	filter := req.GetString("filter", "")

	results, resErr := s.engine.Results(ctx, planID, userID, filter)
	if resErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("results query failed: %v", resErr)), nil
	}
	return marshalResult(results)
}

// handleCapabilities lists registered capability providers.
func (s *AriadneServer) handleCapabilities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{
		"capabilities": s.engine.ListCapabilities(ctx),
	})
}

// handleMemoryStore stores a context node in the memory graph.
func (s *AriadneServer) handleMemoryStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	data := mcp.ParseStringMap(req, "data", map[string]any{})

	contextID, storeErr := s.memory.StoreContext(ctx, query, data, userID)
	if storeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context store failed: %v", storeErr)), nil
	}
	return marshalResult(map[string]any{"context_id": contextID})
}

// handleMemoryRetrieve scores stored contexts against a query.
func (s *AriadneServer) handleMemoryRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	maxResults := req.GetInt("max_results", 5)

	contexts, retErr := s.memory.RetrieveContext(ctx, query, userID, maxResults)
	if retErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context retrieval failed: %v", retErr)), nil
	}
	return marshalResult(map[string]any{
		"contexts": contexts,
		"count":    len(contexts),
	})
}

// handleMemoryGraph builds the per-user knowledge graph.
func (s *AriadneServer) handleMemoryGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	graph, graphErr := s.memory.BuildKnowledgeGraph(ctx, userID)
	if graphErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("knowledge graph build failed: %v", graphErr)), nil
	}
	return marshalResult(graph)
}

// handleSchedule manages recurring research queries.
func (s *AriadneServer) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}

	switch action {
	case "create":
		return s.createSchedule(ctx, req)
	case "list":
		queries, listErr := s.store.ListScheduledQueries(ctx, false)
		if listErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", listErr)), nil
		}
		return marshalResult(map[string]any{"scheduled_queries": queries})
	case "enable", "disable":
		id := req.GetString("schedule_id", "")
		if id == "" {
			return mcp.NewToolResultError("schedule_id is required"), nil
		}
		enabled := action == "enable"
		if updErr := s.store.UpdateScheduledQuery(ctx, id, store.ScheduledQueryUpdate{Enabled: &enabled}); updErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", updErr)), nil
		}
		return marshalResult(map[string]any{"schedule_id": id, "enabled": enabled})
	case "delete":
		id := req.GetString("schedule_id", "")
		if id == "" {
			return mcp.NewToolResultError("schedule_id is required"), nil
		}
		if delErr := s.store.DeleteScheduledQuery(ctx, id); delErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", delErr)), nil
		}
		return marshalResult(map[string]any{"schedule_id": id, "deleted": true})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action: %s", action)), nil
	}
}

func (s *AriadneServer) createSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	userID := req.GetString("user_id", "")
	cronExpr := req.GetString("cron", "")
	if query == "" || userID == "" || cronExpr == "" {
		return mcp.NewToolResultError("create requires query, user_id, and cron"), nil
	}

	now := time.Now().UTC()
	nextRun, cronErr := s.scheduler.CalculateNextRun(cronExpr, now)
	if cronErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", cronErr)), nil
	}

	sq := &store.ScheduledQuery{
		ID:        "sched_" + uuid.NewString()[:8],
		Query:     query,
		UserID:    userID,
		CronExpr:  cronExpr,
		Enabled:   true,
		NextRunAt: &nextRun,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if createErr := s.store.CreateScheduledQuery(ctx, sq); createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create failed: %v", createErr)), nil
	}
	return marshalResult(sq)
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
