package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// Well-known step IDs emitted by the planner.
const (
	StepWebSearch        = "web_search"
	StepDocumentAnalysis = "document_analysis"
	StepContextRetrieval = "context_retrieval"
	StepSynthesis        = "synthesis"
)

var interrogativeTokens = []string{"what", "how", "why", "when", "where", "who"}

var documentTokens = []string{"document", "paper", "article", "study", "research"}

// PlanSteps decomposes a query into research steps using deterministic rules.
// A retrieval step and a synthesis step are always present; synthesis depends
// on every other step in the plan. A search step is added when the query
// contains an interrogative token, an analysis step when it contains a
// document-related token. Analysis depends on search when both are present.
func PlanSteps(query string) []schema.WorkflowStep {
	queryLower := strings.ToLower(query)

	var steps []schema.WorkflowStep

	hasSearch := containsAny(queryLower, interrogativeTokens)
	if hasSearch {
		steps = append(steps, schema.WorkflowStep{
			ID:               StepWebSearch,
			Type:             schema.StepTypeSearch,
			Name:             "Web Search",
			Description:      "Search for relevant information",
			EstimatedSeconds: 30,
			Capability:       "web_search",
		})
	}

	if containsAny(queryLower, documentTokens) {
		analysis := schema.WorkflowStep{
			ID:               StepDocumentAnalysis,
			Type:             schema.StepTypeAnalysis,
			Name:             "Document Analysis",
			Description:      "Analyze and extract insights from documents",
			EstimatedSeconds: 60,
			Capability:       "document_ingestion",
		}
		if hasSearch {
			analysis.DependsOn = []string{StepWebSearch}
		}
		steps = append(steps, analysis)
	}

	steps = append(steps, schema.WorkflowStep{
		ID:               StepContextRetrieval,
		Type:             schema.StepTypeRetrieval,
		Name:             "Context Retrieval",
		Description:      "Retrieve relevant context from memory",
		EstimatedSeconds: 10,
	})

	synthesis := schema.WorkflowStep{
		ID:               StepSynthesis,
		Type:             schema.StepTypeSynthesis,
		Name:             "Synthesis",
		Description:      "Synthesize findings into coherent answer",
		EstimatedSeconds: 30,
	}
	for _, s := range steps {
		synthesis.DependsOn = append(synthesis.DependsOn, s.ID)
	}
	steps = append(steps, synthesis)

	return steps
}

// NewPlan builds a new plan in status planning for the given query and owner.
func NewPlan(query, userID string) (*schema.WorkflowPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "query must not be empty")
	}
	if userID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "user id must not be empty")
	}

	now := time.Now().UTC()
	return &schema.WorkflowPlan{
		ID:        "plan_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Query:     query,
		UserID:    userID,
		Steps:     PlanSteps(query),
		Results:   make(map[string]*schema.StepResult),
		Status:    schema.PlanStatusPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
