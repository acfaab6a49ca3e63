package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

const (
	nodeKindContext = "research_context"
	nodeKindConcept = "concept"

	edgeTypeMentions = "mentions"
)

// node is one arena entry. Context nodes carry the research interaction
// fields; concept nodes carry a name and a global frequency counter.
type node struct {
	id   string
	kind string

	// context fields
	query          string
	content        string
	sources        []string
	ownerID        string
	relevanceScore float64
	timestamp      time.Time

	// concept fields
	name      string
	frequency int
}

// edge links two arena nodes by index.
type edge struct {
	source int
	target int
	kind   string
	weight float64
}

// ContextRecord is one retrieval hit returned by RetrieveContext.
type ContextRecord struct {
	ContextID      string    `json:"context_id"`
	Query          string    `json:"query"`
	Content        string    `json:"content"`
	Sources        []string  `json:"sources,omitempty"`
	RelevanceScore int       `json:"relevance_score"`
	Timestamp      time.Time `json:"timestamp"`
}

// ContextMention is one (query, timestamp) pair referencing a concept.
type ContextMention struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// ConceptSummary describes one concept for graph visualization.
type ConceptSummary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Frequency int              `json:"frequency"`
	Contexts  []ContextMention `json:"contexts"`
}

// ConceptCount pairs a concept name with its global frequency.
type ConceptCount struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
}

// Stats summarizes the whole graph.
type Stats struct {
	TotalContexts      int              `json:"total_contexts"`
	TotalConcepts      int              `json:"total_concepts"`
	TotalEdges         int              `json:"total_edges"`
	MostCommonConcepts []ConceptCount   `json:"most_common_concepts"`
	RecentContexts     []ContextMention `json:"recent_contexts"`
}

// KnowledgeGraph is the visualization payload for one owner.
type KnowledgeGraph struct {
	Concepts []ConceptSummary `json:"concepts"`
	Stats    Stats            `json:"stats"`
}

// Graph is the in-process context memory graph. Nodes live in an append-only
// arena; edges reference arena indices. A secondary index keyed by owner id
// avoids full scans on retrieval, and concept frequency is tracked globally
// across owners. The structure is append-only except for frequency increments.
type Graph struct {
	mu sync.RWMutex

	nodes []node
	edges []edge

	contextsByOwner map[string][]int
	conceptByName   map[string]int

	logger *slog.Logger
}

// NewGraph creates an empty memory graph.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		contextsByOwner: make(map[string][]int),
		conceptByName:   make(map[string]int),
		logger:          logger.With(slog.String("component", "memory")),
	}
}

// StoreContext records one research interaction for the owner and links it to
// the concepts extracted from the query and content. Returns the context node
// id. Concept frequency counters are global: mentions by different owners
// accumulate on the same concept node.
func (g *Graph) StoreContext(ctx context.Context, query string, data map[string]any, ownerID string) (string, error) {
	if query == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "query must not be empty")
	}
	if ownerID == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "owner id must not be empty")
	}

	content, _ := data["content"].(string)
	sources := toStringSlice(data["sources"])
	relevance := 0.5
	if r, ok := data["relevance_score"].(float64); ok {
		relevance = r
	}

	contextID := "ctx_" + uuid.NewString()
	concepts := extractConcepts(query + " " + content)

	g.mu.Lock()
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node{
		id:             contextID,
		kind:           nodeKindContext,
		query:          query,
		content:        content,
		sources:        sources,
		ownerID:        ownerID,
		relevanceScore: relevance,
		timestamp:      time.Now().UTC(),
	})
	g.contextsByOwner[ownerID] = append(g.contextsByOwner[ownerID], idx)

	for _, concept := range concepts {
		cIdx, exists := g.conceptByName[concept]
		if exists {
			g.nodes[cIdx].frequency++
		} else {
			cIdx = len(g.nodes)
			g.nodes = append(g.nodes, node{
				id:        "concept_" + concept,
				kind:      nodeKindConcept,
				name:      concept,
				frequency: 1,
			})
			g.conceptByName[concept] = cIdx
		}
		g.edges = append(g.edges, edge{
			source: idx,
			target: cIdx,
			kind:   edgeTypeMentions,
			weight: 1.0,
		})
	}
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "context stored",
		slog.String("context_id", contextID),
		slog.String("owner_id", ownerID),
		slog.Int("concepts", len(concepts)))

	return contextID, nil
}

// RetrieveContext scores the owner's context nodes against the query and
// returns up to maxResults hits with nonzero score, highest first. Ties keep
// original storage order. Scoring per query token: +1 when the token appears
// in the stored content, +2 when it appears in the stored query.
func (g *Graph) RetrieveContext(ctx context.Context, query, ownerID string, maxResults int) ([]ContextRecord, error) {
	if ownerID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "owner id must not be empty")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	tokens := extractConcepts(query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var hits []ContextRecord
	for _, idx := range g.contextsByOwner[ownerID] {
		n := g.nodes[idx]
		content := strings.ToLower(n.content)
		storedQuery := strings.ToLower(n.query)

		score := 0
		for _, token := range tokens {
			if strings.Contains(content, token) {
				score++
			}
			if strings.Contains(storedQuery, token) {
				score += 2
			}
		}
		if score == 0 {
			continue
		}

		hits = append(hits, ContextRecord{
			ContextID:      n.id,
			Query:          n.query,
			Content:        n.content,
			Sources:        append([]string(nil), n.sources...),
			RelevanceScore: score,
			Timestamp:      n.timestamp,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RelevanceScore > hits[j].RelevanceScore
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// BuildKnowledgeGraph collects every concept reachable from the owner's
// context nodes via mentions edges, with the (query, timestamp) pairs of the
// contexts that mention each.
func (g *Graph) BuildKnowledgeGraph(ctx context.Context, ownerID string) (*KnowledgeGraph, error) {
	if ownerID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "owner id must not be empty")
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	owned := make(map[int]struct{}, len(g.contextsByOwner[ownerID]))
	for _, idx := range g.contextsByOwner[ownerID] {
		owned[idx] = struct{}{}
	}

	byName := make(map[string]*ConceptSummary)
	var order []string

	for _, e := range g.edges {
		if e.kind != edgeTypeMentions {
			continue
		}
		if _, ok := owned[e.source]; !ok {
			continue
		}
		ctxNode := g.nodes[e.source]
		concept := g.nodes[e.target]

		summary, ok := byName[concept.name]
		if !ok {
			summary = &ConceptSummary{
				ID:        concept.id,
				Name:      concept.name,
				Frequency: concept.frequency,
			}
			byName[concept.name] = summary
			order = append(order, concept.name)
		}
		summary.Contexts = append(summary.Contexts, ContextMention{
			Query:     ctxNode.query,
			Timestamp: ctxNode.timestamp,
		})
	}

	kg := &KnowledgeGraph{Stats: g.statsLocked()}
	for _, name := range order {
		kg.Concepts = append(kg.Concepts, *byName[name])
	}
	return kg, nil
}

// Stats returns global graph statistics.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.statsLocked()
}

func (g *Graph) statsLocked() Stats {
	s := Stats{TotalEdges: len(g.edges)}

	var counts []ConceptCount
	var contextIdx []int
	for i, n := range g.nodes {
		switch n.kind {
		case nodeKindContext:
			s.TotalContexts++
			contextIdx = append(contextIdx, i)
		case nodeKindConcept:
			s.TotalConcepts++
			counts = append(counts, ConceptCount{Name: n.name, Frequency: n.frequency})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Frequency > counts[j].Frequency
	})
	if len(counts) > 5 {
		counts = counts[:5]
	}
	s.MostCommonConcepts = counts

	// The arena is append-only, so the tail holds the most recent contexts.
	for i := len(contextIdx) - 1; i >= 0 && len(s.RecentContexts) < 5; i-- {
		n := g.nodes[contextIdx[i]]
		s.RecentContexts = append(s.RecentContexts, ContextMention{
			Query:     n.query,
			Timestamp: n.timestamp,
		})
	}
	return s
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
