package capability

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const documentInputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": { "type": "string", "minLength": 1 },
    "context": { "type": "object" },
    "user_id": { "type": "string" },
    "session_id": { "type": "string" }
  }
}`

// DocumentIngestion is the built-in document analysis provider. Document
// parsing itself is out of scope; the provider returns a structured stub
// payload keyed by a generated document id.
type DocumentIngestion struct {
	schema *inputSchema
}

// NewDocumentIngestion creates the document_ingestion capability.
func NewDocumentIngestion() *DocumentIngestion {
	return &DocumentIngestion{schema: newInputSchema(documentInputSchema)}
}

func (d *DocumentIngestion) Name() string           { return "document_ingestion" }
func (d *DocumentIngestion) Description() string    { return "Ingest and analyze documents" }
func (d *DocumentIngestion) Version() string        { return "1.0.0" }
func (d *DocumentIngestion) Timeout() time.Duration { return 60 * time.Second }

func (d *DocumentIngestion) Validate(input Input) error {
	return d.schema.Validate(input)
}

func (d *DocumentIngestion) Execute(ctx context.Context, input Input) (*Output, error) {
	start := time.Now()
	if err := d.Validate(input); err != nil {
		return Failure(err.Error()), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return Failure("query is blank"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Output{
		Success: true,
		Data: map[string]any{
			"document_id": "doc_" + uuid.NewString()[:8],
			"status":      "ingested",
		},
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Metadata:        map[string]any{"capability": "document_ingestion", "status": "stub"},
	}, nil
}
