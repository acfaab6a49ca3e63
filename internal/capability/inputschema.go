package capability

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// inputSchema wraps a compiled JSON Schema for capability input validation.
// Compilation is lazy and cached; safe for concurrent use.
type inputSchema struct {
	raw string

	once     sync.Once
	compiled *jsonschema.Schema
	compErr  error
}

func newInputSchema(raw string) *inputSchema {
	return &inputSchema{raw: raw}
}

// Validate checks a capability Input against the schema. The Input is
// projected to {query, context, user_id, session_id} before validation.
func (s *inputSchema) Validate(input Input) error {
	s.once.Do(func() {
		s.compiled, s.compErr = compileSchema(s.raw)
	})
	if s.compErr != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(s.compErr)
	}

	doc, err := toJSONValue(input)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return toAriadneError(err)
	}
	return nil
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()

	const url = "ariadne://capability-input-schema"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

// toJSONValue round-trips a Go value through JSON encoding so numeric values
// become json.Number, as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toAriadneError converts a jsonschema.ValidationError into an AriadneError
// with leaf violation messages.
func toAriadneError(err error) *schema.AriadneError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
