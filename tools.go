package agentlink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/bazelment/agentlink/protocol"
)

// Tool is a client-side tool the server can invoke during a session. Build
// one with NewTool for schema derivation from a params struct, or
// NewRawTool to supply the schema directly.
type Tool struct {
	name        string
	description string
	schema      json.RawMessage
	invoke      func(context.Context, json.RawMessage) (string, error)
}

// NewTool registers a type-safe tool handler. The parameter schema is
// derived from T's json and jsonschema struct tags.
//
// Example:
//
//	type WeatherParams struct {
//	    City string `json:"city" jsonschema:"required,description=City to look up"`
//	}
//
//	tool := NewTool("get_weather", "Look up current weather",
//	    func(ctx context.Context, p WeatherParams) (string, error) {
//	        return lookup(p.City)
//	    })
func NewTool[T any](name, description string, handler func(context.Context, T) (string, error)) Tool {
	return Tool{
		name:        name,
		description: description,
		schema:      generateSchema[T](),
		invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params T
			if len(args) > 0 {
				if err := json.Unmarshal(args, &params); err != nil {
					return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
				}
			}
			return handler(ctx, params)
		},
	}
}

// NewRawTool registers a tool with an explicit JSON schema and raw
// argument handling.
func NewRawTool(name, description string, schema json.RawMessage, handler func(context.Context, json.RawMessage) (string, error)) Tool {
	return Tool{
		name:        name,
		description: description,
		schema:      schema,
		invoke:      handler,
	}
}

// Name returns the tool's name.
func (t Tool) Name() string {
	return t.name
}

// Definition returns the tool advertisement sent at session creation.
func (t Tool) Definition() protocol.ToolDefinition {
	return protocol.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.schema,
	}
}

// generateSchema reflects a JSON schema from a Go struct type using
// jsonschema struct tags.
func generateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	bytes, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}
	return json.RawMessage(bytes)
}
