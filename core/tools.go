package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/embodielabs/presence-core/core/speechmodel"
)

// gestureToolPrefix marks function calls that are fire-and-forget embodiment
// side effects. They run without leaving the current conversation state.
const gestureToolPrefix = "gesture."

type Tool struct {
	Name        string
	Description string

	parameters *jsonschema.Schema
	execute    func(ctx context.Context, arguments string) (string, error)
}

// NewTool builds a tool whose parameter schema is reflected from T.
func NewTool[T any](name, description string, handler func(ctx context.Context, params T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var params T
	var schema *jsonschema.Schema
	if reflect.TypeOf(params) != nil && reflect.TypeOf(params).Kind() == reflect.Ptr {
		schema = reflector.ReflectFromType(reflect.TypeOf(params).Elem())
	} else {
		schema = reflector.Reflect(params)
	}

	return Tool{
		Name:        name,
		Description: description,
		parameters:  schema,
		execute: func(ctx context.Context, arguments string) (string, error) {
			var parsed T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &parsed); err != nil {
					return "", fmt.Errorf("failed to parse tool arguments: %w", err)
				}
			}
			return handler(ctx, parsed)
		},
	}
}

func (t Tool) IsGesture() bool {
	return strings.HasPrefix(t.Name, gestureToolPrefix)
}

func (t Tool) definition() speechmodel.ToolDefinition {
	return speechmodel.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.parameters,
	}
}

func (o *Orchestrator) toolDefinitions() []speechmodel.ToolDefinition {
	definitions := make([]speechmodel.ToolDefinition, 0, len(o.tools))
	for _, tool := range o.tools {
		definitions = append(definitions, tool.definition())
	}
	return definitions
}

func (o *Orchestrator) callTool(ctx context.Context, name, arguments string) (string, error) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	for _, tool := range o.tools {
		if tool.Name == name {
			resp, err := tool.execute(ctx, arguments)
			if err != nil {
				err = fmt.Errorf("failed to execute tool %q: %w", name, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return "", err
			}
			return resp, nil
		}
	}

	err := fmt.Errorf("tool not found: %s", name)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "", err
}
