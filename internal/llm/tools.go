package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/teemow/calendarassist/internal/gateway"
)

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments. Nil means no arguments.
	Parameters json.RawMessage
	Call       func(ctx context.Context, args map[string]any) (string, error)
}

// noArguments is the schema sent for tools without a declared schema.
var noArguments = jsonschema.Definition{
	Type:       jsonschema.Object,
	Properties: map[string]jsonschema.Definition{},
}

func functionTools(tools []Tool) ([]openai.Tool, map[string]Tool, error) {
	if len(tools) == 0 {
		return nil, nil, nil
	}
	out := make([]openai.Tool, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t.Name == "" || t.Call == nil {
			return nil, nil, fmt.Errorf("tool %q has no name or handler", t.Name)
		}
		if _, dup := byName[t.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		byName[t.Name] = t

		var params any = noArguments
		if len(t.Parameters) > 0 {
			params = t.Parameters
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out, byName, nil
}

// ToolCaller invokes gateway tools by name.
type ToolCaller interface {
	Tools() []mcp.Tool
	Call(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// FromToolSet exposes every tool advertised by a gateway session.
func FromToolSet(ts ToolCaller) ([]Tool, error) {
	advertised := ts.Tools()
	tools := make([]Tool, 0, len(advertised))
	for _, mt := range advertised {
		schema, err := gateway.Schema(mt)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema of tool %s: %w", mt.Name, err)
		}
		name := mt.Name
		tools = append(tools, Tool{
			Name:        name,
			Description: mt.Description,
			Parameters:  schema,
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				return ts.Call(ctx, name, args)
			},
		})
	}
	return tools, nil
}
