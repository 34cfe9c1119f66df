// Package tool executes the tool calls the parser extracts from a stream.
package tool

import (
	"context"

	"github.com/youssefsiam38/tagstream/content"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// Name returns the tool name, which is also its tag name
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// Schema lists the tool's parameters in the order they are documented
	Schema() Schema

	// Execute runs the tool with the parameters of a complete tool call
	Execute(ctx context.Context, params *content.Params) (string, error)
}

// Schema describes the parameters of a tool
type Schema []ParamDef

// ParamDef defines a single tool parameter
type ParamDef struct {
	// Name is the parameter tag name
	Name string `json:"name" yaml:"name"`

	// Description explains what this parameter is for
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Required parameters must be present for the call to be dispatched
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Enum restricts the parameter to specific values
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Raw marks a body parameter whose value may contain its own closing tag
	Raw bool `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Names returns the parameter names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Required returns the names of the required parameters
func (s Schema) Required() []string {
	var names []string
	for _, p := range s {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// funcTool is a simple Tool implementation using a function
type funcTool struct {
	name        string
	description string
	schema      Schema
	fn          func(context.Context, *content.Params) (string, error)
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }
func (t *funcTool) Schema() Schema      { return t.schema }

func (t *funcTool) Execute(ctx context.Context, params *content.Params) (string, error) {
	return t.fn(ctx, params)
}

// NewFuncTool creates a Tool from a function.
// This is useful for simple tools where you don't want to create a full struct.
func NewFuncTool(
	name string,
	description string,
	schema Schema,
	fn func(context.Context, *content.Params) (string, error),
) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}
