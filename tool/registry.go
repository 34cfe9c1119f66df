package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/registry"
)

// Registry manages tools in registration order
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	seen := make(map[string]bool)
	for _, p := range tool.Schema() {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter name cannot be empty", name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %s", name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// RegisterAll adds multiple tools to the registry
func (r *Registry) RegisterAll(tools []Tool) error {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// List returns all registered tool names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// TagRegistry derives the parser's tag registry from the registered tools.
// Registration order becomes the parser's matching order.
func (r *Registry) TagRegistry() (*registry.Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]registry.Entry, 0, len(r.order))
	for _, name := range r.order {
		schema := r.tools[name].Schema()
		entry := registry.Entry{Name: name, Params: schema.Names()}
		for _, p := range schema {
			if p.Raw {
				entry.Raw = append(entry.Raw, p.Name)
			}
		}
		entries = append(entries, entry)
	}
	return registry.New(entries...)
}

// ToAnthropicTools converts all registered tools to Anthropic tool parameters.
// Every tag parameter is a string property.
func (r *Registry) ToAnthropicTools() []anthropic.ToolParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	params := make([]anthropic.ToolParam, 0, len(r.order))
	for _, name := range r.order {
		params = append(params, convertToolToParam(r.tools[name]))
	}
	return params
}

// ToAnthropicToolUnions converts tools to union parameters
func (r *Registry) ToAnthropicToolUnions() []anthropic.ToolUnionParam {
	params := r.ToAnthropicTools()
	unions := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		unions[i] = anthropic.ToolUnionParam{OfTool: &params[i]}
	}
	return unions
}

func convertToolToParam(tool Tool) anthropic.ToolParam {
	schema := tool.Schema()

	properties := make(map[string]any, len(schema))
	for _, p := range schema {
		prop := map[string]any{"type": "string"}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       constant.Object("object"),
		Properties: properties,
	}
	if required := schema.Required(); len(required) > 0 {
		inputSchema.Required = required
	}

	return anthropic.ToolParam{
		Name:        tool.Name(),
		Description: anthropic.String(tool.Description()),
		InputSchema: inputSchema,
	}
}

// Execute executes a tool by name
func (r *Registry) Execute(ctx context.Context, toolName string, params *content.Params) (string, error) {
	tool, exists := r.Get(toolName)
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}
	return tool.Execute(ctx, params)
}
