package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/youssefsiam38/tagstream/content"
)

func noop(ctx context.Context, params *content.Params) (string, error) { return "", nil }

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tool    Tool
		wantErr bool
	}{
		{"valid", NewFuncTool("read_file", "", Schema{{Name: "path"}}, noop), false},
		{"nil", nil, true},
		{"empty name", NewFuncTool("", "", nil, noop), true},
		{"empty param name", NewFuncTool("x", "", Schema{{Name: ""}}, noop), true},
		{"duplicate param", NewFuncTool("x", "", Schema{{Name: "a"}, {Name: "a"}}, noop), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.tool)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	r := NewRegistry()
	_ = r.Register(NewFuncTool("a", "", nil, noop))
	if err := r.Register(NewFuncTool("a", "", nil, noop)); err == nil {
		t.Error("expected error registering a tool twice")
	}
}

func TestRegistry_TagRegistry(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterAll([]Tool{
		NewFuncTool("write_to_file", "", Schema{{Name: "path"}, {Name: "content", Raw: true}}, noop),
		NewFuncTool("read_file", "", Schema{{Name: "path"}}, noop),
	})
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	reg, err := r.TagRegistry()
	if err != nil {
		t.Fatalf("TagRegistry: %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "write_to_file" || names[1] != "read_file" {
		t.Errorf("Names() = %v", names)
	}
	def, _ := reg.Lookup("write_to_file")
	if p, ok := def.Param("content"); !ok || !p.Raw {
		t.Errorf("content param = %+v, %v; want raw", p, ok)
	}
	if p, _ := def.Param("path"); p.Raw {
		t.Error("path should not be raw")
	}
}

func TestRegistry_TagRegistryRejectsBadNames(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewFuncTool("bad<name", "", nil, noop))
	if _, err := r.TagRegistry(); err == nil {
		t.Error("expected error for tag-unsafe tool name")
	}
}

func TestRegistry_ToAnthropicTools(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewFuncTool("list_files", "Lists a directory",
		Schema{
			{Name: "path", Description: "Directory", Required: true},
			{Name: "recursive", Enum: []string{"true", "false"}},
		}, noop))
	_ = r.Register(NewFuncTool("new_task", "Starts a task", nil, noop))

	tools := r.ToAnthropicTools()
	if len(tools) != 2 {
		t.Fatalf("got %d tools", len(tools))
	}
	lf := tools[0]
	if lf.Name != "list_files" {
		t.Errorf("Name = %q", lf.Name)
	}
	props, ok := lf.InputSchema.Properties.(map[string]any)
	if !ok || len(props) != 2 {
		t.Fatalf("Properties = %#v", lf.InputSchema.Properties)
	}
	rec := props["recursive"].(map[string]any)
	if rec["type"] != "string" {
		t.Errorf("recursive type = %v", rec["type"])
	}
	if len(lf.InputSchema.Required) != 1 || lf.InputSchema.Required[0] != "path" {
		t.Errorf("Required = %v", lf.InputSchema.Required)
	}
	if tools[1].InputSchema.Required != nil {
		t.Errorf("new_task Required = %v", tools[1].InputSchema.Required)
	}

	unions := r.ToAnthropicToolUnions()
	if len(unions) != 2 || unions[1].OfTool == nil || unions[1].OfTool.Name != "new_task" {
		t.Errorf("unions = %+v", unions)
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewFuncTool("echo", "", Schema{{Name: "text"}},
		func(ctx context.Context, params *content.Params) (string, error) {
			v, _ := params.Get("text")
			return v, nil
		}))

	out, err := r.Execute(context.Background(), "echo", content.ParamsOf("text", "hi"))
	if err != nil || out != "hi" {
		t.Errorf("Execute = %q, %v", out, err)
	}
	if _, err := r.Execute(context.Background(), "nope", nil); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}

func TestStreamContext(t *testing.T) {
	if _, ok := GetStreamContext(context.Background()); ok {
		t.Error("empty context reported stream context")
	}

	id := uuid.New()
	ctx := WithStreamContext(context.Background(), StreamContext{
		StreamID:  id,
		SessionID: "s1",
		Variables: map[string]any{"cwd": "/tmp", "depth": 3},
	})

	sc, ok := GetStreamContext(ctx)
	if !ok || sc.StreamID != id || sc.SessionID != "s1" {
		t.Errorf("GetStreamContext = %+v, %v", sc, ok)
	}
	if cwd, ok := GetVariable[string](ctx, "cwd"); !ok || cwd != "/tmp" {
		t.Errorf("cwd = %q, %v", cwd, ok)
	}
	if _, ok := GetVariable[string](ctx, "depth"); ok {
		t.Error("wrong-typed variable reported ok")
	}
	if got := GetVariableOr(ctx, "missing", "dflt"); got != "dflt" {
		t.Errorf("GetVariableOr = %q", got)
	}
}

func TestErrorWrappers(t *testing.T) {
	base := errors.New("denied")
	c := ToolCancel(base)
	if !IsToolCancel(c) || IsToolDiscard(c) || !errors.Is(c, base) {
		t.Errorf("cancel error classification wrong: %v", c)
	}
	d := ToolDiscard(nil)
	if !IsToolDiscard(d) || d.Error() != "tool discarded" {
		t.Errorf("discard error = %v", d)
	}
}
