package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/tool"
)

func newRegistry(t *testing.T) (*Workspace, *tool.Registry) {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	r := tool.NewRegistry()
	if err := r.RegisterAll(ws.Tools()); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return ws, r
}

func TestWorkspace_ParsedCallsRoundTrip(t *testing.T) {
	ws, r := newRegistry(t)
	reg, err := r.TagRegistry()
	if err != nil {
		t.Fatalf("TagRegistry: %v", err)
	}

	msg := "Creating it.\n<write_to_file><path>dir/a.xml</path><content>\n<a></content></a>\n</content></write_to_file>\n" +
		"<read_file><path>dir/a.xml</path></read_file>\n" +
		"<list_files><path>.</path><recursive>true</recursive></list_files>"
	calls := content.ToolUses(parser.Parse(reg, msg), true)
	if len(calls) != 3 {
		t.Fatalf("got %d calls", len(calls))
	}

	results := tool.NewExecutor(r).DispatchAll(context.Background(), calls, false)
	for i, res := range results {
		if res.Error != nil {
			t.Fatalf("call %d (%s): %v", i, res.ToolName, res.Error)
		}
	}

	data, err := os.ReadFile(filepath.Join(ws.Root(), "dir", "a.xml"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "<a></content></a>\n" {
		t.Errorf("file = %q", data)
	}
	if results[1].Output != "<a></content></a>\n" {
		t.Errorf("read_file output = %q", results[1].Output)
	}
	if results[2].Output != "dir/\ndir/a.xml" {
		t.Errorf("list_files output = %q", results[2].Output)
	}
}

func TestWorkspace_RefusesEscape(t *testing.T) {
	_, r := newRegistry(t)

	for _, p := range []string{"../etc/passwd", "a/../../x"} {
		block := content.NewToolUse("read_file", false)
		block.Params.Set("path", p)
		res := tool.NewExecutor(r).Dispatch(context.Background(), block)
		if !tool.IsToolCancel(res.Error) {
			t.Errorf("path %q: error = %v, want cancel", p, res.Error)
		}
	}
}

func TestWorkspace_ListNonRecursive(t *testing.T) {
	ws, r := newRegistry(t)
	_ = os.MkdirAll(filepath.Join(ws.Root(), "sub", "deep"), 0o755)
	_ = os.WriteFile(filepath.Join(ws.Root(), "sub", "deep", "x"), nil, 0o644)
	_ = os.WriteFile(filepath.Join(ws.Root(), "top"), nil, 0o644)

	block := content.NewToolUse("list_files", false)
	block.Params.Set("path", ".")
	res := tool.NewExecutor(r).Dispatch(context.Background(), block)
	if res.Error != nil {
		t.Fatalf("Dispatch: %v", res.Error)
	}
	if res.Output != "sub/\ntop" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestNewWorkspace_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, nil, 0o644)
	if _, err := NewWorkspace(f); err == nil {
		t.Error("expected error for a file")
	}
}
