// Package builtin provides file tools for the default tag catalogue, confined
// to a workspace directory.
package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/tool"
)

// Workspace resolves tool paths against a root directory
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at dir
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", abs)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace directory
func (w *Workspace) Root() string {
	return w.root
}

// Tools returns read_file, write_to_file and list_files bound to w
func (w *Workspace) Tools() []tool.Tool {
	return []tool.Tool{w.ReadFile(), w.WriteToFile(), w.ListFiles()}
}

// resolve maps a tool path into the workspace. Paths escaping the root are
// refused with a discard error.
func (w *Workspace) resolve(params *content.Params) (string, error) {
	rel, _ := params.Get("path")
	if rel == "" {
		return "", tool.ToolDiscard(fmt.Errorf("empty path"))
	}
	p := filepath.Join(w.root, filepath.FromSlash(rel))
	if p != w.root && !strings.HasPrefix(p, w.root+string(filepath.Separator)) {
		return "", tool.ToolCancel(fmt.Errorf("path %s is outside the workspace", rel))
	}
	return p, nil
}

// ReadFile returns the read_file tool
func (w *Workspace) ReadFile() tool.Tool {
	return tool.NewFuncTool(
		"read_file",
		"Read the contents of a file in the workspace",
		tool.Schema{{Name: "path", Description: "File path relative to the workspace", Required: true}},
		func(ctx context.Context, params *content.Params) (string, error) {
			p, err := w.resolve(params)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", p, err)
			}
			return string(data), nil
		},
	)
}

// WriteToFile returns the write_to_file tool. Its content body is raw.
func (w *Workspace) WriteToFile() tool.Tool {
	return tool.NewFuncTool(
		"write_to_file",
		"Write a file in the workspace, creating parent directories",
		tool.Schema{
			{Name: "path", Description: "File path relative to the workspace", Required: true},
			{Name: "content", Description: "Complete file content", Required: true, Raw: true},
		},
		func(ctx context.Context, params *content.Params) (string, error) {
			p, err := w.resolve(params)
			if err != nil {
				return "", err
			}
			body, _ := params.Get("content")
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return "", fmt.Errorf("create parent of %s: %w", p, err)
			}
			if err := os.WriteFile(p, []byte(body+"\n"), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", p, err)
			}
			rel, _ := params.Get("path")
			return fmt.Sprintf("wrote %d bytes to %s", len(body)+1, rel), nil
		},
	)
}

// ListFiles returns the list_files tool
func (w *Workspace) ListFiles() tool.Tool {
	return tool.NewFuncTool(
		"list_files",
		"List the files in a workspace directory",
		tool.Schema{
			{Name: "path", Description: "Directory relative to the workspace", Required: true},
			{Name: "recursive", Enum: []string{"true", "false"}},
		},
		func(ctx context.Context, params *content.Params) (string, error) {
			dir, err := w.resolve(params)
			if err != nil {
				return "", err
			}
			recursive, _ := params.Get("recursive")

			var names []string
			err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if path == dir {
					return nil
				}
				rel, _ := filepath.Rel(dir, path)
				rel = filepath.ToSlash(rel)
				if d.IsDir() {
					names = append(names, rel+"/")
					if recursive != "true" {
						return filepath.SkipDir
					}
					return nil
				}
				names = append(names, rel)
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("list %s: %w", dir, err)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	)
}
