// Package render turns parsed blocks into HTML for chat UIs and into plain
// text for terminals. Snapshots taken mid-stream render the open block with a
// pending marker, so a UI can re-render on every chunk.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/youssefsiam38/tagstream/content"
)

//go:embed templates/*.html
var templatesFS embed.FS

// DefaultMaxParamLen caps how much of a parameter value is shown
const DefaultMaxParamLen = 2000

// Renderer renders blocks with the embedded templates
type Renderer struct {
	tmpl        *template.Template
	maxParamLen int
}

type blockView struct {
	Kind        string
	Partial     bool
	Content     string
	Name        string
	Params      []paramView
	MaxParamLen int
}

type paramView struct {
	Name  string
	Value string
}

// New creates a renderer. maxParamLen <= 0 selects DefaultMaxParamLen.
func New(maxParamLen int) (*Renderer, error) {
	if maxParamLen <= 0 {
		maxParamLen = DefaultMaxParamLen
	}
	tmpl, err := template.New("render").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, maxParamLen: maxParamLen}, nil
}

var defaultRenderer = func() *Renderer {
	r, err := New(0)
	if err != nil {
		panic(err)
	}
	return r
}()

// HTML renders blocks with the default renderer
func HTML(blocks []content.Block) (template.HTML, error) {
	return defaultRenderer.HTML(blocks)
}

// HTML renders blocks to an HTML fragment
func (r *Renderer) HTML(blocks []content.Block) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf, blocks); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// WriteHTML renders blocks to w
func (r *Renderer) WriteHTML(w io.Writer, blocks []content.Block) error {
	views := make([]blockView, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case *content.TextBlock:
			if v.IsEmpty() {
				continue
			}
			views = append(views, blockView{Kind: string(content.KindText), Partial: v.Partial, Content: v.Content})
		case *content.ToolUseBlock:
			view := blockView{Kind: string(content.KindToolUse), Partial: v.Partial, Name: v.Name, MaxParamLen: r.maxParamLen}
			v.Params.Each(func(name, value string) {
				view.Params = append(view.Params, paramView{Name: name, Value: value})
			})
			views = append(views, view)
		}
	}
	if err := r.tmpl.ExecuteTemplate(w, "blocks", views); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

// Plain renders blocks as terminal text. Tool calls become a header line and
// one indented line per parameter.
func Plain(blocks []content.Block) string {
	var parts []string
	for _, b := range blocks {
		switch v := b.(type) {
		case *content.TextBlock:
			if !v.IsEmpty() {
				parts = append(parts, v.Content)
			}
		case *content.ToolUseBlock:
			var sb strings.Builder
			sb.WriteString("[" + v.Name)
			if v.Partial {
				sb.WriteString(" (pending)")
			}
			sb.WriteString("]")
			v.Params.Each(func(name, value string) {
				sb.WriteString("\n  " + name + ": " + strings.ReplaceAll(value, "\n", "\n    "))
			})
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, "\n\n")
}

// Template helper functions

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"truncate": truncate,
	}
}

// truncate shortens s to at most n runes, marking the cut
func truncate(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
