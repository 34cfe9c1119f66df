// Package registry holds the Tag Registry: the fixed, ordered catalogue of
// tool names and their parameter names that the parser recognizes.
//
// A Registry is immutable once built and safe for concurrent use. Delimiter
// strings are computed at construction so that the parser only does suffix
// comparisons while scanning.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidRegistry is returned when a catalogue cannot be turned into a registry
var ErrInvalidRegistry = errors.New("invalid tag registry")

// Entry describes one tool for registry construction
type Entry struct {
	// Name is the tool name, used verbatim as the tag name
	Name string `yaml:"name"`

	// Params lists the recognized parameter names in order
	Params []string `yaml:"params"`

	// Raw lists parameters whose value may contain text that looks like the
	// parameter's own closing tag (file bodies and the like). Every name here
	// must also appear in Params.
	Raw []string `yaml:"raw,omitempty"`
}

// Param is a recognized parameter with its pre-built delimiters
type Param struct {
	Name  string
	Raw   bool
	Open  string // <name>
	Close string // </name>
}

// Tool is a recognized tool with its pre-built delimiters
type Tool struct {
	Name   string
	Open   string // <name>
	Close  string // </name>
	params []Param
	index  map[string]int
}

// Params returns the tool's recognized parameter names in registry order
func (t *Tool) Params() []string {
	names := make([]string, len(t.params))
	for i, p := range t.params {
		names[i] = p.Name
	}
	return names
}

// ParamDefs returns the tool's parameters with their delimiters, in order.
// The returned slice must not be modified.
func (t *Tool) ParamDefs() []Param {
	return t.params
}

// Param looks up a parameter by name
func (t *Tool) Param(name string) (Param, bool) {
	i, ok := t.index[name]
	if !ok {
		return Param{}, false
	}
	return t.params[i], true
}

// Registry is an immutable, ordered set of tools
type Registry struct {
	tools  []*Tool
	index  map[string]*Tool
	maxTag int
}

// New builds a registry from entries, preserving their order
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{
		tools: make([]*Tool, 0, len(entries)),
		index: make(map[string]*Tool, len(entries)),
	}

	for _, e := range entries {
		if err := validateName(e.Name); err != nil {
			return nil, fmt.Errorf("%w: tool %q: %v", ErrInvalidRegistry, e.Name, err)
		}
		if _, exists := r.index[e.Name]; exists {
			return nil, fmt.Errorf("%w: tool %q registered twice", ErrInvalidRegistry, e.Name)
		}

		raw := make(map[string]bool, len(e.Raw))
		for _, name := range e.Raw {
			raw[name] = true
		}

		t := &Tool{
			Name:   e.Name,
			Open:   openTag(e.Name),
			Close:  closeTag(e.Name),
			params: make([]Param, 0, len(e.Params)),
			index:  make(map[string]int, len(e.Params)),
		}
		for _, p := range e.Params {
			if err := validateName(p); err != nil {
				return nil, fmt.Errorf("%w: tool %q: param %q: %v", ErrInvalidRegistry, e.Name, p, err)
			}
			if _, exists := t.index[p]; exists {
				return nil, fmt.Errorf("%w: tool %q: param %q listed twice", ErrInvalidRegistry, e.Name, p)
			}
			t.index[p] = len(t.params)
			t.params = append(t.params, Param{
				Name:  p,
				Raw:   raw[p],
				Open:  openTag(p),
				Close: closeTag(p),
			})
			delete(raw, p)
			r.noteTag(len(p))
		}
		for name := range raw {
			return nil, fmt.Errorf("%w: tool %q: raw param %q is not a listed param", ErrInvalidRegistry, e.Name, name)
		}

		r.tools = append(r.tools, t)
		r.index[t.Name] = t
		r.noteTag(len(e.Name))
	}

	return r, nil
}

// MustNew is like New but panics on error. Intended for package-level catalogues.
func MustNew(entries ...Entry) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) noteTag(nameLen int) {
	// </name> is the longest delimiter for a name
	if n := nameLen + 3; n > r.maxTag {
		r.maxTag = n
	}
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Has reports whether name is a recognized tool
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Tools returns the tools in registry order. The returned slice must not be modified.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Names returns the tool names in registry order
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return len(r.tools)
}

// MaxDelimiterLen returns the length of the longest delimiter in the registry
func (r *Registry) MaxDelimiterLen() int {
	return r.maxTag
}

// Entries returns the catalogue the registry was built from
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.tools))
	for i, t := range r.tools {
		e := Entry{Name: t.Name, Params: t.Params()}
		for _, p := range t.params {
			if p.Raw {
				e.Raw = append(e.Raw, p.Name)
			}
		}
		entries[i] = e
	}
	return entries
}

func openTag(name string) string  { return "<" + name + ">" }
func closeTag(name string) string { return "</" + name + ">" }

// validateName rejects names that could not be told apart from the
// surrounding markup.
func validateName(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	if strings.ContainsAny(name, "<>/") {
		return errors.New("name contains a tag character")
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errors.New("name contains whitespace")
	}
	return nil
}
