package content

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params is an ordered mapping of parameter name to value. Iteration order is
// the order in which each key was first set; setting an existing key
// replaces its value in place.
//
// The zero value and a nil *Params are both valid empty sets for reading.
type Params struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewParams creates an empty parameter set
func NewParams() *Params {
	return &Params{m: orderedmap.New[string, string]()}
}

// ParamsOf builds a parameter set from alternating key, value arguments.
// A trailing key without a value is ignored.
func ParamsOf(kv ...string) *Params {
	p := NewParams()
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

func (p *Params) lazy() {
	if p.m == nil {
		p.m = orderedmap.New[string, string]()
	}
}

// Set stores value under name
func (p *Params) Set(name, value string) {
	p.lazy()
	p.m.Set(name, value)
}

// Get returns the value stored under name
func (p *Params) Get(name string) (string, bool) {
	if p == nil || p.m == nil {
		return "", false
	}
	return p.m.Get(name)
}

// Has reports whether name is present
func (p *Params) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Len returns the number of parameters
func (p *Params) Len() int {
	if p == nil || p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Keys returns parameter names in insertion order
func (p *Params) Keys() []string {
	keys := make([]string, 0, p.Len())
	p.Each(func(name, _ string) {
		keys = append(keys, name)
	})
	return keys
}

// Each calls fn for every parameter in insertion order
func (p *Params) Each(fn func(name, value string)) {
	if p == nil || p.m == nil {
		return
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Map returns an unordered copy of the parameters
func (p *Params) Map() map[string]string {
	out := make(map[string]string, p.Len())
	p.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// Clone returns a deep copy
func (p *Params) Clone() *Params {
	c := NewParams()
	p.Each(func(name, value string) {
		c.m.Set(name, value)
	})
	return c
}

// Equal reports whether both sets hold the same pairs in the same order
func (p *Params) Equal(other *Params) bool {
	if p.Len() != other.Len() {
		return false
	}
	if p.Len() == 0 {
		return true
	}
	a, b := p.m.Oldest(), other.m.Oldest()
	for a != nil && b != nil {
		if a.Key != b.Key || a.Value != b.Value {
			return false
		}
		a, b = a.Next(), b.Next()
	}
	return true
}

// MarshalJSON encodes the parameters as a JSON object in insertion order
func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil || p.m == nil {
		return []byte("{}"), nil
	}
	return p.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the input
func (p *Params) UnmarshalJSON(data []byte) error {
	p.m = orderedmap.New[string, string]()
	return p.m.UnmarshalJSON(data)
}
