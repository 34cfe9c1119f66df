package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogue is the YAML document layout:
//
//	tools:
//	  - name: write_to_file
//	    params: [path, content]
//	    raw: [content]
type catalogue struct {
	Tools []Entry `yaml:"tools"`
}

// LoadYAML builds a registry from a YAML catalogue
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc catalogue
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return New()
		}
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidRegistry, err)
	}
	return New(doc.Tools...)
}

// LoadFile builds a registry from a YAML catalogue on disk
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	defer f.Close()

	r, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// MarshalYAML encodes the registry as a catalogue LoadYAML accepts
func (r *Registry) MarshalYAML() (any, error) {
	return catalogue{Tools: r.Entries()}, nil
}
