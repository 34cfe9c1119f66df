package tool

import (
	"fmt"
	"slices"

	"github.com/youssefsiam38/tagstream/content"
)

// Validator validates tool call parameters against a tool's schema
type Validator struct {
	// AllowUnknown accepts parameters that are not in the schema
	AllowUnknown bool
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateParams checks required parameters and enum membership. The
// returned error wraps ErrInvalidParams.
func (v *Validator) ValidateParams(schema Schema, params *content.Params) error {
	for _, def := range schema {
		value, ok := params.Get(def.Name)
		if !ok {
			if def.Required {
				return fmt.Errorf("%w: missing required parameter: %s", ErrInvalidParams, def.Name)
			}
			continue
		}
		if len(def.Enum) > 0 && !slices.Contains(def.Enum, value) {
			return fmt.Errorf("%w: parameter '%s': value '%s' not in allowed values %v",
				ErrInvalidParams, def.Name, value, def.Enum)
		}
	}

	if v.AllowUnknown {
		return nil
	}
	for _, name := range params.Keys() {
		if !slices.ContainsFunc(schema, func(d ParamDef) bool { return d.Name == name }) {
			return fmt.Errorf("%w: unknown parameter: %s", ErrInvalidParams, name)
		}
	}
	return nil
}
