// Package validation checks job and command payloads against JSON schemas.
package validation

import (
	"fmt"
	"strings"

	"message-notifier/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile compiles a JSON schema literal and panics on a malformed one.
// Intended for package-level schema variables.
func MustCompile(source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid JSON schema: %v", err))
	}
	return &Schema{schema: s}
}

// ValidateJSON validates a raw JSON document, e.g. job variables.
func (s *Schema) ValidateJSON(document string) error {
	return s.validate(gojsonschema.NewStringLoader(document))
}

// ValidateValue validates an in-memory Go value.
func (s *Schema) ValidateValue(value interface{}) error {
	return s.validate(gojsonschema.NewGoLoader(value))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) error {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("unreadable document: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return errors.NewInvalidInputError(strings.Join(msgs, "; "))
}
