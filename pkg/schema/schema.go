// Package schema validates messages against endpoint schemas.
//
// Endpoint schemas are JSON Schema documents. An empty schema accepts any
// well-formed JSON message.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Validator decides whether a message conforms to a schema.
type Validator interface {
	Validate(schema string, message []byte) bool
}

// JSONSchema validates with gojsonschema and caches compiled schemas.
type JSONSchema struct {
	mu    sync.RWMutex
	cache map[string]*gojsonschema.Schema
}

// NewJSONSchema returns an empty caching validator.
func NewJSONSchema() *JSONSchema {
	return &JSONSchema{cache: make(map[string]*gojsonschema.Schema)}
}

// Compile checks that doc is a usable JSON Schema.
func (v *JSONSchema) Compile(doc string) error {
	if doc == "" {
		return nil
	}
	_, err := v.compiled(doc)
	return err
}

// Validate reports whether message is valid JSON conforming to schema.
func (v *JSONSchema) Validate(schema string, message []byte) bool {
	if !json.Valid(message) {
		return false
	}
	if schema == "" {
		return true
	}
	s, err := v.compiled(schema)
	if err != nil {
		return false
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(message))
	if err != nil {
		return false
	}
	return result.Valid()
}

func (v *JSONSchema) compiled(doc string) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	s, ok := v.cache[doc]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.cache[doc] = s
	v.mu.Unlock()
	return s, nil
}

// AcceptAll accepts every message. Useful for endpoints that carry opaque bytes.
type AcceptAll struct{}

// Validate always returns true.
func (AcceptAll) Validate(string, []byte) bool { return true }
