package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates decoded JSON values against JSON Schema documents.
// Compiled schemas are cached by their raw bytes, so static schemas are
// compiled once no matter how many commands reference them.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewValidator creates a new Validator with an empty cache.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate validates payload against the given JSON Schema document.
// payload must be a decoded JSON value (maps, slices, json.Number/float64,
// strings, bools). An empty, "{}" or "null" schema accepts everything.
func (v *Validator) Validate(schemaDoc json.RawMessage, payload any) error {
	if isEmptySchema(schemaDoc) {
		return nil
	}

	compiled, err := v.Compile(schemaDoc)
	if err != nil {
		return err
	}

	return compiled.Validate(payload)
}

// Compile compiles schemaDoc, or returns the cached compilation.
func (v *Validator) Compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.RLock()
	s, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	// Another goroutine may have won the race; keep the first compilation.
	if s, ok := v.cache[key]; ok {
		return s, nil
	}
	v.cache[key] = compiled
	return compiled, nil
}

// Len returns the number of cached schemas.
func (v *Validator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.cache)
}

func isEmptySchema(doc json.RawMessage) bool {
	trimmed := bytes.TrimSpace(doc)
	return len(trimmed) == 0 || string(trimmed) == "{}" || string(trimmed) == "null"
}
