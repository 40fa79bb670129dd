// Package schemaval optionally validates a task's context against a
// per-operation JSON Schema before a task is created (SPEC_FULL.md §4.12),
// generalizing the teacher's per-capability input/output schema validator
// to the spec's free-form context map. An operation with no schema file is
// always valid — schema validation is opt-in per operation.
package schemaval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation wraps every schema validation failure so callers can detect
// it with errors.Is regardless of the underlying jsonschema error shape.
var ErrValidation = errors.New("context failed schema validation")

// Validator holds one compiled JSON Schema per operation id.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every *.json file in schemaDir, keyed by filename
// without extension as the operation id. A missing directory yields an
// empty (always-valid) Validator rather than an error, since operation
// schemas are entirely optional.
func NewValidator(schemaDir string) (*Validator, error) {
	entries, err := os.ReadDir(schemaDir)
	if errors.Is(err, os.ErrNotExist) {
		return &Validator{schemas: map[string]*jsonschema.Schema{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}

	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		operationID := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		schemaID := "https://xy-market.internal/schemas/" + operationID
		compiled, err := jsonschema.CompileString(schemaID, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", operationID, err)
		}
		schemas[operationID] = compiled
	}
	return &Validator{schemas: schemas}, nil
}

// Validate checks context against the operation's schema, if one exists. An
// operation id with no registered schema always passes.
func (v *Validator) Validate(operationID string, context map[string]any) error {
	schema, ok := v.schemas[operationID]
	if !ok {
		return nil
	}

	// Round-trip through JSON so the map is represented exactly as
	// jsonschema expects (matching the teacher's unmarshal-into-interface{}
	// validation path).
	raw, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode context: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
