package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compile parses a JSON schema document once so it can be reused across
// validations.
func Compile(name, schemaJSON string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema %s: %w", name, err)
	}
	return sch, nil
}

// ValidateMap checks a decoded payload against sch. The payload is round-tripped
// through encoding/json first so Go numeric types validate the same way JSON
// numbers do.
func ValidateMap(sch *jsonschema.Schema, payload map[string]any) error {
	if sch == nil {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := sch.Validate(data); err != nil {
		return fmt.Errorf("payload failed validation: %w", err)
	}
	return nil
}
