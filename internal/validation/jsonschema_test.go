package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backupSchema = `{
	"type": "object",
	"properties": {
		"database": {"type": "string", "minLength": 1},
		"retention_days": {"type": "integer", "minimum": 1}
	},
	"required": ["database"]
}`

func TestValidateMap_Valid(t *testing.T) {
	sch, err := Compile("backup.json", backupSchema)
	require.NoError(t, err)

	assert.NoError(t, ValidateMap(sch, map[string]any{"database": "main"}))
	assert.NoError(t, ValidateMap(sch, map[string]any{"database": "main", "retention_days": 7}))
}

func TestValidateMap_Invalid(t *testing.T) {
	sch, err := Compile("backup.json", backupSchema)
	require.NoError(t, err)

	err = ValidateMap(sch, map[string]any{"retention_days": 7})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing properties: 'database'")

	err = ValidateMap(sch, map[string]any{"database": "main", "retention_days": "seven"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected integer, but got string")

	err = ValidateMap(sch, nil)
	assert.Error(t, err)
}

func TestValidateMap_NilSchema(t *testing.T) {
	assert.NoError(t, ValidateMap(nil, map[string]any{"anything": true}))
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("bad.json", `{"type": "object", "properties": {"name": {"type": "str"}}}`)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile JSON schema")
}
