package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "jsbridge Configuration", schema["title"])
	assert.Contains(t, string(data), "missing_handler")
	assert.Contains(t, string(data), "fail-soft")
}

func TestGenerateMessageSchema(t *testing.T) {
	data, err := GenerateMessageSchema()
	require.NoError(t, err)

	for _, field := range []string{"callbackId", "handlerName", "data", "responseId", "responseData"} {
		assert.Contains(t, string(data), `"`+field+`"`)
	}
}

func TestWriteSchemaFile(t *testing.T) {
	path, err := WriteSchemaFile(t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
