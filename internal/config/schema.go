package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/bnema/jsbridge/pkg/jsbridge"
)

const schemaFileName = "config.schema.json"

// GenerateSchema returns the JSON schema of the configuration file.
func GenerateSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	schema := r.Reflect(&Config{})

	schema.ID = "https://github.com/bnema/jsbridge/config.schema.json"
	schema.Title = "jsbridge Configuration"
	schema.Description = "Configuration schema for jsbridge, a messaging bridge between Go and webview scripts"

	return json.MarshalIndent(schema, "", "  ")
}

// GenerateMessageSchema returns the JSON schema of one bridge message on
// the wire.
func GenerateMessageSchema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&jsbridge.Message{})

	schema.ID = "https://github.com/bnema/jsbridge/message.schema.json"
	schema.Title = "WebViewJavascriptBridge message"

	return json.MarshalIndent(schema, "", "  ")
}

// WriteSchemaFile writes the configuration schema into dir and returns its
// path.
func WriteSchemaFile(dir string) (string, error) {
	data, err := GenerateSchema()
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaFile := filepath.Join(dir, schemaFileName)
	if err := os.WriteFile(schemaFile, data, filePerm); err != nil {
		return "", fmt.Errorf("failed to write schema file: %w", err)
	}
	return schemaFile, nil
}
