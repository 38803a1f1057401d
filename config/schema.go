// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package config

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var configSchema string

// ValidateFile validates a YAML configuration file against the embedded
// JSON schema. It reports unknown keys and type mismatches before the
// file is loaded into the typed Config, which catches the misspelled
// key that a struct unmarshal would silently drop.
func ValidateFile(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewGoLoader(normalizeYAML(doc))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var details string
		for _, desc := range result.Errors() {
			details += fmt.Sprintf("\n  - %s", desc)
		}
		return fmt.Errorf("config file does not match schema:%s", details)
	}

	return nil
}

// normalizeYAML converts YAML map keys to strings so the document can be
// validated as JSON
func normalizeYAML(v interface{}) interface{} {
	switch value := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[k] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
