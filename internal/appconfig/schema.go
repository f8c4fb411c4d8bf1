package appconfig

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema constrains both the raw config file and the merged configuration.
var configSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"apiURL": map[string]any{
			"type":    "string",
			"pattern": "^https?://",
		},
		"cloudModel": map[string]any{"type": "string"},
		"localModels": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": 2,
		},
		"backend": map[string]any{
			"type": "string",
			"enum": []any{"", "ollama", "vllm"},
		},
		"timeout": map[string]any{
			"type":    "integer",
			"minimum": 0,
		},
		"uploadExtensions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"evaluate":       map[string]any{"type": "boolean"},
		"debug":          map[string]any{"type": "boolean"},
		"jsonMode":       map[string]any{"type": "boolean"},
		"logFile":        map[string]any{"type": "string"},
		"export":         map[string]any{"type": "string"},
		"exportMarkdown": map[string]any{"type": "string"},
		"exportYAML":     map[string]any{"type": "string"},
	},
}

// Validate checks a merged configuration against the config schema.
func (c Config) Validate() error {
	return validate(gojsonschema.NewGoLoader(c))
}

func validateDocument(data []byte) error {
	return validate(gojsonschema.NewBytesLoader(data))
}

func validate(document gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(configSchema), document)
	if err != nil {
		return fmt.Errorf("config schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(details, "; "))
}
