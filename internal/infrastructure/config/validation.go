package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// scenarioSchema is the JSON Schema (draft 2020-12) for scenario documents.
const scenarioSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "hosts", "steps"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer"},
    "default_strategy": {"type": "string", "minLength": 1},
    "request_missing_only": {"type": "boolean"},
    "strategies": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "rule"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["any", "screen", "fragment"]},
          "rule": {"type": "string", "minLength": 1}
        }
      }
    },
    "hosts": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"enum": ["screen", "fragment"]}
        }
      }
    },
    "grants": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "call": {
            "type": "object",
            "required": ["host", "capabilities"],
            "additionalProperties": false,
            "properties": {
              "host": {"type": "string", "minLength": 1},
              "capabilities": {
                "type": "array",
                "minItems": 1,
                "items": {"type": "string", "minLength": 1}
              },
              "strategy": {"type": "string", "minLength": 1},
              "hold": {"type": "boolean"},
              "decisions": {
                "type": "object",
                "additionalProperties": {"enum": ["grant", "deny"]}
              }
            }
          },
          "destroy": {"type": "string", "minLength": 1},
          "recreate": {"type": "string", "minLength": 1},
          "flush": {"type": "boolean"}
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("scenario.json", bytes.NewReader([]byte(scenarioSchema))); err != nil {
			compileErr = fmt.Errorf("failed to add scenario schema resource: %w", err)
			return
		}

		compiledSchema, compileErr = compiler.Compile("scenario.json")
	})
	return compiledSchema, compileErr
}

// ValidateScenarioDocument validates raw scenario YAML against the schema.
func ValidateScenarioDocument(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	// Route through JSON so the instance uses the value types the schema
	// validator expects.
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to decode scenario document: %w", err)
	}

	if err := s.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaValidationError(validationErr)
		}
		return fmt.Errorf("scenario validation failed: %w", err)
	}

	return nil
}

// formatSchemaValidationError formats a JSON Schema validation error into a
// readable message.
func formatSchemaValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collectErrors func(*jsonschema.ValidationError)
	collectErrors = func(e *jsonschema.ValidationError) {
		if e.Message != "" {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}

		for _, cause := range e.Causes {
			collectErrors(cause)
		}
	}

	collectErrors(err)

	if len(messages) == 0 {
		return fmt.Errorf("scenario validation failed")
	}

	return fmt.Errorf("scenario validation failed:\n    - %s", strings.Join(messages, "\n    - "))
}
