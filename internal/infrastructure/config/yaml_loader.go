package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// ScenarioLoader handles loading scenarios from YAML files.
type ScenarioLoader struct{}

// NewScenarioLoader creates a new scenario loader.
func NewScenarioLoader() *ScenarioLoader {
	return &ScenarioLoader{}
}

// LoadScenario loads, schema-validates, and parses a scenario from a YAML
// file.
func (l *ScenarioLoader) LoadScenario(path string) (*Scenario, error) {
	// Security: Use os.OpenRoot to prevent path traversal attacks
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	file, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	return l.LoadScenarioFromReader(file)
}

// LoadScenarioFromReader loads a scenario from an io.Reader.
func (l *ScenarioLoader) LoadScenarioFromReader(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	// Structural validation against the JSON Schema first, so field-level
	// mistakes surface with positional messages.
	if err := ValidateScenarioDocument(data); err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to decode scenario YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	return &scenario, nil
}
