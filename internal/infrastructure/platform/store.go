package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
)

// GrantStore provides file-based persistence for standing capability grants.
type GrantStore struct {
	configPath string
}

// NewGrantStore creates a new GrantStore.
func NewGrantStore(configPath string) *GrantStore {
	return &GrantStore{
		configPath: configPath,
	}
}

// ConfigPath returns the path to the grants file.
func (s *GrantStore) ConfigPath() string {
	return s.configPath
}

// grantsFile represents the YAML structure of ~/.permkit/grants.yaml
type grantsFile struct {
	Grants []string `yaml:"grants"`
}

// Load loads standing grants from the grants file.
// If the file does not exist, it returns an empty list without error.
func (s *GrantStore) Load() ([]capabilities.ID, error) {
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file: %w", err)
	}

	var cfg grantsFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse grants file: %w", err)
	}

	seen := make(map[capabilities.ID]bool, len(cfg.Grants))
	var grants []capabilities.ID
	for _, raw := range cfg.Grants {
		id := capabilities.ID(raw)
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		grants = append(grants, id)
	}

	return grants, nil
}

// Save writes standing grants to the grants file.
func (s *GrantStore) Save(grants []capabilities.ID) error {
	dir := filepath.Dir(s.configPath)
	//nolint:gosec // G301: 0o755 is standard for user config directories (~/.permkit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create grants directory: %w", err)
	}

	cfg := grantsFile{Grants: make([]string, len(grants))}
	for i, id := range grants {
		cfg.Grants[i] = string(id)
	}

	data, err := yaml.MarshalWithOptions(cfg, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal grants to YAML: %w", err)
	}

	return os.WriteFile(s.configPath, data, 0o600)
}
