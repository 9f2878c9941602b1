package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

// LoadDefinition reads a component tree definition from a YAML or JSON file
// and returns it as a normalized JSON document. Variable expansion is a
// per-cluster concern, so the raw document is returned unexpanded; callers
// expand it once per cluster and hand the result to ParseDefinition.
func LoadDefinition(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read definition: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("config: normalize %s: %w", path, err)
		}
	case ".json":
		// Already JSON.
	default:
		return nil, fmt.Errorf("config: definition file must be yaml or json: %s", path)
	}

	return data, nil
}

// ParseDefinition parses an expanded JSON definition document into a
// ComponentDefinition tree. Legacy suffixed field names are normalized, the
// document is checked against the embedded schema, and struct constraints
// are validated.
func ParseDefinition(expanded []byte) (*ComponentDefinition, error) {
	var doc any
	if err := json.Unmarshal(expanded, &doc); err != nil {
		return nil, fmt.Errorf("config: parse definition: %w", err)
	}
	doc = k8api.NormalizeFieldNames(doc)

	if err := definitionSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config: definition schema: %w", err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config: renormalize definition: %w", err)
	}

	var def ComponentDefinition
	if err := json.Unmarshal(normalized, &def); err != nil {
		return nil, fmt.Errorf("config: decode definition: %w", err)
	}

	if err := validator.New().Struct(&def); err != nil {
		return nil, fmt.Errorf("config: invalid definition: %w", err)
	}

	return &def, nil
}
