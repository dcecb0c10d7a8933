package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Activities []Activity `yaml:"activities"`
}

// DefaultSeed returns the built-in Mergington High activity list.
func DefaultSeed() ([]Activity, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeedFile reads a YAML seed from disk.
func LoadSeedFile(path string) ([]Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML document with a top-level "activities" list.
func ParseSeed(data []byte) ([]Activity, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(file.Activities) == 0 {
		return nil, fmt.Errorf("parse seed: no activities defined")
	}
	return file.Activities, nil
}
