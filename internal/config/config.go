// Package config loads the optional project manifest.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the manifest is looked up when no --config is given.
const DefaultPath = "mdml.yaml"

type Config struct {
	Project struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"project"`
	SourcePatterns []string `yaml:"source_patterns"`
	Strict         bool     `yaml:"strict"`
}

// Load reads the manifest at path. A missing manifest is not an error:
// defaults apply and environment overrides still take effect.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	}

	// 2. Override with Environment Variables if present
	if name := os.Getenv("MDML_PROJECT_NAME"); name != "" {
		cfg.Project.Name = name
	}
	if strict := os.Getenv("MDML_STRICT"); strict != "" {
		cfg.Strict = strict == "1" || strict == "true"
	}

	return &cfg, nil
}
