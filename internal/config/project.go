package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the per-project configuration file.
const ProjectFileName = "funcdeck.yaml"

// ProjectConfig represents a funcdeck.yaml file in a project root.
type ProjectConfig struct {
	Version string `yaml:"version"`

	// FunctionsDir is the function root, relative to the project root.
	FunctionsDir string `yaml:"functions_dir,omitempty"`

	// SchemaFile is the table-definition file, relative to FunctionsDir.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// SourceExtensions override which files count as source.
	SourceExtensions []string `yaml:"source_extensions,omitempty"`

	// ExcludeDirs are directory names never scanned or watched.
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty"`

	// TestSuffixes mark files as tests.
	TestSuffixes []string `yaml:"test_suffixes,omitempty"`

	// DebounceMs is the watcher quiet period in milliseconds.
	DebounceMs int `yaml:"debounce_ms,omitempty"`
}

// DefaultProjectConfig returns the conventional project layout.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version:          "1.0",
		FunctionsDir:     "convex",
		SchemaFile:       "schema.ts",
		SourceExtensions: []string{".ts", ".js", ".tsx", ".jsx"},
		ExcludeDirs:      []string{"_generated", "node_modules", "tests", "__tests__"},
		TestSuffixes:     []string{".test.ts", ".test.js", ".spec.ts", ".spec.js"},
		DebounceMs:       250,
	}
}

// LoadProjectConfig reads funcdeck.yaml from projectRoot. An absent file
// yields the defaults; a malformed one is an error.
func LoadProjectConfig(projectRoot string) (*ProjectConfig, error) {
	path := filepath.Join(projectRoot, ProjectFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultProjectConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}
