package fileloader

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/logsift/internal/config"
)

var _ config.Loader = (*FileLoader)(nil)

// FileLoader loads the analyzer registry from a YAML file on disk.
type FileLoader struct {
	// path is the filesystem path to the registry file.
	path string
}

// NewFileLoader creates a FileLoader for the registry at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads, parses and validates the registry file. An empty path yields an
// empty registry.
func (l *FileLoader) Load(ctx context.Context) (*config.AnalyzerRegistry, error) {
	if l.path == "" {
		return new(config.AnalyzerRegistry), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyzer registry: %w", err)
	}

	var reg config.AnalyzerRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer registry: %w", err)
	}

	return &reg, nil
}
