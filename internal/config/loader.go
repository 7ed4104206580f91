package config

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AnalyzerInstance is one entry of the analyzer instance registry.
type AnalyzerInstance struct {
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	Priority     int           `yaml:"priority"`
	Capabilities []string      `yaml:"capabilities"`
	RateLimit    float64       `yaml:"rate_limit,omitempty"`
	Burst        int           `yaml:"burst,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// AnalyzerRegistry is the document stored in analyzers.instances_file.
type AnalyzerRegistry struct {
	Instances []AnalyzerInstance `yaml:"instances"`
}

// Validate checks that every instance has a name, a url and at least one
// capability, and that names are unique.
func (r *AnalyzerRegistry) Validate() error {
	seen := make(map[string]struct{}, len(r.Instances))
	for i, inst := range r.Instances {
		if inst.Name == "" {
			return fmt.Errorf("instance %d: name is required", i)
		}
		if inst.URL == "" {
			return fmt.Errorf("instance %s: url is required", inst.Name)
		}
		if len(inst.Capabilities) == 0 {
			return fmt.Errorf("instance %s: capabilities are required", inst.Name)
		}
		if inst.RateLimit < 0 {
			return fmt.Errorf("instance %s: rate_limit must not be negative", inst.Name)
		}
		if _, dup := seen[inst.Name]; dup {
			return fmt.Errorf("instance %s: %w", inst.Name, errDuplicateInstance)
		}
		seen[inst.Name] = struct{}{}
	}
	return nil
}

var errDuplicateInstance = errors.New("duplicate instance name")

// Loader provides analyzer registry loading. It abstracts the source so the
// registry can come from a file or be built in memory for tests.
type Loader interface {
	// Load retrieves and parses the registry from the underlying source.
	Load(ctx context.Context) (*AnalyzerRegistry, error)
}
