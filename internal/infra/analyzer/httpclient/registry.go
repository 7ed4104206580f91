package httpclient

import (
	"fmt"

	"github.com/ahrav/logsift/internal/config"
)

// InstancesFromRegistry converts the loaded analyzer registry into instance
// configurations, rejecting unknown capabilities.
func InstancesFromRegistry(reg *config.AnalyzerRegistry) ([]InstanceConfig, error) {
	if reg == nil {
		return nil, nil
	}

	out := make([]InstanceConfig, 0, len(reg.Instances))
	for _, inst := range reg.Instances {
		caps := make([]Capability, 0, len(inst.Capabilities))
		for _, raw := range inst.Capabilities {
			c, err := ParseCapability(raw)
			if err != nil {
				return nil, fmt.Errorf("instance %s: %w", inst.Name, err)
			}
			caps = append(caps, c)
		}
		out = append(out, InstanceConfig{
			Name:         inst.Name,
			URL:          inst.URL,
			Priority:     inst.Priority,
			Capabilities: caps,
			RateLimit:    inst.RateLimit,
			Burst:        inst.Burst,
			Timeout:      inst.Timeout,
		})
	}
	return out, nil
}
