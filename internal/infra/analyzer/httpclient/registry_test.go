package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/config"
)

func TestInstancesFromRegistry(t *testing.T) {
	reg := &config.AnalyzerRegistry{Instances: []config.AnalyzerInstance{
		{Name: "a", URL: "http://a", Priority: 2, Capabilities: []string{"analyze", "INDEX"}, RateLimit: 3, Burst: 2, Timeout: time.Second},
	}}

	cfgs, err := InstancesFromRegistry(reg)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, []Capability{CapabilityAnalyze, CapabilityIndex}, cfgs[0].Capabilities)
	assert.Equal(t, time.Second, cfgs[0].Timeout)
	assert.Equal(t, 2, cfgs[0].Priority)

	reg.Instances[0].Capabilities = []string{"rank"}
	_, err = InstancesFromRegistry(reg)
	require.Error(t, err)

	cfgs, err = InstancesFromRegistry(nil)
	require.NoError(t, err)
	assert.Empty(t, cfgs)
}
