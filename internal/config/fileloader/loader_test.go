package fileloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analyzers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoader_Load(t *testing.T) {
	path := writeFile(t, `
instances:
  - name: primary
    url: http://analyzer-a:5000
    priority: 1
    capabilities: [analyze, index, search]
    rate_limit: 20
    burst: 5
    timeout: 15s
  - name: suggest
    url: http://analyzer-b:5000
    priority: 2
    capabilities: [suggest]
`)

	reg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, reg.Instances, 2)

	first := reg.Instances[0]
	assert.Equal(t, "primary", first.Name)
	assert.Equal(t, []string{"analyze", "index", "search"}, first.Capabilities)
	assert.InDelta(t, 20.0, first.RateLimit, 1e-9)
	assert.Equal(t, 5, first.Burst)
	assert.Equal(t, 15*time.Second, first.Timeout)
	assert.Zero(t, reg.Instances[1].Timeout)
}

func TestFileLoader_EmptyPath(t *testing.T) {
	reg, err := NewFileLoader("").Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reg.Instances)
}

func TestFileLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "instances: [name: x"},
		{name: "missing url", content: "instances:\n  - name: a\n    capabilities: [analyze]\n"},
		{name: "missing capabilities", content: "instances:\n  - name: a\n    url: http://a\n"},
		{name: "duplicate names", content: `
instances:
  - {name: a, url: "http://a", capabilities: [analyze]}
  - {name: a, url: "http://b", capabilities: [index]}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileLoader(writeFile(t, tt.content)).Load(context.Background())
			require.Error(t, err)
		})
	}
}

func TestFileLoader_MissingFile(t *testing.T) {
	_, err := NewFileLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
	require.Error(t, err)
}
