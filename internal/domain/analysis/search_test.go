package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchMode(t *testing.T) {
	for _, m := range SearchModes() {
		got, err := ParseSearchMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseSearchMode("nearby-launches")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSearchMode))
	assert.True(t, IsBadRequest(err))
}

func TestIndexingError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&IndexingError{ProjectID: 3, Op: "single_run", Err: cause})

	assert.True(t, errors.Is(err, cause))
	assert.EqualError(t, err, "indexing single_run failed for project 3: connection refused")

	cleanErr := error(&IndexingError{IndexID: 9, Op: "clean", Err: cause})
	assert.EqualError(t, cleanErr, "indexing clean failed for index 9: connection refused")
}
