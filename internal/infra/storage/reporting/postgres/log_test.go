package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

func TestLogStore_FindByResultIDs(t *testing.T) {
	t.Parallel()

	ctx, pool, stores, cleanup := setupReportingTest(t)
	defer cleanup()

	projectID := seedProject(t, ctx, pool, "logs", nil)
	runID := seedRun(t, ctx, pool, reporting.Run{ProjectID: projectID, Name: "nightly", Number: 1})
	a := seedResult(t, ctx, pool, runID, 0, "a", reporting.StatusFailed, nil)
	b := seedResult(t, ctx, pool, runID, 0, "b", reporting.StatusFailed, nil)

	seedLog(t, ctx, pool, a, runID, reporting.LogLevelError, "second", 2*time.Second)
	seedLog(t, ctx, pool, a, runID, reporting.LogLevelFatal, "first", time.Second)
	seedLog(t, ctx, pool, a, runID, reporting.LogLevelInfo, "noise", 0)
	seedLog(t, ctx, pool, b, runID, reporting.LogLevelWarn, "warned", 0)

	got, err := stores.logs.FindByResultIDs(ctx, []int64{a, b}, reporting.LogLevelError)
	require.NoError(t, err)
	require.Len(t, got[a], 2)
	assert.Equal(t, "first", got[a][0].Message)
	assert.Equal(t, reporting.LogLevelFatal, got[a][0].Level)
	assert.Equal(t, "second", got[a][1].Message)
	assert.Empty(t, got[b])

	got, err = stores.logs.FindByResultIDs(ctx, []int64{b}, reporting.LogLevelWarn)
	require.NoError(t, err)
	assert.Len(t, got[b], 1)
}

func TestLogStore_FindMessagesUnderPath(t *testing.T) {
	t.Parallel()

	ctx, pool, stores, cleanup := setupReportingTest(t)
	defer cleanup()

	projectID := seedProject(t, ctx, pool, "paths", nil)
	runID := seedRun(t, ctx, pool, reporting.Run{ProjectID: projectID, Name: "nightly", Number: 1})

	suite := seedResult(t, ctx, pool, runID, 0, "suite", reporting.StatusFailed, nil)
	child := seedResult(t, ctx, pool, runID, suite, "child", reporting.StatusFailed, nil)
	sibling := seedResult(t, ctx, pool, runID, 0, "sibling", reporting.StatusFailed, nil)

	seedLog(t, ctx, pool, suite, runID, reporting.LogLevelError, "suite failed", 0)
	seedLog(t, ctx, pool, child, runID, reporting.LogLevelError, "child failed", time.Second)
	seedLog(t, ctx, pool, child, runID, reporting.LogLevelDebug, "child debug", 2*time.Second)
	seedLog(t, ctx, pool, sibling, runID, reporting.LogLevelError, "sibling failed", 3*time.Second)

	suiteResult, err := stores.results.FindByID(ctx, suite)
	require.NoError(t, err)

	msgs, err := stores.logs.FindMessagesUnderPath(ctx, runID, suiteResult.Path, reporting.LogLevelError)
	require.NoError(t, err)
	assert.Equal(t, []string{"suite failed", "child failed"}, msgs)

	childResult, err := stores.results.FindByID(ctx, child)
	require.NoError(t, err)

	msgs, err = stores.logs.FindMessagesUnderPath(ctx, runID, childResult.Path, reporting.LogLevelError)
	require.NoError(t, err)
	assert.Equal(t, []string{"child failed"}, msgs)
}
