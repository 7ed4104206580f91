package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

func TestPatternStore(t *testing.T) {
	t.Parallel()

	ctx, pool, stores, cleanup := setupReportingTest(t)
	defer cleanup()

	projectID := seedProject(t, ctx, pool, "patterns", nil)
	runID := seedRun(t, ctx, pool, reporting.Run{ProjectID: projectID, Name: "nightly", Number: 1})
	resultID := seedResult(t, ctx, pool, runID, 0, "test", reporting.StatusFailed, nil)

	var timeoutID, npeID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO pattern_templates (project_id, name, type, value) VALUES ($1, 'timeout', 'STRING', 'timed out') RETURNING id`,
		projectID).Scan(&timeoutID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO pattern_templates (project_id, name, type, value) VALUES ($1, 'npe', 'REGEX', 'NullPointer\w+') RETURNING id`,
		projectID).Scan(&npeID))
	_, err := pool.Exec(ctx,
		`INSERT INTO pattern_templates (project_id, name, type, value, enabled) VALUES ($1, 'off', 'STRING', 'x', FALSE)`,
		projectID)
	require.NoError(t, err)

	templates, err := stores.patterns.FindEnabledByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, reporting.PatternTypeString, templates[0].Type)
	assert.Equal(t, reporting.PatternTypeRegex, templates[1].Type)

	matches := []reporting.PatternMatch{
		{PatternID: timeoutID, ResultID: resultID},
		{PatternID: npeID, ResultID: resultID},
	}
	require.NoError(t, stores.patterns.SaveMatches(ctx, matches))
	require.NoError(t, stores.patterns.SaveMatches(ctx, matches[:1]), "duplicate matches are ignored")
	require.NoError(t, stores.patterns.SaveMatches(ctx, nil))

	names, err := stores.patterns.FindNamesByResultID(ctx, resultID)
	require.NoError(t, err)
	assert.Equal(t, []string{"npe", "timeout"}, names)
}
