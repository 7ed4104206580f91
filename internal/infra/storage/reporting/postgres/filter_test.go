package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

func TestFilterStore_FindByID(t *testing.T) {
	t.Parallel()

	ctx, pool, stores, cleanup := setupReportingTest(t)
	defer cleanup()

	projectID := seedProject(t, ctx, pool, "filters", nil)
	otherID := seedProject(t, ctx, pool, "other", nil)

	var withMode, noMode int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO run_filters (project_id, name, run_name, mode) VALUES ($1, 'debug runs', '', 'DEBUG') RETURNING id`,
		projectID).Scan(&withMode))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO run_filters (project_id, name, run_name) VALUES ($1, 'nightly', 'nightly') RETURNING id`,
		projectID).Scan(&noMode))

	f, err := stores.filters.FindByID(ctx, projectID, withMode)
	require.NoError(t, err)
	assert.Equal(t, reporting.RunModeDebug, f.Mode)

	f, err = stores.filters.FindByID(ctx, projectID, noMode)
	require.NoError(t, err)
	assert.Equal(t, "nightly", f.RunName)
	assert.Empty(t, f.Mode)

	_, err = stores.filters.FindByID(ctx, otherID, noMode)
	require.ErrorIs(t, err, reporting.ErrFilterNotFound)
}
