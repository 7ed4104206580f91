package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/storage"
)

type testStores struct {
	projects *projectStore
	runs     *runStore
	results  *resultStore
	logs     *logStore
	patterns *patternStore
	filters  *filterStore
}

func setupReportingTest(t *testing.T) (context.Context, *pgxpool.Pool, testStores, func()) {
	t.Helper()

	pool, cleanup := storage.SetupTestContainer(t)
	tracer := storage.NoOpTracer()
	stores := testStores{
		projects: NewProjectStore(pool, tracer),
		runs:     NewRunStore(pool, tracer),
		results:  NewResultStore(pool, tracer),
		logs:     NewLogStore(pool, tracer),
		patterns: NewPatternStore(pool, tracer),
		filters:  NewFilterStore(pool, tracer),
	}
	return context.Background(), pool, stores, cleanup
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedProject(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string, attrs map[string]string) int64 {
	t.Helper()

	var id int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO projects (name) VALUES ($1) RETURNING id`, name).Scan(&id))
	for k, v := range attrs {
		_, err := pool.Exec(ctx, `INSERT INTO project_attributes (project_id, key, value) VALUES ($1, $2, $3)`, id, k, v)
		require.NoError(t, err)
	}
	return id
}

func seedRun(t *testing.T, ctx context.Context, pool *pgxpool.Pool, run reporting.Run) int64 {
	t.Helper()

	if run.Mode == "" {
		run.Mode = reporting.RunModeDefault
	}
	if run.Status == "" {
		run.Status = reporting.StatusFailed
	}
	if run.StartTime.IsZero() {
		run.StartTime = baseTime.Add(time.Duration(run.Number) * time.Hour)
	}

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO runs (project_id, name, number, mode, status, start_time, end_time)
		VALUES ($1, $2, $3, $4::run_mode, $5, $6, $7)
		RETURNING id`,
		run.ProjectID, run.Name, run.Number, string(run.Mode), string(run.Status), run.StartTime, nullableTime(run.EndTime),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedResult inserts a result under parent (0 for a root) and derives its path.
func seedResult(t *testing.T, ctx context.Context, pool *pgxpool.Pool, runID, parentID int64, name string, status reporting.Status, issue *reporting.Issue) int64 {
	t.Helper()

	var parent *int64
	if parentID != 0 {
		parent = &parentID
	}

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO results (run_id, parent_id, name, path, unique_id, status, start_time, end_time)
		VALUES ($1, $2, $3, '', $3, $4, $5, $6)
		RETURNING id`,
		runID, parent, name, string(status), baseTime, baseTime.Add(2*time.Second),
	).Scan(&id)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		UPDATE results SET path = COALESCE((SELECT p.path || '.' FROM results p WHERE p.id = $2), '') || id::text
		WHERE id = $1`, id, parent)
	require.NoError(t, err)

	if issue != nil {
		store := NewResultStore(pool, storage.NoOpTracer())
		require.NoError(t, store.Save(ctx, &reporting.Result{ID: id, RunID: runID, Issue: issue}))
	}
	return id
}

func seedLog(t *testing.T, ctx context.Context, pool *pgxpool.Pool, resultID, runID int64, level reporting.LogLevel, msg string, offset time.Duration) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO log_lines (result_id, run_id, level, message, log_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		resultID, runID, int(level), msg, baseTime.Add(offset),
	).Scan(&id)
	require.NoError(t, err)
	return id
}
