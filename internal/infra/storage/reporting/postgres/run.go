package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/storage"
)

var _ reporting.RunRepository = (*runStore)(nil)

type runStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewRunStore creates a PostgreSQL-backed run repository.
func NewRunStore(pool *pgxpool.Pool, tracer trace.Tracer) *runStore {
	return &runStore{db: pool, tracer: tracer}
}

const runColumns = `id, project_id, name, number, mode::text, status, start_time, end_time`

func scanRun(row pgx.Row) (*reporting.Run, error) {
	var (
		r       reporting.Run
		mode    string
		status  string
		endTime *time.Time
	)
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Number, &mode, &status, &r.StartTime, &endTime); err != nil {
		return nil, err
	}
	r.Mode = reporting.RunMode(mode)
	r.Status = reporting.Status(status)
	r.EndTime = timeOrZero(endTime)
	return &r, nil
}

func (s *runStore) FindByID(ctx context.Context, id int64) (*reporting.Run, error) {
	var run *reporting.Run
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_run", dbAttrs(attribute.Int64("run_id", id)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		r, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reporting.RunNotFound(id)
			}
			return fmt.Errorf("query run: %w", err)
		}
		run = r
		return nil
	})
	return run, err
}

func (s *runStore) FindAllByIDs(ctx context.Context, ids []int64) ([]*reporting.Run, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var runs []*reporting.Run
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_runs", dbAttrs(attribute.Int("run_count", len(ids))), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("query runs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRun(rows)
			if err != nil {
				return fmt.Errorf("scan run: %w", err)
			}
			runs = append(runs, r)
		}
		return rows.Err()
	})
	return runs, err
}

// FindPrevious returns the latest finished non-debug run sharing the project and
// name whose number precedes the given run's.
func (s *runStore) FindPrevious(ctx context.Context, run *reporting.Run) (*reporting.Run, error) {
	attrs := dbAttrs(
		attribute.Int64("run_id", run.ID),
		attribute.Int64("project_id", run.ProjectID),
		attribute.String("run_name", run.Name),
	)

	var prev *reporting.Run
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_previous_run", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		r, err := scanRun(s.db.QueryRow(ctx, `
			SELECT `+runColumns+`
			FROM runs
			WHERE project_id = $1
			  AND name = $2
			  AND number < $3
			  AND id <> $4
			  AND mode = 'DEFAULT'
			  AND status <> $5
			ORDER BY number DESC
			LIMIT 1`,
			run.ProjectID, run.Name, run.Number, run.ID, string(reporting.StatusInProgress),
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("query previous run: %w", err)
		}
		prev = r
		return nil
	})
	return prev, err
}

func (s *runStore) FindIDsByProject(ctx context.Context, projectID int64) ([]int64, error) {
	return s.queryIDs(ctx, "postgres.find_run_ids_by_project",
		dbAttrs(attribute.Int64("project_id", projectID)),
		`SELECT id FROM runs WHERE project_id = $1 AND mode = 'DEFAULT' ORDER BY id`,
		projectID,
	)
}

func (s *runStore) FindIDsByName(ctx context.Context, projectID int64, name string) ([]int64, error) {
	return s.queryIDs(ctx, "postgres.find_run_ids_by_name",
		dbAttrs(attribute.Int64("project_id", projectID), attribute.String("run_name", name)),
		`SELECT id FROM runs WHERE project_id = $1 AND name = $2 AND mode = 'DEFAULT' ORDER BY id`,
		projectID, name,
	)
}

// FindIDsByFilter applies the filter's run name and mode conditions; an empty
// condition matches every run of the project.
func (s *runStore) FindIDsByFilter(ctx context.Context, filter reporting.RunFilter) ([]int64, error) {
	return s.queryIDs(ctx, "postgres.find_run_ids_by_filter",
		dbAttrs(attribute.Int64("project_id", filter.ProjectID), attribute.Int64("filter_id", filter.ID)),
		`SELECT id FROM runs
		 WHERE project_id = $1
		   AND ($2 = '' OR name = $2)
		   AND ($3 = '' OR mode::text = $3)
		 ORDER BY id`,
		filter.ProjectID, filter.RunName, string(filter.Mode),
	)
}

func (s *runStore) HasIndexableResults(ctx context.Context, runID int64) (bool, error) {
	var exists bool
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.has_indexable_results", dbAttrs(attribute.Int64("run_id", runID)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		err := s.db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM results r
				JOIN issues i ON i.result_id = r.id
				WHERE r.run_id = $1
				  AND i.issue_group <> $2
				  AND NOT i.ignore_analyzer
			)`, runID, string(reporting.IssueGroupToInvestigate)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("query indexable results: %w", err)
		}
		return nil
	})
	return exists, err
}

func (s *runStore) queryIDs(
	ctx context.Context,
	spanName string,
	attrs []attribute.KeyValue,
	query string,
	args ...any,
) ([]int64, error) {
	var ids []int64
	err := storage.ExecuteAndTrace(ctx, s.tracer, spanName, attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query run ids: %w", err)
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("collect run ids: %w", err)
		}
		return nil
	})
	return ids, err
}
