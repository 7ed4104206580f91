package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/storage"
)

var _ reporting.FilterRepository = (*filterStore)(nil)

type filterStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewFilterStore creates a PostgreSQL-backed saved filter repository.
func NewFilterStore(pool *pgxpool.Pool, tracer trace.Tracer) *filterStore {
	return &filterStore{db: pool, tracer: tracer}
}

// FindByID only returns filters owned by the given project.
func (s *filterStore) FindByID(ctx context.Context, projectID, filterID int64) (*reporting.RunFilter, error) {
	attrs := dbAttrs(attribute.Int64("project_id", projectID), attribute.Int64("filter_id", filterID))

	var filter *reporting.RunFilter
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_filter", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		var (
			f    reporting.RunFilter
			mode *string
		)
		err := s.db.QueryRow(ctx, `
			SELECT id, project_id, name, run_name, mode::text
			FROM run_filters
			WHERE id = $1 AND project_id = $2`, filterID, projectID,
		).Scan(&f.ID, &f.ProjectID, &f.Name, &f.RunName, &mode)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reporting.FilterNotFound(filterID)
			}
			return fmt.Errorf("query filter: %w", err)
		}
		if mode != nil {
			f.Mode = reporting.RunMode(*mode)
		}
		filter = &f
		return nil
	})
	return filter, err
}
