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

var _ reporting.ProjectRepository = (*projectStore)(nil)

// projectStore reads projects together with their attribute map.
type projectStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewProjectStore creates a PostgreSQL-backed project repository.
func NewProjectStore(pool *pgxpool.Pool, tracer trace.Tracer) *projectStore {
	return &projectStore{db: pool, tracer: tracer}
}

// FindByID loads a project and its attributes.
func (s *projectStore) FindByID(ctx context.Context, id int64) (*reporting.Project, error) {
	attrs := dbAttrs(attribute.Int64("project_id", id))

	var project *reporting.Project
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_project", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		p := &reporting.Project{ID: id, Attributes: make(map[string]string)}
		err := s.db.QueryRow(ctx, `SELECT name FROM projects WHERE id = $1`, id).Scan(&p.Name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reporting.ProjectNotFound(id)
			}
			return fmt.Errorf("query project: %w", err)
		}

		rows, err := s.db.Query(ctx, `SELECT key, value FROM project_attributes WHERE project_id = $1`, id)
		if err != nil {
			return fmt.Errorf("query project attributes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return fmt.Errorf("scan project attribute: %w", err)
			}
			p.Attributes[k] = v
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate project attributes: %w", err)
		}

		project = p
		return nil
	})
	return project, err
}
