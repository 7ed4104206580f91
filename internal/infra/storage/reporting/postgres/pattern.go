package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/storage"
)

var _ reporting.PatternRepository = (*patternStore)(nil)

type patternStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewPatternStore creates a PostgreSQL-backed pattern template repository.
func NewPatternStore(pool *pgxpool.Pool, tracer trace.Tracer) *patternStore {
	return &patternStore{db: pool, tracer: tracer}
}

func (s *patternStore) FindEnabledByProject(ctx context.Context, projectID int64) ([]reporting.PatternTemplate, error) {
	var templates []reporting.PatternTemplate
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_enabled_patterns", dbAttrs(attribute.Int64("project_id", projectID)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `
			SELECT id, project_id, name, type, value, enabled
			FROM pattern_templates
			WHERE project_id = $1 AND enabled
			ORDER BY id`, projectID)
		if err != nil {
			return fmt.Errorf("query pattern templates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t   reporting.PatternTemplate
				typ string
			)
			if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &typ, &t.Value, &t.Enabled); err != nil {
				return fmt.Errorf("scan pattern template: %w", err)
			}
			t.Type = reporting.PatternType(typ)
			templates = append(templates, t)
		}
		return rows.Err()
	})
	return templates, err
}

func (s *patternStore) SaveMatches(ctx context.Context, matches []reporting.PatternMatch) error {
	if len(matches) == 0 {
		return nil
	}

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_pattern_matches", dbAttrs(attribute.Int("match_count", len(matches))), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		batch := &pgx.Batch{}
		for _, m := range matches {
			batch.Queue(
				`INSERT INTO pattern_matches (pattern_id, result_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				m.PatternID, m.ResultID,
			)
		}
		if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert pattern matches: %w", err)
		}
		return nil
	})
}

func (s *patternStore) FindNamesByResultID(ctx context.Context, resultID int64) ([]string, error) {
	var names []string
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_pattern_names", dbAttrs(attribute.Int64("result_id", resultID)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `
			SELECT t.name
			FROM pattern_matches m
			JOIN pattern_templates t ON t.id = m.pattern_id
			WHERE m.result_id = $1
			ORDER BY t.name`, resultID)
		if err != nil {
			return fmt.Errorf("query pattern names: %w", err)
		}
		names, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect pattern names: %w", err)
		}
		return nil
	})
	return names, err
}
