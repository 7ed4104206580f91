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

var _ reporting.LogRepository = (*logStore)(nil)

type logStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewLogStore creates a PostgreSQL-backed log line repository.
func NewLogStore(pool *pgxpool.Pool, tracer trace.Tracer) *logStore {
	return &logStore{db: pool, tracer: tracer}
}

func (s *logStore) FindByResultIDs(
	ctx context.Context,
	resultIDs []int64,
	minLevel reporting.LogLevel,
) (map[int64][]reporting.LogLine, error) {
	out := make(map[int64][]reporting.LogLine, len(resultIDs))
	if len(resultIDs) == 0 {
		return out, nil
	}

	attrs := dbAttrs(attribute.Int("result_count", len(resultIDs)), attribute.Int("min_level", int(minLevel)))
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_logs_by_results", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `
			SELECT id, result_id, run_id, level, message, log_time
			FROM log_lines
			WHERE result_id = ANY($1) AND level >= $2
			ORDER BY result_id, log_time, id`, resultIDs, int(minLevel))
		if err != nil {
			return fmt.Errorf("query log lines: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				l     reporting.LogLine
				level int
			)
			if err := rows.Scan(&l.ID, &l.ResultID, &l.RunID, &level, &l.Message, &l.Time); err != nil {
				return fmt.Errorf("scan log line: %w", err)
			}
			l.Level = reporting.LogLevel(level)
			out[l.ResultID] = append(out[l.ResultID], l)
		}
		return rows.Err()
	})
	return out, err
}

// FindMessagesUnderPath matches the result at path and every result whose path
// extends it with further dot separated segments.
func (s *logStore) FindMessagesUnderPath(
	ctx context.Context,
	runID int64,
	path string,
	minLevel reporting.LogLevel,
) ([]string, error) {
	attrs := dbAttrs(attribute.Int64("run_id", runID), attribute.String("path", path))

	var messages []string
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_messages_under_path", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `
			SELECT l.message
			FROM log_lines l
			JOIN results r ON r.id = l.result_id
			WHERE r.run_id = $1
			  AND (r.path = $2 OR r.path LIKE $2 || '.%')
			  AND l.level >= $3
			ORDER BY l.log_time, l.id`, runID, path, int(minLevel))
		if err != nil {
			return fmt.Errorf("query log messages: %w", err)
		}
		messages, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect log messages: %w", err)
		}
		return nil
	})
	return messages, err
}
