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

var _ reporting.ResultRepository = (*resultStore)(nil)

// resultStore persists results with their issue and linked tickets. The issue
// lives in its own table so results without a classification carry no row.
type resultStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewResultStore creates a PostgreSQL-backed result repository.
func NewResultStore(pool *pgxpool.Pool, tracer trace.Tracer) *resultStore {
	return &resultStore{db: pool, tracer: tracer}
}

const resultSelect = `
	SELECT r.id, r.run_id, r.parent_id, r.name, r.path, r.unique_id, r.test_case_hash,
	       r.status, r.has_stats, r.start_time, r.end_time,
	       i.locator, i.auto_analyzed, i.ignore_analyzer, i.description
	FROM results r
	LEFT JOIN issues i ON i.result_id = r.id`

func scanResult(row pgx.Row) (*reporting.Result, error) {
	var (
		r              reporting.Result
		parentID       *int64
		status         string
		endTime        *time.Time
		locator        *string
		autoAnalyzed   *bool
		ignoreAnalyzer *bool
		description    *string
	)
	err := row.Scan(
		&r.ID, &r.RunID, &parentID, &r.Name, &r.Path, &r.UniqueID, &r.TestCaseHash,
		&status, &r.HasStats, &r.StartTime, &endTime,
		&locator, &autoAnalyzed, &ignoreAnalyzer, &description,
	)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		r.ParentID = *parentID
	}
	r.Status = reporting.Status(status)
	r.EndTime = timeOrZero(endTime)

	if locator != nil {
		r.Issue = &reporting.Issue{Locator: *locator}
		if autoAnalyzed != nil {
			r.Issue.AutoAnalyzed = *autoAnalyzed
		}
		if ignoreAnalyzer != nil {
			r.Issue.IgnoreAnalyzer = *ignoreAnalyzer
		}
		if description != nil {
			r.Issue.Description = *description
		}
	}
	return &r, nil
}

func (s *resultStore) FindByID(ctx context.Context, id int64) (*reporting.Result, error) {
	var result *reporting.Result
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_result", dbAttrs(attribute.Int64("result_id", id)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		r, err := scanResult(s.db.QueryRow(ctx, resultSelect+` WHERE r.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reporting.ResultNotFound(id)
			}
			return fmt.Errorf("query result: %w", err)
		}
		if err := s.attachTickets(ctx, []*reporting.Result{r}); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (s *resultStore) FindAllByIDs(ctx context.Context, ids []int64) ([]*reporting.Result, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var results []*reporting.Result
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_results", dbAttrs(attribute.Int("result_count", len(ids))), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, resultSelect+` WHERE r.id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("query results: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanResult(rows)
			if err != nil {
				return fmt.Errorf("scan result: %w", err)
			}
			results = append(results, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate results: %w", err)
		}
		rows.Close()

		return s.attachTickets(ctx, results)
	})
	return results, err
}

// attachTickets loads the tickets of every result that carries an issue.
func (s *resultStore) attachTickets(ctx context.Context, results []*reporting.Result) error {
	byID := make(map[int64]*reporting.Issue, len(results))
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		if r.Issue == nil {
			continue
		}
		byID[r.ID] = r.Issue
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT result_id, ticket_id, url FROM tickets WHERE result_id = ANY($1) ORDER BY result_id, ticket_id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resultID int64
			t        reporting.Ticket
		)
		if err := rows.Scan(&resultID, &t.ID, &t.URL); err != nil {
			return fmt.Errorf("scan ticket: %w", err)
		}
		issue := byID[resultID]
		issue.Tickets = append(issue.Tickets, t)
	}
	return rows.Err()
}

func (s *resultStore) FindIDsWithIssue(ctx context.Context, runID int64, groups ...reporting.IssueGroup) ([]int64, error) {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, string(g))
	}

	var ids []int64
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_result_ids_with_issue", dbAttrs(attribute.Int64("run_id", runID), attribute.StringSlice("issue_groups", names)), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		rows, err := s.db.Query(ctx, `
			SELECT r.id
			FROM results r
			JOIN issues i ON i.result_id = r.id
			WHERE r.run_id = $1
			  AND (cardinality($2::text[]) = 0 OR i.issue_group = ANY($2::text[]))
			ORDER BY r.id`, runID, names)
		if err != nil {
			return fmt.Errorf("query result ids: %w", err)
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("collect result ids: %w", err)
		}
		return nil
	})
	return ids, err
}

// Save replaces the result's issue and tickets. A nil issue removes the
// classification.
func (s *resultStore) Save(ctx context.Context, result *reporting.Result) error {
	attrs := dbAttrs(attribute.Int64("result_id", result.ID), attribute.Int64("run_id", result.RunID))
	if result.Issue != nil {
		attrs = append(attrs, attribute.String("locator", result.Issue.Locator))
	}

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_result", attrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		if result.Issue == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM issues WHERE result_id = $1`, result.ID); err != nil {
				return fmt.Errorf("delete issue: %w", err)
			}
			return tx.Commit(ctx)
		}

		issue := result.Issue
		tag, err := tx.Exec(ctx, `
			INSERT INTO issues (result_id, locator, issue_group, auto_analyzed, ignore_analyzer, description)
			SELECT $1::bigint, $2::text, $3::text, $4::boolean, $5::boolean, $6::text
			WHERE EXISTS (SELECT 1 FROM results WHERE id = $1)
			ON CONFLICT (result_id) DO UPDATE SET
				locator = EXCLUDED.locator,
				issue_group = EXCLUDED.issue_group,
				auto_analyzed = EXCLUDED.auto_analyzed,
				ignore_analyzer = EXCLUDED.ignore_analyzer,
				description = EXCLUDED.description`,
			result.ID, issue.Locator, string(issue.Group()), issue.AutoAnalyzed, issue.IgnoreAnalyzer, issue.Description,
		)
		if err != nil {
			return fmt.Errorf("upsert issue: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return reporting.ResultNotFound(result.ID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM tickets WHERE result_id = $1`, result.ID); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}

		if len(issue.Tickets) > 0 {
			batch := &pgx.Batch{}
			for _, t := range issue.Tickets {
				batch.Queue(
					`INSERT INTO tickets (result_id, ticket_id, url) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
					result.ID, t.ID, t.URL,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert tickets: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}
