package analysis

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// IndexCoordinator maintains the external search index. Indexing entry points run in
// the background and return an IndexFuture; every run being indexed is reported as in
// progress under the indexing kind until its operation finishes.
type IndexCoordinator struct {
	tracker analysis.StatusTracker
	builder *BatchBuilder
	indexer analysis.IndexerClient
	runs    reporting.RunRepository
	results reporting.ResultRepository
	metrics AnalysisMetrics

	batchSize int
	inflight  sync.WaitGroup

	logger *logger.Logger
	tracer trace.Tracer
}

// NewIndexCoordinator creates an index coordinator.
func NewIndexCoordinator(
	tracker analysis.StatusTracker,
	builder *BatchBuilder,
	indexer analysis.IndexerClient,
	runs reporting.RunRepository,
	results reporting.ResultRepository,
	metrics AnalysisMetrics,
	batchSize int,
	logger *logger.Logger,
	tracer trace.Tracer,
) *IndexCoordinator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IndexCoordinator{
		tracker:   tracker,
		builder:   builder,
		indexer:   indexer,
		runs:      runs,
		results:   results,
		metrics:   metrics,
		batchSize: batchSize,
		logger:    logger.With("component", "index_coordinator"),
		tracer:    tracer,
	}
}

// IndexRunsBulk indexes every run among runIDs that has classified content, sending
// all payloads in one request. Runs without content are skipped.
func (c *IndexCoordinator) IndexRunsBulk(
	ctx context.Context,
	projectID int64,
	runIDs []int64,
	cfg analysis.AnalyzerConfig,
) *IndexFuture {
	return c.async(ctx, "bulk", projectScope(projectID), runIDs, func(ctx context.Context) (int, error) {
		payloads := make([]analysis.IndexPayload, 0, len(runIDs))
		for _, runID := range runIDs {
			ok, err := c.runs.HasIndexableResults(ctx, runID)
			if err != nil {
				return 0, fmt.Errorf("failed to check run %d: %w", runID, err)
			}
			if !ok {
				continue
			}

			run, err := c.runs.FindByID(ctx, runID)
			if err != nil {
				return 0, err
			}
			p, err := c.buildRunPayload(ctx, run, cfg)
			if err != nil {
				return 0, err
			}
			if p != nil {
				payloads = append(payloads, *p)
			}
		}
		return c.send(ctx, payloads)
	})
}

// IndexSingleRun indexes one run. The future resolves to zero when the run has no
// eligible content.
func (c *IndexCoordinator) IndexSingleRun(
	ctx context.Context,
	projectID, runID int64,
	cfg analysis.AnalyzerConfig,
) *IndexFuture {
	return c.async(ctx, "single_run", projectScope(projectID), []int64{runID}, func(ctx context.Context) (int, error) {
		run, err := c.runs.FindByID(ctx, runID)
		if err != nil {
			return 0, err
		}
		p, err := c.buildRunPayload(ctx, run, cfg)
		if err != nil || p == nil {
			return 0, err
		}
		return c.send(ctx, []analysis.IndexPayload{*p})
	})
}

// IndexResultSubset indexes the given results of one run.
func (c *IndexCoordinator) IndexResultSubset(
	ctx context.Context,
	projectID, runID int64,
	resultIDs []int64,
	cfg analysis.AnalyzerConfig,
) *IndexFuture {
	return c.async(ctx, "result_subset", projectScope(projectID), []int64{runID}, func(ctx context.Context) (int, error) {
		run, err := c.runs.FindByID(ctx, runID)
		if err != nil {
			return 0, err
		}
		results, err := c.loadResults(ctx, resultIDs)
		if err != nil {
			return 0, err
		}
		results = slices.DeleteFunc(results, func(r *reporting.Result) bool { return r.RunID != runID })

		p, err := c.builder.Prepare(ctx, run, results, cfg)
		if err != nil || p == nil {
			return 0, err
		}
		return c.send(ctx, []analysis.IndexPayload{*p})
	})
}

// IndexPrebuiltPayload sends a payload assembled by the caller as is.
func (c *IndexCoordinator) IndexPrebuiltPayload(
	ctx context.Context,
	projectID int64,
	payload analysis.IndexPayload,
) *IndexFuture {
	return c.async(ctx, "prebuilt", projectScope(projectID), []int64{payload.RunID}, func(ctx context.Context) (int, error) {
		return c.send(ctx, []analysis.IndexPayload{payload})
	})
}

// DeleteIndex drops the index of a project.
func (c *IndexCoordinator) DeleteIndex(ctx context.Context, projectID int64) error {
	logger := c.logger.With("operation", "delete_index", "project_id", projectID)
	ctx, span := c.tracer.Start(ctx, "index_coordinator.delete_index",
		trace.WithAttributes(attribute.Int64("project_id", projectID)),
	)
	defer span.End()

	if err := c.indexer.DeleteIndex(ctx, projectID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete index")
		return fmt.Errorf("failed to delete index of project %d: %w", projectID, err)
	}
	logger.Info(ctx, "Index deleted")
	return nil
}

// CleanIndex removes results from an index. An empty id list resolves immediately
// without contacting the indexer.
func (c *IndexCoordinator) CleanIndex(ctx context.Context, indexID int64, resultIDs []int64) *IndexFuture {
	if len(resultIDs) == 0 {
		return NewCompletedIndexFuture(0, nil)
	}
	return c.async(ctx, "clean", indexScope{indexID: indexID}, nil, func(ctx context.Context) (int, error) {
		return c.indexer.CleanIndex(ctx, indexID, resultIDs)
	})
}

// Drain waits for every in-flight indexing operation or until ctx is done.
func (c *IndexCoordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// indexScope identifies what an indexing operation targets: a project, or an
// existing index when cleaning.
type indexScope struct {
	projectID int64
	indexID   int64
}

func projectScope(projectID int64) indexScope { return indexScope{projectID: projectID} }

func (s indexScope) attr() (string, int64) {
	if s.indexID != 0 {
		return "index_id", s.indexID
	}
	return "project_id", s.projectID
}

// async runs fn in the background, marking runIDs as being indexed until it returns.
// The caller's cancellation does not stop the operation; its trace context is kept.
func (c *IndexCoordinator) async(
	ctx context.Context,
	op string,
	scope indexScope,
	runIDs []int64,
	fn func(ctx context.Context) (int, error),
) *IndexFuture {
	future := newIndexFuture()
	key, id := scope.attr()
	logger := c.logger.With("operation", "index_"+op, key, id, "index_request_id", future.ID())

	for _, runID := range runIDs {
		c.tracker.Start(analysis.KindIndexing, runID, scope.projectID)
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		count, err := c.execute(context.WithoutCancel(ctx), logger, op, scope, runIDs, future, fn)
		future.complete(count, err)
	}()

	return future
}

// execute runs fn and releases the tracker entries before returning, so a resolved
// future never observes a run still marked as being indexed.
func (c *IndexCoordinator) execute(
	ctx context.Context,
	logger *logger.Logger,
	op string,
	scope indexScope,
	runIDs []int64,
	future *IndexFuture,
	fn func(ctx context.Context) (int, error),
) (int, error) {
	key, id := scope.attr()
	ctx, span := c.tracer.Start(ctx, "index_coordinator.index_"+op,
		trace.WithAttributes(
			attribute.Int64(key, id),
			attribute.Int("run_count", len(runIDs)),
			attribute.String("index_request_id", future.ID().String()),
		),
	)
	defer span.End()
	defer func() {
		for _, id := range runIDs {
			c.tracker.Finish(analysis.KindIndexing, id)
		}
	}()

	count, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "indexing failed")
		c.metrics.IncIndexErrors(ctx, op)
		logger.Error(ctx, "Indexing failed", "error", err)
		return 0, &analysis.IndexingError{ProjectID: scope.projectID, IndexID: scope.indexID, Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("indexed_count", count))
	logger.Debug(ctx, "Indexing finished", "indexed_count", count)
	return count, nil
}

func (c *IndexCoordinator) send(ctx context.Context, payloads []analysis.IndexPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	n, err := c.indexer.Index(ctx, payloads)
	if err != nil {
		return 0, fmt.Errorf("failed to index %d payloads: %w", len(payloads), err)
	}
	c.metrics.AddIndexedLogs(ctx, n)
	return n, nil
}

func (c *IndexCoordinator) buildRunPayload(
	ctx context.Context,
	run *reporting.Run,
	cfg analysis.AnalyzerConfig,
) (*analysis.IndexPayload, error) {
	if !IsRunEligible(run) {
		return nil, nil
	}
	ids, err := c.results.FindIDsWithIssue(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results of run %d: %w", run.ID, err)
	}
	results, err := c.loadResults(ctx, ids)
	if err != nil {
		return nil, err
	}
	return c.builder.Prepare(ctx, run, results, cfg)
}

// loadResults fetches results in batches to keep individual queries bounded.
func (c *IndexCoordinator) loadResults(ctx context.Context, ids []int64) ([]*reporting.Result, error) {
	out := make([]*reporting.Result, 0, len(ids))
	for chunk := range slices.Chunk(ids, c.batchSize) {
		rs, err := c.results.FindAllByIDs(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to load results: %w", err)
		}
		out = append(out, rs...)
	}
	return out, nil
}
