package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// DefaultBatchSize is the number of results sent to the analyzer per request when no
// batch size is configured.
const DefaultBatchSize = 100

// Orchestrator drives automatic classification of a run's results. Candidates are
// partitioned into fixed size batches that are sent to the analyzer one after the
// other; proposed classifications that differ from the current ones are merged back
// into the results and announced as domain events.
type Orchestrator struct {
	tracker   analysis.StatusTracker
	builder   *BatchBuilder
	analyzer  analysis.AnalyzerClient
	runs      reporting.RunRepository
	results   reporting.ResultRepository
	publisher events.DomainEventPublisher
	metrics   AnalysisMetrics

	batchSize int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an auto-classification orchestrator.
func NewOrchestrator(
	tracker analysis.StatusTracker,
	builder *BatchBuilder,
	analyzer analysis.AnalyzerClient,
	runs reporting.RunRepository,
	results reporting.ResultRepository,
	publisher events.DomainEventPublisher,
	metrics AnalysisMetrics,
	batchSize int,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{
		tracker:   tracker,
		builder:   builder,
		analyzer:  analyzer,
		runs:      runs,
		results:   results,
		publisher: publisher,
		metrics:   metrics,
		batchSize: batchSize,
		logger:    logger.With("component", "analysis_orchestrator"),
		tracer:    tracer,
	}
}

// RunAnalyzers classifies the candidate results of a run. Failures are logged and
// never returned, so a broken analyzer cannot fail the workflow that triggered the
// analysis. The run is reported as in progress for the duration of the call.
func (o *Orchestrator) RunAnalyzers(
	ctx context.Context,
	run *reporting.Run,
	candidateIDs []int64,
	cfg analysis.AnalyzerConfig,
) {
	logger := o.logger.With("operation", "run_analyzers", "run_id", run.ID, "project_id", run.ProjectID)
	ctx, span := o.tracer.Start(ctx, "analysis_orchestrator.run_analyzers",
		trace.WithAttributes(
			attribute.Int64("run_id", run.ID),
			attribute.Int64("project_id", run.ProjectID),
			attribute.Int("candidate_count", len(candidateIDs)),
			attribute.String("mode", string(cfg.Mode)),
		),
	)
	defer span.End()

	if !o.analyzer.HasAvailableInstances() {
		span.AddEvent("no_analyzer_instances")
		logger.Warn(ctx, "No analyzer instances available, skipping analysis")
		return
	}

	o.tracker.Start(analysis.KindAutoClassification, run.ID, run.ProjectID)
	defer o.tracker.Finish(analysis.KindAutoClassification, run.ID)

	if err := o.runAnalyzers(ctx, logger, run, candidateIDs, cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		logger.Error(ctx, "Analysis failed", "error", err)
		return
	}
	logger.Info(ctx, "Analysis completed", "candidate_count", len(candidateIDs))
}

func (o *Orchestrator) runAnalyzers(
	ctx context.Context,
	logger *logger.Logger,
	run *reporting.Run,
	candidateIDs []int64,
	cfg analysis.AnalyzerConfig,
) error {
	var previousRunID int64
	if cfg.Mode == analysis.ModePreviousLaunch {
		prev, err := o.runs.FindPrevious(ctx, run)
		if err != nil {
			return fmt.Errorf("failed to find previous run: %w", err)
		}
		if prev != nil {
			previousRunID = prev.ID
		}
	}

	batchNum := 0
	for batch := range slices.Chunk(candidateIDs, o.batchSize) {
		batchNum++
		if err := o.processBatch(ctx, logger, run, batch, previousRunID, cfg); err != nil {
			return fmt.Errorf("batch %d: %w", batchNum, err)
		}
	}
	return nil
}

func (o *Orchestrator) processBatch(
	ctx context.Context,
	logger *logger.Logger,
	run *reporting.Run,
	ids []int64,
	previousRunID int64,
	cfg analysis.AnalyzerConfig,
) error {
	ctx, span := o.tracer.Start(ctx, "analysis_orchestrator.process_batch",
		trace.WithAttributes(attribute.Int("batch_size", len(ids))),
	)
	defer span.End()

	results, err := o.results.FindAllByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load results: %w", err)
	}

	payload, err := o.builder.Prepare(ctx, run, results, cfg)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if payload == nil {
		span.AddEvent("batch_skipped")
		return nil
	}
	payload.PreviousRunID = previousRunID

	o.metrics.IncBatchesSent(ctx, analysis.KindAutoClassification)
	classified, err := o.analyzer.Classify(ctx, *payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to classify results: %w", err)
	}

	// Only results that went out in the payload may be reclassified.
	loaded := make(map[int64]*reporting.Result, len(results))
	for _, r := range results {
		loaded[r.ID] = r
	}
	byID := make(map[int64]*reporting.Result, len(payload.TestItems))
	for _, it := range payload.TestItems {
		if r, ok := loaded[it.TestItemID]; ok {
			byID[it.TestItemID] = r
		}
	}

	analyzers := make([]string, 0, len(classified))
	for name := range classified {
		analyzers = append(analyzers, name)
	}
	slices.Sort(analyzers)

	for _, name := range analyzers {
		rows := classified[name]
		o.metrics.AddItemsClassified(ctx, name, len(rows))
		for _, row := range rows {
			r, ok := byID[row.TestItemID]
			if !ok {
				logger.Warn(ctx, "Analyzer returned unknown result", "analyzer", name, "result_id", row.TestItemID)
				continue
			}
			if err := o.applyClassification(ctx, run, r, name, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyClassification merges one analyzer row into a result. Rows that do not change
// the locator are ignored.
func (o *Orchestrator) applyClassification(
	ctx context.Context,
	run *reporting.Run,
	r *reporting.Result,
	analyzer string,
	row analysis.ClassificationResult,
) error {
	if r.Issue != nil && r.Issue.Locator == row.IssueType {
		return nil
	}

	before := analysis.SnapshotIssue(r.Issue)

	issue := r.Issue.Clone()
	if issue == nil {
		issue = new(reporting.Issue)
	}
	issue.Locator = row.IssueType
	issue.AutoAnalyzed = true

	var relevant *reporting.Result
	if row.HasRelevantItem() {
		var err error
		relevant, err = o.results.FindByID(ctx, row.RelevantItemID)
		switch {
		case errors.Is(err, reporting.ErrResultNotFound):
			o.logger.Warn(ctx, "Relevant result no longer exists, skipping description copy",
				"result_id", r.ID,
				"relevant_item_id", row.RelevantItemID,
			)
			relevant = nil
		case err != nil:
			return fmt.Errorf("failed to load relevant result %d: %w", row.RelevantItemID, err)
		}
		if relevant != nil && relevant.Issue != nil {
			issue.Description = relevant.Issue.Description
			issue.Tickets = slices.Clone(relevant.Issue.Tickets)
		}
	}

	r.Issue = issue
	if err := o.results.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to save result %d: %w", r.ID, err)
	}
	o.metrics.IncReclassifications(ctx, analyzer)

	o.publish(ctx, analysis.NewIssueReclassifiedEvent(
		run.ProjectID, run.ID, r.ID, analyzer, before, analysis.SnapshotIssue(issue),
	), r.ID)

	if relevant != nil && len(issue.Tickets) > 0 {
		o.publish(ctx, analysis.NewTicketLinkedEvent(
			run.ProjectID, run.ID, r.ID, analyzer, before.Tickets, issue.TicketIDs(),
		), r.ID)
	}
	return nil
}

// publish is fire and forget: a failed publish is logged and never fails the analysis.
func (o *Orchestrator) publish(ctx context.Context, evt events.DomainEvent, resultID int64) {
	if err := o.publisher.PublishDomainEvent(ctx, evt, events.WithKey(fmt.Sprint(resultID))); err != nil {
		o.logger.Warn(ctx, "Failed to publish analysis event",
			"event_type", evt.EventType(),
			"result_id", resultID,
			"error", err,
		)
	}
}
