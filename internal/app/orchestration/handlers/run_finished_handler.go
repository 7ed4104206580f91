// Package handlers contains the event handlers that trigger analysis from events
// consumed off the event bus.
package handlers

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	analysissvc "github.com/ahrav/logsift/internal/app/analysis"
	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// Classifier runs automatic classification over a run.
type Classifier interface {
	RunAnalyzers(ctx context.Context, run *reporting.Run, candidateIDs []int64, cfg analysis.AnalyzerConfig)
}

// PatternMatcher runs pattern template analysis over a run.
type PatternMatcher interface {
	AnalyzeRun(ctx context.Context, run *reporting.Run) (int, error)
}

// RunIndexer indexes a single run.
type RunIndexer interface {
	IndexSingleRun(ctx context.Context, projectID, runID int64, cfg analysis.AnalyzerConfig) *analysissvc.IndexFuture
}

// RunFinishedHandler analyzes and reindexes runs once they finish.
type RunFinishedHandler struct {
	projects reporting.ProjectRepository
	runs     reporting.RunRepository
	results  reporting.ResultRepository

	patterns   PatternMatcher
	classifier Classifier
	indexer    RunIndexer

	logger *logger.Logger
	tracer trace.Tracer
}

var _ events.EventHandler = (*RunFinishedHandler)(nil)

// NewRunFinishedHandler creates a new RunFinishedHandler with the provided dependencies.
func NewRunFinishedHandler(
	projects reporting.ProjectRepository,
	runs reporting.RunRepository,
	results reporting.ResultRepository,
	patterns PatternMatcher,
	classifier Classifier,
	indexer RunIndexer,
	logger *logger.Logger,
	tracer trace.Tracer,
) *RunFinishedHandler {
	return &RunFinishedHandler{
		projects:   projects,
		runs:       runs,
		results:    results,
		patterns:   patterns,
		classifier: classifier,
		indexer:    indexer,
		logger:     logger.With("component", "run_finished_handler"),
		tracer:     tracer,
	}
}

// HandleEvent implements the events.EventHandler interface.
func (h *RunFinishedHandler) HandleEvent(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	switch evt.Type {
	case reporting.EventTypeRunFinished:
		return h.HandleRunFinished(ctx, evt, ack)
	default:
		return fmt.Errorf("unsupported event type: %s", evt.Type)
	}
}

// SupportedEvents implements the events.EventHandler interface.
func (h *RunFinishedHandler) SupportedEvents() []events.EventType {
	return []events.EventType{reporting.EventTypeRunFinished}
}

// HandleRunFinished runs pattern analysis, automatic classification and reindexing
// for a finished run. Analysis failures are logged and never returned; only failing to
// look up the run or its project is an error.
func (h *RunFinishedHandler) HandleRunFinished(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	ctx, span := h.tracer.Start(ctx, "run_finished_handler.handle_run_finished")
	defer span.End()

	err := h.handleRunFinished(ctx, span, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("run_finished_handler.handle_run_finished: %w", err)
	}
	ack(err)
	return err
}

func (h *RunFinishedHandler) handleRunFinished(ctx context.Context, span trace.Span, evt events.EventEnvelope) error {
	var finished reporting.RunFinishedEvent
	switch p := evt.Payload.(type) {
	case reporting.RunFinishedEvent:
		finished = p
	case *reporting.RunFinishedEvent:
		finished = *p
	default:
		span.SetAttributes(attribute.String("actual_type", fmt.Sprintf("%T", evt.Payload)))
		return fmt.Errorf("invalid event payload type: %T", evt.Payload)
	}
	span.SetAttributes(attribute.Int64("run_id", finished.RunID))
	logger := h.logger.With("operation", "handle_run_finished", "run_id", finished.RunID)

	run, err := h.runs.FindByID(ctx, finished.RunID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	project, err := h.projects.FindByID(ctx, run.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	cfg := analysis.AnalyzerConfigFromAttributes(project.Attributes)
	if !cfg.Enabled || !analysissvc.IsRunEligible(run) {
		span.AddEvent("analysis_skipped")
		logger.Debug(ctx, "Auto analysis disabled or run not eligible", "debug", run.IsDebug())
		return nil
	}

	if n, err := h.patterns.AnalyzeRun(ctx, run); err != nil {
		logger.Error(ctx, "Pattern analysis failed", "error", err)
	} else {
		span.SetAttributes(attribute.Int("pattern_matches", n))
	}

	ids, err := h.results.FindIDsWithIssue(ctx, run.ID)
	if err != nil {
		logger.Error(ctx, "Failed to list classified results", "error", err)
	} else {
		h.classifier.RunAnalyzers(ctx, run, ids, cfg)
	}

	indexed, err := h.indexer.IndexSingleRun(ctx, run.ProjectID, run.ID, cfg).Wait(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to reindex run", "error", err)
		return nil
	}
	span.SetAttributes(attribute.Int("indexed_count", indexed))
	logger.Info(ctx, "Finished run processed", "indexed_count", indexed)
	return nil
}
