package analysis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// IsEligible reports whether a result qualifies for being sent to an analyzer: it
// carries a classification outside "to investigate" and is not excluded from analysis.
func IsEligible(r *reporting.Result) bool {
	if r == nil || r.Issue == nil {
		return false
	}
	return r.Issue.Group() != reporting.IssueGroupToInvestigate && !r.Issue.IgnoreAnalyzer
}

// IsRunEligible reports whether a run takes part in analysis. Debug runs never do.
func IsRunEligible(run *reporting.Run) bool { return run != nil && !run.IsDebug() }

// BatchBuilder turns runs and their results into analyzer wire payloads.
type BatchBuilder struct {
	logs     reporting.LogRepository
	minLevel reporting.LogLevel

	logger *logger.Logger
	tracer trace.Tracer
}

// NewBatchBuilder creates a builder that only ever attaches log lines at or above minLevel.
func NewBatchBuilder(
	logs reporting.LogRepository,
	minLevel reporting.LogLevel,
	logger *logger.Logger,
	tracer trace.Tracer,
) *BatchBuilder {
	return &BatchBuilder{
		logs:     logs,
		minLevel: minLevel,
		logger:   logger.With("component", "batch_builder"),
		tracer:   tracer,
	}
}

// BuildItemPayload projects a result and its log lines. Lines below the minimum
// severity or with empty messages are dropped, and at most numberOfLines are kept
// (analysis.AllLogLines keeps every line).
func (b *BatchBuilder) BuildItemPayload(
	r *reporting.Result,
	lines []reporting.LogLine,
	numberOfLines int,
) analysis.IndexItemPayload {
	item := analysis.IndexItemPayload{
		TestItemID:   r.ID,
		UniqueID:     r.UniqueID,
		TestCaseHash: r.TestCaseHash,
		StartTime:    r.StartTime,
	}
	if r.Issue != nil {
		item.IssueType = r.Issue.Locator
		item.IsAutoAnalyzed = r.Issue.AutoAnalyzed
	}
	if len(lines) == 0 {
		return item
	}

	logs := make([]analysis.IndexLogPayload, 0, len(lines))
	for _, l := range lines {
		if numberOfLines != analysis.AllLogLines && len(logs) >= numberOfLines {
			break
		}
		if !l.AtLeast(b.minLevel) || l.Message == "" {
			continue
		}
		logs = append(logs, analysis.IndexLogPayload{
			LogID:    l.ID,
			LogLevel: int(l.Level),
			Message:  l.Message,
		})
	}
	if len(logs) > 0 {
		item.Logs = logs
	}
	return item
}

// Prepare builds the payload for a run and a set of candidate results. It returns nil
// without error when the run is not eligible or when no eligible candidate has any
// qualifying log line; callers skip such batches.
func (b *BatchBuilder) Prepare(
	ctx context.Context,
	run *reporting.Run,
	candidates []*reporting.Result,
	cfg analysis.AnalyzerConfig,
) (*analysis.IndexPayload, error) {
	ctx, span := b.tracer.Start(ctx, "batch_builder.prepare",
		trace.WithAttributes(
			attribute.Int64("run_id", run.ID),
			attribute.Int("candidate_count", len(candidates)),
		),
	)
	defer span.End()

	if !IsRunEligible(run) {
		span.AddEvent("run_not_eligible")
		return nil, nil
	}

	eligible := make([]*reporting.Result, 0, len(candidates))
	ids := make([]int64, 0, len(candidates))
	for _, r := range candidates {
		if IsEligible(r) {
			eligible = append(eligible, r)
			ids = append(ids, r.ID)
		}
	}
	if len(eligible) == 0 {
		span.AddEvent("no_eligible_results")
		return nil, nil
	}

	lines, err := b.logs.FindByResultIDs(ctx, ids, b.minLevel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load log lines")
		return nil, fmt.Errorf("failed to load log lines for run %d: %w", run.ID, err)
	}

	items := make([]analysis.IndexItemPayload, 0, len(eligible))
	for _, r := range eligible {
		item := b.BuildItemPayload(r, lines[r.ID], cfg.NumberOfLogLines)
		if len(item.Logs) == 0 {
			continue
		}
		items = append(items, item)
	}
	span.SetAttributes(attribute.Int("item_count", len(items)))
	if len(items) == 0 {
		b.logger.Debug(ctx, "No eligible results with log lines, skipping batch", "run_id", run.ID)
		return nil, nil
	}

	return &analysis.IndexPayload{
		RunID:          run.ID,
		RunName:        run.Name,
		RunNumber:      run.Number,
		ProjectID:      run.ProjectID,
		AnalyzerConfig: cfg,
		TestItems:      items,
	}, nil
}
