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

// SuggestionOrchestrator asks the analyzer for classification suggestions for a
// single result. It is read only: suggestions are returned exactly as received.
type SuggestionOrchestrator struct {
	projects reporting.ProjectRepository
	runs     reporting.RunRepository
	results  reporting.ResultRepository
	logs     reporting.LogRepository
	builder  *BatchBuilder
	access   analysis.AccessValidator
	client   analysis.SuggestClient

	minLevel reporting.LogLevel

	logger *logger.Logger
	tracer trace.Tracer
}

// NewSuggestionOrchestrator creates a suggestion orchestrator.
func NewSuggestionOrchestrator(
	projects reporting.ProjectRepository,
	runs reporting.RunRepository,
	results reporting.ResultRepository,
	logs reporting.LogRepository,
	builder *BatchBuilder,
	access analysis.AccessValidator,
	client analysis.SuggestClient,
	minLevel reporting.LogLevel,
	logger *logger.Logger,
	tracer trace.Tracer,
) *SuggestionOrchestrator {
	return &SuggestionOrchestrator{
		projects: projects,
		runs:     runs,
		results:  results,
		logs:     logs,
		builder:  builder,
		access:   access,
		client:   client,
		minLevel: minLevel,
		logger:   logger.With("component", "suggestion_orchestrator"),
		tracer:   tracer,
	}
}

// Suggest returns the analyzer's suggestions for a result after checking that the user
// may access its run.
func (s *SuggestionOrchestrator) Suggest(
	ctx context.Context,
	resultID int64,
	membership reporting.Membership,
	user string,
) ([]analysis.SuggestInfo, error) {
	logger := s.logger.With("operation", "suggest", "result_id", resultID, "user", user)
	ctx, span := s.tracer.Start(ctx, "suggestion_orchestrator.suggest",
		trace.WithAttributes(
			attribute.Int64("result_id", resultID),
			attribute.Int64("project_id", membership.ProjectID),
		),
	)
	defer span.End()

	fail := func(err error, msg string) ([]analysis.SuggestInfo, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	result, err := s.results.FindByID(ctx, resultID)
	if err != nil {
		return fail(err, "result lookup failed")
	}
	run, err := s.runs.FindByID(ctx, result.RunID)
	if err != nil {
		return fail(err, "run lookup failed")
	}
	if err := s.access.Validate(ctx, run, membership, user); err != nil {
		return fail(err, "access denied")
	}
	project, err := s.projects.FindByID(ctx, run.ProjectID)
	if err != nil {
		return fail(err, "project lookup failed")
	}
	cfg := analysis.AnalyzerConfigFromAttributes(project.Attributes)

	lines, err := s.logs.FindByResultIDs(ctx, []int64{result.ID}, s.minLevel)
	if err != nil {
		return fail(fmt.Errorf("failed to load logs of result %d: %w", result.ID, err), "log lookup failed")
	}
	item := s.builder.BuildItemPayload(result, lines[result.ID], cfg.NumberOfLogLines)

	suggestions, err := s.client.Suggest(ctx, analysis.SuggestPayload{
		TestItemID:     result.ID,
		UniqueID:       result.UniqueID,
		TestCaseHash:   result.TestCaseHash,
		RunID:          run.ID,
		RunName:        run.Name,
		RunNumber:      run.Number,
		ProjectID:      run.ProjectID,
		AnalyzerConfig: cfg,
		Logs:           item.Logs,
	})
	if err != nil {
		return fail(fmt.Errorf("suggest request failed: %w", err), "suggest request failed")
	}

	logger.Debug(ctx, "Suggestions received", "count", len(suggestions))
	return suggestions, nil
}

// RecordChoice reports the suggestions a user picked back to the analyzer. An empty
// slice is a no-op.
func (s *SuggestionOrchestrator) RecordChoice(ctx context.Context, choices []analysis.SuggestInfo) error {
	if len(choices) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "suggestion_orchestrator.record_choice",
		trace.WithAttributes(attribute.Int("choice_count", len(choices))),
	)
	defer span.End()

	if err := s.client.SuggestFeedback(ctx, choices); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send suggestion feedback")
		return fmt.Errorf("failed to send suggestion feedback: %w", err)
	}
	return nil
}
