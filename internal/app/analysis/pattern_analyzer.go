package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	regexp "github.com/wasilibs/go-re2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// PatternAnalyzer tags "to investigate" results whose error logs match one of the
// project's pattern templates.
type PatternAnalyzer struct {
	tracker  analysis.StatusTracker
	results  reporting.ResultRepository
	logs     reporting.LogRepository
	patterns reporting.PatternRepository

	batchSize int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewPatternAnalyzer creates a pattern analyzer.
func NewPatternAnalyzer(
	tracker analysis.StatusTracker,
	results reporting.ResultRepository,
	logs reporting.LogRepository,
	patterns reporting.PatternRepository,
	batchSize int,
	logger *logger.Logger,
	tracer trace.Tracer,
) *PatternAnalyzer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PatternAnalyzer{
		tracker:   tracker,
		results:   results,
		logs:      logs,
		patterns:  patterns,
		batchSize: batchSize,
		logger:    logger.With("component", "pattern_analyzer"),
		tracer:    tracer,
	}
}

type patternMatcher struct {
	id    int64
	match func(string) bool
}

// AnalyzeRun matches the project's enabled templates against the run and persists the
// matches. It returns the number of matches found.
func (p *PatternAnalyzer) AnalyzeRun(ctx context.Context, run *reporting.Run) (int, error) {
	logger := p.logger.With("operation", "analyze_run", "run_id", run.ID, "project_id", run.ProjectID)
	ctx, span := p.tracer.Start(ctx, "pattern_analyzer.analyze_run",
		trace.WithAttributes(
			attribute.Int64("run_id", run.ID),
			attribute.Int64("project_id", run.ProjectID),
		),
	)
	defer span.End()

	p.tracker.Start(analysis.KindPatternClassification, run.ID, run.ProjectID)
	defer p.tracker.Finish(analysis.KindPatternClassification, run.ID)

	templates, err := p.patterns.FindEnabledByProject(ctx, run.ProjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load pattern templates")
		return 0, fmt.Errorf("failed to load pattern templates: %w", err)
	}
	matchers := p.compile(ctx, logger, templates)
	if len(matchers) == 0 {
		return 0, nil
	}

	ids, err := p.results.FindIDsWithIssue(ctx, run.ID, reporting.IssueGroupToInvestigate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list results")
		return 0, fmt.Errorf("failed to list results to investigate: %w", err)
	}

	total := 0
	for chunk := range slices.Chunk(ids, p.batchSize) {
		lines, err := p.logs.FindByResultIDs(ctx, chunk, reporting.LogLevelError)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load logs")
			return total, fmt.Errorf("failed to load logs: %w", err)
		}

		var matches []reporting.PatternMatch
		for _, resultID := range chunk {
			for _, m := range matchers {
				if slices.ContainsFunc(lines[resultID], func(l reporting.LogLine) bool { return m.match(l.Message) }) {
					matches = append(matches, reporting.PatternMatch{PatternID: m.id, ResultID: resultID})
				}
			}
		}
		if len(matches) == 0 {
			continue
		}
		if err := p.patterns.SaveMatches(ctx, matches); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to save matches")
			return total, fmt.Errorf("failed to save pattern matches: %w", err)
		}
		total += len(matches)
	}

	span.SetAttributes(attribute.Int("match_count", total))
	logger.Info(ctx, "Pattern analysis completed", "match_count", total)
	return total, nil
}

func (p *PatternAnalyzer) compile(
	ctx context.Context,
	logger *logger.Logger,
	templates []reporting.PatternTemplate,
) []patternMatcher {
	matchers := make([]patternMatcher, 0, len(templates))
	for _, t := range templates {
		switch t.Type {
		case reporting.PatternTypeString:
			value := t.Value
			matchers = append(matchers, patternMatcher{id: t.ID, match: func(s string) bool {
				return strings.Contains(s, value)
			}})
		case reporting.PatternTypeRegex:
			re, err := regexp.Compile(t.Value)
			if err != nil {
				logger.Warn(ctx, "Skipping invalid pattern template", "pattern_id", t.ID, "error", err)
				continue
			}
			matchers = append(matchers, patternMatcher{id: t.ID, match: re.MatchString})
		default:
			logger.Warn(ctx, "Skipping pattern template with unknown type", "pattern_id", t.ID, "type", t.Type)
		}
	}
	return matchers
}
