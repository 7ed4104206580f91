package analysis

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

func testLogger() *logger.Logger { return logger.New(io.Discard, logger.LevelDebug, "test", nil) }

func testTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

func testMetrics(t *testing.T) AnalysisMetrics {
	t.Helper()
	m, err := NewAnalysisMetrics(noopmetric.NewMeterProvider(), nil)
	require.NoError(t, err)
	return m
}

type mockAnalyzerClient struct{ mock.Mock }

func (m *mockAnalyzerClient) HasAvailableInstances() bool { return m.Called().Bool(0) }

func (m *mockAnalyzerClient) Classify(
	ctx context.Context,
	payload analysis.IndexPayload,
) (map[string][]analysis.ClassificationResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]analysis.ClassificationResult), args.Error(1)
}

type mockIndexerClient struct{ mock.Mock }

func (m *mockIndexerClient) Index(ctx context.Context, payloads []analysis.IndexPayload) (int, error) {
	args := m.Called(ctx, payloads)
	return args.Int(0), args.Error(1)
}

func (m *mockIndexerClient) DeleteIndex(ctx context.Context, projectID int64) error {
	return m.Called(ctx, projectID).Error(0)
}

func (m *mockIndexerClient) CleanIndex(ctx context.Context, indexID int64, resultIDs []int64) (int, error) {
	args := m.Called(ctx, indexID, resultIDs)
	return args.Int(0), args.Error(1)
}

type mockSearchClient struct{ mock.Mock }

func (m *mockSearchClient) Search(ctx context.Context, payload analysis.SearchPayload) ([]analysis.SearchHit, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analysis.SearchHit), args.Error(1)
}

type mockSuggestClient struct{ mock.Mock }

func (m *mockSuggestClient) Suggest(ctx context.Context, payload analysis.SuggestPayload) ([]analysis.SuggestInfo, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analysis.SuggestInfo), args.Error(1)
}

func (m *mockSuggestClient) SuggestFeedback(ctx context.Context, choices []analysis.SuggestInfo) error {
	return m.Called(ctx, choices).Error(0)
}

type mockDomainEventPublisher struct{ mock.Mock }

func (m *mockDomainEventPublisher) PublishDomainEvent(
	ctx context.Context,
	event events.DomainEvent,
	opts ...events.PublishOption,
) error {
	return m.Called(ctx, event, opts).Error(0)
}

type mockProjectRepo struct{ mock.Mock }

func (m *mockProjectRepo) FindByID(ctx context.Context, id int64) (*reporting.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Project), args.Error(1)
}

type mockRunRepo struct{ mock.Mock }

func (m *mockRunRepo) FindByID(ctx context.Context, id int64) (*reporting.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Run), args.Error(1)
}

func (m *mockRunRepo) FindAllByIDs(ctx context.Context, ids []int64) ([]*reporting.Run, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reporting.Run), args.Error(1)
}

func (m *mockRunRepo) FindPrevious(ctx context.Context, run *reporting.Run) (*reporting.Run, error) {
	args := m.Called(ctx, run)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Run), args.Error(1)
}

func (m *mockRunRepo) FindIDsByProject(ctx context.Context, projectID int64) ([]int64, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRunRepo) FindIDsByName(ctx context.Context, projectID int64, name string) ([]int64, error) {
	args := m.Called(ctx, projectID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRunRepo) FindIDsByFilter(ctx context.Context, filter reporting.RunFilter) ([]int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRunRepo) HasIndexableResults(ctx context.Context, runID int64) (bool, error) {
	args := m.Called(ctx, runID)
	return args.Bool(0), args.Error(1)
}

type mockResultRepo struct{ mock.Mock }

func (m *mockResultRepo) FindByID(ctx context.Context, id int64) (*reporting.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.Result), args.Error(1)
}

func (m *mockResultRepo) FindAllByIDs(ctx context.Context, ids []int64) ([]*reporting.Result, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reporting.Result), args.Error(1)
}

func (m *mockResultRepo) FindIDsWithIssue(
	ctx context.Context,
	runID int64,
	groups ...reporting.IssueGroup,
) ([]int64, error) {
	args := m.Called(ctx, runID, groups)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockResultRepo) Save(ctx context.Context, result *reporting.Result) error {
	return m.Called(ctx, result).Error(0)
}

type mockLogRepo struct{ mock.Mock }

func (m *mockLogRepo) FindByResultIDs(
	ctx context.Context,
	resultIDs []int64,
	minLevel reporting.LogLevel,
) (map[int64][]reporting.LogLine, error) {
	args := m.Called(ctx, resultIDs, minLevel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64][]reporting.LogLine), args.Error(1)
}

func (m *mockLogRepo) FindMessagesUnderPath(
	ctx context.Context,
	runID int64,
	path string,
	minLevel reporting.LogLevel,
) ([]string, error) {
	args := m.Called(ctx, runID, path, minLevel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockPatternRepo struct{ mock.Mock }

func (m *mockPatternRepo) FindEnabledByProject(ctx context.Context, projectID int64) ([]reporting.PatternTemplate, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reporting.PatternTemplate), args.Error(1)
}

func (m *mockPatternRepo) SaveMatches(ctx context.Context, matches []reporting.PatternMatch) error {
	return m.Called(ctx, matches).Error(0)
}

func (m *mockPatternRepo) FindNamesByResultID(ctx context.Context, resultID int64) ([]string, error) {
	args := m.Called(ctx, resultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockFilterRepo struct{ mock.Mock }

func (m *mockFilterRepo) FindByID(ctx context.Context, projectID, filterID int64) (*reporting.RunFilter, error) {
	args := m.Called(ctx, projectID, filterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.RunFilter), args.Error(1)
}

// errorLines returns n error level log lines for a result.
func errorLines(resultID int64, n int) []reporting.LogLine {
	lines := make([]reporting.LogLine, 0, n)
	for i := range n {
		lines = append(lines, reporting.LogLine{
			ID:       resultID*100 + int64(i),
			ResultID: resultID,
			Level:    reporting.LogLevelError,
			Message:  "java.lang.AssertionError: expected true",
		})
	}
	return lines
}

func issueOf(locator string) *reporting.Issue { return &reporting.Issue{Locator: locator} }
