package analysis

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// DefaultAncestorMaxDepth bounds the walk to the nearest ancestor carrying statistics.
const DefaultAncestorMaxDepth = 64

// SearchRepositories groups the read ports the search path needs.
type SearchRepositories struct {
	Projects reporting.ProjectRepository
	Runs     reporting.RunRepository
	Results  reporting.ResultRepository
	Logs     reporting.LogRepository
	Patterns reporting.PatternRepository
	Filters  reporting.FilterRepository
}

// SearchOrchestrator finds results with logs similar to those of a given result.
type SearchOrchestrator struct {
	repos      SearchRepositories
	client     analysis.SearchClient
	collectors map[analysis.SearchMode]runCollector
	metrics    AnalysisMetrics

	maxDepth int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewSearchOrchestrator creates a similarity search orchestrator.
func NewSearchOrchestrator(
	repos SearchRepositories,
	client analysis.SearchClient,
	metrics AnalysisMetrics,
	maxDepth int,
	logger *logger.Logger,
	tracer trace.Tracer,
) *SearchOrchestrator {
	if maxDepth <= 0 {
		maxDepth = DefaultAncestorMaxDepth
	}
	return &SearchOrchestrator{
		repos:      repos,
		client:     client,
		collectors: newRunCollectors(repos.Runs, repos.Filters),
		metrics:    metrics,
		maxDepth:   maxDepth,
		logger:     logger.With("component", "search_orchestrator"),
		tracer:     tracer,
	}
}

// Search returns the results whose error logs are similar to those under the given
// result. Any missing entity aborts the whole search with a not-found error.
func (s *SearchOrchestrator) Search(
	ctx context.Context,
	resultID int64,
	req analysis.SearchRequest,
	membership reporting.Membership,
) ([]analysis.SearchResultGroup, error) {
	logger := s.logger.With("operation", "search", "result_id", resultID, "project_id", membership.ProjectID)
	ctx, span := s.tracer.Start(ctx, "search_orchestrator.search",
		trace.WithAttributes(
			attribute.Int64("result_id", resultID),
			attribute.Int64("project_id", membership.ProjectID),
			attribute.String("search_mode", req.SearchMode),
		),
	)
	defer span.End()

	groups, err := s.search(ctx, resultID, req, membership)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("group_count", len(groups)))
	logger.Debug(ctx, "Search completed", "group_count", len(groups))
	return groups, nil
}

func (s *SearchOrchestrator) search(
	ctx context.Context,
	resultID int64,
	req analysis.SearchRequest,
	membership reporting.Membership,
) ([]analysis.SearchResultGroup, error) {
	project, err := s.repos.Projects.FindByID(ctx, membership.ProjectID)
	if err != nil {
		return nil, err
	}
	result, err := s.repos.Results.FindByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	run, err := s.repos.Runs.FindByID(ctx, result.RunID)
	if err != nil {
		return nil, err
	}
	if run.ProjectID != project.ID {
		return nil, reporting.RunNotFound(run.ID)
	}

	if result.Status == reporting.StatusInProgress {
		return nil, fmt.Errorf("result %d: %w", result.ID, analysis.ErrResultNotFinished)
	}

	mode, err := analysis.ParseSearchMode(req.SearchMode)
	if err != nil {
		return nil, err
	}
	s.metrics.IncSearchRequests(ctx, string(mode))

	runIDs, err := collectRuns(ctx, s.collectors, mode, req.FilterID, run)
	if err != nil {
		return nil, err
	}

	messages, err := s.repos.Logs.FindMessagesUnderPath(ctx, run.ID, result.Path, reporting.LogLevelError)
	if err != nil {
		return nil, fmt.Errorf("failed to load log messages: %w", err)
	}
	if len(messages) == 0 {
		return []analysis.SearchResultGroup{}, nil
	}

	cfg := analysis.AnalyzerConfigFromAttributes(project.Attributes)
	hits, err := s.client.Search(ctx, analysis.SearchPayload{
		RunID:          run.ID,
		RunName:        run.Name,
		ItemID:         result.ID,
		ProjectID:      project.ID,
		FilteredRunIDs: runIDs,
		LogMessages:    messages,
		LogLines:       cfg.NumberOfLogLines,
		AnalyzerConfig: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if len(hits) == 0 {
		return []analysis.SearchResultGroup{}, nil
	}

	return s.composeGroups(ctx, hits)
}

// composeGroups hydrates search hits, one group per result in order of first appearance.
func (s *SearchOrchestrator) composeGroups(
	ctx context.Context,
	hits []analysis.SearchHit,
) ([]analysis.SearchResultGroup, error) {
	var itemIDs []int64
	logIDs := make(map[int64]map[int64]struct{})
	for _, h := range hits {
		if _, ok := logIDs[h.TestItemID]; !ok {
			logIDs[h.TestItemID] = make(map[int64]struct{})
			itemIDs = append(itemIDs, h.TestItemID)
		}
		logIDs[h.TestItemID][h.LogID] = struct{}{}
	}

	items, err := s.loadAll(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	var runIDs, ancestorIDs []int64
	for _, id := range itemIDs {
		r := items[id]
		runIDs = append(runIDs, r.RunID)
		ancestorIDs = append(ancestorIDs, r.AncestorIDs()...)
	}
	runs, err := s.loadRuns(ctx, runIDs)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.loadAll(ctx, ancestorIDs)
	if err != nil {
		return nil, err
	}
	for id, r := range items {
		ancestors[id] = r
	}

	lines, err := s.repos.Logs.FindByResultIDs(ctx, itemIDs, reporting.LogLevelError)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs of search results: %w", err)
	}

	groups := make([]analysis.SearchResultGroup, 0, len(itemIDs))
	for _, id := range itemIDs {
		r := items[id]
		run := runs[r.RunID]

		holder, err := s.nearestWithStats(ctx, r, ancestors)
		if err != nil {
			return nil, err
		}
		templates, err := s.repos.Patterns.FindNamesByResultID(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern templates of result %d: %w", r.ID, err)
		}

		pathNames := make(map[int64]string)
		for _, aid := range r.AncestorIDs() {
			pathNames[aid] = ancestors[aid].Name
		}

		var logs []analysis.LogView
		for _, l := range lines[r.ID] {
			if _, ok := logIDs[r.ID][l.ID]; ok {
				logs = append(logs, analysis.LogView{ID: l.ID, Level: l.Level.String(), Message: l.Message})
			}
		}

		groups = append(groups, analysis.SearchResultGroup{
			RunID:            run.ID,
			RunName:          fmt.Sprintf("%s #%d", run.Name, run.Number),
			ItemID:           r.ID,
			ItemName:         r.Name,
			Path:             r.Path,
			PathNames:        pathNames,
			PatternTemplates: templates,
			Duration:         r.Duration().Seconds(),
			Status:           r.Status.String(),
			Issue:            issueView(holder.Issue),
			Logs:             logs,
		})
	}
	return groups, nil
}

// nearestWithStats walks up from r to the closest result carrying statistics. The walk
// is bounded by maxDepth and fails closed when no such ancestor exists.
func (s *SearchOrchestrator) nearestWithStats(
	ctx context.Context,
	r *reporting.Result,
	cache map[int64]*reporting.Result,
) (*reporting.Result, error) {
	cur := r
	for depth := 0; !cur.HasStats; depth++ {
		if depth >= s.maxDepth || !cur.HasParent() {
			return nil, fmt.Errorf("result %d: %w", r.ID, analysis.ErrAncestorDepthExceeded)
		}
		parent, ok := cache[cur.ParentID]
		if !ok {
			var err error
			if parent, err = s.repos.Results.FindByID(ctx, cur.ParentID); err != nil {
				return nil, err
			}
			cache[parent.ID] = parent
		}
		cur = parent
	}
	return cur, nil
}

// loadAll fetches results by id and fails with a not-found error if any is missing.
func (s *SearchOrchestrator) loadAll(ctx context.Context, ids []int64) (map[int64]*reporting.Result, error) {
	ids = uniqueIDs(ids)
	out := make(map[int64]*reporting.Result, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rs, err := s.repos.Results.FindAllByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	for _, r := range rs {
		out[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, reporting.ResultNotFound(id)
		}
	}
	return out, nil
}

func (s *SearchOrchestrator) loadRuns(ctx context.Context, ids []int64) (map[int64]*reporting.Run, error) {
	ids = uniqueIDs(ids)
	rs, err := s.repos.Runs.FindAllByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	out := make(map[int64]*reporting.Run, len(rs))
	for _, r := range rs {
		out[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, reporting.RunNotFound(id)
		}
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func issueView(issue *reporting.Issue) *analysis.IssueView {
	if issue == nil {
		return nil
	}
	return &analysis.IssueView{
		IssueType:      issue.Locator,
		AutoAnalyzed:   issue.AutoAnalyzed,
		IgnoreAnalyzer: issue.IgnoreAnalyzer,
		Comment:        issue.Description,
		Tickets:        issue.TicketIDs(),
	}
}
