// Package analysis exposes the analysis operations over HTTP.
package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/api/errs"
	analysissvc "github.com/ahrav/logsift/internal/app/analysis"
	domain "github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// Searcher finds results with similar logs.
type Searcher interface {
	Search(
		ctx context.Context,
		resultID int64,
		req domain.SearchRequest,
		membership reporting.Membership,
	) ([]domain.SearchResultGroup, error)
}

// Suggester requests suggestions and records the user's choice.
type Suggester interface {
	Suggest(ctx context.Context, resultID int64, membership reporting.Membership, user string) ([]domain.SuggestInfo, error)
	RecordChoice(ctx context.Context, choices []domain.SuggestInfo) error
}

// Classifier runs automatic classification over a run.
type Classifier interface {
	RunAnalyzers(ctx context.Context, run *reporting.Run, candidateIDs []int64, cfg domain.AnalyzerConfig)
}

// Indexer maintains the project search index.
type Indexer interface {
	IndexRunsBulk(ctx context.Context, projectID int64, runIDs []int64, cfg domain.AnalyzerConfig) *analysissvc.IndexFuture
	DeleteIndex(ctx context.Context, projectID int64) error
}

// StatusReader reports in-progress analysis.
type StatusReader interface {
	RunningKindsFor(runID int64) []domain.Kind
	Snapshot() map[domain.Kind][]int64
}

// Dependencies groups the collaborators of the Service.
type Dependencies struct {
	Projects   reporting.ProjectRepository
	Runs       reporting.RunRepository
	Results    reporting.ResultRepository
	Access     domain.AccessValidator
	Searcher   Searcher
	Suggester  Suggester
	Classifier Classifier
	Indexer    Indexer
	Status     StatusReader
}

// AnalyzeRequest selects how a manually triggered analysis runs.
type AnalyzeRequest struct {
	AnalyzerMode string   `json:"analyzerMode,omitempty"`
	IssueGroups  []string `json:"issueGroups,omitempty" validate:"omitempty,dive,oneof=TO_INVESTIGATE PRODUCT_BUG AUTOMATION_BUG SYSTEM_ISSUE NO_DEFECT"`
}

// AnalyzeAccepted is returned once an analysis has been scheduled.
type AnalyzeAccepted struct {
	RunID      int64 `json:"runId"`
	Candidates int   `json:"candidates"`
}

// Service coordinates analysis operations from the API layer.
type Service struct {
	deps Dependencies

	// background tracks analyses started by AnalyzeRun.
	background sync.WaitGroup

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates the API analysis service.
func NewService(deps Dependencies, logger *logger.Logger, tracer trace.Tracer) *Service {
	return &Service{
		deps:   deps,
		logger: logger.With("component", "analysis_api_service"),
		tracer: tracer,
	}
}

// Search forwards a similarity search.
func (s *Service) Search(
	ctx context.Context,
	resultID int64,
	req domain.SearchRequest,
	membership reporting.Membership,
) ([]domain.SearchResultGroup, error) {
	if err := errs.Check(req); err != nil {
		return nil, errs.New(errs.InvalidArgument, err)
	}
	return s.deps.Searcher.Search(ctx, resultID, req, membership)
}

// Suggest forwards a suggestion request on behalf of the member.
func (s *Service) Suggest(ctx context.Context, resultID int64, membership reporting.Membership) ([]domain.SuggestInfo, error) {
	return s.deps.Suggester.Suggest(ctx, resultID, membership, membership.UserName)
}

// RecordChoice forwards the suggestions the member picked.
func (s *Service) RecordChoice(ctx context.Context, membership reporting.Membership, choices []domain.SuggestInfo) error {
	if err := requireRole(membership); err != nil {
		return err
	}
	for _, c := range choices {
		if c.ProjectID != 0 && c.ProjectID != membership.ProjectID {
			return errs.Newf(errs.InvalidArgument, "suggestion for result %d belongs to project %d", c.TestItemID, c.ProjectID)
		}
	}
	return s.deps.Suggester.RecordChoice(ctx, choices)
}

// AnalyzeRun schedules automatic classification of a run in the background and
// returns the number of candidate results.
func (s *Service) AnalyzeRun(
	ctx context.Context,
	runID int64,
	membership reporting.Membership,
	req AnalyzeRequest,
) (AnalyzeAccepted, error) {
	logger := s.logger.With("operation", "analyze_run", "run_id", runID, "project_id", membership.ProjectID)
	ctx, span := s.tracer.Start(ctx, "analysis_api_service.analyze_run",
		trace.WithAttributes(
			attribute.Int64("run_id", runID),
			attribute.Int64("project_id", membership.ProjectID),
		))
	defer span.End()

	fail := func(err error) (AnalyzeAccepted, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze run failed")
		return AnalyzeAccepted{}, err
	}

	if err := errs.Check(req); err != nil {
		return fail(errs.New(errs.InvalidArgument, err))
	}

	run, err := s.deps.Runs.FindByID(ctx, runID)
	if err != nil {
		return fail(err)
	}
	if run.ProjectID != membership.ProjectID {
		return fail(reporting.RunNotFound(runID))
	}
	if err := s.deps.Access.Validate(ctx, run, membership, membership.UserName); err != nil {
		return fail(err)
	}
	if !analysissvc.IsRunEligible(run) {
		return fail(errs.Newf(errs.FailedPrecondition, "run %d is not eligible for analysis", run.ID))
	}

	project, err := s.deps.Projects.FindByID(ctx, run.ProjectID)
	if err != nil {
		return fail(err)
	}
	cfg := domain.AnalyzerConfigFromAttributes(project.Attributes)
	if req.AnalyzerMode != "" {
		mode, ok := domain.ParseAnalyzerMode(req.AnalyzerMode)
		if !ok {
			return fail(errs.Newf(errs.InvalidArgument, "unknown analyzer mode %q", req.AnalyzerMode))
		}
		cfg.Mode = mode
	}

	groups := []reporting.IssueGroup{reporting.IssueGroupToInvestigate}
	if len(req.IssueGroups) > 0 {
		groups = groups[:0]
		for _, g := range req.IssueGroups {
			groups = append(groups, reporting.IssueGroup(g))
		}
	}

	ids, err := s.deps.Results.FindIDsWithIssue(ctx, run.ID, groups...)
	if err != nil {
		return fail(fmt.Errorf("failed to list candidate results: %w", err))
	}

	bgCtx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.deps.Classifier.RunAnalyzers(bgCtx, run, ids, cfg)
	}()

	span.SetAttributes(attribute.Int("candidate_count", len(ids)))
	logger.Info(ctx, "Analysis scheduled", "candidate_count", len(ids), "mode", string(cfg.Mode))
	return AnalyzeAccepted{RunID: run.ID, Candidates: len(ids)}, nil
}

// IndexProject reindexes every run of the project and returns the id of the
// indexing request.
func (s *Service) IndexProject(ctx context.Context, membership reporting.Membership) (uuid.UUID, error) {
	if err := requireManagingRole(membership); err != nil {
		return uuid.Nil, err
	}

	project, err := s.deps.Projects.FindByID(ctx, membership.ProjectID)
	if err != nil {
		return uuid.Nil, err
	}
	runIDs, err := s.deps.Runs.FindIDsByProject(ctx, project.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list runs of project %d: %w", project.ID, err)
	}

	cfg := domain.AnalyzerConfigFromAttributes(project.Attributes)
	future := s.deps.Indexer.IndexRunsBulk(ctx, project.ID, runIDs, cfg)

	s.logger.Info(ctx, "Project reindex requested",
		"operation", "index_project",
		"project_id", project.ID,
		"run_count", len(runIDs),
		"request_id", future.ID().String(),
	)
	return future.ID(), nil
}

// DeleteIndex drops the project index.
func (s *Service) DeleteIndex(ctx context.Context, membership reporting.Membership) error {
	if err := requireManagingRole(membership); err != nil {
		return err
	}
	if _, err := s.deps.Projects.FindByID(ctx, membership.ProjectID); err != nil {
		return err
	}
	return s.deps.Indexer.DeleteIndex(ctx, membership.ProjectID)
}

// RunStatus returns the analysis kinds in progress for a run.
func (s *Service) RunStatus(runID int64) []domain.Kind { return s.deps.Status.RunningKindsFor(runID) }

// StatusSnapshot returns every run with analysis in progress, by kind.
func (s *Service) StatusSnapshot() map[domain.Kind][]int64 { return s.deps.Status.Snapshot() }

// Wait blocks until background analyses finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func requireRole(m reporting.Membership) error {
	if m.Role == "" {
		return fmt.Errorf("user %q has no role in project %d: %w", m.UserName, m.ProjectID, domain.ErrAccessDenied)
	}
	return nil
}

func requireManagingRole(m reporting.Membership) error {
	if err := requireRole(m); err != nil {
		return err
	}
	if m.Role == reporting.ProjectRoleCustomer {
		return fmt.Errorf("customers cannot manage the index of project %d: %w", m.ProjectID, domain.ErrAccessDenied)
	}
	return nil
}
