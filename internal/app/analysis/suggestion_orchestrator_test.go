package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
)

type suggestTestSuite struct {
	projects *mockProjectRepo
	runs     *mockRunRepo
	results  *mockResultRepo
	logs     *mockLogRepo
	client   *mockSuggestClient
	orch     *SuggestionOrchestrator
}

func newSuggestTestSuite(t *testing.T) *suggestTestSuite {
	t.Helper()

	s := &suggestTestSuite{
		projects: new(mockProjectRepo),
		runs:     new(mockRunRepo),
		results:  new(mockResultRepo),
		logs:     new(mockLogRepo),
		client:   new(mockSuggestClient),
	}
	builder := NewBatchBuilder(s.logs, reporting.LogLevelError, testLogger(), testTracer())
	s.orch = NewSuggestionOrchestrator(
		s.projects, s.runs, s.results, s.logs, builder, ProjectAccessValidator{}, s.client,
		reporting.LogLevelError, testLogger(), testTracer(),
	)
	return s
}

func TestSuggestionOrchestrator_Suggest(t *testing.T) {
	s := newSuggestTestSuite(t)
	result := &reporting.Result{ID: 40, RunID: 1, UniqueID: "auto:1", TestCaseHash: 7, Issue: issueOf(reporting.LocatorToInvestigate)}
	run := &reporting.Run{ID: 1, ProjectID: 2, Name: "regression", Number: 3}
	project := &reporting.Project{ID: 2, Attributes: map[string]string{analysis.AttrNumberOfLogLines: "1"}}

	s.results.On("FindByID", mock.Anything, int64(40)).Return(result, nil)
	s.runs.On("FindByID", mock.Anything, int64(1)).Return(run, nil)
	s.projects.On("FindByID", mock.Anything, int64(2)).Return(project, nil)
	s.logs.On("FindByResultIDs", mock.Anything, []int64{40}, reporting.LogLevelError).
		Return(map[int64][]reporting.LogLine{40: errorLines(40, 3)}, nil)

	want := []analysis.SuggestInfo{
		{TestItemID: 40, RelevantItemID: 12, IssueType: "pb001", MatchScore: 98.5},
		{TestItemID: 40, RelevantItemID: 13, IssueType: "ab001", MatchScore: 80},
	}
	s.client.On("Suggest", mock.Anything, mock.MatchedBy(func(p analysis.SuggestPayload) bool {
		return p.TestItemID == 40 && p.UniqueID == "auto:1" && p.TestCaseHash == 7 &&
			p.RunID == 1 && p.RunName == "regression" && p.RunNumber == 3 && p.ProjectID == 2 &&
			len(p.Logs) == 1
	})).Return(want, nil)

	got, err := s.orch.Suggest(context.Background(), 40,
		reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleMember}, "dev")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	s.client.AssertExpectations(t)
}

func TestSuggestionOrchestrator_AccessDenied(t *testing.T) {
	s := newSuggestTestSuite(t)
	s.results.On("FindByID", mock.Anything, int64(40)).Return(&reporting.Result{ID: 40, RunID: 1}, nil)
	s.runs.On("FindByID", mock.Anything, int64(1)).Return(&reporting.Run{ID: 1, ProjectID: 9}, nil)

	_, err := s.orch.Suggest(context.Background(), 40,
		reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleMember}, "dev")
	require.ErrorIs(t, err, analysis.ErrAccessDenied)
	s.client.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything)
}

func TestSuggestionOrchestrator_ErrorsPropagate(t *testing.T) {
	s := newSuggestTestSuite(t)
	s.results.On("FindByID", mock.Anything, int64(40)).Return(&reporting.Result{ID: 40, RunID: 1}, nil)
	s.runs.On("FindByID", mock.Anything, int64(1)).Return(&reporting.Run{ID: 1, ProjectID: 2}, nil)
	s.projects.On("FindByID", mock.Anything, int64(2)).Return(&reporting.Project{ID: 2}, nil)
	s.logs.On("FindByResultIDs", mock.Anything, mock.Anything, mock.Anything).Return(map[int64][]reporting.LogLine{}, nil)
	cause := errors.New("analyzer down")
	s.client.On("Suggest", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := s.orch.Suggest(context.Background(), 40,
		reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleMember}, "dev")
	require.ErrorIs(t, err, cause)
}

func TestSuggestionOrchestrator_RecordChoice(t *testing.T) {
	t.Run("empty is noop", func(t *testing.T) {
		s := newSuggestTestSuite(t)
		require.NoError(t, s.orch.RecordChoice(context.Background(), nil))
		s.client.AssertNotCalled(t, "SuggestFeedback", mock.Anything, mock.Anything)
	})

	t.Run("forwards choices", func(t *testing.T) {
		s := newSuggestTestSuite(t)
		choices := []analysis.SuggestInfo{{TestItemID: 40, UserChoice: 1}}
		s.client.On("SuggestFeedback", mock.Anything, choices).Return(nil)

		require.NoError(t, s.orch.RecordChoice(context.Background(), choices))
		s.client.AssertExpectations(t)
	})
}

func TestProjectAccessValidator(t *testing.T) {
	run := &reporting.Run{ID: 1, ProjectID: 2}
	debugRun := &reporting.Run{ID: 3, ProjectID: 2, Mode: reporting.RunModeDebug}

	tests := []struct {
		name       string
		run        *reporting.Run
		membership reporting.Membership
		wantErr    bool
	}{
		{name: "member", run: run, membership: reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleMember}},
		{name: "customer on default run", run: run, membership: reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleCustomer}},
		{name: "no role", run: run, membership: reporting.Membership{ProjectID: 2}, wantErr: true},
		{name: "other project", run: run, membership: reporting.Membership{ProjectID: 5, Role: reporting.ProjectRoleManager}, wantErr: true},
		{name: "customer on debug run", run: debugRun, membership: reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleCustomer}, wantErr: true},
		{name: "operator on debug run", run: debugRun, membership: reporting.Membership{ProjectID: 2, Role: reporting.ProjectRoleOperator}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProjectAccessValidator{}.Validate(context.Background(), tt.run, tt.membership, "user")
			if tt.wantErr {
				require.ErrorIs(t, err, analysis.ErrAccessDenied)
				return
			}
			require.NoError(t, err)
		})
	}
}
