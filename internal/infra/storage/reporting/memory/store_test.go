package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seededStore() *Store {
	s := NewStore()
	s.AddProject(reporting.Project{ID: 1, Name: "p", Attributes: map[string]string{"min-should-match": "80"}})
	s.AddRun(reporting.Run{ID: 10, ProjectID: 1, Name: "nightly", Number: 1, Status: reporting.StatusFailed})
	s.AddRun(reporting.Run{ID: 11, ProjectID: 1, Name: "nightly", Number: 2, Status: reporting.StatusInProgress})
	s.AddRun(reporting.Run{ID: 12, ProjectID: 1, Name: "nightly", Number: 3, Status: reporting.StatusFailed})
	s.AddRun(reporting.Run{ID: 13, ProjectID: 1, Name: "nightly", Number: 4, Mode: reporting.RunModeDebug})
	s.AddRun(reporting.Run{ID: 14, ProjectID: 1, Name: "smoke", Number: 1})

	s.AddResult(reporting.Result{ID: 100, RunID: 12, Path: "100"})
	s.AddResult(reporting.Result{ID: 101, RunID: 12, ParentID: 100, Path: "100.101",
		Issue: &reporting.Issue{Locator: reporting.LocatorToInvestigate}})
	s.AddResult(reporting.Result{ID: 102, RunID: 12, Path: "102",
		Issue: &reporting.Issue{Locator: reporting.LocatorProductBug, IgnoreAnalyzer: true}})
	s.AddResult(reporting.Result{ID: 103, RunID: 10, Path: "103",
		Issue: &reporting.Issue{Locator: reporting.LocatorSystemIssue}})

	s.AddLog(reporting.LogLine{ID: 2, ResultID: 101, RunID: 12, Level: reporting.LogLevelError, Message: "late", Time: t0.Add(time.Second)})
	s.AddLog(reporting.LogLine{ID: 1, ResultID: 101, RunID: 12, Level: reporting.LogLevelError, Message: "early", Time: t0})
	s.AddLog(reporting.LogLine{ID: 3, ResultID: 100, RunID: 12, Level: reporting.LogLevelInfo, Message: "info", Time: t0})
	s.AddLog(reporting.LogLine{ID: 4, ResultID: 102, RunID: 12, Level: reporting.LogLevelFatal, Message: "other", Time: t0})
	return s
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	runs := seededStore().Runs()

	_, err := runs.FindByID(ctx, 99)
	require.ErrorIs(t, err, reporting.ErrRunNotFound)

	run, err := runs.FindByID(ctx, 12)
	require.NoError(t, err)
	prev, err := runs.FindPrevious(ctx, run)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(10), prev.ID)

	ids, err := runs.FindIDsByProject(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 14}, ids)

	ids, err = runs.FindIDsByName(ctx, 1, "smoke")
	require.NoError(t, err)
	assert.Equal(t, []int64{14}, ids)

	ids, err = runs.FindIDsByFilter(ctx, reporting.RunFilter{ProjectID: 1, Mode: reporting.RunModeDebug})
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, ids)

	ok, err := runs.HasIndexableResults(ctx, 12)
	require.NoError(t, err)
	assert.False(t, ok, "only to-investigate and ignored results")

	ok, err = runs.HasIndexableResults(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ResultsCopyIssues(t *testing.T) {
	ctx := context.Background()
	results := seededStore().Results()

	r, err := results.FindByID(ctx, 101)
	require.NoError(t, err)
	r.Issue.Locator = reporting.LocatorProductBug

	again, err := results.FindByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, reporting.LocatorToInvestigate, again.Issue.Locator, "mutation without Save is not visible")

	require.NoError(t, results.Save(ctx, r))
	ids, err := results.FindIDsWithIssue(ctx, 12, reporting.IssueGroupProductBug)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)

	err = results.Save(ctx, &reporting.Result{ID: 999})
	require.ErrorIs(t, err, reporting.ErrResultNotFound)
}

func TestStore_Logs(t *testing.T) {
	ctx := context.Background()
	logs := seededStore().Logs()

	got, err := logs.FindByResultIDs(ctx, []int64{100, 101}, reporting.LogLevelError)
	require.NoError(t, err)
	assert.NotContains(t, got, int64(100))
	require.Len(t, got[101], 2)
	assert.Equal(t, "early", got[101][0].Message)

	msgs, err := logs.FindMessagesUnderPath(ctx, 12, "100", reporting.LogLevelError)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, msgs)
}

func TestStore_PatternsAndFilters(t *testing.T) {
	ctx := context.Background()
	s := seededStore()
	s.AddPattern(reporting.PatternTemplate{ID: 2, ProjectID: 1, Name: "timeout", Type: reporting.PatternTypeString, Value: "timed out", Enabled: true})
	s.AddPattern(reporting.PatternTemplate{ID: 1, ProjectID: 1, Name: "npe", Type: reporting.PatternTypeRegex, Value: "NPE", Enabled: true})
	s.AddPattern(reporting.PatternTemplate{ID: 3, ProjectID: 1, Name: "off", Value: "x"})
	s.AddFilter(reporting.RunFilter{ID: 5, ProjectID: 1, RunName: "nightly"})

	templates, err := s.Patterns().FindEnabledByProject(ctx, 1)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, int64(1), templates[0].ID)

	require.NoError(t, s.Patterns().SaveMatches(ctx, []reporting.PatternMatch{
		{PatternID: 2, ResultID: 101}, {PatternID: 1, ResultID: 101}, {PatternID: 2, ResultID: 101},
	}))
	names, err := s.Patterns().FindNamesByResultID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, []string{"npe", "timeout"}, names)

	_, err = s.Filters().FindByID(ctx, 2, 5)
	require.ErrorIs(t, err, reporting.ErrFilterNotFound)
	f, err := s.Filters().FindByID(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "nightly", f.RunName)

	p, err := s.Projects().FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "80", p.Attributes["min-should-match"])
}
