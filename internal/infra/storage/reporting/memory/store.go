// Package memory provides an in-memory implementation of the reporting
// repositories for development and tests.
package memory

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

var (
	_ reporting.ProjectRepository = (*ProjectView)(nil)
	_ reporting.RunRepository     = (*RunView)(nil)
	_ reporting.ResultRepository  = (*ResultView)(nil)
	_ reporting.LogRepository     = (*LogView)(nil)
	_ reporting.PatternRepository = (*PatternView)(nil)
	_ reporting.FilterRepository  = (*FilterView)(nil)
)

// Store keeps every reporting entity in maps guarded by a single mutex.
// Values are copied on the way in and out so callers never share state with
// the store. Each repository port is served by a view over the same data.
type Store struct {
	mu       sync.RWMutex
	projects map[int64]reporting.Project
	runs     map[int64]reporting.Run
	results  map[int64]reporting.Result
	logs     map[int64][]reporting.LogLine
	patterns map[int64]reporting.PatternTemplate
	matches  map[reporting.PatternMatch]struct{}
	filters  map[int64]reporting.RunFilter
}

// NewStore creates an empty in-memory reporting store.
func NewStore() *Store {
	return &Store{
		projects: make(map[int64]reporting.Project),
		runs:     make(map[int64]reporting.Run),
		results:  make(map[int64]reporting.Result),
		logs:     make(map[int64][]reporting.LogLine),
		patterns: make(map[int64]reporting.PatternTemplate),
		matches:  make(map[reporting.PatternMatch]struct{}),
		filters:  make(map[int64]reporting.RunFilter),
	}
}

// AddProject stores or replaces a project.
func (s *Store) AddProject(p reporting.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Attributes = cloneAttrs(p.Attributes)
	s.projects[p.ID] = p
}

// AddRun stores or replaces a run.
func (s *Store) AddRun(r reporting.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

// AddResult stores or replaces a result.
func (s *Store) AddResult(r reporting.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Issue = r.Issue.Clone()
	s.results[r.ID] = r
}

// AddLog appends a log line to its result.
func (s *Store) AddLog(l reporting.LogLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[l.ResultID] = append(s.logs[l.ResultID], l)
}

// AddPattern stores or replaces a pattern template.
func (s *Store) AddPattern(p reporting.PatternTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.ID] = p
}

// AddFilter stores or replaces a saved run filter.
func (s *Store) AddFilter(f reporting.RunFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[f.ID] = f
}

// Projects returns the project repository view of the store.
func (s *Store) Projects() *ProjectView { return &ProjectView{s: s} }

// Runs returns the run repository view of the store.
func (s *Store) Runs() *RunView { return &RunView{s: s} }

// Results returns the result repository view of the store.
func (s *Store) Results() *ResultView { return &ResultView{s: s} }

// Logs returns the log repository view of the store.
func (s *Store) Logs() *LogView { return &LogView{s: s} }

// Patterns returns the pattern repository view of the store.
func (s *Store) Patterns() *PatternView { return &PatternView{s: s} }

// Filters returns the filter repository view of the store.
func (s *Store) Filters() *FilterView { return &FilterView{s: s} }

func cloneAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedIDs(ids []int64) []int64 {
	slices.Sort(ids)
	return ids
}

func underPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+".")
}

func byTimeThenID(a, b reporting.LogLine) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
