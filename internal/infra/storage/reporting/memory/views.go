package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

// ProjectView serves reporting.ProjectRepository.
type ProjectView struct{ s *Store }

func (v *ProjectView) FindByID(_ context.Context, id int64) (*reporting.Project, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	p, ok := v.s.projects[id]
	if !ok {
		return nil, reporting.ProjectNotFound(id)
	}
	p.Attributes = cloneAttrs(p.Attributes)
	return &p, nil
}

// RunView serves reporting.RunRepository.
type RunView struct{ s *Store }

func (v *RunView) FindByID(_ context.Context, id int64) (*reporting.Run, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	r, ok := v.s.runs[id]
	if !ok {
		return nil, reporting.RunNotFound(id)
	}
	return &r, nil
}

func (v *RunView) FindAllByIDs(_ context.Context, ids []int64) ([]*reporting.Run, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*reporting.Run
	for _, id := range ids {
		if r, ok := v.s.runs[id]; ok {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (v *RunView) FindPrevious(_ context.Context, run *reporting.Run) (*reporting.Run, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var prev *reporting.Run
	for _, r := range v.s.runs {
		if r.ProjectID != run.ProjectID || r.Name != run.Name || r.ID == run.ID {
			continue
		}
		if r.Number >= run.Number || r.IsDebug() || r.Status == reporting.StatusInProgress {
			continue
		}
		if prev == nil || r.Number > prev.Number {
			r := r
			prev = &r
		}
	}
	return prev, nil
}

func (v *RunView) FindIDsByProject(_ context.Context, projectID int64) ([]int64, error) {
	return v.collect(func(r reporting.Run) bool {
		return r.ProjectID == projectID && !r.IsDebug()
	}), nil
}

func (v *RunView) FindIDsByName(_ context.Context, projectID int64, name string) ([]int64, error) {
	return v.collect(func(r reporting.Run) bool {
		return r.ProjectID == projectID && r.Name == name && !r.IsDebug()
	}), nil
}

func (v *RunView) FindIDsByFilter(_ context.Context, f reporting.RunFilter) ([]int64, error) {
	return v.collect(func(r reporting.Run) bool {
		if r.ProjectID != f.ProjectID {
			return false
		}
		if f.RunName != "" && r.Name != f.RunName {
			return false
		}
		return f.Mode == "" || r.Mode == f.Mode
	}), nil
}

func (v *RunView) HasIndexableResults(_ context.Context, runID int64) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	for _, r := range v.s.results {
		if r.RunID != runID || r.Issue == nil || r.Issue.IgnoreAnalyzer {
			continue
		}
		if r.Issue.Group() != reporting.IssueGroupToInvestigate {
			return true, nil
		}
	}
	return false, nil
}

func (v *RunView) collect(keep func(reporting.Run) bool) []int64 {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var ids []int64
	for id, r := range v.s.runs {
		if keep(r) {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

// ResultView serves reporting.ResultRepository.
type ResultView struct{ s *Store }

func (v *ResultView) FindByID(_ context.Context, id int64) (*reporting.Result, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	r, ok := v.s.results[id]
	if !ok {
		return nil, reporting.ResultNotFound(id)
	}
	r.Issue = r.Issue.Clone()
	return &r, nil
}

func (v *ResultView) FindAllByIDs(_ context.Context, ids []int64) ([]*reporting.Result, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*reporting.Result
	for _, id := range ids {
		if r, ok := v.s.results[id]; ok {
			r.Issue = r.Issue.Clone()
			out = append(out, &r)
		}
	}
	return out, nil
}

func (v *ResultView) FindIDsWithIssue(_ context.Context, runID int64, groups ...reporting.IssueGroup) ([]int64, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var ids []int64
	for id, r := range v.s.results {
		if r.RunID != runID || r.Issue == nil {
			continue
		}
		if len(groups) == 0 || slices.Contains(groups, r.Issue.Group()) {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids), nil
}

func (v *ResultView) Save(_ context.Context, result *reporting.Result) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	stored, ok := v.s.results[result.ID]
	if !ok {
		return reporting.ResultNotFound(result.ID)
	}
	stored.Issue = result.Issue.Clone()
	v.s.results[result.ID] = stored
	return nil
}

// LogView serves reporting.LogRepository.
type LogView struct{ s *Store }

func (v *LogView) FindByResultIDs(
	_ context.Context,
	resultIDs []int64,
	minLevel reporting.LogLevel,
) (map[int64][]reporting.LogLine, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	out := make(map[int64][]reporting.LogLine, len(resultIDs))
	for _, id := range resultIDs {
		var lines []reporting.LogLine
		for _, l := range v.s.logs[id] {
			if l.AtLeast(minLevel) {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}
		slices.SortFunc(lines, byTimeThenID)
		out[id] = lines
	}
	return out, nil
}

func (v *LogView) FindMessagesUnderPath(
	_ context.Context,
	runID int64,
	path string,
	minLevel reporting.LogLevel,
) ([]string, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var lines []reporting.LogLine
	for id, r := range v.s.results {
		if r.RunID != runID || !underPath(r.Path, path) {
			continue
		}
		for _, l := range v.s.logs[id] {
			if l.AtLeast(minLevel) {
				lines = append(lines, l)
			}
		}
	}
	slices.SortFunc(lines, byTimeThenID)

	msgs := make([]string, 0, len(lines))
	for _, l := range lines {
		msgs = append(msgs, l.Message)
	}
	return msgs, nil
}

// PatternView serves reporting.PatternRepository.
type PatternView struct{ s *Store }

func (v *PatternView) FindEnabledByProject(_ context.Context, projectID int64) ([]reporting.PatternTemplate, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []reporting.PatternTemplate
	for _, p := range v.s.patterns {
		if p.ProjectID == projectID && p.Enabled {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b reporting.PatternTemplate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (v *PatternView) SaveMatches(_ context.Context, matches []reporting.PatternMatch) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, m := range matches {
		v.s.matches[m] = struct{}{}
	}
	return nil
}

func (v *PatternView) FindNamesByResultID(_ context.Context, resultID int64) ([]string, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var names []string
	for m := range v.s.matches {
		if m.ResultID != resultID {
			continue
		}
		if p, ok := v.s.patterns[m.PatternID]; ok {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// FilterView serves reporting.FilterRepository.
type FilterView struct{ s *Store }

func (v *FilterView) FindByID(_ context.Context, projectID, filterID int64) (*reporting.RunFilter, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	f, ok := v.s.filters[filterID]
	if !ok || f.ProjectID != projectID {
		return nil, reporting.FilterNotFound(filterID)
	}
	return &f, nil
}
