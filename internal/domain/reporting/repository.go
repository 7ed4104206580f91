// Package reporting contains the test reporting model that analysis reads and updates:
// projects, runs, results with their issues, and log lines. Persistence of these
// entities is owned by the reporting side; the repositories below are the ports the
// analysis subsystem consumes.
package reporting

import "context"

// ProjectRepository provides read access to projects.
type ProjectRepository interface {
	// FindByID returns the project or a NotFoundError.
	FindByID(ctx context.Context, id int64) (*Project, error)
}

// RunRepository provides read access to runs.
type RunRepository interface {
	// FindByID returns the run or a NotFoundError.
	FindByID(ctx context.Context, id int64) (*Run, error)

	// FindAllByIDs returns the runs that exist among ids, in no particular order.
	FindAllByIDs(ctx context.Context, ids []int64) ([]*Run, error)

	// FindPrevious returns the most recent finished run with the same project and name
	// started before the given run, or nil when there is none.
	FindPrevious(ctx context.Context, run *Run) (*Run, error)

	// FindIDsByProject returns the ids of every non-debug run in the project.
	FindIDsByProject(ctx context.Context, projectID int64) ([]int64, error)

	// FindIDsByName returns the ids of every non-debug run in the project with the given name.
	FindIDsByName(ctx context.Context, projectID int64, name string) ([]int64, error)

	// FindIDsByFilter returns the ids of the runs matching a saved filter.
	FindIDsByFilter(ctx context.Context, filter RunFilter) ([]int64, error)

	// HasIndexableResults reports whether the run has at least one result carrying
	// a classification outside "to investigate" that is not excluded from analysis.
	HasIndexableResults(ctx context.Context, runID int64) (bool, error)
}

// ResultRepository provides access to results and persists issue changes.
type ResultRepository interface {
	// FindByID returns the result or a NotFoundError.
	FindByID(ctx context.Context, id int64) (*Result, error)

	// FindAllByIDs returns the results that exist among ids, in no particular order.
	FindAllByIDs(ctx context.Context, ids []int64) ([]*Result, error)

	// FindIDsWithIssue returns the ids of the run's results carrying an issue of one of
	// the given groups. No groups selects every result carrying an issue.
	FindIDsWithIssue(ctx context.Context, runID int64, groups ...IssueGroup) ([]int64, error)

	// Save persists the result's issue, including its linked tickets, in one transaction.
	Save(ctx context.Context, result *Result) error
}

// LogRepository provides read access to log lines.
type LogRepository interface {
	// FindByResultIDs returns the lines of each result at or above minLevel, ordered by time.
	FindByResultIDs(ctx context.Context, resultIDs []int64, minLevel LogLevel) (map[int64][]LogLine, error)

	// FindMessagesUnderPath returns the messages at or above minLevel of every result in
	// the run whose path equals or descends from path.
	FindMessagesUnderPath(ctx context.Context, runID int64, path string, minLevel LogLevel) ([]string, error)
}

// PatternRepository provides access to pattern templates and their matches.
type PatternRepository interface {
	// FindEnabledByProject returns the enabled templates of a project.
	FindEnabledByProject(ctx context.Context, projectID int64) ([]PatternTemplate, error)

	// SaveMatches persists template matches, ignoring ones that already exist.
	SaveMatches(ctx context.Context, matches []PatternMatch) error

	// FindNamesByResultID returns the names of the templates that matched a result.
	FindNamesByResultID(ctx context.Context, resultID int64) ([]string, error)
}

// FilterRepository provides read access to saved run filters.
type FilterRepository interface {
	// FindByID returns the project's filter or a NotFoundError.
	FindByID(ctx context.Context, projectID, filterID int64) (*RunFilter, error)
}
