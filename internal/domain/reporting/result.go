package reporting

import (
	"strconv"
	"strings"
	"time"
)

// Result is one reported test step or case within a run. Results form a tree
// through ParentID; Path holds the dot separated ids of the ancestors followed by
// the result's own id (for example "12.40.41").
type Result struct {
	ID           int64
	RunID        int64
	ParentID     int64
	Name         string
	Path         string
	UniqueID     string
	TestCaseHash int32
	Status       Status
	HasStats     bool
	StartTime    time.Time
	EndTime      time.Time
	Issue        *Issue
}

// HasParent reports whether the result is nested under another result.
func (r *Result) HasParent() bool { return r.ParentID != 0 }

// Duration returns the execution time of the result; zero while in progress.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() || r.StartTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// PathIDs parses Path into the ordered ids from the root down to the result.
func (r *Result) PathIDs() []int64 {
	if r.Path == "" {
		return nil
	}
	parts := strings.Split(r.Path, ".")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// AncestorIDs returns the ids of every ancestor, root first, excluding the result.
func (r *Result) AncestorIDs() []int64 {
	ids := r.PathIDs()
	if len(ids) > 0 && ids[len(ids)-1] == r.ID {
		return ids[:len(ids)-1]
	}
	return ids
}
