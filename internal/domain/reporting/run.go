package reporting

import "time"

// RunMode distinguishes regular runs from debug runs. Debug runs are hidden from
// customers and never take part in analysis.
type RunMode string

const (
	RunModeDefault RunMode = "DEFAULT"
	RunModeDebug   RunMode = "DEBUG"
)

// Run is a single execution of a test suite within a project.
type Run struct {
	ID        int64
	ProjectID int64
	Name      string
	Number    int64
	Mode      RunMode
	Status    Status
	StartTime time.Time
	EndTime   time.Time
}

// IsDebug reports whether the run was reported in debug mode.
func (r *Run) IsDebug() bool { return r.Mode == RunModeDebug }
