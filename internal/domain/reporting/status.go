package reporting

// Status is the execution status shared by runs and results.
type Status string

const (
	StatusInProgress  Status = "IN_PROGRESS"
	StatusPassed      Status = "PASSED"
	StatusFailed      Status = "FAILED"
	StatusStopped     Status = "STOPPED"
	StatusSkipped     Status = "SKIPPED"
	StatusInterrupted Status = "INTERRUPTED"
	StatusCancelled   Status = "CANCELLED"
	StatusInfo        Status = "INFO"
	StatusWarn        Status = "WARN"
)

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// IsFinished reports whether the status is terminal.
func (s Status) IsFinished() bool { return s != StatusInProgress && s != "" }
