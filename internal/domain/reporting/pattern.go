package reporting

// PatternType selects how a pattern template value is matched against log messages.
type PatternType string

const (
	PatternTypeString PatternType = "STRING"
	PatternTypeRegex  PatternType = "REGEX"
)

// PatternTemplate is a project level rule that tags results whose error logs match.
type PatternTemplate struct {
	ID        int64
	ProjectID int64
	Name      string
	Type      PatternType
	Value     string
	Enabled   bool
}

// PatternMatch records that a template matched a result.
type PatternMatch struct {
	PatternID int64
	ResultID  int64
}

// RunFilter is a saved filter selecting runs of a project. Empty conditions match any run.
type RunFilter struct {
	ID        int64
	ProjectID int64
	Name      string
	RunName   string
	Mode      RunMode
}
