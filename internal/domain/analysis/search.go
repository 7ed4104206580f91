package analysis

import "fmt"

// SearchMode names a strategy that selects the runs a similarity search looks in.
type SearchMode string

const (
	SearchModeCurrentLaunch SearchMode = "current-launch"
	SearchModeFilter        SearchMode = "launches-by-filter"
	SearchModeAllLaunches   SearchMode = "all-launches"
	SearchModeLaunchName    SearchMode = "launch-name"
)

// SearchModes returns every supported search mode.
func SearchModes() []SearchMode {
	return []SearchMode{SearchModeCurrentLaunch, SearchModeFilter, SearchModeAllLaunches, SearchModeLaunchName}
}

// ParseSearchMode resolves a mode name, returning ErrUnknownSearchMode for names
// outside the supported set.
func ParseSearchMode(s string) (SearchMode, error) {
	for _, m := range SearchModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSearchMode, s)
}

// SearchRequest is a user's similarity search request.
type SearchRequest struct {
	SearchMode string `json:"searchMode" validate:"required"`
	FilterID   int64  `json:"filterId,omitempty" validate:"gte=0"`
}
