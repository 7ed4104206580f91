package analysis

import (
	"strconv"
	"strings"
)

// AnalyzerMode selects which runs the analyzer compares a run against.
type AnalyzerMode string

const (
	ModeAll            AnalyzerMode = "ALL"
	ModeCurrentLaunch  AnalyzerMode = "CURRENT_LAUNCH"
	ModePreviousLaunch AnalyzerMode = "PREVIOUS_LAUNCH"
)

// ParseAnalyzerMode converts a mode name into an AnalyzerMode. It accepts the upper
// case wire names and the lower case dashed names used in project settings.
func ParseAnalyzerMode(s string) (AnalyzerMode, bool) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "ALL", "ALL_LAUNCHES":
		return ModeAll, true
	case "CURRENT_LAUNCH":
		return ModeCurrentLaunch, true
	case "PREVIOUS_LAUNCH":
		return ModePreviousLaunch, true
	}
	return "", false
}

// Project attribute keys holding analyzer settings.
const (
	AttrAutoAnalyzerEnabled      = "auto-analyzer-enabled"
	AttrMinShouldMatch           = "min-should-match"
	AttrNumberOfLogLines         = "number-of-log-lines"
	AttrIndexingRunning          = "indexing-running"
	AttrAutoAnalyzerMode         = "auto-analyzer-mode"
	AttrAllMessagesShouldMatch   = "all-messages-should-match"
	AttrSearchLogsMinShouldMatch = "search-logs-min-should-match"
)

// AllLogLines is the NumberOfLogLines value that disables truncation.
const AllLogLines = -1

// AnalyzerConfig is the per-project analyzer configuration. It is read once per
// invocation and never mutated afterwards.
type AnalyzerConfig struct {
	Enabled                  bool         `json:"isAutoAnalyzerEnabled"`
	MinShouldMatch           int          `json:"minShouldMatch"`
	NumberOfLogLines         int          `json:"numberOfLogLines"`
	IndexingRunning          bool         `json:"indexingRunning"`
	Mode                     AnalyzerMode `json:"analyzerMode"`
	AllMessagesShouldMatch   bool         `json:"allMessagesShouldMatch"`
	SearchLogsMinShouldMatch int          `json:"searchLogsMinShouldMatch"`
}

// DefaultAnalyzerConfig returns the configuration used for keys a project does not set.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Enabled:                  true,
		MinShouldMatch:           95,
		NumberOfLogLines:         AllLogLines,
		IndexingRunning:          false,
		Mode:                     ModeAll,
		AllMessagesShouldMatch:   false,
		SearchLogsMinShouldMatch: 95,
	}
}

// AnalyzerConfigFromAttributes derives the analyzer configuration from project
// attributes. Missing or malformed values fall back to their defaults.
func AnalyzerConfigFromAttributes(attrs map[string]string) AnalyzerConfig {
	cfg := DefaultAnalyzerConfig()

	if v, ok := attrs[AttrAutoAnalyzerEnabled]; ok {
		cfg.Enabled = parseBool(v, cfg.Enabled)
	}
	if v, ok := attrs[AttrMinShouldMatch]; ok {
		cfg.MinShouldMatch = parsePercent(v, cfg.MinShouldMatch)
	}
	if v, ok := attrs[AttrNumberOfLogLines]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && (n > 0 || n == AllLogLines) {
			cfg.NumberOfLogLines = n
		}
	}
	if v, ok := attrs[AttrIndexingRunning]; ok {
		cfg.IndexingRunning = parseBool(v, cfg.IndexingRunning)
	}
	if v, ok := attrs[AttrAutoAnalyzerMode]; ok {
		if mode, ok := ParseAnalyzerMode(v); ok {
			cfg.Mode = mode
		}
	}
	if v, ok := attrs[AttrAllMessagesShouldMatch]; ok {
		cfg.AllMessagesShouldMatch = parseBool(v, cfg.AllMessagesShouldMatch)
	}
	if v, ok := attrs[AttrSearchLogsMinShouldMatch]; ok {
		cfg.SearchLogsMinShouldMatch = parsePercent(v, cfg.SearchLogsMinShouldMatch)
	}

	return cfg
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func parsePercent(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || n > 100 {
		return def
	}
	return n
}
