package analysis

import "time"

// IndexPayload is the wire projection of one run sent to analyzer and indexer
// instances. It is built fresh per call and never persisted.
type IndexPayload struct {
	RunID          int64              `json:"launchId"`
	RunName        string             `json:"launchName"`
	RunNumber      int64              `json:"launchNumber"`
	ProjectID      int64              `json:"project"`
	PreviousRunID  int64              `json:"previousLaunchId,omitempty"`
	AnalyzerConfig AnalyzerConfig     `json:"analyzerConfig"`
	TestItems      []IndexItemPayload `json:"testItems"`
}

// ItemIDs returns the result ids carried by the payload.
func (p IndexPayload) ItemIDs() []int64 {
	ids := make([]int64, 0, len(p.TestItems))
	for _, it := range p.TestItems {
		ids = append(ids, it.TestItemID)
	}
	return ids
}

// IndexItemPayload is the wire projection of one result.
type IndexItemPayload struct {
	TestItemID     int64             `json:"testItemId"`
	UniqueID       string            `json:"uniqueId"`
	TestCaseHash   int32             `json:"testCaseHash"`
	IssueType      string            `json:"issueType"`
	IsAutoAnalyzed bool              `json:"isAutoAnalyzed"`
	StartTime      time.Time         `json:"startTime"`
	Logs           []IndexLogPayload `json:"logs,omitempty"`
}

// IndexLogPayload is the wire projection of one log line.
type IndexLogPayload struct {
	LogID    int64  `json:"logId"`
	LogLevel int    `json:"logLevel"`
	Message  string `json:"message"`
}

// ClassificationResult is one row of an analyzer response: the classification the
// analyzer proposes for a result and, optionally, the most similar prior result.
type ClassificationResult struct {
	TestItemID     int64  `json:"testItem"`
	IssueType      string `json:"issueType"`
	RelevantItemID int64  `json:"relevantItem,omitempty"`
}

// HasRelevantItem reports whether the analyzer named a most relevant prior result.
func (c ClassificationResult) HasRelevantItem() bool { return c.RelevantItemID != 0 }

// SearchPayload asks the search index for logs similar to LogMessages within the
// candidate runs.
type SearchPayload struct {
	RunID          int64          `json:"launchId"`
	RunName        string         `json:"launchName"`
	ItemID         int64          `json:"itemId"`
	ProjectID      int64          `json:"projectId"`
	FilteredRunIDs []int64        `json:"filteredLaunchIds"`
	LogMessages    []string       `json:"logMessages"`
	LogLines       int            `json:"logLines"`
	AnalyzerConfig AnalyzerConfig `json:"analyzerConfig"`
}

// SearchHit is one similar log found by the search index.
type SearchHit struct {
	LogID      int64 `json:"logId"`
	TestItemID int64 `json:"testItemId"`
}

// SearchResultGroup is one result of a similarity search, hydrated with the context a
// user needs to judge the match.
type SearchResultGroup struct {
	RunID            int64            `json:"launchId"`
	RunName          string           `json:"launchName"`
	ItemID           int64            `json:"itemId"`
	ItemName         string           `json:"itemName"`
	Path             string           `json:"path"`
	PathNames        map[int64]string `json:"pathNames"`
	PatternTemplates []string         `json:"patternTemplates"`
	Duration         float64          `json:"duration"`
	Status           string           `json:"status"`
	Issue            *IssueView       `json:"issue,omitempty"`
	Logs             []LogView        `json:"logs"`
}

// IssueView is the read model of an issue in search responses.
type IssueView struct {
	IssueType      string   `json:"issueType"`
	AutoAnalyzed   bool     `json:"autoAnalyzed"`
	IgnoreAnalyzer bool     `json:"ignoreAnalyzer"`
	Comment        string   `json:"comment,omitempty"`
	Tickets        []string `json:"externalSystemIssues,omitempty"`
}

// LogView is the read model of a log line in search responses.
type LogView struct {
	ID      int64  `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// SuggestPayload asks for classification suggestions for a single result.
type SuggestPayload struct {
	TestItemID     int64             `json:"testItemId"`
	UniqueID       string            `json:"uniqueId"`
	TestCaseHash   int32             `json:"testCaseHash"`
	RunID          int64             `json:"launchId"`
	RunName        string            `json:"launchName"`
	RunNumber      int64             `json:"launchNumber"`
	ProjectID      int64             `json:"project"`
	AnalyzerConfig AnalyzerConfig    `json:"analyzerConfig"`
	Logs           []IndexLogPayload `json:"logs"`
}

// SuggestInfo is one suggestion returned by the analyzer. It is passed back to
// callers untouched and, when chosen, returned to the analyzer as feedback.
type SuggestInfo struct {
	ProjectID      int64   `json:"project"`
	TestItemID     int64   `json:"testItem"`
	TestItemLogID  int64   `json:"testItemLogId"`
	RunID          int64   `json:"launchId"`
	RunName        string  `json:"launchName"`
	RunNumber      int64   `json:"launchNumber"`
	IssueType      string  `json:"issueType"`
	RelevantItemID int64   `json:"relevantItem"`
	RelevantLogID  int64   `json:"relevantLogId"`
	IsMergedLog    bool    `json:"isMergedLog"`
	MatchScore     float64 `json:"matchScore"`
	ResultPosition int     `json:"resultPosition"`
	ESScore        float64 `json:"esScore"`
	ESPosition     int     `json:"esPosition"`
	ModelInfo      string  `json:"modelInfo,omitempty"`
	UsedLogLines   int     `json:"usedLogLines"`
	MinShouldMatch int     `json:"minShouldMatch"`
	ProcessedTime  float64 `json:"processedTime"`
	UserChoice     int     `json:"userChoice"`
	MethodName     string  `json:"methodName"`
}
