package analysis

import (
	"context"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

// AnalyzerClient classifies results through the external analyzer instances.
type AnalyzerClient interface {
	// HasAvailableInstances reports whether any analyze capable instance is registered.
	HasAvailableInstances() bool

	// Classify returns the proposed classifications keyed by analyzer instance name.
	Classify(ctx context.Context, payload IndexPayload) (map[string][]ClassificationResult, error)
}

// IndexerClient maintains the external search index.
type IndexerClient interface {
	// Index stores the payloads and returns the number of indexed logs.
	Index(ctx context.Context, payloads []IndexPayload) (int, error)

	// DeleteIndex drops the whole index of a project.
	DeleteIndex(ctx context.Context, projectID int64) error

	// CleanIndex removes the given results from an index and returns the number removed.
	CleanIndex(ctx context.Context, indexID int64, resultIDs []int64) (int, error)
}

// SearchClient queries the external search index.
type SearchClient interface {
	Search(ctx context.Context, payload SearchPayload) ([]SearchHit, error)
}

// SuggestClient requests classification suggestions for a single result.
type SuggestClient interface {
	Suggest(ctx context.Context, payload SuggestPayload) ([]SuggestInfo, error)

	// SuggestFeedback reports the suggestions a user chose.
	SuggestFeedback(ctx context.Context, choices []SuggestInfo) error
}

// AccessValidator checks that a member may act on a run. It returns an error
// wrapping ErrAccessDenied on denial.
type AccessValidator interface {
	Validate(ctx context.Context, run *reporting.Run, membership reporting.Membership, user string) error
}

// StatusTracker records which runs currently have analysis in progress.
type StatusTracker interface {
	Start(kind Kind, runID, projectID int64) bool
	Finish(kind Kind, runID int64) bool
	IsRunning(kind Kind, runID int64) bool
	IsProjectRunning(kind Kind, projectID int64) bool
	RunningKindsFor(runID int64) []Kind
}
