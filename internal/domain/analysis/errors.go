package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSearchMode is returned for a search mode name outside the known set.
	ErrUnknownSearchMode = errors.New("unknown search mode")

	// ErrMissingFilter is returned when a filter based search mode is used without a filter id.
	ErrMissingFilter = errors.New("filter id is required for this search mode")

	// ErrResultNotFinished is returned when searching from a result that is still in progress.
	ErrResultNotFinished = errors.New("result is not finished yet")

	ErrAccessDenied = errors.New("access denied")

	// ErrNoAnalyzerAvailable is returned when no instance supports the requested capability.
	ErrNoAnalyzerAvailable = errors.New("no analyzer instance available")

	// ErrAncestorDepthExceeded is returned when no ancestor carrying statistics is found
	// within the configured depth.
	ErrAncestorDepthExceeded = errors.New("ancestor depth exceeded")
)

// IndexingError wraps a failure raised by an asynchronous indexing operation.
type IndexingError struct {
	ProjectID int64
	// IndexID is set instead of ProjectID when cleaning an existing index.
	IndexID int64
	Op      string
	Err     error
}

func (e *IndexingError) Error() string {
	if e.IndexID != 0 {
		return fmt.Sprintf("indexing %s failed for index %d: %v", e.Op, e.IndexID, e.Err)
	}
	return fmt.Sprintf("indexing %s failed for project %d: %v", e.Op, e.ProjectID, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// IsBadRequest reports whether err was caused by an invalid client request.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrUnknownSearchMode) || errors.Is(err, ErrMissingFilter)
}
