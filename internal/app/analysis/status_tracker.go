package analysis

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/pkg/common/logger"
	"github.com/ahrav/logsift/pkg/common/timeutil"
)

var _ analysis.StatusTracker = (*StatusTracker)(nil)

type statusEntry struct {
	projectID int64
	expiresAt time.Time
}

// kindStatus holds the in-progress runs of a single analysis kind.
type kindStatus struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]statusEntry // run id -> entry
}

// StatusTracker is advisory bookkeeping of which runs have analysis in progress, kept
// per analysis kind. It never blocks a second start for the same run; a start simply
// overwrites the existing entry. Entries expire after the kind's TTL so an orphaned
// run cannot report "in progress" forever.
type StatusTracker struct {
	// kinds is built once at construction and only read afterwards.
	kinds map[analysis.Kind]*kindStatus

	timeProvider timeutil.Provider
	logger       *logger.Logger
}

// TrackerOption configures a StatusTracker.
type TrackerOption func(*StatusTracker)

// WithTimeProvider overrides the clock used for expiry.
func WithTimeProvider(tp timeutil.Provider) TrackerOption {
	return func(t *StatusTracker) { t.timeProvider = tp }
}

// NewStatusTracker creates a tracker with one map per known analysis kind.
func NewStatusTracker(logger *logger.Logger, opts ...TrackerOption) *StatusTracker {
	t := &StatusTracker{
		kinds:        make(map[analysis.Kind]*kindStatus, len(analysis.Kinds())),
		timeProvider: timeutil.Default(),
		logger:       logger.With("component", "analysis_status_tracker"),
	}
	for _, k := range analysis.Kinds() {
		t.kinds[k] = &kindStatus{ttl: k.StatusTTL(), entries: make(map[int64]statusEntry)}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks analysis of the given kind as in progress for a run. It returns false
// when the kind is unknown.
func (t *StatusTracker) Start(kind analysis.Kind, runID, projectID int64) bool {
	ks, ok := t.kinds[kind]
	if !ok {
		return false
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.entries[runID] = statusEntry{projectID: projectID, expiresAt: t.timeProvider.Now().Add(ks.ttl)}
	return true
}

// Finish removes the in-progress entry of a run. It is idempotent and returns false
// only when the kind is unknown.
func (t *StatusTracker) Finish(kind analysis.Kind, runID int64) bool {
	ks, ok := t.kinds[kind]
	if !ok {
		return false
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	delete(ks.entries, runID)
	return true
}

// IsRunning reports whether analysis of the given kind is in progress for a run.
func (t *StatusTracker) IsRunning(kind analysis.Kind, runID int64) bool {
	ks, ok := t.kinds[kind]
	if !ok {
		return false
	}

	now := t.timeProvider.Now()
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, ok := ks.entries[runID]
	if !ok {
		return false
	}
	if !now.Before(e.expiresAt) {
		delete(ks.entries, runID)
		return false
	}
	return true
}

// IsProjectRunning reports whether analysis of the given kind is in progress for any
// run of a project.
func (t *StatusTracker) IsProjectRunning(kind analysis.Kind, projectID int64) bool {
	ks, ok := t.kinds[kind]
	if !ok {
		return false
	}

	now := t.timeProvider.Now()
	ks.mu.Lock()
	defer ks.mu.Unlock()

	for runID, e := range ks.entries {
		if !now.Before(e.expiresAt) {
			delete(ks.entries, runID)
			continue
		}
		if e.projectID == projectID {
			return true
		}
	}
	return false
}

// RunningKindsFor returns the kinds of analysis in progress for a run, in a stable order.
func (t *StatusTracker) RunningKindsFor(runID int64) []analysis.Kind {
	var kinds []analysis.Kind
	for _, k := range analysis.Kinds() {
		if t.IsRunning(k, runID) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Snapshot returns the run ids currently in progress, per kind. Kinds with nothing in
// progress are omitted.
func (t *StatusTracker) Snapshot() map[analysis.Kind][]int64 {
	now := t.timeProvider.Now()
	out := make(map[analysis.Kind][]int64)
	for kind, ks := range t.kinds {
		ks.mu.Lock()
		for runID, e := range ks.entries {
			if now.Before(e.expiresAt) {
				out[kind] = append(out[kind], runID)
			}
		}
		ks.mu.Unlock()
		slices.Sort(out[kind])
	}
	return out
}

// InProgress returns the number of live entries across all kinds.
func (t *StatusTracker) InProgress() int {
	n := 0
	for _, ids := range t.Snapshot() {
		n += len(ids)
	}
	return n
}

// evictExpired drops every expired entry and returns how many were removed.
func (t *StatusTracker) evictExpired() int {
	now := t.timeProvider.Now()
	removed := 0
	for _, ks := range t.kinds {
		ks.mu.Lock()
		for runID, e := range ks.entries {
			if !now.Before(e.expiresAt) {
				delete(ks.entries, runID)
				removed++
			}
		}
		ks.mu.Unlock()
	}
	return removed
}

// StartJanitor periodically evicts expired entries until ctx is cancelled. It blocks,
// so callers run it in its own goroutine.
func (t *StatusTracker) StartJanitor(ctx context.Context, interval time.Duration) {
	logger := t.logger.With("operation", "janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info(ctx, "Status tracker janitor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Status tracker janitor stopped")
			return
		case <-ticker.C:
			if n := t.evictExpired(); n > 0 {
				logger.Debug(ctx, "Evicted expired analysis status entries", "count", n)
			}
		}
	}
}
