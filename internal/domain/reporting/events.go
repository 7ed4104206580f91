package reporting

import (
	"time"

	"github.com/ahrav/logsift/internal/domain/events"
)

// EventTypeRunFinished is raised by the reporting side once a run reaches a final status.
const EventTypeRunFinished events.EventType = "RunFinished"

// RunFinishedEvent signals that a run finished and its results are complete.
type RunFinishedEvent struct {
	RunID      int64     `json:"run_id"`
	ProjectID  int64     `json:"project_id"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunFinishedEvent creates a new run finished event.
func NewRunFinishedEvent(runID, projectID int64) RunFinishedEvent {
	return RunFinishedEvent{RunID: runID, ProjectID: projectID, FinishedAt: time.Now()}
}

func (e RunFinishedEvent) EventType() events.EventType { return EventTypeRunFinished }
func (e RunFinishedEvent) OccurredAt() time.Time       { return e.FinishedAt }
