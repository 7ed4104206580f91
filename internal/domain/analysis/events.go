package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
)

// Event types raised by analysis.
const (
	EventTypeIssueReclassified events.EventType = "IssueReclassified"
	EventTypeTicketLinked      events.EventType = "TicketLinked"
)

// IssueSnapshot is an immutable copy of an issue at one point in time.
type IssueSnapshot struct {
	Locator      string   `json:"issue_type"`
	AutoAnalyzed bool     `json:"auto_analyzed"`
	Description  string   `json:"description,omitempty"`
	Tickets      []string `json:"tickets,omitempty"`
}

// SnapshotIssue copies the fields of an issue that change during reclassification.
func SnapshotIssue(issue *reporting.Issue) IssueSnapshot {
	if issue == nil {
		return IssueSnapshot{}
	}
	return IssueSnapshot{
		Locator:      issue.Locator,
		AutoAnalyzed: issue.AutoAnalyzed,
		Description:  issue.Description,
		Tickets:      issue.TicketIDs(),
	}
}

// IssueReclassifiedEvent records that an analyzer changed the classification of a result.
type IssueReclassifiedEvent struct {
	occurredAt time.Time
	EventID    uuid.UUID     `json:"event_id"`
	ProjectID  int64         `json:"project_id"`
	RunID      int64         `json:"run_id"`
	ResultID   int64         `json:"result_id"`
	Analyzer   string        `json:"analyzer"`
	Before     IssueSnapshot `json:"before"`
	After      IssueSnapshot `json:"after"`
}

// NewIssueReclassifiedEvent creates a new issue reclassified event.
func NewIssueReclassifiedEvent(
	projectID, runID, resultID int64,
	analyzer string,
	before, after IssueSnapshot,
) IssueReclassifiedEvent {
	return IssueReclassifiedEvent{
		occurredAt: time.Now(),
		EventID:    uuid.New(),
		ProjectID:  projectID,
		RunID:      runID,
		ResultID:   resultID,
		Analyzer:   analyzer,
		Before:     before,
		After:      after,
	}
}

func (e IssueReclassifiedEvent) EventType() events.EventType { return EventTypeIssueReclassified }
func (e IssueReclassifiedEvent) OccurredAt() time.Time       { return e.occurredAt }

// TicketLinkedEvent records that tickets were copied onto a result from a similar one.
type TicketLinkedEvent struct {
	occurredAt time.Time
	EventID    uuid.UUID `json:"event_id"`
	ProjectID  int64     `json:"project_id"`
	RunID      int64     `json:"run_id"`
	ResultID   int64     `json:"result_id"`
	Analyzer   string    `json:"analyzer"`
	Before     []string  `json:"before,omitempty"`
	After      []string  `json:"after"`
}

// NewTicketLinkedEvent creates a new ticket linked event.
func NewTicketLinkedEvent(projectID, runID, resultID int64, analyzer string, before, after []string) TicketLinkedEvent {
	return TicketLinkedEvent{
		occurredAt: time.Now(),
		EventID:    uuid.New(),
		ProjectID:  projectID,
		RunID:      runID,
		ResultID:   resultID,
		Analyzer:   analyzer,
		Before:     before,
		After:      after,
	}
}

func (e TicketLinkedEvent) EventType() events.EventType { return EventTypeTicketLinked }
func (e TicketLinkedEvent) OccurredAt() time.Time       { return e.occurredAt }
