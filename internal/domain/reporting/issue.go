package reporting

import (
	"slices"
	"strings"
)

// IssueGroup is the top level category every issue locator belongs to.
type IssueGroup string

const (
	IssueGroupToInvestigate IssueGroup = "TO_INVESTIGATE"
	IssueGroupProductBug    IssueGroup = "PRODUCT_BUG"
	IssueGroupAutomationBug IssueGroup = "AUTOMATION_BUG"
	IssueGroupSystemIssue   IssueGroup = "SYSTEM_ISSUE"
	IssueGroupNoDefect      IssueGroup = "NO_DEFECT"
)

// Default locators of each group. Custom locators share the two letter group prefix
// (for example "pb_1h7inqu2d9ek2").
const (
	LocatorToInvestigate = "ti001"
	LocatorProductBug    = "pb001"
	LocatorAutomationBug = "ab001"
	LocatorSystemIssue   = "si001"
	LocatorNoDefect      = "nd001"
)

var groupByPrefix = map[string]IssueGroup{
	"ti": IssueGroupToInvestigate,
	"pb": IssueGroupProductBug,
	"ab": IssueGroupAutomationBug,
	"si": IssueGroupSystemIssue,
	"nd": IssueGroupNoDefect,
}

// IssueGroupForLocator resolves the group of an issue locator from its prefix.
// Unknown prefixes resolve to the "to investigate" group, which keeps results
// with an unrecognized classification out of automatic analysis.
func IssueGroupForLocator(locator string) IssueGroup {
	l := strings.ToLower(locator)
	if len(l) >= 2 {
		if g, ok := groupByPrefix[l[:2]]; ok {
			return g
		}
	}
	return IssueGroupToInvestigate
}

// Ticket is an external bug tracker ticket linked to an issue.
type Ticket struct {
	ID  string
	URL string
}

// Issue is the classification assigned to a failed result.
type Issue struct {
	Locator        string
	AutoAnalyzed   bool
	IgnoreAnalyzer bool
	Description    string
	Tickets        []Ticket
}

// Group returns the issue group of the locator.
func (i *Issue) Group() IssueGroup { return IssueGroupForLocator(i.Locator) }

// Clone returns a deep copy of the issue, suitable for before/after snapshots.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	c := *i
	c.Tickets = slices.Clone(i.Tickets)
	return &c
}

// TicketIDs returns the ids of the linked tickets.
func (i *Issue) TicketIDs() []string {
	ids := make([]string, 0, len(i.Tickets))
	for _, t := range i.Tickets {
		ids = append(ids, t.ID)
	}
	return ids
}
