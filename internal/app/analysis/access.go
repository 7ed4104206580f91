package analysis

import (
	"context"
	"fmt"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
)

var _ analysis.AccessValidator = ProjectAccessValidator{}

// ProjectAccessValidator grants access to members of the run's project. Debug runs
// are hidden from customers.
type ProjectAccessValidator struct{}

// Validate implements analysis.AccessValidator.
func (ProjectAccessValidator) Validate(
	_ context.Context,
	run *reporting.Run,
	membership reporting.Membership,
	user string,
) error {
	if membership.Role == "" {
		return fmt.Errorf("user %q has no role in project %d: %w", user, membership.ProjectID, analysis.ErrAccessDenied)
	}
	if membership.ProjectID != run.ProjectID {
		return fmt.Errorf("run %d does not belong to project %d: %w", run.ID, membership.ProjectID, analysis.ErrAccessDenied)
	}
	if run.IsDebug() && membership.Role == reporting.ProjectRoleCustomer {
		return fmt.Errorf("debug run %d is not visible to customers: %w", run.ID, analysis.ErrAccessDenied)
	}
	return nil
}
