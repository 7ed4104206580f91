// Package mid contains the HTTP middleware of the API.
package mid

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/logsift/internal/domain/reporting"
)

// Header names carrying the caller's identity. Authentication happens upstream.
const (
	HeaderUser = "X-User"
	HeaderRole = "X-Project-Role"
)

type membershipKey struct{}

var knownRoles = map[string]reporting.ProjectRole{
	string(reporting.ProjectRoleOperator): reporting.ProjectRoleOperator,
	string(reporting.ProjectRoleCustomer): reporting.ProjectRoleCustomer,
	string(reporting.ProjectRoleMember):   reporting.ProjectRoleMember,
	string(reporting.ProjectRoleManager):  reporting.ProjectRoleManager,
}

// Membership builds the caller's project membership from the identity headers and
// the projectID path parameter. Unknown roles yield an empty role, which access
// validation rejects.
func Membership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, _ := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
		m := reporting.Membership{
			ProjectID: projectID,
			Role:      knownRoles[strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderRole)))],
			UserName:  strings.TrimSpace(r.Header.Get(HeaderUser)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), membershipKey{}, m)))
	})
}

// GetMembership returns the membership stored by Membership.
func GetMembership(ctx context.Context) (reporting.Membership, bool) {
	m, ok := ctx.Value(membershipKey{}).(reporting.Membership)
	return m, ok
}
