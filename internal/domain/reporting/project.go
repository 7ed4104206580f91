package reporting

// Project owns runs and carries key/value attributes such as analyzer settings.
type Project struct {
	ID         int64
	Name       string
	Attributes map[string]string
}

// ProjectRole is the role of a user inside a project.
type ProjectRole string

const (
	ProjectRoleOperator ProjectRole = "OPERATOR"
	ProjectRoleCustomer ProjectRole = "CUSTOMER"
	ProjectRoleMember   ProjectRole = "MEMBER"
	ProjectRoleManager  ProjectRole = "PROJECT_MANAGER"
)

// Membership describes the project a request is made in and the caller's role there.
type Membership struct {
	ProjectID int64
	Role      ProjectRole
	UserName  string
}
