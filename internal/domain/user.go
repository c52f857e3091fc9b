package domain

// Role represents an operator permission level.
type Role string

// Roles in ascending order of permissions.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   0,
	RoleOperator: 1,
	RoleAdmin:    2,
}

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// HasPermission reports whether r grants at least the permissions of required.
func (r Role) HasPermission(required Role) bool {
	have, ok := roleRanks[r]
	if !ok {
		return false
	}
	return have >= roleRanks[required]
}

// Operator is an account allowed to authenticate against the API.
type Operator struct {
	Email        string
	PasswordHash string
	Role         Role
}
