package membership

import "time"

// Role is a per-project role. It is scoped to a single membership, never
// global; the global admin flag lives on the user.
type Role string

const (
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
)

// ValidRole reports whether r is one of the accepted project roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleManager, RoleDeveloper, RoleTester:
		return true
	}
	return false
}

// Membership links one user to one project, carrying the role and the
// session time-tracking state. login_at non-null means an active session.
type Membership struct {
	ID                  string     `json:"id"`
	ProjectID           string     `json:"project_id"`
	UserID              string     `json:"user_id"`
	Role                Role       `json:"role"`
	ContributionMinutes int64      `json:"contribution_minutes"`
	LoginAt             *time.Time `json:"login_at"`
	LogoutAt            *time.Time `json:"logout_at"`
	CreatedAt           time.Time  `json:"created_at"`
}
