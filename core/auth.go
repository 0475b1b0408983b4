package core

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Caller is the resolved identity making a request. It is passed explicitly
// into every service operation; services never reach into any ambient
// session state.
type Caller struct {
	ID             string
	Email          string
	Role           string
	EmailConfirmed bool
}

func (c Caller) IsAnonymous() bool { return c.ID == "" }
func (c Caller) IsAdmin() bool     { return c.Role == RoleAdmin }
func (c Caller) IsStudent() bool   { return c.Role == RoleStudent }

// Authenticated reports whether the caller may use gated operations.
// An unconfirmed email is equivalent to no session.
func (c Caller) Authenticated() bool {
	return !c.IsAnonymous() && c.EmailConfirmed
}
