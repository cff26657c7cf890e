package domain

// Role is the capability level supplied by the external identity provider.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the caller of an operation as asserted by the identity provider.
// Credentials are verified upstream; the ledger trusts Role as given.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the actor holds administrator capability.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
