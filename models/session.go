package models

// SessionUser is the identity stored server-side for a logged-in cookie.
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	BranchID string `json:"branchId,omitempty"`
}

// NewSessionUser projects an account into its session identity.
func NewSessionUser(u *User) *SessionUser {
	su := &SessionUser{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Role:     u.Role,
	}
	if u.BranchID != nil {
		su.BranchID = *u.BranchID
	}
	return su
}
