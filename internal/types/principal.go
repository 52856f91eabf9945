package types

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the already-authenticated caller of a core operation.
type Principal struct {
	UserID uint `json:"user_id"`
	Role   Role `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// RequireAdmin returns ErrForbidden unless p is an administrator
func (p Principal) RequireAdmin() error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
