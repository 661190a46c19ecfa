package domain

import "time"

// AdminRoleTitle is the role title that carries administrator rights.
// Comparison is always case-insensitive.
const AdminRoleTitle = "admin"

type Role struct {
	ID          string
	Title       string // unique
	Permissions int    // integer ranking, not a bitmask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRole assigns a role to a user. The (UserID, RoleID) pair is unique.
type UserRole struct {
	ID        string
	UserID    string
	RoleID    string
	CreatedAt time.Time
}
