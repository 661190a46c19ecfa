package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2 encoded
	FirstName    string
	LastName     string
	Disabled     bool
	// IsAdmin mirrors "user holds a role titled admin". It is denormalized
	// for cheap reads and kept in sync transactionally on every role
	// assignment change; authorization decisions still derive from the
	// role rows themselves.
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SocialAccount links a third-party identity to a local user. The
// (SocialName, SocialID) pair is unique: repeated federated sign-ins from
// the same provider identity always resolve to the same local user.
type SocialAccount struct {
	ID         string
	UserID     string
	SocialID   string // provider-side subject id
	SocialName string // provider name, e.g. "google", "yandex"
	CreatedAt  time.Time
}

// LoginHistory is an append-only record of successful sign-ins.
type LoginHistory struct {
	ID        string
	UserID    string
	Source    string
	LoginTime time.Time
}
