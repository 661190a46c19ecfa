package store

import (
	"context"
	"errors"

	"github.com/moviestream/auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Users() Users
	Roles() Roles
	UserRoles() UserRoles
	LoginHistory() LoginHistory
	SocialAccounts() SocialAccounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step operations that must be atomic
	// (e.g. role assignment plus admin-flag sync).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during credential verification.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUsersByIDs returns the users whose ids appear in the list.
	// Unknown ids are silently skipped.
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// A duplicate email surfaces as ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateEmail mutates the email and bumps updated_at.
	UpdateEmail(ctx context.Context, userID, email string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetAdmin flips the denormalized is_admin flag.
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error

	// DeleteUser cascades to user_roles, social_accounts and logins_history.
	DeleteUser(ctx context.Context, userID string) error
}

type Roles interface {
	// GetRoleByID fetches a role by its ID.
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)

	// GetRoleByTitle fetches a role by its unique title (case-insensitive).
	GetRoleByTitle(ctx context.Context, title string) (domain.Role, error)

	// ListAll returns all roles in the system.
	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole inserts a new role (id is ULID). Duplicate titles surface
	// as ErrAlreadyExists.
	CreateRole(ctx context.Context, r domain.Role) error

	// UpdateRole modifies title and permissions.
	UpdateRole(ctx context.Context, r domain.Role) error

	// DeleteRole removes a role; assignments referencing it cascade.
	DeleteRole(ctx context.Context, roleID string) error
}

type UserRoles interface {
	// Assign adds a (user, role) pair. A duplicate pair surfaces as
	// ErrAlreadyExists via the table's uniqueness constraint, which is what
	// serializes concurrent assignment attempts.
	Assign(ctx context.Context, ur domain.UserRole) error

	// Remove deletes a (user, role) pair; absence surfaces as ErrNotFound.
	Remove(ctx context.Context, userID, roleID string) error

	// RolesForUser joins assignments to role records for one user.
	RolesForUser(ctx context.Context, userID string) ([]domain.Role, error)

	// HasRole reports whether the pair exists.
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
}

type LoginHistory interface {
	// Append records a successful sign-in. The table is append-only.
	Append(ctx context.Context, h domain.LoginHistory) error

	// ListForUser returns a page of history entries, newest first.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.LoginHistory, error)
}

type SocialAccounts interface {
	// GetByProvider looks up a link by the unique (socialName, socialID) pair.
	GetByProvider(ctx context.Context, socialName, socialID string) (domain.SocialAccount, error)

	// Create inserts a new link. A duplicate pair surfaces as ErrAlreadyExists.
	Create(ctx context.Context, sa domain.SocialAccount) error

	// ListForUser returns all links attached to a user.
	ListForUser(ctx context.Context, userID string) ([]domain.SocialAccount, error)
}
