package service

import "errors"

var (
	// ErrWrongCredentials covers both unknown emails and bad passwords so
	// the response never reveals which half was wrong.
	ErrWrongCredentials = errors.New("wrong_credentials")

	// ErrUnauthenticated means the access token is missing, malformed,
	// forged or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccessExpired means the access token was genuine but its lifetime
	// ran out. Clients should refresh rather than re-login.
	ErrAccessExpired = errors.New("access_token_expired")

	// ErrMustRelogin means the refresh token cannot be honored in any way.
	// The session is over and the client has to sign in again.
	ErrMustRelogin = errors.New("must_relogin")

	// ErrForbidden means the caller is authenticated but lacks the rights.
	ErrForbidden = errors.New("forbidden")

	// ErrRoleAssigned means the user already holds the role.
	ErrRoleAssigned = errors.New("role_already_assigned")

	// ErrRoleTitleTaken means a role with the same title already exists.
	ErrRoleTitleTaken = errors.New("role_title_taken")

	// ErrEmailTaken means direct signup hit an email that already has an
	// account.
	ErrEmailTaken = errors.New("email_taken")

	// ErrInactive means the account exists but has been disabled.
	ErrInactive = errors.New("inactive_user")

	// ErrNotFound is the service-level absence error for users, roles and
	// assignments.
	ErrNotFound = errors.New("not_found")

	// ErrAdminRoleMissing means no role titled "admin" exists, so admin
	// checks cannot be answered. This is a deployment configuration error.
	ErrAdminRoleMissing = errors.New("admin_role_missing")

	// ErrProviderUnavailable means the upstream identity provider rejected
	// or failed the exchange.
	ErrProviderUnavailable = errors.New("provider_unavailable")
)
