// Package cache defines the shared session state that lets every service
// instance agree on refresh-token consumption, access-token revocation and
// request-rate counters.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or already expired.
var ErrNotFound = errors.New("cache: not found")

// SessionCache is the cross-instance session state. Implementations must
// make TakeRefresh atomic: under concurrent calls with the same token,
// exactly one caller wins.
type SessionCache interface {
	// PutRefresh registers a refresh token for userID. The entry lives for
	// ttl, which matches the token's own lifetime.
	PutRefresh(ctx context.Context, token, userID string, ttl time.Duration) error

	// TakeRefresh atomically reads and deletes the refresh entry, making
	// each refresh token single-use. Absence surfaces as ErrNotFound.
	TakeRefresh(ctx context.Context, token string) (userID string, err error)

	// InvalidateAccess records an access token as revoked for the remainder
	// of its lifetime.
	InvalidateAccess(ctx context.Context, token, userID string, ttl time.Duration) error

	// IsAccessInvalid reports whether the access token has been revoked.
	IsAccessInvalid(ctx context.Context, token string) (bool, error)

	// IncrWindow increments the fixed-window request counter for key and
	// returns the new count. A fresh window expires just before the next
	// window begins.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping verifies the backing server is reachable.
	Ping(ctx context.Context) error

	Close() error
}
