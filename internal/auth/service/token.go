package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/moviestream/auth/internal/auth/cache"
	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/cryptox"
	"github.com/moviestream/auth/pkg/idx"
	"github.com/moviestream/auth/pkg/jwtx"
	"github.com/moviestream/auth/pkg/slogx"
)

// UndefinedToken is the literal string some web clients send when they have
// no token at all. It is treated exactly like a missing token.
const UndefinedToken = "undefined"

// TokenService issues and verifies the paired access/refresh tokens that
// carry a session across service instances.
type TokenService struct {
	Store store.Store
	Cache cache.SessionCache

	AccessCodec  jwtx.Codec
	RefreshCodec jwtx.Codec

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Login verifies the credentials, records the sign-in and issues a fresh
// token pair. Unknown emails and wrong passwords are indistinguishable to
// the caller.
func (s *TokenService) Login(ctx context.Context, email, password, source string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrWrongCredentials
		}
		return domain.TokenPair{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("email", email))
		return domain.TokenPair{}, ErrWrongCredentials
	}

	// Disabled accounts still authenticate; profile reads reject them.

	if err := s.Store.LoginHistory().Append(ctx, domain.LoginHistory{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Source:    source,
		LoginTime: time.Now().UTC(),
	}); err != nil {
		return domain.TokenPair{}, err
	}

	return s.IssueFor(ctx, user.ID)
}

// IssueFor mints a token pair for an already verified user and registers
// the refresh half in the session cache.
func (s *TokenService) IssueFor(ctx context.Context, userID string) (domain.TokenPair, error) {
	now := time.Now().UTC()
	accessExpires := now.Add(s.AccessTTL)
	refreshExpires := now.Add(s.RefreshTTL)

	access, err := s.AccessCodec.Mint(userID, now, accessExpires)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.RefreshCodec.Mint(userID, now, refreshExpires)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Cache.PutRefresh(ctx, refresh, userID, s.RefreshTTL); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:         access,
		AccessTokenExpires:  accessExpires,
		RefreshToken:        refresh,
		RefreshTokenExpires: refreshExpires,
		TokenType:           "bearer",
	}, nil
}

// VerifyAccess validates an access token and returns the user id it was
// minted for. Expiry is reported separately from every other failure so
// clients know to refresh instead of re-authenticating.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (string, error) {
	if token == "" || token == UndefinedToken {
		return "", ErrUnauthenticated
	}

	claims, err := s.AccessCodec.Parse(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return "", ErrAccessExpired
		}
		return "", ErrUnauthenticated
	}

	revoked, err := s.Cache.IsAccessInvalid(ctx, token)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrUnauthenticated
	}

	return claims.Subject, nil
}

// Refresh consumes a refresh token and issues a new pair. Each refresh
// token works exactly once; the cache's atomic take guarantees a single
// winner under concurrent use. Any failure means the session is over.
func (s *TokenService) Refresh(ctx context.Context, token string) (domain.TokenPair, error) {
	if token == "" || token == UndefinedToken {
		return domain.TokenPair{}, ErrMustRelogin
	}

	claims, err := s.RefreshCodec.Parse(token)
	if err != nil {
		return domain.TokenPair{}, ErrMustRelogin
	}

	userID, err := s.Cache.TakeRefresh(ctx, token)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return domain.TokenPair{}, ErrMustRelogin
		}
		return domain.TokenPair{}, err
	}

	if userID != claims.Subject {
		return domain.TokenPair{}, ErrMustRelogin
	}

	return s.IssueFor(ctx, userID)
}

// Logout revokes the access token for the rest of its lifetime and retires
// the refresh token. The token only needs a valid signature here, not a
// clean revocation record, so logging out twice succeeds both times. An
// already consumed refresh token does not fail the logout either.
func (s *TokenService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || accessToken == UndefinedToken {
		return ErrUnauthenticated
	}

	claims, err := s.AccessCodec.Parse(accessToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return ErrAccessExpired
		}
		return ErrUnauthenticated
	}

	remaining := claims.Remaining(time.Now().UTC())
	if err := s.Cache.InvalidateAccess(ctx, accessToken, claims.Subject, remaining); err != nil {
		return err
	}

	if refreshToken != "" && refreshToken != UndefinedToken {
		if _, err := s.Cache.TakeRefresh(ctx, refreshToken); err != nil && !errors.Is(err, cache.ErrNotFound) {
			return err
		}
	}

	return nil
}
