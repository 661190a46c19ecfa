package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/cryptox"
	"github.com/moviestream/auth/pkg/idx"
	"github.com/moviestream/auth/pkg/slogx"
)

// UserService covers account lifecycle: direct signup, profile reads,
// credential changes and login history.
type UserService struct {
	Store store.Store
}

// Register creates a user from a direct signup. An email that already has
// an account is rejected, unlike federated signup which attaches to it.
func (s *UserService) Register(ctx context.Context, email, password, firstName, lastName string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	l.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate verifies credentials and returns the account record with a
// sign-in appended to the history. Sibling services use this to validate a
// login without minting tokens; the disabled flag is reported, not
// enforced, so the caller can decide what an inactive account means.
func (s *UserService) Authenticate(ctx context.Context, email, password, source string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrWrongCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("sso login rejected", slog.String("email", email))
		return domain.User{}, ErrWrongCredentials
	}

	if err := s.Store.LoginHistory().Append(ctx, domain.LoginHistory{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Source:    source,
		LoginTime: time.Now().UTC(),
	}); err != nil {
		return domain.User{}, err
	}

	return user, nil
}

// CurrentUser returns the account behind an authenticated subject.
// Disabled accounts are rejected here rather than at login.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	if user.Disabled {
		return domain.User{}, ErrInactive
	}
	return user, nil
}

// GetByID returns the user record without the disabled check. Internal
// callers (role sync, admin views) use this.
func (s *UserService) GetByID(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return user, err
}

// ChangeCredentials rewrites the email, the password, or both. Empty
// fields are left untouched. The new email must differ from the current
// one and must not belong to another account.
func (s *UserService) ChangeCredentials(ctx context.Context, userID, newEmail, newPassword string) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}

	if newEmail != "" {
		if strings.EqualFold(newEmail, user.Email) {
			return ErrEmailTaken
		}
		if err := s.Store.Users().UpdateEmail(ctx, userID, newEmail); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
	}

	if newPassword != "" {
		hash, err := cryptox.HashPassword(newPassword)
		if err != nil {
			return err
		}
		if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
	}

	return nil
}

// GetByIDs returns the users behind a batch of ids. Ids with no account
// are skipped rather than failing the whole lookup.
func (s *UserService) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Store.Users().GetUsersByIDs(ctx, ids)
}

// LoginHistory returns a page of the user's sign-in records, newest first.
func (s *UserService) LoginHistory(ctx context.Context, userID string, limit, offset int) ([]domain.LoginHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.LoginHistory().ListForUser(ctx, userID, limit, offset)
}
