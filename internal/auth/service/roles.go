package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/idx"
	"github.com/moviestream/auth/pkg/slogx"
)

// RolesService manages roles and their assignment to users. Assignment
// changes also keep the denormalized admin flag on the user record in step
// with the role rows, inside the same transaction.
type RolesService struct {
	Store store.Store
}

// GetRoleByID fetches a role by its ID.
func (s *RolesService) GetRoleByID(ctx context.Context, roleID string) (domain.Role, error) {
	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, ErrNotFound
	}
	return role, err
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

// CreateRole adds a new role. Titles are unique case-insensitively.
func (s *RolesService) CreateRole(ctx context.Context, title string, permissions int) (domain.Role, error) {
	role := domain.Role{
		ID:          idx.New().String(),
		Title:       title,
		Permissions: permissions,
	}
	if err := s.Store.Roles().CreateRole(ctx, role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrRoleTitleTaken
		}
		return domain.Role{}, err
	}
	return role, nil
}

// UpdateRole changes a role's title and permission level.
func (s *RolesService) UpdateRole(ctx context.Context, roleID, title string, permissions int) (domain.Role, error) {
	role := domain.Role{ID: roleID, Title: title, Permissions: permissions}
	if err := s.Store.Roles().UpdateRole(ctx, role); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Role{}, ErrNotFound
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.Role{}, ErrRoleTitleTaken
		}
		return domain.Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role. Assignments referencing it cascade away, so
// affected users lose the role immediately.
func (s *RolesService) DeleteRole(ctx context.Context, roleID string) error {
	err := s.Store.Roles().DeleteRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// RolesForUser lists the roles a user currently holds.
func (s *RolesService) RolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Store.UserRoles().RolesForUser(ctx, userID)
}

// Assign gives a user a role. The pair's uniqueness constraint serializes
// concurrent attempts, so a double assignment always surfaces as
// ErrRoleAssigned for the loser.
func (s *RolesService) Assign(ctx context.Context, userID, roleID string) error {
	l := slogx.FromContext(ctx)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().GetUserByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.Roles().GetRoleByID(ctx, roleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		err := tx.UserRoles().Assign(ctx, domain.UserRole{
			ID:     idx.New().String(),
			UserID: userID,
			RoleID: roleID,
		})
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrRoleAssigned
			}
			return err
		}

		if err := syncAdminFlag(ctx, tx, userID); err != nil {
			return err
		}

		l.Info("role assigned",
			slog.String("user_id", userID),
			slog.String("role_id", roleID),
		)
		return nil
	})
}

// Remove takes a role away from a user.
func (s *RolesService) Remove(ctx context.Context, userID, roleID string) error {
	l := slogx.FromContext(ctx)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UserRoles().Remove(ctx, userID, roleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := syncAdminFlag(ctx, tx, userID); err != nil {
			return err
		}

		l.Info("role removed",
			slog.String("user_id", userID),
			slog.String("role_id", roleID),
		)
		return nil
	})
}

// syncAdminFlag recomputes the user's is_admin flag from the role rows
// inside the caller's transaction.
func syncAdminFlag(ctx context.Context, tx store.Tx, userID string) error {
	roles, err := tx.UserRoles().RolesForUser(ctx, userID)
	if err != nil {
		return err
	}

	isAdmin := false
	for _, role := range roles {
		if strings.EqualFold(role.Title, domain.AdminRoleTitle) {
			isAdmin = true
			break
		}
	}

	return tx.Users().SetAdmin(ctx, userID, isAdmin)
}

// CheckAdmin reports whether the user's strongest role is at least as
// strong as the admin role. The admin role must exist; a deployment
// without it cannot answer the question at all.
func (s *RolesService) CheckAdmin(ctx context.Context, userID string) (bool, error) {
	adminRole, err := s.Store.Roles().GetRoleByTitle(ctx, domain.AdminRoleTitle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrAdminRoleMissing
		}
		return false, err
	}

	roles, err := s.Store.UserRoles().RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	best := 0
	for _, role := range roles {
		if role.Permissions > best {
			best = role.Permissions
		}
	}
	return len(roles) > 0 && best >= adminRole.Permissions, nil
}

// RoleTitlesForUser returns the lower-cased titles of the user's roles.
func (s *RolesService) RoleTitlesForUser(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.Store.UserRoles().RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	titles := make([]string, len(roles))
	for i, role := range roles {
		titles[i] = strings.ToLower(role.Title)
	}
	return titles, nil
}

// CheckAny reports whether the user holds at least one of the named roles.
// Titles compare case-insensitively.
func (s *RolesService) CheckAny(ctx context.Context, userID string, titles []string) (bool, error) {
	held, err := s.RoleTitlesForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, have := range held {
		for _, want := range titles {
			if have == strings.ToLower(want) {
				return true, nil
			}
		}
	}
	return false, nil
}
