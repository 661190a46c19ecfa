package sqlite

import (
	"context"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
)

type userRolesRepo struct {
	db dbtx
}

func (r *userRolesRepo) Assign(ctx context.Context, ur domain.UserRole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (id, user_id, role_id, created_at) VALUES (?, ?, ?, ?)`,
		ur.ID, ur.UserID, ur.RoleID, time.Now().UTC())
	return mapConstraint(err)
}

func (r *userRolesRepo) Remove(ctx context.Context, userID, roleID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRolesRepo) RolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.title, r.permissions, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *userRolesRepo) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID, roleID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
