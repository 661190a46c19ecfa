package sqlite

import (
	"context"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
)

type rolesRepo struct {
	db dbtx
}

const roleColumns = `id, title, permissions, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (domain.Role, error) {
	var role domain.Role
	err := row.Scan(&role.ID, &role.Title, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GetRoleByTitle(ctx context.Context, title string) (domain.Role, error) {
	// title carries COLLATE NOCASE, so "Admin" and "admin" are the same role.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE title = ?`, title)
	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY created_at`)
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

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, title, permissions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Title, role.Permissions, now, now)
	return mapConstraint(err)
}

func (r *rolesRepo) UpdateRole(ctx context.Context, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET title = ?, permissions = ?, updated_at = ? WHERE id = ?`,
		role.Title, role.Permissions, time.Now().UTC(), role.ID)
	if err != nil {
		return mapConstraint(err)
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

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, roleID)
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
