package sqlite

import (
	"context"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
)

type socialAccountsRepo struct {
	db dbtx
}

func (r *socialAccountsRepo) GetByProvider(ctx context.Context, socialName, socialID string) (domain.SocialAccount, error) {
	var sa domain.SocialAccount
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, social_id, social_name, created_at
		 FROM social_accounts
		 WHERE social_name = ? AND social_id = ?`, socialName, socialID).
		Scan(&sa.ID, &sa.UserID, &sa.SocialID, &sa.SocialName, &sa.CreatedAt)
	if err != nil {
		return domain.SocialAccount{}, mapNotFound(err)
	}
	return sa, nil
}

func (r *socialAccountsRepo) Create(ctx context.Context, sa domain.SocialAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO social_accounts (id, user_id, social_id, social_name, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sa.ID, sa.UserID, sa.SocialID, sa.SocialName, time.Now().UTC())
	return mapConstraint(err)
}

func (r *socialAccountsRepo) ListForUser(ctx context.Context, userID string) ([]domain.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, social_id, social_name, created_at
		 FROM social_accounts
		 WHERE user_id = ?
		 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.SocialAccount
	for rows.Next() {
		var sa domain.SocialAccount
		if err := rows.Scan(&sa.ID, &sa.UserID, &sa.SocialID, &sa.SocialName, &sa.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}
