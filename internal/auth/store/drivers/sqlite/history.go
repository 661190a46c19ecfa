package sqlite

import (
	"context"

	"github.com/moviestream/auth/internal/auth/domain"
)

type loginHistoryRepo struct {
	db dbtx
}

func (r *loginHistoryRepo) Append(ctx context.Context, h domain.LoginHistory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO logins_history (id, user_id, source, login_time) VALUES (?, ?, ?, ?)`,
		h.ID, h.UserID, h.Source, h.LoginTime)
	return err
}

func (r *loginHistoryRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.LoginHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, source, login_time
		 FROM logins_history
		 WHERE user_id = ?
		 ORDER BY login_time DESC
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LoginHistory
	for rows.Next() {
		var h domain.LoginHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.Source, &h.LoginTime); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
