package sqlite

import (
	"context"
	"database/sql"

	"github.com/moviestream/auth/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller commits/rollbacks; outer DB stays open

// Ping is a no-op for transactions; the connection already exists.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                   { return &usersRepo{db: t.tx} }
func (t *txStore) Roles() store.Roles                   { return &rolesRepo{db: t.tx} }
func (t *txStore) UserRoles() store.UserRoles           { return &userRolesRepo{db: t.tx} }
func (t *txStore) LoginHistory() store.LoginHistory     { return &loginHistoryRepo{db: t.tx} }
func (t *txStore) SocialAccounts() store.SocialAccounts { return &socialAccountsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx starts
