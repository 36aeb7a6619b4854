// Package account persists customer accounts.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"luwei/internal/auth/models"
	"luwei/internal/platform/database"
	id "luwei/pkg/domain"
	"luwei/pkg/email"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL. The unique index on email is the
// arbiter between concurrent first logins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, name, provider, email_verified, created_at, updated_at`

// Create inserts a new account. A duplicate email returns sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), a.Email, a.Name, a.Provider, a.EmailVerified, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("create account %s: %w", a.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Account, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email.Normalize(address))
	return scanAccount(row, "find account by email")
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	return scanAccount(row, "find account by id")
}

func scanAccount(row *sql.Row, op string) (*models.Account, error) {
	var (
		a   models.Account
		uid uuid.UUID
	)
	err := row.Scan(&uid, &a.Email, &a.Name, &a.Provider, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ID = id.AccountID(uid)
	return &a, nil
}
