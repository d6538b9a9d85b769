package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the DDL for the two tables the linker persists to.
// emcid_binding carries the unique constraint that makes the
// insert-if-absent rule atomic under concurrent logins.
const Schema = `
CREATE TABLE IF NOT EXISTS emcid_account (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	roles TEXT[] NOT NULL DEFAULT '{}',
	password_hash BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS emcid_binding (
	provider_user_id TEXT PRIMARY KEY,
	account_id UUID NOT NULL REFERENCES emcid_account(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresAccountRepository implements AccountRepository using PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a PostgreSQL account repository.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create stores a new account.
func (r *PostgresAccountRepository) Create(ctx context.Context, account Account) error {
	query := `
		INSERT INTO emcid_account (id, username, email, status, roles, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		string(account.Status),
		account.Roles,
		account.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID loads an account by id.
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `
		SELECT id, username, email, status, roles, password_hash, created_at
		FROM emcid_account
		WHERE id = $1
	`

	var account Account
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&status,
		&account.Roles,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	account.Status = Status(status)
	return account, nil
}

// Delete removes an account.
func (r *PostgresAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM emcid_account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// UsernameTaken reports whether any account uses the username.
func (r *PostgresAccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM emcid_account WHERE lower(username) = lower($1))`,
		username,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

// EmailTaken reports whether any account uses the email address.
func (r *PostgresAccountRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM emcid_account WHERE lower(email) = lower($1))`,
		email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

// PostgresBindingRepository implements BindingRepository using PostgreSQL.
// The primary key on provider_user_id plus ON CONFLICT DO NOTHING makes
// Insert atomic; the read-back returns whichever account won.
type PostgresBindingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBindingRepository creates a PostgreSQL binding repository.
func NewPostgresBindingRepository(pool *pgxpool.Pool) *PostgresBindingRepository {
	return &PostgresBindingRepository{pool: pool}
}

// Insert records the binding unless one already exists for the provider
// user id, and returns the account id bound after the call.
func (r *PostgresBindingRepository) Insert(ctx context.Context, providerUserID string, accountID uuid.UUID) (uuid.UUID, error) {
	query := `
		INSERT INTO emcid_binding (provider_user_id, account_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (provider_user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, providerUserID, accountID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert binding: %w", err)
	}

	bound, err := r.GetAccountID(ctx, providerUserID)
	if err != nil {
		return uuid.Nil, err
	}
	return bound, nil
}

// GetAccountID returns the account bound to the provider user id.
func (r *PostgresBindingRepository) GetAccountID(ctx context.Context, providerUserID string) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT account_id FROM emcid_binding WHERE provider_user_id = $1`,
		providerUserID,
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrBindingNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get binding: %w", err)
	}
	return accountID, nil
}
