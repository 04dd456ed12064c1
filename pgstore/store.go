// Package pgstore implements the account store on PostgreSQL via pgx.
// Single-use OTP and reset-token redemption rely on conditional UPDATEs
// whose WHERE clause re-checks the stored value, so two concurrent
// redemptions cannot both report success.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authflow"
)

// Schema creates the accounts table. Run it once at deploy time or feed
// it to a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                 UUID PRIMARY KEY,
	username           TEXT NOT NULL,
	email              TEXT NOT NULL,
	password_hash      TEXT NOT NULL DEFAULT '',
	provider           TEXT NOT NULL,
	email_verified     BOOLEAN NOT NULL DEFAULT FALSE,
	otp                TEXT NOT NULL DEFAULT '',
	otp_expiry         TIMESTAMPTZ,
	reset_token        TEXT NOT NULL DEFAULT '',
	reset_token_expiry TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_key ON accounts (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS accounts_username_key ON accounts (lower(username));
`

const accountColumns = `id, username, email, password_hash, provider, email_verified,
	otp, otp_expiry, reset_token, reset_token_expiry, created_at, updated_at`

// Store is a pgxpool-backed account store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool from a DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) FindByID(ctx context.Context, id string) (*authflow.Account, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authflow.Account, error) {
	return s.findBy(ctx, "lower(email) = lower($1)", authflow.NormalizeEmail(email))
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*authflow.Account, error) {
	return s.findBy(ctx, "lower(username) = lower($1)", username)
}

func (s *Store) findBy(ctx context.Context, where string, arg any) (*authflow.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authflow.ErrAccountNotFound
		}
		return nil, fmt.Errorf("pgstore: query account: %w", err)
	}
	return account, nil
}

func (s *Store) Create(ctx context.Context, acc authflow.NewAccount) (*authflow.Account, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, provider, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+accountColumns,
		uuid.NewString(), acc.Username, authflow.NormalizeEmail(acc.Email),
		acc.PasswordHash, string(acc.Provider), acc.EmailVerified,
	)
	account, err := scanAccount(row)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("pgstore: insert account: %w", err)
	}
	return account, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now()
		WHERE id = $1`, id, hash)
}

func (s *Store) SetOTP(ctx context.Context, id, code string, expiry time.Time) error {
	return s.update(ctx, `
		UPDATE accounts SET otp = $2, otp_expiry = $3, updated_at = now()
		WHERE id = $1`, id, code, expiry)
}

func (s *Store) ConsumeOTP(ctx context.Context, id, code string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET email_verified = TRUE, otp = '', otp_expiry = NULL, updated_at = now()
		WHERE id = $1 AND otp <> '' AND otp = $2`, id, code)
	if err != nil {
		return false, fmt.Errorf("pgstore: consume otp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	return s.update(ctx, `
		UPDATE accounts SET reset_token = $2, reset_token_expiry = $3, updated_at = now()
		WHERE id = $1`, id, token, expiry)
}

func (s *Store) ConsumeResetToken(ctx context.Context, id, token, hash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $3, reset_token = '', reset_token_expiry = NULL, updated_at = now()
		WHERE id = $1 AND reset_token <> '' AND reset_token = $2`, id, token, hash)
	if err != nil {
		return false, fmt.Errorf("pgstore: consume reset token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authflow.ErrAccountNotFound
	}
	return nil
}

func (s *Store) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("pgstore: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authflow.ErrAccountNotFound
	}
	return nil
}

// conflictError maps a unique-violation to the taken-sentinel for the
// constraint that fired, or nil for unrelated errors.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return authflow.ErrUsernameTaken
	}
	return authflow.ErrEmailTaken
}

func scanAccount(row pgx.Row) (*authflow.Account, error) {
	var (
		account     authflow.Account
		provider    string
		otpExpiry   *time.Time
		resetExpiry *time.Time
	)
	err := row.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&provider, &account.EmailVerified,
		&account.OTP, &otpExpiry, &account.ResetToken, &resetExpiry,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Provider = authflow.Provider(provider)
	account.HasPassword = account.PasswordHash != ""
	if otpExpiry != nil {
		account.OTPExpiry = *otpExpiry
	}
	if resetExpiry != nil {
		account.ResetTokenExpiry = *resetExpiry
	}
	return &account, nil
}
