package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// EnsureUser inserts the identity-provider user on first sight. The balance
// starts at zero; existing rows are left untouched.
func (s *Store) EnsureUser(ctx context.Context, id uuid.UUID, email string) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO users (id, email, credits) VALUES ($1, $2, 0) ON CONFLICT (id) DO NOTHING",
		id, email)
	return err
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.Db.QueryRow(ctx,
		"SELECT id, email, credits, created_at, updated_at FROM users WHERE id = $1",
		id).Scan(&u.ID, &u.Email, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetCredits returns the current balance, zero when the user has no row.
func (s *Store) GetCredits(ctx context.Context, userID uuid.UUID) (int64, error) {
	var credits int64
	err := s.Db.QueryRow(ctx, "SELECT credits FROM users WHERE id = $1", userID).Scan(&credits)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// DebitCredits subtracts amount from the user's balance if and only if the
// balance covers it. The check and the write are one conditional statement so
// concurrent debits cannot race the balance below zero. A usage entry is
// recorded in the same transaction.
func (s *Store) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, description string) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"UPDATE users SET credits = credits - $1, updated_at = now() WHERE id = $2 AND credits >= $1",
		amount, userID)
	if err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientCredits
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO credit_entries (user_id, delta, kind, description) VALUES ($1, $2, $3, $4)",
		userID, -amount, models.EntryKindGeneration, description)
	if err != nil {
		return fmt.Errorf("usage entry failed: %w", err)
	}

	return tx.Commit(ctx)
}

// CreditCredits adds amount unconditionally and records a usage entry.
func (s *Store) CreditCredits(ctx context.Context, userID uuid.UUID, amount int64, kind, description string) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE users SET credits = credits + $1, updated_at = now() WHERE id = $2",
		amount, userID)
	if err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO credit_entries (user_id, delta, kind, description) VALUES ($1, $2, $3, $4)",
		userID, amount, kind, description)
	if err != nil {
		return fmt.Errorf("usage entry failed: %w", err)
	}

	return tx.Commit(ctx)
}

// ListCreditEntries returns the most recent usage entries for an account.
func (s *Store) ListCreditEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditEntry, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT id, user_id, delta, kind, description, created_at FROM credit_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.CreditEntry
	for rows.Next() {
		var e models.CreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
