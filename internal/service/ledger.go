package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
)

// ErrDebitAfterWork reports the work-done-billing-failed asymmetry: the
// guarded work completed but the subsequent debit found the balance drained
// by a concurrent request. The work's result is still returned alongside.
var ErrDebitAfterWork = errors.New("billing failed after work completed")

// GenerationCost is the credits consumed by one full document-generation run.
const GenerationCost int64 = 1

// LedgerStore is the persistence surface the ledger needs. The postgres
// store implements it; tests substitute an in-memory fake.
type LedgerStore interface {
	GetCredits(ctx context.Context, userID uuid.UUID) (int64, error)
	DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, description string) error
	CreditCredits(ctx context.Context, userID uuid.UUID, amount int64, kind, description string) error
	ListCreditEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditEntry, error)
}

// Ledger owns the per-user credit balance. All atomicity lives in the store's
// conditional statements; the ledger adds the retry and guard policies.
type Ledger struct {
	store LedgerStore
}

func NewLedger(s LedgerStore) *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return l.store.GetCredits(ctx, userID)
}

func (l *Ledger) HasSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	balance, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit refuses, not clamps, when the balance cannot cover amount. A
// transient persistence failure is retried once and then surfaced.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string) error {
	err := l.store.DebitCredits(ctx, userID, amount, description)
	if err == nil || errors.Is(err, store.ErrInsufficientCredits) {
		return err
	}
	if retryErr := l.store.DebitCredits(ctx, userID, amount, description); retryErr == nil || errors.Is(retryErr, store.ErrInsufficientCredits) {
		return retryErr
	}
	return fmt.Errorf("debit failed: %w", err)
}

func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind, description string) error {
	err := l.store.CreditCredits(ctx, userID, amount, kind, description)
	if err == nil {
		return nil
	}
	if retryErr := l.store.CreditCredits(ctx, userID, amount, kind, description); retryErr == nil {
		return nil
	}
	return fmt.Errorf("credit failed: %w", err)
}

func (l *Ledger) RecentUsage(ctx context.Context, userID uuid.UUID) ([]models.CreditEntry, error) {
	return l.store.ListCreditEntries(ctx, userID, 10)
}

// ExecuteGuarded runs a billable unit of work: sufficiency is checked first,
// work runs only when the check passes, and the account is debited only after
// the work succeeds. If a concurrent debit drains the balance in between, the
// completed work's result is returned together with ErrDebitAfterWork rather
// than being swallowed.
func ExecuteGuarded[T any](ctx context.Context, l *Ledger, userID uuid.UUID, cost int64, description string, work func(context.Context) (T, error)) (T, error) {
	var zero T

	ok, err := l.HasSufficient(ctx, userID, cost)
	if err != nil {
		return zero, fmt.Errorf("balance check failed: %w", err)
	}
	if !ok {
		return zero, store.ErrInsufficientCredits
	}

	result, err := work(ctx)
	if err != nil {
		return zero, err
	}

	if err := l.Debit(ctx, userID, cost, description); err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			return result, ErrDebitAfterWork
		}
		return result, fmt.Errorf("%w: %v", ErrDebitAfterWork, err)
	}
	return result, nil
}
