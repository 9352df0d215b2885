package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
)

// CreatePayment inserts a pending order row keyed by its out_trade_no.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.Db.QueryRow(ctx,
		`INSERT INTO payments (id, user_id, amount, credits, out_trade_no, status, payment_method)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Amount, p.Credits, p.OutTradeNo, p.Status, p.PaymentMethod,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) GetPaymentByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Payment, error) {
	var p models.Payment
	var tradeNo *string
	err := s.Db.QueryRow(ctx,
		`SELECT id, user_id, amount, credits, out_trade_no, trade_no, status, payment_method, created_at, updated_at
		 FROM payments WHERE out_trade_no = $1`,
		outTradeNo,
	).Scan(&p.ID, &p.UserID, &p.Amount, &p.Credits, &p.OutTradeNo, &tradeNo, &p.Status, &p.PaymentMethod, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tradeNo != nil {
		p.TradeNo = *tradeNo
	}
	return &p, nil
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, user_id, amount, credits, out_trade_no, trade_no, status, payment_method, created_at, updated_at
		 FROM payments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var tradeNo *string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Credits, &p.OutTradeNo, &tradeNo, &p.Status, &p.PaymentMethod, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if tradeNo != nil {
			p.TradeNo = *tradeNo
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CompletePaymentAndCredit performs the idempotent apply step as one atomic
// unit: the order transitions pending -> completed and the payer is credited
// the order's stored credit amount. The conditional UPDATE serializes
// duplicate webhook deliveries; the loser sees zero rows and credits nothing.
// Returns false when the order was not in pending state anymore.
func (s *Store) CompletePaymentAndCredit(ctx context.Context, outTradeNo, tradeNo string) (bool, error) {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	var credits int64
	err = tx.QueryRow(ctx,
		`UPDATE payments SET status = $1, trade_no = $2, updated_at = now()
		 WHERE out_trade_no = $3 AND status = $4
		 RETURNING user_id, credits`,
		models.PaymentCompleted, tradeNo, outTradeNo, models.PaymentPending,
	).Scan(&userID, &credits)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("payment transition failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE users SET credits = credits + $1, updated_at = now() WHERE id = $2",
		credits, userID)
	if err != nil {
		return false, fmt.Errorf("credit failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO credit_entries (user_id, delta, kind, description) VALUES ($1, $2, $3, $4)",
		userID, credits, models.EntryKindPurchase, "order "+outTradeNo)
	if err != nil {
		return false, fmt.Errorf("usage entry failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("tx commit failed: %w", err)
	}
	return true, nil
}

// MarkPaymentFailed moves a still-pending order to failed. Orders already in
// a terminal state are left alone.
func (s *Store) MarkPaymentFailed(ctx context.Context, outTradeNo string) error {
	_, err := s.Db.Exec(ctx,
		"UPDATE payments SET status = $1, updated_at = now() WHERE out_trade_no = $2 AND status = $3",
		models.PaymentFailed, outTradeNo, models.PaymentPending)
	return err
}
