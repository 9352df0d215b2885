package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
	"github.com/happyypeet/vibe-guide-demo-total/internal/zpay"
)

var (
	ErrUnknownPlan    = errors.New("unknown pricing plan")
	ErrBadSignature   = errors.New("invalid notification signature")
	ErrOrderNotFound  = errors.New("order not found")
	ErrAmountMismatch = errors.New("notified amount does not match order")
)

// PaymentStore is the persistence surface for orders and the webhook apply.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
	CompletePaymentAndCredit(ctx context.Context, outTradeNo, tradeNo string) (bool, error)
	MarkPaymentFailed(ctx context.Context, outTradeNo string) error
}

// Payments creates gateway orders and applies their asynchronous outcome
// notifications. Delivery is at-least-once; every path through HandleNotify
// must therefore be safe to repeat.
type Payments struct {
	store   PaymentStore
	gateway *zpay.Client
	siteURL string
}

func NewPayments(s PaymentStore, gateway *zpay.Client, siteURL string) *Payments {
	return &Payments{store: s, gateway: gateway, siteURL: siteURL}
}

// CreateOrder records a pending payment for a pricing plan and returns the
// signed gateway redirect URL.
func (p *Payments) CreateOrder(ctx context.Context, userID uuid.UUID, planID string) (*models.CreateOrderResponse, error) {
	plan, ok := models.Plans[planID]
	if !ok {
		return nil, ErrUnknownPlan
	}

	outTradeNo := zpay.GenerateOrderNo()
	payment := &models.Payment{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        plan.Price,
		Credits:       plan.Credits,
		OutTradeNo:    outTradeNo,
		Status:        models.PaymentPending,
		PaymentMethod: "alipay",
	}
	if err := p.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment record: %w", err)
	}

	url := p.gateway.SubmitURL(zpay.OrderParams{
		Name:       fmt.Sprintf("%s - %d个项目点数", plan.Name, plan.Credits),
		Money:      strconv.FormatInt(plan.Price, 10),
		OutTradeNo: outTradeNo,
		NotifyURL:  p.siteURL + "/api/v1/payment/notify",
		ReturnURL:  p.siteURL + "/payment/success?order=" + outTradeNo,
		Type:       "alipay",
	})

	return &models.CreateOrderResponse{PaymentURL: url, OutTradeNo: outTradeNo}, nil
}

// HandleNotify processes one gateway notification. A nil return means the
// notification is acknowledged ("success" to the gateway); any error means
// the gateway should retry or give up, and guarantees no state was credited.
//
// The signature is verified before anything else touches state. The credit
// amount applied is always the one stored on the order at creation time,
// never a value re-derived from the gateway-reported money.
func (p *Payments) HandleNotify(ctx context.Context, params map[string]string) error {
	if !p.gateway.VerifyNotify(params) {
		log.Printf("payment notify: signature mismatch for out_trade_no=%q", params["out_trade_no"])
		return ErrBadSignature
	}

	outTradeNo := params["out_trade_no"]
	if outTradeNo == "" {
		return ErrOrderNotFound
	}

	if params["trade_status"] != zpay.TradeSuccess {
		log.Printf("payment notify: non-success status %q for order %s", params["trade_status"], outTradeNo)
		if err := p.store.MarkPaymentFailed(ctx, outTradeNo); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	}

	payment, err := p.store.GetPaymentByOutTradeNo(ctx, outTradeNo)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("order lookup: %w", err)
	}

	// Replayed delivery of an already-applied order: acknowledge without
	// crediting again so the gateway stops retrying.
	if payment.Status == models.PaymentCompleted {
		log.Printf("payment notify: order %s already completed", outTradeNo)
		return nil
	}

	money, err := decimal.NewFromString(params["money"])
	if err != nil || !money.Equal(decimal.NewFromInt(payment.Amount)) {
		log.Printf("payment notify: amount mismatch for order %s: expected %d got %q", outTradeNo, payment.Amount, params["money"])
		return ErrAmountMismatch
	}

	applied, err := p.store.CompletePaymentAndCredit(ctx, outTradeNo, params["trade_no"])
	if err != nil {
		return fmt.Errorf("apply payment: %w", err)
	}
	if !applied {
		// A concurrent duplicate delivery won the conditional transition.
		log.Printf("payment notify: order %s applied by concurrent delivery", outTradeNo)
	}
	return nil
}

// History lists the caller's orders, newest first.
func (p *Payments) History(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	return p.store.ListPaymentsByUser(ctx, userID)
}
