package models

import (
	"time"

	"github.com/google/uuid"
)

// User holds the identity-provider-backed account and its credit balance.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentStatus is the lifecycle of a gateway order.
// Transitions are pending -> completed or pending -> failed, nothing else.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one gateway order, keyed by the out_trade_no assigned at
// order creation. Credits holds the units granted when the order completes;
// it is the only source of truth for how much to credit.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	Amount        int64         `json:"amount"`
	Credits       int64         `json:"credits"`
	OutTradeNo    string        `json:"out_trade_no"`
	TradeNo       string        `json:"trade_no,omitempty"`
	Status        PaymentStatus `json:"status"`
	PaymentMethod string        `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Project is a user's described software project plus its generated documents.
type Project struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Requirements        string    `json:"requirements,omitempty"`
	UserJourneyMap      string    `json:"user_journey_map,omitempty"`
	ProductRequirements string    `json:"product_requirements,omitempty"`
	FrontendDesign      string    `json:"frontend_design,omitempty"`
	BackendDesign       string    `json:"backend_design,omitempty"`
	DatabaseDesign      string    `json:"database_design,omitempty"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DocumentSet is the output of one full generation run.
type DocumentSet struct {
	UserJourneyMap      string `json:"user_journey_map"`
	ProductRequirements string `json:"product_requirements"`
	FrontendDesign      string `json:"frontend_design"`
	BackendDesign       string `json:"backend_design"`
	DatabaseDesign      string `json:"database_design"`
}

// CreditEntry is one append-only row in the usage ledger. Delta is negative
// for consumption and positive for purchases.
type CreditEntry struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Delta       int64     `json:"delta"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	EntryKindGeneration = "document_generation"
	EntryKindPurchase   = "purchase"
)

// Plan is a purchasable credits bundle. Price is in yuan.
type Plan struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   int64  `json:"price"`
	Credits int64  `json:"credits"`
}

// Plans is the fixed pricing table shown on the pricing page.
var Plans = map[string]Plan{
	"basic": {ID: "basic", Name: "基础版", Price: 20, Credits: 10},
	"pro":   {ID: "pro", Name: "专业版", Price: 40, Credits: 30},
}

// CreateProjectRequest is the payload for POST /projects.
type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateProjectRequest is the payload for PUT /projects/{id}.
type UpdateProjectRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
}

// QuestionsRequest asks for clarifying questions about a description.
type QuestionsRequest struct {
	Description string `json:"description"`
}

// DocumentsRequest triggers a full document-generation run for a project.
type DocumentsRequest struct {
	ProjectID    uuid.UUID `json:"project_id"`
	Description  string    `json:"description"`
	Requirements string    `json:"requirements"`
}

// CreateOrderRequest starts a gateway order for a pricing plan.
type CreateOrderRequest struct {
	PlanID string `json:"plan_id"`
}

// CreateOrderResponse carries the signed gateway redirect URL.
type CreateOrderResponse struct {
	PaymentURL string `json:"payment_url"`
	OutTradeNo string `json:"out_trade_no"`
}

// CreditsResponse is the balance plus recent usage entries.
type CreditsResponse struct {
	Credits int64         `json:"credits"`
	Usage   []CreditEntry `json:"usage"`
}
