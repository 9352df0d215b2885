package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
)

var errTransient = errors.New("connection reset")

// fakeStore is an in-memory stand-in for the postgres store. The mutex-guarded
// conditional updates mirror the atomic statements of the real thing.
type fakeStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	entries  []models.CreditEntry
	payments map[string]*models.Payment
	projects map[uuid.UUID]*models.Project

	// countdown of injected transient failures
	debitFailures  int
	creditFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[uuid.UUID]int64),
		payments: make(map[string]*models.Payment),
		projects: make(map[uuid.UUID]*models.Project),
	}
}

// --- LedgerStore ---

func (f *fakeStore) GetCredits(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeStore) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitFailures > 0 {
		f.debitFailures--
		return errTransient
	}
	if f.balances[userID] < amount {
		return store.ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	f.entries = append(f.entries, models.CreditEntry{
		UserID: userID, Delta: -amount, Kind: models.EntryKindGeneration, Description: description,
	})
	return nil
}

func (f *fakeStore) CreditCredits(ctx context.Context, userID uuid.UUID, amount int64, kind, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditFailures > 0 {
		f.creditFailures--
		return errTransient
	}
	f.balances[userID] += amount
	f.entries = append(f.entries, models.CreditEntry{
		UserID: userID, Delta: amount, Kind: kind, Description: description,
	})
	return nil
}

func (f *fakeStore) ListCreditEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

// --- PaymentStore ---

func (f *fakeStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.payments[p.OutTradeNo]; exists {
		return errors.New("duplicate out_trade_no")
	}
	cp := *p
	f.payments[p.OutTradeNo] = &cp
	return nil
}

func (f *fakeStore) GetPaymentByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[outTradeNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CompletePaymentAndCredit(ctx context.Context, outTradeNo, tradeNo string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[outTradeNo]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentCompleted
	p.TradeNo = tradeNo
	f.balances[p.UserID] += p.Credits
	f.entries = append(f.entries, models.CreditEntry{
		UserID: p.UserID, Delta: p.Credits, Kind: models.EntryKindPurchase, Description: "order " + outTradeNo,
	})
	return true, nil
}

func (f *fakeStore) MarkPaymentFailed(ctx context.Context, outTradeNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[outTradeNo]; ok && p.Status == models.PaymentPending {
		p.Status = models.PaymentFailed
	}
	return nil
}

// --- ProjectStore ---

func (f *fakeStore) CreateProject(ctx context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Project
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) SaveDocuments(ctx context.Context, id uuid.UUID, requirements string, docs *models.DocumentSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Requirements = requirements
	p.UserJourneyMap = docs.UserJourneyMap
	p.ProductRequirements = docs.ProductRequirements
	p.FrontendDesign = docs.FrontendDesign
	p.BackendDesign = docs.BackendDesign
	p.DatabaseDesign = docs.DatabaseDesign
	p.Status = "completed"
	return nil
}

// fakeCompletions scripts the AI client for service tests.
type fakeCompletions struct {
	questions []string
	docs      *models.DocumentSet
	err       error

	// When set, GenerateDocuments blocks until the context expires.
	blockUntilCancel bool

	calls int
}

func (f *fakeCompletions) GenerateQuestions(ctx context.Context, description string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func (f *fakeCompletions) GenerateDocuments(ctx context.Context, description, requirements string) (*models.DocumentSet, error) {
	f.calls++
	if f.blockUntilCancel {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}
