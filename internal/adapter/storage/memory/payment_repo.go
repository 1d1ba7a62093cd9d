package memory

import (
	"context"
	"sync"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
)

type paymentEntry struct {
	mu  sync.Mutex
	req domain.PaymentRequest
}

func (e *paymentEntry) snapshot() domain.PaymentRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req
}

// PaymentRepo implements ports.PaymentRepository. Approvals credit the
// shared WalletRepo while the request entry is locked, so a request is
// credited at most once.
type PaymentRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*paymentEntry
	order   []uuid.UUID
	wallets *WalletRepo
}

// NewPaymentRepo creates an empty PaymentRepo crediting wallets on approval.
func NewPaymentRepo(wallets *WalletRepo) *PaymentRepo {
	return &PaymentRepo{entries: make(map[uuid.UUID]*paymentEntry), wallets: wallets}
}

func (r *PaymentRepo) Create(_ context.Context, req *domain.PaymentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[req.ID] = &paymentEntry{req: *req}
	r.order = append(r.order, req.ID)
	return nil
}

func (r *PaymentRepo) Get(_ context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	if e == nil {
		return nil, nil
	}
	req := e.snapshot()
	return &req, nil
}

// ListByStatus returns requests with status, oldest first.
func (r *PaymentRepo) ListByStatus(_ context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PaymentRequest, 0)
	for _, id := range r.order {
		if limit > 0 && len(out) == limit {
			break
		}
		if req := r.entries[id].snapshot(); req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

// ListByActor returns the actor's requests, newest first.
func (r *PaymentRepo) ListByActor(_ context.Context, actorID string, limit int) ([]domain.PaymentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PaymentRequest, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if req := r.entries[r.order[i]].snapshot(); req.ActorID == actorID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *PaymentRepo) ApplyDecision(_ context.Context, params ports.PaymentDecisionParams) (*ports.PaymentDecisionResult, error) {
	r.mu.RLock()
	e := r.entries[params.RequestID]
	r.mu.RUnlock()
	if e == nil {
		return nil, domain.ErrPaymentNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	decided := e.req
	if err := decided.Decide(params.Decision, params.AdminID, params.DecidedAt); err != nil {
		return nil, err
	}

	result := &ports.PaymentDecisionResult{Request: &decided}
	if params.Decision == domain.DecisionApprove {
		result.NewBalance = r.wallets.entry(decided.ActorID, true).credit(decided.Amount)
	}
	e.req = decided

	out := decided
	result.Request = &out
	return result, nil
}
