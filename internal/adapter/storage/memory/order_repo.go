package memory

import (
	"context"
	"sync"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/google/uuid"
)

// OrderRepo implements ports.OrderRepository. Orders are append-only.
type OrderRepo struct {
	mu     sync.RWMutex
	orders []domain.Order
}

// NewOrderRepo creates an empty OrderRepo.
func NewOrderRepo() *OrderRepo {
	return &OrderRepo{}
}

func (r *OrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, *order)
	return nil
}

func (r *OrderRepo) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			o := r.orders[i]
			return &o, nil
		}
	}
	return nil, nil
}

// ListByActor returns the actor's orders, newest first.
func (r *OrderRepo) ListByActor(_ context.Context, actorID string, limit int) ([]domain.Order, error) {
	return r.newestFirst(limit, func(o *domain.Order) bool { return o.ActorID == actorID }), nil
}

// ListAll returns every order, newest first.
func (r *OrderRepo) ListAll(_ context.Context, limit int) ([]domain.Order, error) {
	return r.newestFirst(limit, func(*domain.Order) bool { return true }), nil
}

func (r *OrderRepo) newestFirst(limit int, keep func(*domain.Order) bool) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0)
	for i := len(r.orders) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if keep(&r.orders[i]) {
			out = append(out, r.orders[i])
		}
	}
	return out
}

func (r *OrderRepo) Totals(_ context.Context) (*ports.OrderTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := &ports.OrderTotals{Count: int64(len(r.orders))}
	for _, o := range r.orders {
		totals.Revenue += o.Price
	}
	return totals, nil
}
