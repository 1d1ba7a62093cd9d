package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/google/uuid"
)

type productEntry struct {
	mu      sync.Mutex
	product domain.Product
	queue   *domain.CredentialQueue
}

func (e *productEntry) snapshot() *domain.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.product
	p.StockCount = e.queue.Len()
	return &p
}

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*productEntry
}

// NewProductRepo creates an empty ProductRepo.
func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[uuid.UUID]*productEntry)}
}

func (r *ProductRepo) entry(id uuid.UUID) *productEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.products[id]
}

// Create stores a product with an empty credential queue.
func (r *ProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	stored.StockCount = 0
	r.products[p.ID] = &productEntry{product: stored, queue: domain.NewCredentialQueue()}
	return nil
}

// Get returns the product or nil when unknown.
func (r *ProductRepo) Get(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	e := r.entry(id)
	if e == nil {
		return nil, nil
	}
	return e.snapshot(), nil
}

// List returns all products, oldest first.
func (r *ProductRepo) List(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	entries := make([]*productEntry, 0, len(r.products))
	for _, e := range r.products {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Product, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdatePrice changes the price of an existing product.
func (r *ProductRepo) UpdatePrice(_ context.Context, id uuid.UUID, price int64) (*domain.Product, error) {
	e := r.entry(id)
	if e == nil {
		return nil, domain.ErrProductNotFound
	}
	e.mu.Lock()
	e.product.Price = price
	e.product.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
	return e.snapshot(), nil
}

// AppendCredentials enqueues creds and returns the new stock count.
func (r *ProductRepo) AppendCredentials(_ context.Context, id uuid.UUID, creds []domain.Credential) (int, error) {
	e := r.entry(id)
	if e == nil {
		return 0, domain.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Enqueue(creds...)
	e.product.StockCount = e.queue.Len()
	e.product.UpdatedAt = time.Now().UTC()
	return e.product.StockCount, nil
}

// PopCredential removes and returns the oldest credential.
func (r *ProductRepo) PopCredential(_ context.Context, id uuid.UUID) (domain.Credential, error) {
	e := r.entry(id)
	if e == nil {
		return domain.Credential{}, domain.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cred, ok := e.queue.PopFront()
	if !ok {
		return domain.Credential{}, domain.ErrOutOfStock
	}
	e.product.StockCount = e.queue.Len()
	return cred, nil
}

// RestoreCredential puts cred back at the head of the queue.
func (r *ProductRepo) RestoreCredential(_ context.Context, id uuid.UUID, cred domain.Credential) error {
	e := r.entry(id)
	if e == nil {
		return domain.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.PushFront(cred)
	e.product.StockCount = e.queue.Len()
	return nil
}

