package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductType classifies what a product's credentials grant.
type ProductType string

const (
	ProductTypeSubscription ProductType = "subscription"
)

// Product is a sellable catalog entry backed by a credential queue.
// StockCount always equals the length of the product's queue.
type Product struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	Type        ProductType `json:"type"`
	StockCount  int         `json:"stock_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewProduct builds a product with an empty queue.
func NewProduct(name, description string, price int64, now time.Time) *Product {
	return &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Price:       price,
		Type:        ProductTypeSubscription,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// InStock reports whether at least one credential is available.
func (p *Product) InStock() bool {
	return p.StockCount > 0
}

// Credential is one unit of inventory. It is issued to exactly one buyer.
type Credential struct {
	Account  string `json:"account"`
	Secret   string `json:"secret"`
	Validity string `json:"validity,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Validate checks the fields every credential must carry.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.Account) == "" || strings.TrimSpace(c.Secret) == "" {
		return ErrInvalidCredential
	}
	return nil
}

// CredentialQueue is the FIFO of unissued credentials for one product.
// PopFront hands out the oldest entry; PushFront returns an entry that
// could not be delivered to the head of the line.
type CredentialQueue struct {
	items []Credential
}

// NewCredentialQueue creates a queue holding items in order.
func NewCredentialQueue(items ...Credential) *CredentialQueue {
	q := &CredentialQueue{}
	q.Enqueue(items...)
	return q
}

// Enqueue appends credentials at the back.
func (q *CredentialQueue) Enqueue(items ...Credential) {
	q.items = append(q.items, items...)
}

// PopFront removes and returns the oldest credential.
func (q *CredentialQueue) PopFront() (Credential, bool) {
	if len(q.items) == 0 {
		return Credential{}, false
	}
	head := q.items[0]
	q.items[0] = Credential{}
	q.items = q.items[1:]
	return head, true
}

// PushFront puts c back at the head of the queue.
func (q *CredentialQueue) PushFront(c Credential) {
	q.items = append([]Credential{c}, q.items...)
}

// Len returns the number of unissued credentials.
func (q *CredentialQueue) Len() int {
	return len(q.items)
}

// Snapshot returns a copy of the queued credentials, oldest first.
func (q *CredentialQueue) Snapshot() []Credential {
	out := make([]Credential, len(q.items))
	copy(out, q.items)
	return out
}
