package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/google/uuid"
)

// WalletRepository persists wallets. Credit and Debit are linearizable per
// actor: the balance check and the write happen under one lock.
type WalletRepository interface {
	Get(ctx context.Context, actorID string) (*domain.Wallet, error) // nil, nil when absent
	GetOrCreate(ctx context.Context, actorID string) (*domain.Wallet, error)
	// Credit adds amount, creating the wallet if needed, and returns the new balance.
	Credit(ctx context.Context, actorID string, amount int64) (int64, error)
	// Debit subtracts amount. Returns domain.ErrInsufficientFunds when the
	// balance is lower than amount and domain.ErrWalletNotFound when absent.
	Debit(ctx context.Context, actorID string, amount int64) (int64, error)
	SetAdmin(ctx context.Context, actorID string, isAdmin bool) (*domain.Wallet, error)
	List(ctx context.Context) ([]domain.Wallet, error)
	ListAdminIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// ProductRepository persists products and their credential queues.
// stock_count and the queue are always written in the same atomic unit.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) // nil, nil when absent
	List(ctx context.Context) ([]domain.Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price int64) (*domain.Product, error)
	// AppendCredentials enqueues creds and returns the new stock count.
	AppendCredentials(ctx context.Context, id uuid.UUID, creds []domain.Credential) (int, error)
	// PopCredential removes the oldest credential. Returns
	// domain.ErrProductNotFound or domain.ErrOutOfStock.
	PopCredential(ctx context.Context, id uuid.UUID) (domain.Credential, error)
	// RestoreCredential puts cred back at the head of the queue.
	RestoreCredential(ctx context.Context, id uuid.UUID, cred domain.Credential) error
}

// OrderRepository persists purchase receipts.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	// Get returns nil, nil when no order has the id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]domain.Order, error)
	ListAll(ctx context.Context, limit int) ([]domain.Order, error)
	Totals(ctx context.Context) (*OrderTotals, error)
}

// OrderTotals aggregates the order table for the admin overview.
type OrderTotals struct {
	Count   int64
	Revenue int64 // Sum of order prices in minor units
}

// PaymentRepository persists payment requests.
type PaymentRepository interface {
	Create(ctx context.Context, req *domain.PaymentRequest) error
	Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) // nil, nil when absent
	ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentRequest, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]domain.PaymentRequest, error)
	// ApplyDecision moves a pending request to its terminal status. For an
	// approval the wallet credit is committed in the same atomic unit.
	// Returns domain.ErrPaymentNotFound or domain.ErrAlreadyProcessed.
	ApplyDecision(ctx context.Context, params PaymentDecisionParams) (*PaymentDecisionResult, error)
}

// PaymentDecisionParams identifies one decision on one request.
type PaymentDecisionParams struct {
	RequestID uuid.UUID
	Decision  domain.PaymentDecision
	AdminID   string
	DecidedAt time.Time
}

// PaymentDecisionResult is the state after a decision was applied.
type PaymentDecisionResult struct {
	Request    *domain.PaymentRequest
	NewBalance int64 // Wallet balance after an approval; zero for rejections
}

// SettingRepository persists editable texts.
type SettingRepository interface {
	Get(ctx context.Context, key string) (*domain.Setting, error) // nil, nil when absent
	Set(ctx context.Context, key, value string) (*domain.Setting, error)
}
