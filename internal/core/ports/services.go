package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/google/uuid"
)

// CredentialSealer encrypts credential payloads at rest.
type CredentialSealer interface {
	Seal(cred domain.Credential) (string, error)
	Open(sealed string) (domain.Credential, error)
}

// SignatureService handles HMAC-SHA256 signing of gateway traffic.
type SignatureService interface {
	Sign(payload string) string
	Verify(payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce, actorID, body string) string
}

// ActionTokenService issues and validates one-tap payment decision tokens.
type ActionTokenService interface {
	Issue(requestID uuid.UUID, decision domain.PaymentDecision) (string, time.Time, error)
	Validate(token string) (*ActionClaims, error)
}

// ActionClaims holds the parsed decision token.
type ActionClaims struct {
	RequestID uuid.UUID
	Decision  domain.PaymentDecision
}

// Notifier delivers a structured message to one actor through the gateway.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// PrivilegeChecker answers whether an actor may act as administrator.
type PrivilegeChecker interface {
	IsPrivileged(ctx context.Context, actorID string) (bool, error)
	PrivilegedActors(ctx context.Context) ([]string, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService owns wallet balances.
type LedgerService interface {
	GetOrCreate(ctx context.Context, actorID string) (*domain.Wallet, error)
	Balance(ctx context.Context, actorID string) (int64, error)
	Credit(ctx context.Context, actorID string, amount int64) (int64, error)
	Debit(ctx context.Context, actorID string, amount int64) (int64, error)
}

// StockService owns product credential queues.
type StockService interface {
	AddCredentials(ctx context.Context, productID uuid.UUID, creds []domain.Credential) (int, error)
	WithdrawOne(ctx context.Context, productID uuid.UUID) (domain.Credential, error)
	Restore(ctx context.Context, productID uuid.UUID, cred domain.Credential) error
}

// CatalogService manages product definitions.
type CatalogService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error)
	UpdatePrice(ctx context.Context, productID uuid.UUID, price int64) (*domain.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CreateProductRequest holds validated input for a new product.
type CreateProductRequest struct {
	Name        string
	Description string
	Price       int64
}

// PurchaseService runs the purchase saga.
type PurchaseService interface {
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	ListOrders(ctx context.Context, actorID string) ([]domain.Order, error)
}

// PurchaseRequest identifies one purchase attempt.
type PurchaseRequest struct {
	ActorID   string
	ProductID uuid.UUID
	AttemptID string // Optional; replays of the same id never charge twice
}

// PurchaseResult is the committed outcome of a purchase.
type PurchaseResult struct {
	Order    *domain.Order
	Balance  int64
	Replayed bool
}

// PaymentService runs the payment approval saga.
type PaymentService interface {
	Submit(ctx context.Context, req SubmitPaymentRequest) (*domain.PaymentRequest, error)
	Decide(ctx context.Context, req DecidePaymentRequest) (*domain.PaymentRequest, error)
	DecideWithToken(ctx context.Context, token string, adminID string) (*domain.PaymentRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	ListPending(ctx context.Context) ([]domain.PaymentRequest, error)
	ListByActor(ctx context.Context, actorID string) ([]domain.PaymentRequest, error)
}

// SubmitPaymentRequest holds a user's payment claim.
type SubmitPaymentRequest struct {
	ActorID        string
	Amount         int64
	TransactionRef string
	EvidenceID     *string
	Notes          *string
}

// DecidePaymentRequest holds an administrator's decision.
type DecidePaymentRequest struct {
	RequestID uuid.UUID
	Decision  domain.PaymentDecision
	AdminID   string
}

// AdminService exposes operator tooling.
type AdminService interface {
	Overview(ctx context.Context) (*Overview, error)
	ListUsers(ctx context.Context) ([]domain.Wallet, error)
	SetAdmin(ctx context.Context, actorID string, isAdmin bool) (*domain.Wallet, error)
	AddBalance(ctx context.Context, actorID string, amount int64) (int64, error)
	Broadcast(ctx context.Context, message string) (*BroadcastResult, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// Overview aggregates shop-wide figures.
type Overview struct {
	Users           int64 `json:"users"`
	Orders          int64 `json:"orders"`
	Revenue         int64 `json:"revenue"`
	PendingPayments int   `json:"pending_payments"`
}

// BroadcastResult counts a broadcast's deliveries.
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// SettingsService manages editable texts.
type SettingsService interface {
	GetText(ctx context.Context, key string) (*domain.Setting, error)
	SetText(ctx context.Context, key, value string) (*domain.Setting, error)
}

// ConversationService drives per-actor structured-input flows.
type ConversationService interface {
	Start(ctx context.Context, actorID string, req StartFlowRequest) (*FlowOutcome, error)
	Advance(ctx context.Context, actorID string, input domain.ConversationInput) (*FlowOutcome, error)
	Cancel(ctx context.Context, actorID string) (*FlowOutcome, error)
	Current(ctx context.Context, actorID string) (*domain.ConversationState, error)
}

// StartFlowRequest selects the flow to begin.
type StartFlowRequest struct {
	Kind       domain.FlowKind
	SettingKey string // edit-text only
}

// FlowOutcomeKind classifies the result of one conversational input.
type FlowOutcomeKind string

const (
	OutcomePrompt    FlowOutcomeKind = "prompt"
	OutcomeReprompt  FlowOutcomeKind = "reprompt"
	OutcomeCommitted FlowOutcomeKind = "committed"
	OutcomeFailed    FlowOutcomeKind = "failed"
	OutcomeCancelled FlowOutcomeKind = "cancelled"
	OutcomeIdle      FlowOutcomeKind = "idle"
)

// FlowOutcome tells the gateway what to render next.
type FlowOutcome struct {
	Kind         FlowOutcomeKind `json:"kind"`
	Flow         domain.FlowKind `json:"flow,omitempty"`
	Step         domain.FlowStep `json:"step,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Result       interface{}     `json:"result,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
