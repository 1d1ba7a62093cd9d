package dto

import (
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/pkg/money"

	"github.com/google/uuid"
)

// PurchaseRequest is the request body for buying one unit of a product.
type PurchaseRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	AttemptID string `json:"attempt_id" binding:"omitempty,max=64,safe_id"`
}

// StartFlowRequest is the request body for beginning a conversation flow.
type StartFlowRequest struct {
	Kind       string `json:"kind" binding:"required,max=32"`
	SettingKey string `json:"setting_key" binding:"omitempty,max=64,safe_id"`
}

// FlowInputRequest carries one message typed or sent by the actor.
// Text is only trimmed: credentials and product copy are stored verbatim.
type FlowInputRequest struct {
	Kind         string `json:"kind" binding:"required,oneof=text attachment skip cancel"`
	Text         string `json:"text" binding:"max=16384" sanitize:"trim"`
	AttachmentID string `json:"attachment_id" binding:"omitempty,max=256" sanitize:"trim"`
}

// Input converts the request to the domain input.
func (r FlowInputRequest) Input() domain.ConversationInput {
	return domain.ConversationInput{
		Kind:         domain.InputKind(r.Kind),
		Text:         r.Text,
		AttachmentID: r.AttachmentID,
	}
}

// ActionDecisionRequest redeems a signed approve/reject token.
type ActionDecisionRequest struct {
	Token string `json:"token" binding:"required,max=2048"`
}

// SetAdminRequest toggles the admin flag of a wallet.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

// WalletResponse is the response for the wallet query.
type WalletResponse struct {
	ActorID        string `json:"actor_id"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	Currency       string `json:"currency"`
	IsAdmin        bool   `json:"is_admin"`
}

func NewWalletResponse(w *domain.Wallet, cur Currency) WalletResponse {
	return WalletResponse{
		ActorID:        w.ActorID,
		Balance:        w.Balance,
		BalanceDisplay: money.Format(w.Balance, cur.Symbol),
		Currency:       cur.Code,
		IsAdmin:        w.IsAdmin,
	}
}

// ProductResponse is a catalog entry as shown to buyers.
type ProductResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Price        int64     `json:"price"`
	PriceDisplay string    `json:"price_display"`
	StockCount   int       `json:"stock_count"`
	InStock      bool      `json:"in_stock"`
}

func NewProductResponse(p *domain.Product, cur Currency) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Type:         string(p.Type),
		Price:        p.Price,
		PriceDisplay: money.Format(p.Price, cur.Symbol),
		StockCount:   p.StockCount,
		InStock:      p.InStock(),
	}
}

// PurchaseResponse is the committed outcome of a purchase.
type PurchaseResponse struct {
	Order          *domain.Order `json:"order"`
	Balance        int64         `json:"balance"`
	BalanceDisplay string        `json:"balance_display"`
	Replayed       bool          `json:"replayed"`
}

// PaymentResponse is a payment request with a display amount.
type PaymentResponse struct {
	*domain.PaymentRequest
	AmountDisplay string `json:"amount_display"`
}

func NewPaymentResponse(p *domain.PaymentRequest, cur Currency) PaymentResponse {
	return PaymentResponse{PaymentRequest: p, AmountDisplay: money.Format(p.Amount, cur.Symbol)}
}

// OverviewResponse adds display values to the admin overview.
type OverviewResponse struct {
	Users           int64  `json:"users"`
	Orders          int64  `json:"orders"`
	Revenue         int64  `json:"revenue"`
	RevenueDisplay  string `json:"revenue_display"`
	PendingPayments int    `json:"pending_payments"`
}

// ConversationResponse is the active flow of an actor.
type ConversationResponse struct {
	Flow      domain.FlowKind `json:"flow"`
	Step      domain.FlowStep `json:"step"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Currency is the display currency used in responses.
type Currency struct {
	Code   string
	Symbol string
}
