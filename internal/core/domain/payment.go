package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment request.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// PaymentDecision is an administrator's verdict on a pending request.
type PaymentDecision string

const (
	DecisionApprove PaymentDecision = "approve"
	DecisionReject  PaymentDecision = "reject"
)

// Valid reports whether d is a known decision.
func (d PaymentDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// TargetStatus maps a decision to the status it produces.
func (d PaymentDecision) TargetStatus() PaymentStatus {
	if d == DecisionApprove {
		return PaymentStatusApproved
	}
	return PaymentStatusRejected
}

// PaymentRequest is a user's claim that funds were sent out of band.
type PaymentRequest struct {
	ID             uuid.UUID     `json:"id"`
	ActorID        string        `json:"actor_id"`
	Amount         int64         `json:"amount"`
	TransactionRef string        `json:"transaction_ref"`
	EvidenceID     *string       `json:"evidence_id,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	Status         PaymentStatus `json:"status"`
	VerifiedBy     *string       `json:"verified_by,omitempty"`
	VerifiedAt     *time.Time    `json:"verified_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewPaymentRequest validates the claim and returns it in pending state.
func NewPaymentRequest(actorID string, amount int64, transactionRef string, evidenceID *string, now time.Time) (*PaymentRequest, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return nil, ErrEmptyTransactionID
	}
	if evidenceID != nil && strings.TrimSpace(*evidenceID) == "" {
		evidenceID = nil
	}
	return &PaymentRequest{
		ID:             uuid.New(),
		ActorID:        actorID,
		Amount:         amount,
		TransactionRef: ref,
		EvidenceID:     evidenceID,
		Status:         PaymentStatusPending,
		CreatedAt:      now,
	}, nil
}

// IsTerminal returns true once a decision has been recorded.
func (p *PaymentRequest) IsTerminal() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusRejected
}

// Decide applies a decision in place. Only pending requests accept one.
func (p *PaymentRequest) Decide(d PaymentDecision, adminID string, at time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrAlreadyProcessed
	}
	if !d.Valid() {
		return ErrInvalidTransition
	}
	p.Status = d.TargetStatus()
	p.VerifiedBy = &adminID
	p.VerifiedAt = &at
	return nil
}
