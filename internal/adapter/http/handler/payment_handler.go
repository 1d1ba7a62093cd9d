package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment request endpoints. Submission goes through
// the submit-payment conversation flow.
type PaymentHandler struct {
	payments ports.PaymentService
	currency dto.Currency
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments ports.PaymentService, currency dto.Currency) *PaymentHandler {
	return &PaymentHandler{payments: payments, currency: currency}
}

func (h *PaymentHandler) list(c *gin.Context, requests []domain.PaymentRequest) {
	items := make([]dto.PaymentResponse, 0, len(requests))
	for i := range requests {
		items = append(items, dto.NewPaymentResponse(&requests[i], h.currency))
	}
	response.List(c, items, len(items))
}

// ListMine handles GET /api/v1/payments.
func (h *PaymentHandler) ListMine(c *gin.Context) {
	requests, err := h.payments.ListByActor(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.list(c, requests)
}

// DecideWithToken handles POST /api/v1/payments/decisions.
func (h *PaymentHandler) DecideWithToken(c *gin.Context) {
	var req dto.ActionDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	p, err := h.payments.DecideWithToken(c.Request.Context(), req.Token, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentResponse(p, h.currency))
}

// ListByStatus handles GET /api/v1/admin/payments?status=pending.
func (h *PaymentHandler) ListByStatus(c *gin.Context) {
	status := c.DefaultQuery("status", string(domain.PaymentStatusPending))
	if status != string(domain.PaymentStatusPending) {
		response.Error(c, apperror.Validation("only status=pending is supported"))
		return
	}
	requests, err := h.payments.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.list(c, requests)
}

// Get handles GET /api/v1/admin/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentResponse(p, h.currency))
}

// Approve handles POST /api/v1/admin/payments/:id/approve.
func (h *PaymentHandler) Approve(c *gin.Context) {
	h.decide(c, domain.DecisionApprove)
}

// Reject handles POST /api/v1/admin/payments/:id/reject.
func (h *PaymentHandler) Reject(c *gin.Context) {
	h.decide(c, domain.DecisionReject)
}

func (h *PaymentHandler) decide(c *gin.Context, decision domain.PaymentDecision) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	p, err := h.payments.Decide(c.Request.Context(), ports.DecidePaymentRequest{
		RequestID: id,
		Decision:  decision,
		AdminID:   middleware.ActorID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentResponse(p, h.currency))
}

func paymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payment id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
