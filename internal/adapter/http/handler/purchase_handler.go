package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/money"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PurchaseHandler handles purchases and order history.
type PurchaseHandler struct {
	purchases ports.PurchaseService
	currency  dto.Currency
}

func NewPurchaseHandler(purchases ports.PurchaseService, currency dto.Currency) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, currency: currency}
}

// Purchase handles POST /api/v1/purchases. A replayed attempt answers 200
// with the original order instead of 201.
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.Error(c, apperror.Validation("product_id must be a UUID"))
		return
	}

	result, err := h.purchases.Purchase(c.Request.Context(), ports.PurchaseRequest{
		ActorID:   middleware.ActorID(c),
		ProductID: productID,
		AttemptID: req.AttemptID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	body := dto.PurchaseResponse{
		Order:          result.Order,
		Balance:        result.Balance,
		BalanceDisplay: money.Format(result.Balance, h.currency.Symbol),
		Replayed:       result.Replayed,
	}
	if result.Replayed {
		response.OK(c, body)
		return
	}
	response.Created(c, body)
}

// ListOrders handles GET /api/v1/orders.
func (h *PurchaseHandler) ListOrders(c *gin.Context) {
	orders, err := h.purchases.ListOrders(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, orders, len(orders))
}
