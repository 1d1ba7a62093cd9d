package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/money"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves operator tooling under /api/v1/admin.
type AdminHandler struct {
	admin    ports.AdminService
	currency dto.Currency
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin ports.AdminService, currency dto.Currency) *AdminHandler {
	return &AdminHandler{admin: admin, currency: currency}
}

// Overview handles GET /api/v1/admin/overview.
func (h *AdminHandler) Overview(c *gin.Context) {
	o, err := h.admin.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OverviewResponse{
		Users:           o.Users,
		Orders:          o.Orders,
		Revenue:         o.Revenue,
		RevenueDisplay:  money.Format(o.Revenue, h.currency.Symbol),
		PendingPayments: o.PendingPayments,
	})
}

// ListOrders handles GET /api/v1/admin/orders.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	orders, err := h.admin.ListOrders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, orders, len(orders))
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.WalletResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewWalletResponse(&users[i], h.currency))
	}
	response.List(c, items, len(items))
}

// SetAdmin handles PUT /api/v1/admin/users/:actor_id/admin.
func (h *AdminHandler) SetAdmin(c *gin.Context) {
	var req dto.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.admin.SetAdmin(c.Request.Context(), c.Param("actor_id"), *req.IsAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(w, h.currency))
}
