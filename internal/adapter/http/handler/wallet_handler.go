package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	ledger   ports.LedgerService
	currency dto.Currency
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService, currency dto.Currency) *WalletHandler {
	return &WalletHandler{ledger: ledger, currency: currency}
}

// GetWallet handles GET /api/v1/wallet. First use creates an empty wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	w, err := h.ledger.GetOrCreate(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(w, h.currency))
}
