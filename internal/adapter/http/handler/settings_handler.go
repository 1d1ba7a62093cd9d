package handler

import (
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettingsHandler serves editable texts to the gateway.
type SettingsHandler struct {
	settings ports.SettingsService
}

func NewSettingsHandler(settings ports.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetText handles GET /api/v1/settings/:key.
func (h *SettingsHandler) GetText(c *gin.Context) {
	s, err := h.settings.GetText(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}
