package handler

import (
	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConversationHandler drives the actor's structured-input flow.
type ConversationHandler struct {
	flows ports.ConversationService
}

func NewConversationHandler(flows ports.ConversationService) *ConversationHandler {
	return &ConversationHandler{flows: flows}
}

// Current handles GET /api/v1/conversation.
func (h *ConversationHandler) Current(c *gin.Context) {
	state, err := h.flows.Current(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ConversationResponse{
		Flow:      state.Flow,
		Step:      state.Step,
		StartedAt: state.StartedAt,
		UpdatedAt: state.UpdatedAt,
	})
}

// Start handles POST /api/v1/conversation/flows. Any active flow is replaced.
func (h *ConversationHandler) Start(c *gin.Context) {
	var req dto.StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	outcome, err := h.flows.Start(c.Request.Context(), middleware.ActorID(c), ports.StartFlowRequest{
		Kind:       domain.FlowKind(req.Kind),
		SettingKey: req.SettingKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Input handles POST /api/v1/conversation/inputs.
func (h *ConversationHandler) Input(c *gin.Context) {
	var req dto.FlowInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	outcome, err := h.flows.Advance(c.Request.Context(), middleware.ActorID(c), req.Input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Cancel handles DELETE /api/v1/conversation.
func (h *ConversationHandler) Cancel(c *gin.Context) {
	outcome, err := h.flows.Cancel(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}
