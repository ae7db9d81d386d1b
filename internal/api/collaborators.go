package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/collaborators"
	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
)

// CollaboratorHandler exposes the AI worker turn and subscription
// activation boundaries over HTTP (spec.md §6). Both wrap an external
// service; failures never block the caller's own chain.
type CollaboratorHandler struct {
	worker        collaborators.AIWorker
	payments      collaborators.PaymentProvider
	subscriptions *collaborators.Subscriptions
	logger        *zap.Logger
}

// NewCollaboratorHandler constructs a CollaboratorHandler. payments may be
// nil if no provider is configured, in which case Activate fails with
// NotFound rather than panicking.
func NewCollaboratorHandler(worker collaborators.AIWorker, payments collaborators.PaymentProvider, subs *collaborators.Subscriptions, logger *zap.Logger) *CollaboratorHandler {
	return &CollaboratorHandler{worker: worker, payments: payments, subscriptions: subs, logger: logger}
}

// RegisterRoutes registers collaborator routes on the router group.
func (h *CollaboratorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	identities := rg.Group("/identities/:hid")
	{
		identities.POST("/turn", h.Turn)
		identities.POST("/subscriptions/activate", h.Activate)
		identities.GET("/subscriptions", h.Current)
	}
}

// Turn godoc
// @Summary Take one AI worker conversation turn
// @Description Calls the configured AI worker with a timeout and bounded
// @Description retries; on exhaustion a local fallback response is
// @Description substituted and this call still returns 200.
// @Tags collaborators
// @Accept json
// @Produce json
// @Param hid path string true "Identity HID"
// @Param request body TurnRequest true "Turn input"
// @Success 200 {object} middleware.SuccessResponse{data=collaborators.TurnResponse}
// @Failure 400 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/turn [post]
func (h *CollaboratorHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	resp := collaborators.TurnWithFallback(c.Request.Context(), h.worker, collaborators.TurnRequest{
		Text: req.Text, ChatID: req.ChatID, History: req.History, TurnIndex: req.TurnIndex,
	}, h.logger)
	middleware.RespondOK(c, resp)
}

// Activate godoc
// @Summary Activate a subscription plan through the payment provider
// @Tags collaborators
// @Accept json
// @Produce json
// @Param hid path string true "Identity HID"
// @Param request body ActivateSubscriptionRequest true "Plan selection"
// @Success 200 {object} middleware.SuccessResponse{data=SubscriptionResponse}
// @Failure 502 {object} middleware.ErrorResponse "Payment provider unreachable"
// @Router /api/v1/identities/{hid}/subscriptions/activate [post]
func (h *CollaboratorHandler) Activate(c *gin.Context) {
	hid := c.Param("hid")
	var req ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	if h.payments == nil {
		middleware.RespondError(c, errors.NotFound("payment provider"))
		return
	}
	row, err := h.subscriptions.Activate(c.Request.Context(), h.payments, hid, req.PlanID, req.AutoRenew)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, toSubscriptionResponse(row, collaborators.Active(row, time.Now())))
}

// Current godoc
// @Summary Get the current subscription state
// @Tags collaborators
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=SubscriptionResponse}
// @Router /api/v1/identities/{hid}/subscriptions [get]
func (h *CollaboratorHandler) Current(c *gin.Context) {
	hid := c.Param("hid")
	row, err := h.subscriptions.Current(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, toSubscriptionResponse(row, collaborators.Active(row, time.Now())))
}
