package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/capsules"
	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
)

// CapsuleHandler exposes capsule creation and minting over HTTP (spec.md
// §4.7). Minting follows the same client-signs, server-validates split as
// ChainHandler.Commit.
type CapsuleHandler struct {
	capsules *capsules.Manager
	logger   *zap.Logger
}

// NewCapsuleHandler constructs a CapsuleHandler.
func NewCapsuleHandler(m *capsules.Manager, logger *zap.Logger) *CapsuleHandler {
	return &CapsuleHandler{capsules: m, logger: logger}
}

// RegisterRoutes registers capsule routes on the router group.
func (h *CapsuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/identities/:hid/capsules", h.Create)
	rg.POST("/capsules/:id/mint", h.Mint)
}

// Create godoc
// @Summary Create a capsule from a scored session
// @Tags capsules
// @Accept json
// @Produce json
// @Param hid path string true "Owner HID"
// @Param request body CreateCapsuleRequest true "Session messages and analysis"
// @Success 201 {object} middleware.SuccessResponse{data=CapsuleResponse}
// @Failure 400 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/capsules [post]
func (h *CapsuleHandler) Create(c *gin.Context) {
	hid := c.Param("hid")
	var req CreateCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}

	messages := make([]capsules.MessageInput, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = capsules.MessageInput{Text: m}
	}

	row, err := h.capsules.Create(c.Request.Context(), capsules.CreateInput{
		SessionID: req.SessionID,
		OwnerHID:  hid,
		Messages:  messages,
		Analysis:  req.Analysis,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondCreated(c, toCapsuleResponse(row))
}

// Mint godoc
// @Summary Mint a pending, still-eligible capsule
// @Description Accepts a capsule.mint segment the owning identity already
// @Description built and signed, re-checks score eligibility, commits it,
// @Description and credits TVM.
// @Tags capsules
// @Accept json
// @Produce json
// @Param id path string true "Capsule ID"
// @Param request body MintCapsuleRequest true "Signed capsule.mint segment"
// @Success 200 {object} middleware.SuccessResponse{data=CapsuleResponse}
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse "Capsule not pending"
// @Failure 422 {object} middleware.ErrorResponse "No longer eligible"
// @Router /api/v1/capsules/{id}/mint [post]
func (h *CapsuleHandler) Mint(c *gin.Context) {
	id := c.Param("id")
	var req MintCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	row, err := h.capsules.MintSegment(c.Request.Context(), id, req.Segment)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, toCapsuleResponse(row))
}
