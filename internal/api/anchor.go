package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/store"
)

// AnchorHandler exposes the EVM anchor worker's last-known position for
// an identity. Anchoring is advisory (internal/anchor's package doc);
// this is a status read, never a trigger.
type AnchorHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewAnchorHandler constructs an AnchorHandler.
func NewAnchorHandler(s *store.Store, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{store: s, logger: logger}
}

// RegisterRoutes registers anchor routes on the router group.
func (h *AnchorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/identities/:hid/anchor", h.Status)
}

// Status godoc
// @Summary Get the last anchor transaction recorded for an identity
// @Tags anchor
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=AnchorStatusResponse}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/anchor [get]
func (h *AnchorHandler) Status(c *gin.Context) {
	hid := c.Param("hid")
	row, err := h.store.GetAnchor(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, errors.DBError(err))
		return
	}
	middleware.RespondOK(c, toAnchorStatusResponse(hid, row))
}
