package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/integrity"
)

// IntegrityHandler exposes the full-scan auditor over HTTP (spec.md
// §4.8).
type IntegrityHandler struct {
	scanner *integrity.Scanner
	logger  *zap.Logger
}

// NewIntegrityHandler constructs an IntegrityHandler.
func NewIntegrityHandler(s *integrity.Scanner, logger *zap.Logger) *IntegrityHandler {
	return &IntegrityHandler{scanner: s, logger: logger}
}

// RegisterRoutes registers integrity routes on the router group.
func (h *IntegrityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/identities/:hid/integrity/scan", h.Scan)
}

// Scan godoc
// @Summary Run a full-chain integrity scan
// @Description Walks the identity's chain from seq 1, verifying hash
// @Description chaining, sequencing, and optionally signatures. A major
// @Description or critical result latches the chain read-only.
// @Tags integrity
// @Accept json
// @Produce json
// @Param hid path string true "Identity HID"
// @Param request body ScanRequest false "Scan options"
// @Success 200 {object} middleware.SuccessResponse{data=integrity.ScanResult}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/integrity/scan [post]
func (h *IntegrityHandler) Scan(c *gin.Context) {
	hid := c.Param("hid")
	var req ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.RespondError(c, errors.InvalidInput(err.Error()))
			return
		}
	}

	result, err := h.scanner.Scan(c.Request.Context(), hid, req.VerifySignatures)
	if err != nil {
		middleware.RespondError(c, errors.Integrity("full scan failed", err))
		return
	}
	middleware.RespondOK(c, result)
}
