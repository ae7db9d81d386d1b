package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/chain"
	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/projections"
)

// ChainHandler exposes the commit boundary and chain reads over HTTP
// (spec.md §4.5). Every commit here is the CommitSegment sync path: the
// caller's own identity manager has already built and signed the
// segment.
type ChainHandler struct {
	chain   *chain.Handle
	tracker *projections.Tracker
	logger  *zap.Logger
}

// NewChainHandler constructs a ChainHandler.
func NewChainHandler(h *chain.Handle, tracker *projections.Tracker, logger *zap.Logger) *ChainHandler {
	return &ChainHandler{chain: h, tracker: tracker, logger: logger}
}

// RegisterRoutes registers chain routes on the router group.
func (h *ChainHandler) RegisterRoutes(rg *gin.RouterGroup) {
	identities := rg.Group("/identities/:hid")
	{
		identities.GET("/head", h.Head)
		identities.GET("/segments", h.ListSegments)
		identities.POST("/segments", h.Commit)
	}
}

// Head godoc
// @Summary Get chain head
// @Tags chain
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=HeadResponse}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/head [get]
func (h *ChainHandler) Head(c *gin.Context) {
	hid := c.Param("hid")
	meta, err := h.chain.Head(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, toHeadResponse(meta))
}

// ListSegments godoc
// @Summary List every committed segment
// @Tags chain
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/segments [get]
func (h *ChainHandler) ListSegments(c *gin.Context) {
	hid := c.Param("hid")
	segs, err := h.chain.ListSegments(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, segs)
}

// Commit godoc
// @Summary Append a client-signed segment
// @Description Accepts a segment already built and signed by the
// @Description caller's own identity manager and runs it through the
// @Description nine-rule gate before an atomic append.
// @Tags chain
// @Accept json
// @Produce json
// @Param hid path string true "Identity HID"
// @Param request body CommitSegmentRequest true "Signed segment"
// @Success 200 {object} middleware.SuccessResponse{data=CommitSegmentResponse}
// @Failure 422 {object} middleware.ErrorResponse "Gate rejection"
// @Failure 503 {object} middleware.ErrorResponse "Read-only mode"
// @Router /api/v1/identities/{hid}/segments [post]
func (h *ChainHandler) Commit(c *gin.Context) {
	hid := c.Param("hid")
	var req CommitSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	if req.Segment.Author.HID != hid {
		middleware.RespondError(c, errors.InvalidInput("segment author does not match path hid"))
		return
	}

	result, err := h.chain.CommitSegment(c.Request.Context(), hid, req.Segment)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, CommitSegmentResponse{
		Head:  result.Head,
		Seq:   result.Seq,
		State: h.tracker.Get(hid),
	})
}
