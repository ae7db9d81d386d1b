package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/caps"
	"github.com/balancechain/core/internal/chain"
	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/projections"
	"github.com/balancechain/core/internal/store"
)

// AccountHandler exposes caps, TVM balance, the message timeline, and the
// score projection, the identity-scoped reads that sit alongside the
// chain itself (spec.md §4.6, §3 MessageView).
type AccountHandler struct {
	caps    *caps.Accountant
	chain   *chain.Handle
	store   *store.Store
	tracker *projections.Tracker
	logger  *zap.Logger
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accountant *caps.Accountant, chainHandle *chain.Handle, s *store.Store, tracker *projections.Tracker, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{caps: accountant, chain: chainHandle, store: s, tracker: tracker, logger: logger}
}

// RegisterRoutes registers account routes on the router group.
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	identities := rg.Group("/identities/:hid")
	{
		identities.GET("/caps", h.Caps)
		identities.GET("/balance", h.Balance)
		identities.GET("/messages", h.Messages)
		identities.GET("/score", h.Score)
	}
}

// Caps godoc
// @Summary Get caps state and available headroom
// @Tags account
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=CapsResponse}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/caps [get]
func (h *AccountHandler) Caps(c *gin.Context) {
	hid := c.Param("hid")
	ctx := c.Request.Context()
	state, err := h.caps.Current(ctx, hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	available, err := h.caps.Available(ctx, hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, CapsResponse{State: state, Available: available})
}

// Balance godoc
// @Summary Get unlocked TVM balance
// @Tags account
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/balance [get]
func (h *AccountHandler) Balance(c *gin.Context) {
	hid := c.Param("hid")
	unlocked, err := h.caps.UnlockedBalance(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	minted, err := h.store.GetBalance(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, errors.DBError(err))
		return
	}
	middleware.RespondOK(c, gin.H{"unlocked": unlocked, "minted": minted})
}

// Messages godoc
// @Summary List the message timeline for a peer/chat
// @Tags account
// @Produce json
// @Param hid path string true "Identity HID"
// @Param peer query string true "Chat/peer id"
// @Success 200 {object} middleware.SuccessResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/messages [get]
func (h *AccountHandler) Messages(c *gin.Context) {
	hid := c.Param("hid")
	peer := c.Query("peer")
	recs, err := h.store.ListMessagesByPeer(c.Request.Context(), hid, peer)
	if err != nil {
		middleware.RespondError(c, errors.DBError(err))
		return
	}
	middleware.RespondOK(c, recs)
}

// Score godoc
// @Summary Get the in-memory rich/business score projection
// @Description Replays the chain into the tracker on first access per
// @Description process, so a restart doesn't serve a zeroed projection.
// @Tags account
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=projections.ScoreState}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid}/score [get]
func (h *AccountHandler) Score(c *gin.Context) {
	hid := c.Param("hid")
	if err := h.chain.EnsureProjections(c.Request.Context(), hid); err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, h.tracker.Get(hid))
}
