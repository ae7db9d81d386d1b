package api

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/identity"
	"github.com/balancechain/core/internal/store"
)

// IdentityHandler exposes identity creation and backup import over HTTP.
// It never retains a private key past the request that produced it
// (spec.md §5).
type IdentityHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewIdentityHandler constructs an IdentityHandler.
func NewIdentityHandler(s *store.Store, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{store: s, logger: logger}
}

// RegisterRoutes registers identity routes on the router group.
func (h *IdentityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	identities := rg.Group("/identities")
	{
		identities.POST("", h.Create)
		identities.POST("/import", h.Import)
		identities.GET("/:hid", h.Get)
	}
}

// Create godoc
// @Summary Create an identity
// @Description Generates a fresh keypair and derives its HID. The private
// @Description key is returned once in the response body and is never
// @Description stored by the server.
// @Tags identities
// @Produce json
// @Success 201 {object} middleware.SuccessResponse{data=CreateIdentityResponse}
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/identities [post]
func (h *IdentityHandler) Create(c *gin.Context) {
	mgr, err := identity.Create(c.Request.Context(), h.store, "generated")
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	author := mgr.Author()
	middleware.RespondCreated(c, CreateIdentityResponse{
		HID:        author.HID,
		Algorithm:  author.Algorithm,
		PublicKey:  author.PublicKey,
		PrivateKey: mgr.PrivateKeyHex(),
	})
}

// Import godoc
// @Summary Recover a private key from an encrypted backup
// @Description Decrypts a backup blob produced by an identity manager's
// @Description Export call. Restoring chain state from it is a separate,
// @Description caller-driven decision gated by integrity's backup
// @Description eligibility rules.
// @Tags identities
// @Accept json
// @Produce json
// @Param request body ImportIdentityRequest true "Password and base64 backup blob"
// @Success 200 {object} middleware.SuccessResponse{data=ImportIdentityResponse}
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /api/v1/identities/import [post]
func (h *IdentityHandler) Import(c *gin.Context) {
	var req ImportIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	blob, err := base64.StdEncoding.DecodeString(req.Backup)
	if err != nil {
		middleware.RespondError(c, errors.InvalidInput("backup is not valid base64"))
		return
	}
	priv, hid, err := identity.Import(req.Password, blob)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, ImportIdentityResponse{HID: hid, PrivateKey: identity.PrivateKeyHexOf(priv)})
}

// Get godoc
// @Summary Get identity by HID
// @Tags identities
// @Produce json
// @Param hid path string true "Identity HID"
// @Success 200 {object} middleware.SuccessResponse{data=IdentityResponse}
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/identities/{hid} [get]
func (h *IdentityHandler) Get(c *gin.Context) {
	hid := c.Param("hid")
	rec, err := h.store.GetIdentity(c.Request.Context(), hid)
	if err != nil {
		middleware.RespondError(c, errors.DBError(err))
		return
	}
	if rec == nil {
		middleware.RespondError(c, errors.NotFound("identity"))
		return
	}
	middleware.RespondOK(c, toIdentityResponse(rec))
}
