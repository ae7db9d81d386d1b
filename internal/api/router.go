// Package api implements the HTTP boundary: gin handlers over the
// chain/capsules/caps/integrity/collaborators packages (spec.md §6
// External Interfaces), grounded on the teacher's Handler-wraps-Service,
// RegisterRoutes(rg) convention (internal/wallet/handler.go).
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/caps"
	"github.com/balancechain/core/internal/capsules"
	"github.com/balancechain/core/internal/chain"
	"github.com/balancechain/core/internal/collaborators"
	"github.com/balancechain/core/internal/common/handler"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/integrity"
	"github.com/balancechain/core/internal/projections"
	"github.com/balancechain/core/internal/store"
)

// Dependencies bundles every collaborator the API layer routes requests
// to. main.go constructs one of these at startup and passes it to
// RegisterRoutes.
type Dependencies struct {
	Store         *store.Store
	Chain         *chain.Handle
	Caps          *caps.Accountant
	Capsules      *capsules.Manager
	Integrity     *integrity.Scanner
	Tracker       *projections.Tracker
	AIWorker      collaborators.AIWorker
	Payments      collaborators.PaymentProvider
	Subscriptions *collaborators.Subscriptions
	Health        *handler.HealthHandler
	Logger        *zap.Logger
}

// RegisterRoutes mounts every handler group under /api/v1, plus the
// unversioned health check the teacher's router also exposes at the
// root.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", deps.Health.Health)
	router.GET("/ready", deps.Health.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequestID())

	NewIdentityHandler(deps.Store, deps.Logger).RegisterRoutes(v1)
	NewChainHandler(deps.Chain, deps.Tracker, deps.Logger).RegisterRoutes(v1)
	NewCapsuleHandler(deps.Capsules, deps.Logger).RegisterRoutes(v1)
	NewIntegrityHandler(deps.Integrity, deps.Logger).RegisterRoutes(v1)
	NewAccountHandler(deps.Caps, deps.Chain, deps.Store, deps.Tracker, deps.Logger).RegisterRoutes(v1)
	NewCollaboratorHandler(deps.AIWorker, deps.Payments, deps.Subscriptions, deps.Logger).RegisterRoutes(v1)
	NewAnchorHandler(deps.Store, deps.Logger).RegisterRoutes(v1)
}
