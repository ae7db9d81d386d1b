package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/balancechain/core/docs"
	"github.com/balancechain/core/internal/anchor"
	"github.com/balancechain/core/internal/anchor/minterauth"
	"github.com/balancechain/core/internal/api"
	"github.com/balancechain/core/internal/caps"
	"github.com/balancechain/core/internal/capsules"
	"github.com/balancechain/core/internal/chain"
	"github.com/balancechain/core/internal/collaborators"
	"github.com/balancechain/core/internal/common/handler"
	"github.com/balancechain/core/internal/common/middleware"
	"github.com/balancechain/core/internal/config"
	"github.com/balancechain/core/internal/integrity"
	"github.com/balancechain/core/internal/projections"
	"github.com/balancechain/core/internal/store"
	"github.com/balancechain/core/internal/validator"
	pkgdb "github.com/balancechain/core/pkg/db"
	"github.com/balancechain/core/pkg/nonce"
	pkgredis "github.com/balancechain/core/pkg/redis"
)

// @title BalanceChain API
// @version 1.0
// @description Offline-first, per-identity, append-only signed action ledger.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting server",
		zap.String("environment", cfg.Server.Environment),
		zap.String("addr", cfg.Server.Addr()),
	)

	db, err := initDB(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rdb := initRedis(cfg.Redis)
	defer rdb.Close()

	if err := testConnections(db, rdb); err != nil {
		logger.Fatal("failed to test connections", zap.Error(err))
	}

	st := store.New(db)
	if err := store.Migrate(context.Background(), db); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	deps := setupDependencies(cfg, st, db, rdb, logger)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	if worker := setupAnchorWorker(cfg, st, rdb, logger); worker != nil {
		go worker.Run(workerCtx)
	}

	router := setupRouter(cfg, logger, deps)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func initDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	return pkgdb.New(pkgdb.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Name:            cfg.Name,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return pkgredis.New(pkgredis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func testConnections(db *sql.DB, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pkgdb.Ping(ctx, db); err != nil {
		return err
	}
	if err := pkgredis.Ping(ctx, rdb); err != nil {
		return err
	}
	return nil
}

// setupDependencies wires every domain package together: the store sits
// under everything, caps and the validator gate feed the chain handle,
// and the capsule/integrity/collaborator layers build on top of that.
func setupDependencies(cfg *config.Config, st *store.Store, db *sql.DB, rdb *redis.Client, logger *zap.Logger) api.Dependencies {
	capsAccountant := caps.New(st, rdb, logger)
	gate := validator.New(st, capsAccountant)
	tracker := projections.NewTracker()
	chainHandle := chain.New(st, capsAccountant, gate, tracker, nil, logger, validator.Options{})
	capsuleManager := capsules.New(st, chainHandle, logger)
	scanner := integrity.New(st, logger)
	subscriptions := collaborators.NewSubscriptions(st)

	var aiWorker collaborators.AIWorker = collaborators.NewHTTPAIWorker(
		cfg.Collaborator.AIWorkerURL, cfg.Collaborator.AIWorkerTimeout, cfg.Collaborator.AIWorkerRetries, logger)

	var payments collaborators.PaymentProvider
	if cfg.Collaborator.PaymentBaseURL != "" {
		payments = collaborators.NewHTTPPaymentProvider(cfg.Collaborator.PaymentBaseURL, cfg.Collaborator.AIWorkerTimeout)
	}

	return api.Dependencies{
		Store:         st,
		Chain:         chainHandle,
		Caps:          capsAccountant,
		Capsules:      capsuleManager,
		Integrity:     scanner,
		Tracker:       tracker,
		AIWorker:      aiWorker,
		Payments:      payments,
		Subscriptions: subscriptions,
		Health:        handler.NewHealthHandler(db, rdb),
		Logger:        logger,
	}
}

// setupAnchorWorker dials the configured EVM RPC and, when an ownership
// signature is configured, proves control of the minter key before
// handing it a worker loop; without one the worker starts after a
// warning. Anchoring is entirely
// optional: an unconfigured contract address or minter key means no
// anchor worker runs at all, and the core's own chain validity never
// depends on it.
func setupAnchorWorker(cfg *config.Config, st *store.Store, rdb *redis.Client, logger *zap.Logger) *anchor.Worker {
	if cfg.Anchor.ContractAddress == "" || cfg.Anchor.MinterPrivateKey == "" {
		logger.Info("anchor worker disabled: no contract address or minter key configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := anchor.Dial(ctx, cfg.Anchor, logger)
	if err != nil {
		logger.Error("anchor worker disabled: dial failed", zap.Error(err))
		return nil
	}

	if cfg.Anchor.OwnershipSignature == "" {
		logger.Warn("anchor worker starting without an ownership proof (ANCHOR_OWNERSHIP_SIGNATURE unset)")
		return anchor.NewWorker(st, client, rdb, logger, cfg.Worker)
	}

	verifier := minterauth.NewEthVerifier(minterauth.Config{
		ChainID:           client.ChainID().Int64(),
		VerifyingContract: cfg.Anchor.ContractAddress,
	}, nonce.NewRedisStore(rdb, logger), logger)

	sig, err := hex.DecodeString(cfg.Anchor.OwnershipSignature)
	if err != nil {
		logger.Error("anchor worker disabled: ownership signature is not valid hex", zap.Error(err))
		return nil
	}
	msg := minterauth.OwnershipMessage{
		MinterAddress: client.AddressHex(),
		Nonce:         cfg.Anchor.OwnershipNonce,
		Timestamp:     cfg.Anchor.OwnershipTimestamp,
	}
	if err := verifier.VerifyOwnership(ctx, client.AddressHex(), msg, sig); err != nil {
		logger.Error("anchor worker disabled: minter ownership proof failed", zap.Error(err))
		return nil
	}

	logger.Info("anchor minter ownership verified", zap.String("address", client.AddressHex()))
	return anchor.NewWorker(st, client, rdb, logger, cfg.Worker)
}

func setupRouter(cfg *config.Config, logger *zap.Logger, deps api.Dependencies) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api.RegisterRoutes(router, deps)

	return router
}
