package anchor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/balancechain/core/internal/config"
	"github.com/balancechain/core/internal/store"
)

const lockKey = "anchor:worker:lock"

// Worker polls the store for identities whose chain has advanced past
// its last anchor and submits one anchor transaction per identity, one
// at a time. A single worker instance is assumed (spec.md scope is one
// API process plus one anchor worker); the Redis lock guards against an
// operator accidentally starting two.
type Worker struct {
	store     *store.Store
	submitter Submitter
	redis     *redis.Client
	logger    *zap.Logger
	cfg       config.WorkerConfig
	batchSize int
}

// NewWorker constructs a Worker.
func NewWorker(s *store.Store, submitter Submitter, redisClient *redis.Client, logger *zap.Logger, cfg config.WorkerConfig) *Worker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Worker{store: s, submitter: submitter, redis: redisClient, logger: logger, cfg: cfg, batchSize: batchSize}
}

// Run blocks, polling at cfg.PollInterval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	locked, err := w.redis.SetNX(ctx, lockKey, "1", w.cfg.LockTTL).Result()
	if err != nil {
		w.logger.Error("anchor worker lock attempt failed", zap.Error(err))
		return
	}
	if !locked {
		return
	}
	defer w.redis.Del(ctx, lockKey)

	due, err := w.store.ListDueForAnchor(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("anchor worker list due failed", zap.Error(err))
		return
	}
	for _, d := range due {
		w.anchorOne(ctx, d)
	}
}

func (w *Worker) anchorOne(ctx context.Context, d store.DueForAnchor) {
	var txHash string
	var err error
	delay := w.cfg.RetryBaseDelay

	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
		}
		txHash, err = w.submitter.Submit(ctx, d.HID, d.ChainHead, d.ChainLen)
		if err == nil {
			break
		}
		w.logger.Warn("anchor submit failed",
			zap.String("hid", d.HID), zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		w.logger.Error("anchor submit exhausted retries", zap.String("hid", d.HID), zap.Error(err))
		return
	}

	record := store.AnchorRow{
		HID:              d.HID,
		LastAnchoredSeq:  d.ChainLen,
		LastAnchoredHead: d.ChainHead,
		LastTxHash:       txHash,
		LastAnchoredAt:   time.Now().UnixMilli(),
	}
	if err := w.store.RecordAnchor(ctx, record); err != nil {
		w.logger.Error("anchor record failed", zap.String("hid", d.HID), zap.Error(err))
		return
	}

	w.logger.Info("identity anchored", zap.String("hid", d.HID), zap.Int64("seq", d.ChainLen), zap.String("txHash", txHash))
}
