package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

// OutboxRelay drains committed ledger events to the broker. Records that keep
// failing are dead-lettered after maxRetries attempts.
type OutboxRelay struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	nowFn      func() time.Time
}

type RelayConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

func NewOutboxRelay(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg RelayConfig) *OutboxRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxRelay{
		logger:     logger.With("module", "events.outbox_relay", "layer", "adapter"),
		outbox:     outbox,
		publisher:  publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		claimTTL:   cfg.ClaimTTL,
		maxRetries: cfg.MaxRetries,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (w *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

func (w *OutboxRelay) ProcessOnce(ctx context.Context) (BatchResult, error) {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().Add(w.claimTTL))
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Claimed: len(records)}
	for _, rec := range records {
		now := w.nowFn()
		if rec.RetryCount >= w.maxRetries {
			result.DeadLettered++
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
			continue
		}

		pubErr := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
		if pubErr == nil {
			result.Published++
			_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
			continue
		}

		result.Failed++
		attempts := rec.RetryCount + 1
		fields := []any{
			"operation", "publish_event",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"event_type", rec.EventType,
			"partition_key", rec.PartitionKey,
			"retry_count", attempts,
			"error", pubErr,
		}
		if attempts >= w.maxRetries {
			result.DeadLettered++
			w.logger.ErrorContext(ctx, "outbox event dead-lettered", fields...)
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, pubErr.Error(), now)
			continue
		}
		w.logger.WarnContext(ctx, "outbox publish failed, will retry", fields...)
		_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, pubErr.Error(), now)
	}

	if result.Claimed > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", result.Claimed,
			"published_count", result.Published,
			"failed_count", result.Failed,
			"dead_lettered_count", result.DeadLettered,
		)
	}
	return result, nil
}
