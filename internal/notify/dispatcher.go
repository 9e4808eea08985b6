package notify

import (
	"context"
	"log/slog"
	"time"

	"solana-marketplace/internal/observability"
)

// Dispatcher defaults.
const (
	DefaultMaxAttempts  = 3
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 50
)

// Dispatcher drains the spool into a sink.
type Dispatcher struct {
	spool       *Spool
	sink        Sink
	wake        <-chan struct{}
	maxAttempts int
	interval    time.Duration
	batch       int
	logger      *slog.Logger
}

// DispatcherConfig holds dispatcher settings. Zero values use defaults.
type DispatcherConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
	BatchSize    int
}

// NewDispatcher creates a dispatcher. wake may be nil.
func NewDispatcher(spool *Spool, sink Sink, wake <-chan struct{}, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		spool:       spool,
		sink:        sink,
		wake:        wake,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.PollInterval,
		batch:       cfg.BatchSize,
		logger:      logger,
	}
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger.Warn("notification dispatch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchOnce attempts every pending notification once and returns how
// many were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	entries, err := d.spool.Pending(d.batch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return delivered, nil
		}
		kind := string(e.Notification.Kind)

		if err := d.sink.Deliver(ctx, e.Notification); err != nil {
			dead, ferr := d.spool.Fail(e, err, d.maxAttempts)
			if ferr != nil {
				return delivered, ferr
			}
			if dead {
				d.logger.Error("notification dead after retries",
					"id", e.Notification.ID, "kind", kind, "attempts", e.Notification.Attempts, "error", err)
				observability.RecordNotification(kind, "dead")
			} else {
				d.logger.Warn("notification delivery failed",
					"id", e.Notification.ID, "kind", kind, "attempt", e.Notification.Attempts, "error", err)
				observability.RecordNotification(kind, "retry")
			}
			continue
		}

		if err := d.spool.Ack(e); err != nil {
			return delivered, err
		}
		delivered++
		observability.RecordNotification(kind, "delivered")
	}
	return delivered, nil
}
