// Package notify queues outbound notifications durably and delivers them in
// the background. Enqueueing never fails the operation that produced the message.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/idhash"
	"solana-marketplace/internal/observability"
)

// Enqueuer accepts notifications for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind domain.NotificationKind, subjectID, recipient string, payload any)
}

// Outbox writes notifications to the spool and wakes the dispatcher.
type Outbox struct {
	spool  *Spool
	wake   chan struct{}
	now    func() time.Time
	logger *slog.Logger
}

// NewOutbox creates an outbox over spool.
func NewOutbox(spool *Spool, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{spool: spool, wake: make(chan struct{}, 1), now: time.Now, logger: logger}
}

var _ Enqueuer = (*Outbox)(nil)

// Enqueue spools one message. The id is derived from kind, subject and
// recipient, so repeated enqueues of the same message are dropped.
// Failures are logged.
func (o *Outbox) Enqueue(_ context.Context, kind domain.NotificationKind, subjectID, recipient string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("notification payload encode failed", "kind", string(kind), "subject", subjectID, "error", err)
		observability.RecordNotification(string(kind), "encode_failed")
		return
	}

	n := &domain.Notification{
		ID:        idhash.ComputeNotificationID(kind, subjectID, recipient),
		Kind:      kind,
		Recipient: recipient,
		Payload:   data,
		CreatedAt: o.now().UTC(),
	}
	added, err := o.spool.Put(n)
	if err != nil {
		o.logger.Warn("notification enqueue failed", "kind", string(kind), "subject", subjectID, "error", err)
		observability.RecordNotification(string(kind), "enqueue_failed")
		return
	}
	if !added {
		return
	}

	observability.RecordNotification(string(kind), "enqueued")
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Wake returns a channel signalled after each successful enqueue.
func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}
