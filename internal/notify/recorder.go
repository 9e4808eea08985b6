package notify

import (
	"context"
	"encoding/json"
	"sync"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/idhash"
)

// Recorder is an in-memory Enqueuer that keeps every message.
type Recorder struct {
	mu       sync.Mutex
	messages []*domain.Notification
}

var _ Enqueuer = (*Recorder)(nil)

// Enqueue records the message.
func (r *Recorder) Enqueue(_ context.Context, kind domain.NotificationKind, subjectID, recipient string, payload any) {
	data, _ := json.Marshal(payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, &domain.Notification{
		ID:        idhash.ComputeNotificationID(kind, subjectID, recipient),
		Kind:      kind,
		Recipient: recipient,
		Payload:   data,
	})
}

// Kinds returns the kinds of recorded messages in order.
func (r *Recorder) Kinds() []domain.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationKind, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Kind
	}
	return out
}

// Messages returns the recorded messages.
func (r *Recorder) Messages() []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Notification(nil), r.messages...)
}
