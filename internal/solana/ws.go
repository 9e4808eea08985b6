package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for a single confirmation notification for signature.
	// The returned channel receives at most one value and is then closed.
	// cancel releases the subscription early.
	SubscribeSignature(ctx context.Context, signature string) (ch <-chan SignatureNotification, cancel func(), err error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification reports that a signature reached the subscribed commitment.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // instruction error, nil on success
}
