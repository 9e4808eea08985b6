package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Transport-level errors.
var (
	// ErrRateLimited is returned when the RPC endpoint answers 429.
	ErrRateLimited = errors.New("rate limited (429)")

	// ErrUnavailable is returned for 5xx responses.
	ErrUnavailable = errors.New("rpc endpoint unavailable")
)

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Well-known Solana RPC error codes.
const (
	codeSendTxPreflightFailure = -32002
	codeBlockhashNotFound      = -32004 // returned by some providers as "block not available"
	codeNodeUnhealthy          = -32005
	codeRateLimited            = -32429
)

// FailureKind is the retry classification of a ledger call failure.
type FailureKind int

// Failure kinds.
const (
	FailureFatal FailureKind = iota
	FailureRecencyExpired
	FailureRateLimited
	FailureNetworkTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureRecencyExpired:
		return "recency_expired"
	case FailureRateLimited:
		return "rate_limited"
	case FailureNetworkTimeout:
		return "network_timeout"
	default:
		return "fatal"
	}
}

// Transient reports whether a retry may succeed.
func (k FailureKind) Transient() bool {
	return k != FailureFatal
}

// Classify maps a submit or confirmation error to a retry class.
// Unrecognised errors are fatal.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureFatal
	}

	if errors.Is(err, ErrRateLimited) {
		return FailureRateLimited
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message + " " + string(rpcErr.Data))
		switch {
		case rpcErr.Code == codeRateLimited || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
			return FailureRateLimited
		case strings.Contains(msg, "blockhash not found") || strings.Contains(msg, "block height exceeded"):
			return FailureRecencyExpired
		case rpcErr.Code == codeNodeUnhealthy || rpcErr.Code == codeBlockhashNotFound:
			return FailureNetworkTimeout
		}
		return FailureFatal
	}

	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return FailureNetworkTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetworkTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureNetworkTimeout
	}

	return FailureFatal
}

// IsPreflightFailure reports whether the node rejected the transaction in simulation.
func IsPreflightFailure(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == codeSendTxPreflightFailure
}
