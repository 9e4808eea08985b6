package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-marketplace/internal/solana"
)

// errExpired means the blockhash passed its last valid height without the
// signature landing. The transaction can no longer be included.
var errExpired = errors.New("blockhash expired before confirmation")

// confirm waits for sig to reach confirmed commitment. It returns nil,
// errExpired, ErrInstructionFailed or ErrPendingConfirmation. Polling runs on
// bg; ctx only decides whether the caller is still waiting.
func (e *Executor) confirm(ctx, bg context.Context, sig string, lastValid uint64) error {
	var notify <-chan solana.SignatureNotification
	if e.ws != nil {
		ch, unsub, err := e.ws.SubscribeSignature(bg, sig)
		if err == nil {
			defer unsub()
			notify = ch
		} else {
			e.logger.Debug("signature subscription unavailable, polling", "signature", sig, "error", err)
		}
	}

	timeout := time.NewTimer(e.cfg.ConfirmTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		statuses, err := e.rpc.GetSignatureStatuses(bg, []string{sig})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ErrInstructionFailed, st.Err)
			}
			if st.Confirmed() {
				return nil
			}
		}

		if height, err := e.rpc.GetBlockHeight(bg); err == nil && height > lastValid {
			// One last look: it may have landed in the final valid block.
			if statuses, err := e.rpc.GetSignatureStatuses(bg, []string{sig}); err == nil &&
				len(statuses) > 0 && statuses[0] != nil {
				if statuses[0].Err != nil {
					return fmt.Errorf("%w: %v", ErrInstructionFailed, statuses[0].Err)
				}
				if statuses[0].Confirmed() {
					return nil
				}
			}
			return errExpired
		}

		select {
		case n, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			if n.Err != nil {
				return fmt.Errorf("%w: %v", ErrInstructionFailed, n.Err)
			}
			return nil
		case <-ticker.C:
		case <-timeout.C:
			return ErrPendingConfirmation
		case <-ctx.Done():
			return ErrPendingConfirmation
		}
	}
}
