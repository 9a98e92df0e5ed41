package auth

import (
	"context"

	"go.uber.org/zap"
)

// verify is the last gate: no sign-in landmark may still be visible.
func (e *Engine) verify(ctx context.Context) (Outcome, error) {
	l, visible := e.find.FirstVisible(ctx, e.sel.LoginLandmarks)
	if err := ctx.Err(); err != nil {
		return Retry, err
	}
	if visible {
		e.log.Warn("Sign-in landmark still visible", zap.Stringer("landmark", l))
		e.snapshot(ctx, "verify-failed")
		return Retry, nil
	}
	return Success, nil
}
