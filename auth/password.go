package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderscout/page"
)

func (e *Engine) passwordEntry(ctx context.Context) (Outcome, error) {
	for remaining := e.cfg.PasswordAttempts; remaining > 0; {
		secret, err := e.nextSecret(ctx)
		if err != nil {
			return Exhausted, err
		}
		result, reason, err := e.submitSecret(ctx, secret)
		if err != nil {
			return Exhausted, err
		}
		if result != PasswordRejected {
			e.secret = secret
			e.pending = result == PasswordPendingSecondFactor
			e.pendingSignal = Signal(reason)
			e.log.Info("Password step passed", zap.Stringer("result", result), zap.String("evidence", reason))
			return Success, nil
		}

		remaining--
		e.secret = ""
		e.log.Warn("Password attempt failed", zap.String("reason", reason), zap.Int("remaining", remaining))
		e.snapshot(ctx, fmt.Sprintf("password-failed-%d", remaining))
		if remaining > 0 {
			e.creds.Notify(fmt.Sprintf("Sign-in did not accept that password (%s). %d attempt(s) left.", reason, remaining))
		}
	}
	return Exhausted, nil
}

// nextSecret returns the retained secret or asks for a non-empty one.
func (e *Engine) nextSecret(ctx context.Context) (string, error) {
	if e.secret != "" {
		return e.secret, nil
	}
	for {
		s, err := e.creds.Secret(ctx)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if s != "" {
			return s, nil
		}
		e.creds.Notify("The password cannot be empty.")
	}
}

// submitSecret types the secret, signs in and classifies the result. The
// string is the evidence for the result, or the failure reason.
func (e *Engine) submitSecret(ctx context.Context, secret string) (PasswordResult, string, error) {
	field, ok := e.find.FirstVisible(ctx, e.sel.PasswordField)
	if !ok {
		return PasswordRejected, "password field not found", nil
	}
	if err := e.d.Fill(ctx, field, secret); err != nil {
		reason, err := interactionFailed(ctx, "typing password", err)
		return PasswordRejected, reason, err
	}
	button, ok := e.find.FirstVisible(ctx, e.sel.SignInButton)
	if !ok {
		return PasswordRejected, "sign-in button not found", nil
	}

	nav, stop := e.watchNavigation(ctx, e.cfg.NavigationTimeout)
	defer stop()
	if err := e.d.Click(ctx, button); err != nil {
		reason, err := interactionFailed(ctx, "clicking sign in", err)
		return PasswordRejected, reason, err
	}
	settled, err := e.awaitSettle(ctx, nav)
	if err != nil {
		return PasswordRejected, "", err
	}
	e.log.Debug("Page settled after sign in", zap.String("by", settled))
	e.snapshot(ctx, "after-password")

	return e.classifyPassword(ctx)
}

// classifyPassword tells a one-time code prompt apart from a rejected
// password. The checks run in a fixed order and the first decisive one wins.
func (e *Engine) classifyPassword(ctx context.Context) (PasswordResult, string, error) {
	if ok, sig := e.DetectSecondFactor(ctx); ok {
		return PasswordPendingSecondFactor, string(sig), nil
	}
	if _, text, ok := e.find.FirstVisibleText(ctx, e.sel.IncorrectPasswordAlert); ok {
		return PasswordRejected, "incorrect password: " + text, nil
	}
	if _, text, ok := e.find.FirstVisibleText(ctx, e.sel.Alert); ok {
		if kw, hit := page.ContainsAny(text, e.cfg.SecondFactorAlertKeywords); hit {
			e.log.Info("Alert looks like a code or rate-limit notice", zap.String("keyword", kw), zap.String("alert", text))
			return PasswordPendingSecondFactor, string(SignalAlert), nil
		}
		return PasswordRejected, "site alert: " + text, nil
	}

	u, err := e.d.CurrentURL(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return PasswordRejected, "", ctx.Err()
		}
		e.log.Warn("Reading current address failed", zap.Error(err))
	}
	if u != "" && !e.isAuthURL(u) {
		return PasswordAccepted, "left the sign-in pages", nil
	}
	if ok, sig := e.DetectSecondFactor(ctx); ok {
		return PasswordPendingSecondFactor, string(sig), nil
	}
	return PasswordRejected, "still on the sign-in page", nil
}

// awaitSettle waits for whichever comes first: the page load triggered by
// a submit, a post-login landmark, or the navigation timeout.
func (e *Engine) awaitSettle(ctx context.Context, nav <-chan error) (string, error) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-nav:
			switch {
			case err == nil:
				return "navigation", nil
			case errors.Is(err, page.ErrTimeout):
				return "timeout", nil
			case ctx.Err() != nil:
				return "", ctx.Err()
			default:
				e.log.Warn("Waiting for navigation failed", zap.Error(err))
				return "navigation-error", nil
			}
		case <-ticker.C:
			if e.find.AnyVisible(ctx, e.sel.PostLoginLandmarks) {
				return "landmark", nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (e *Engine) isAuthURL(u string) bool {
	_, ok := page.ContainsAny(u, e.site.AuthPathFragments)
	return ok
}
