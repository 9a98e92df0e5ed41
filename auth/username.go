package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"orderscout/page"
)

func (e *Engine) usernameEntry(ctx context.Context) (Outcome, error) {
	for remaining := e.cfg.UsernameAttempts; remaining > 0; {
		id, err := e.nextIdentifier(ctx)
		if err != nil {
			return Exhausted, err
		}
		reason, err := e.submitIdentifier(ctx, id)
		if err != nil {
			return Exhausted, err
		}
		if reason == "" {
			e.identifier = id
			e.kind = Classify(id)
			e.log.Info("Identifier accepted", zap.String("identifier", mask(id)), zap.Stringer("kind", e.kind))
			return Success, nil
		}

		remaining--
		e.identifier = ""
		e.log.Warn("Identifier attempt failed",
			zap.String("identifier", mask(id)),
			zap.String("reason", reason),
			zap.Int("remaining", remaining))
		e.snapshot(ctx, fmt.Sprintf("username-failed-%d", remaining))
		if remaining > 0 {
			e.creds.Notify(fmt.Sprintf("Sign-in did not accept that identifier (%s). %d attempt(s) left.", reason, remaining))
		}
	}
	return Exhausted, nil
}

// nextIdentifier returns the retained identifier or asks until the answer
// looks like an email address or phone number. Rejected answers never reach
// the page and cost no attempt.
func (e *Engine) nextIdentifier(ctx context.Context) (string, error) {
	if e.identifier != "" {
		return e.identifier, nil
	}
	for {
		id, err := e.creds.Identifier(ctx)
		if err != nil {
			return "", fmt.Errorf("reading identifier: %w", err)
		}
		id = strings.TrimSpace(id)
		if Classify(id) != Unknown {
			return id, nil
		}
		e.log.Debug("Identifier rejected locally")
		e.creds.Notify("Enter an email address or a 10-digit mobile number.")
	}
}

// submitIdentifier types id and continues. It returns "" once the secret
// field shows up, otherwise the reason the attempt failed.
func (e *Engine) submitIdentifier(ctx context.Context, id string) (string, error) {
	field, ok := e.find.FirstVisible(ctx, e.sel.EmailField)
	if !ok {
		return "identifier field not found", nil
	}
	if err := e.d.Fill(ctx, field, id); err != nil {
		return interactionFailed(ctx, "typing identifier", err)
	}

	// Some sign-in pages ask for both values at once.
	if e.find.AnyVisible(ctx, e.sel.PasswordField) {
		return "", nil
	}

	button, ok := e.find.FirstVisible(ctx, e.sel.ContinueButton)
	if !ok {
		return "continue button not found", nil
	}
	if err := e.d.Click(ctx, button); err != nil {
		return interactionFailed(ctx, "clicking continue", err)
	}

	var reason string
	err := e.poller().Poll(ctx, func(ctx context.Context) bool {
		if _, text, ok := e.find.FirstVisibleText(ctx, e.sel.InvalidIdentifierAlert); ok {
			reason = "site rejected the identifier: " + text
			return true
		}
		if _, text, ok := e.find.FirstVisibleText(ctx, e.sel.Alert); ok {
			if kw, hit := page.ContainsAny(text, e.cfg.IdentifierFailureKeywords); hit {
				reason = fmt.Sprintf("site alert mentions %q: %s", kw, text)
				return true
			}
		}
		return e.find.AnyVisible(ctx, e.sel.PasswordField)
	})
	switch {
	case errors.Is(err, page.ErrTimeout):
		return "password field did not appear", nil
	case err != nil:
		return "", err
	}
	return reason, nil
}
