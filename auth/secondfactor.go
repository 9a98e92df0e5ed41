package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"orderscout/page"
)

// DetectSecondFactor reports whether the tab is asking for a one-time code
// and which signal said so. Signals are checked cheapest first: address,
// title, code field, then the whole body text.
func (e *Engine) DetectSecondFactor(ctx context.Context) (bool, Signal) {
	if u, err := e.d.CurrentURL(ctx); err == nil {
		if _, ok := page.ContainsAny(u, e.site.SecondFactorPathFragments); ok {
			return true, SignalURL
		}
	} else {
		e.log.Debug("Reading current address failed", zap.Error(err))
	}

	if title, err := e.d.Title(ctx); err == nil {
		if _, ok := page.ContainsAny(title, e.cfg.SecondFactorTitleKeywords); ok {
			return true, SignalTitle
		}
	} else {
		e.log.Debug("Reading title failed", zap.Error(err))
	}

	if e.find.AnyVisible(ctx, e.sel.CodeField) {
		return true, SignalCodeField
	}

	if body, err := e.d.BodyText(ctx); err == nil {
		if _, ok := page.ContainsAny(body, e.cfg.SecondFactorPhrases); ok {
			return true, SignalBodyText
		}
	} else {
		e.log.Debug("Reading body text failed", zap.Error(err))
	}
	return false, SignalNone
}

// secondFactorCheck looks at the page as it is now. A pending hint from the
// password step is only a hint: rate-limit notices share its keywords.
func (e *Engine) secondFactorCheck(ctx context.Context) (Outcome, error) {
	required, sig := e.DetectSecondFactor(ctx)
	if !required {
		if e.pending {
			e.log.Warn("Code prompt expected but not detected", zap.String("hint", string(e.pendingSignal)))
		} else {
			e.log.Info("No verification code requested")
		}
		return Success, nil
	}
	e.log.Info("Verification code requested", zap.String("signal", string(sig)))
	e.snapshot(ctx, "possible-second-factor")

	e.enter(SecondFactorEntry)
	return e.secondFactorEntry(ctx)
}

func (e *Engine) secondFactorEntry(ctx context.Context) (Outcome, error) {
	limit := e.cfg.CodeAttempts
	for attempt := 1; attempt <= limit; attempt++ {
		code, err := e.nextCode(ctx, attempt, limit)
		if err != nil {
			return Exhausted, err
		}
		reason, err := e.submitCode(ctx, code)
		if err != nil {
			return Exhausted, err
		}
		if reason == "" {
			e.usedCode = true
			e.log.Info("Verification code accepted", zap.Int("attempt", attempt))
			return Success, nil
		}

		remaining := limit - attempt
		e.log.Warn("Verification code attempt failed", zap.String("reason", reason), zap.Int("remaining", remaining))
		e.snapshot(ctx, fmt.Sprintf("second-factor-failed-%d", remaining))
		if remaining > 0 {
			e.creds.Notify(fmt.Sprintf("The code was not accepted (%s). %d attempt(s) left.", reason, remaining))
		}
	}
	return Exhausted, nil
}

func (e *Engine) nextCode(ctx context.Context, attempt, limit int) (string, error) {
	for {
		code, err := e.creds.Code(ctx, attempt, limit)
		if err != nil {
			return "", fmt.Errorf("reading verification code: %w", err)
		}
		if code = strings.TrimSpace(code); code != "" {
			return code, nil
		}
		e.creds.Notify("The verification code cannot be empty.")
	}
}

// submitCode enters code and reports "" when the site no longer asks for
// one and shows no alert, otherwise the failure reason.
func (e *Engine) submitCode(ctx context.Context, code string) (string, error) {
	field, ok := e.find.FirstVisible(ctx, e.sel.CodeField)
	if !ok {
		return "code field not found", nil
	}
	if err := e.d.Fill(ctx, field, code); err != nil {
		return interactionFailed(ctx, "typing code", err)
	}
	button, ok := e.find.FirstVisible(ctx, e.sel.CodeSubmitButton)
	if !ok {
		return "code submit button not found", nil
	}

	nav, stop := e.watchNavigation(ctx, e.cfg.NavigationTimeout)
	defer stop()
	if err := e.d.Click(ctx, button); err != nil {
		return interactionFailed(ctx, "clicking verify", err)
	}
	select {
	case err := <-nav:
		if err != nil && !errors.Is(err, page.ErrTimeout) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.log.Warn("Waiting for navigation failed", zap.Error(err))
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if still, sig := e.DetectSecondFactor(ctx); still {
		return fmt.Sprintf("still asking for a code (%s)", sig), nil
	}
	if _, text, ok := e.find.FirstVisibleText(ctx, e.sel.Alert); ok {
		return "site alert: " + text, nil
	}
	return "", nil
}
