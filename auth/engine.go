// Package auth signs a browser tab into the store, including the optional
// one-time code step, and hands back a Session on success.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderscout/config"
	"orderscout/creds"
	"orderscout/page"
)

// Engine runs the login state machine against one tab. It is single use.
type Engine struct {
	cfg   config.Auth
	sel   config.Selectors
	site  config.Site
	d     page.Driver
	find  *page.Finder
	creds creds.Provider
	log   *zap.Logger
	now   func() time.Time

	mu          sync.Mutex
	state       State
	transitions []State

	// Accepted values are kept for the rest of the run, so a restarted
	// cycle does not prompt again.
	identifier    string
	kind          IdentifierKind
	secret        string
	pending       bool
	pendingSignal Signal
	usedCode      bool
	exhaustedBy   State
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides time.Now for the session timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine in the Start state.
func New(cfg config.Config, d page.Driver, p creds.Provider, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:   cfg.Auth,
		sel:   cfg.Selectors,
		site:  cfg.Site,
		d:     d,
		find:  page.NewFinder(d, log),
		creds: p,
		log:   log,
		now:   time.Now,
		state: Start,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transitions returns every state entered so far, in order.
func (e *Engine) Transitions() []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]State(nil), e.transitions...)
}

func (e *Engine) enter(s State) {
	e.mu.Lock()
	e.state = s
	e.transitions = append(e.transitions, s)
	e.mu.Unlock()
	e.log.Info("Entering state", zap.Stringer("state", s))
}

// Run drives the machine to Authenticated or Failed. A failed run returns
// an error wrapping ErrAuthFailed, or ErrStartup when the sign-in page
// could not be opened, and never a Session.
func (e *Engine) Run(ctx context.Context) (*Session, error) {
	outer := max(e.cfg.OuterAttempts, 1)
	for cycle := 1; cycle <= outer; cycle++ {
		e.enter(Start)
		if err := e.start(ctx); err != nil {
			e.enter(Failed)
			return nil, err
		}

		out, err := e.cycle(ctx)
		if err != nil {
			e.enter(Failed)
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		switch out {
		case Success:
			e.enter(Authenticated)
			e.log.Info("Signed in",
				zap.String("identifier", mask(e.identifier)),
				zap.Bool("second_factor", e.usedCode),
				zap.Int("cycle", cycle))
			return &Session{
				driver:           e.d,
				IdentifierKind:   e.kind,
				AuthenticatedAt:  e.now(),
				SecondFactorUsed: e.usedCode,
				Cycles:           cycle,
			}, nil
		case Exhausted:
			e.enter(Failed)
			return nil, fmt.Errorf("%w: no attempts left in %s", ErrAuthFailed, e.exhaustedBy)
		case Retry:
			if cycle < outer {
				e.log.Warn("Still on the sign-in page, starting over",
					zap.Int("cycle", cycle), zap.Int("cycles", outer))
			}
		}
	}
	e.enter(Failed)
	return nil, fmt.Errorf("%w: still on the sign-in page after %d cycles", ErrAuthFailed, outer)
}

func (e *Engine) start(ctx context.Context) error {
	if err := e.d.Navigate(ctx, e.site.LoginURL); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	e.snapshot(ctx, "login-page")
	return nil
}

// cycle runs UsernameEntry through Verify once.
func (e *Engine) cycle(ctx context.Context) (Outcome, error) {
	e.pending, e.pendingSignal = false, SignalNone
	steps := []struct {
		state State
		run   func(context.Context) (Outcome, error)
	}{
		{UsernameEntry, e.usernameEntry},
		{PasswordEntry, e.passwordEntry},
		{SecondFactorCheck, e.secondFactorCheck},
		{Verify, e.verify},
	}
	for _, step := range steps {
		e.enter(step.state)
		out, err := step.run(ctx)
		if err != nil {
			return out, err
		}
		if out != Success {
			if out == Exhausted {
				e.exhaustedBy = e.State()
			}
			return out, nil
		}
	}
	return Success, nil
}

func (e *Engine) poller() page.Poller {
	return page.Poller{Interval: e.cfg.PollInterval, Rounds: e.cfg.FieldWaitRounds}
}

func (e *Engine) snapshot(ctx context.Context, name string) {
	if err := e.d.Snapshot(ctx, name); err != nil {
		e.log.Warn("Snapshot failed", zap.String("name", name), zap.Error(err))
	}
}

// interactionFailed turns a driver error into a failure reason, unless the
// run itself is being cancelled.
func interactionFailed(ctx context.Context, what string, err error) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, page.ErrNotFound) {
		return what + ": element not found", nil
	}
	return fmt.Sprintf("%s: %v", what, err), nil
}

// watchNavigation listens for the next page load in the background. The
// listener is in place on return. The returned stop func must be called; it
// waits for the listener to exit.
func (e *Engine) watchNavigation(ctx context.Context, timeout time.Duration) (<-chan error, func()) {
	nctx, cancel := context.WithCancel(ctx)
	done := e.d.WatchNavigation(nctx, timeout)
	return done, func() {
		cancel()
		for range done {
		}
	}
}
