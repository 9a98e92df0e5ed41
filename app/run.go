// Package app wires one run together: launch the browser, sign in, harvest
// the order history and hand the result to the sinks.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"orderscout/auth"
	"orderscout/config"
	"orderscout/creds"
	"orderscout/harvest"
	"orderscout/output"
	"orderscout/page"
)

// Browser is a launched browser with one tab.
type Browser interface {
	Driver() page.Driver
	Close() error
}

// Deps are the pieces a run needs from outside.
type Deps struct {
	Launch   func(ctx context.Context) (Browser, error)
	Provider creds.Provider
	Sink     output.Sink
	Logger   *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Interactive shows a spinner while the history is read.
	Interactive bool
}

// Result summarises a finished run.
type Result struct {
	RunID            string
	Orders           []harvest.Order
	YearsVisited     []int
	SecondFactorUsed bool
	Elapsed          time.Duration
}

// Run performs one full run. The browser is closed on every path. A failed
// sign-in returns an error wrapping auth.ErrAuthFailed or auth.ErrStartup
// and never touches the order history. No orders at all is still success.
func Run(ctx context.Context, cfg config.Config, deps Deps) (res Result, err error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res.RunID = uuid.NewString()
	log = log.With(zap.String("run_id", res.RunID))
	start := clock()
	defer func() { res.Elapsed = clock().Sub(start) }()

	b, err := deps.Launch(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: launching browser: %w", auth.ErrStartup, err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			log.Warn("Closing browser failed", zap.Error(cerr))
		}
	}()

	engine := auth.New(cfg, b.Driver(), deps.Provider, log.Named("auth"), auth.WithClock(clock))
	session, err := engine.Run(ctx)
	if err != nil {
		log.Error("Sign-in failed", zap.Stringers("states", engine.Transitions()), zap.Error(err))
		return res, err
	}
	res.SecondFactorUsed = session.SecondFactorUsed

	h, err := harvest.New(cfg, log.Named("harvest"), harvest.WithClock(clock))
	if err != nil {
		return res, err
	}
	orders, err := harvestWithSpinner(ctx, h, session, deps.Interactive)
	res.YearsVisited = h.YearsVisited()
	if err != nil {
		return res, fmt.Errorf("harvesting orders: %w", err)
	}
	res.Orders = orders
	log.Info("Harvest finished",
		zap.Int("orders", len(orders)),
		zap.Ints("years", res.YearsVisited))

	if deps.Sink != nil {
		if err := deps.Sink.Emit(ctx, orders); err != nil {
			return res, fmt.Errorf("writing results: %w", err)
		}
	}
	return res, nil
}

func harvestWithSpinner(ctx context.Context, h *harvest.Harvester, s harvest.Session, interactive bool) ([]harvest.Order, error) {
	if !interactive {
		return h.Run(ctx, s)
	}
	spinner, serr := pterm.DefaultSpinner.Start("Reading order history")
	orders, err := h.Run(ctx, s)
	if serr != nil {
		return orders, err
	}
	if err != nil {
		spinner.Fail("Order history could not be read")
	} else {
		spinner.Success(fmt.Sprintf("Collected %d orders", len(orders)))
	}
	return orders, err
}
