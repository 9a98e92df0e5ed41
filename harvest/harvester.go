package harvest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"orderscout/config"
	"orderscout/page"
)

// ErrHistoryUnavailable means the order history view could not be reached.
var ErrHistoryUnavailable = errors.New("order history unavailable")

// Session is a signed-in tab. auth.Session satisfies it.
type Session interface {
	Driver() page.Driver
}

// Harvester collects up to Quota orders, newest year first.
type Harvester struct {
	cfg      config.Harvest
	site     config.Site
	sel      config.Selectors
	cards    []page.Locator
	patterns []*regexp.Regexp
	x        *Extractor
	log      *zap.Logger
	now      func() time.Time

	years []int
}

// Option customises a Harvester.
type Option func(*Harvester)

// WithClock sets the clock that picks the starting year.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// New builds a Harvester from the run configuration.
func New(cfg config.Config, log *zap.Logger, opts ...Option) (*Harvester, error) {
	if log == nil {
		log = zap.NewNop()
	}
	x, err := NewExtractor(cfg.Extraction, cfg.Site.BaseURL, log.Named("extract"))
	if err != nil {
		return nil, err
	}
	h := &Harvester{
		cfg:  cfg.Harvest,
		site: cfg.Site,
		sel:  cfg.Selectors,
		x:    x,
		log:  log,
		now:  time.Now,
	}
	for _, sel := range cfg.Extraction.OrderCards {
		h.cards = append(h.cards, page.CSSLocator(sel))
	}
	for _, p := range cfg.Site.HistoryURLPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling history pattern %q: %w", p, err)
		}
		h.patterns = append(h.patterns, re)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// YearsVisited lists the years whose filtered history was requested.
func (h *Harvester) YearsVisited() []int {
	return append([]int(nil), h.years...)
}

// Run opens the history view and walks backwards from the current year
// until Quota orders are collected or MaxYears years were tried. A year
// that fails or never settles is logged and skipped.
func (h *Harvester) Run(ctx context.Context, s Session) ([]Order, error) {
	d := s.Driver()
	find := page.NewFinder(d, h.log)

	if err := h.openHistory(ctx, d, find); err != nil {
		return nil, err
	}

	var orders []Order
	start := h.now().Year()
	for i := 0; i < h.cfg.MaxYears && len(orders) < h.cfg.Quota; i++ {
		year := start - i
		got, err := h.year(ctx, d, find, year)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.log.Warn("Skipping year", zap.Int("year", year), zap.Error(err))
			continue
		}
		orders = append(orders, got...)
		h.log.Info("Year harvested",
			zap.Int("year", year),
			zap.Int("orders", len(got)),
			zap.Int("total", len(orders)))
	}

	if len(orders) > h.cfg.Quota {
		orders = orders[:h.cfg.Quota]
	}
	return orders, nil
}

// openHistory reaches the history view by the orders link, then by its
// address, and finally accepts an address that merely looks right.
func (h *Harvester) openHistory(ctx context.Context, d page.Driver, find *page.Finder) error {
	defer h.snapshot(ctx, d, "order-page-check")
	p := page.Poller{Interval: h.cfg.PollInterval, Rounds: h.cfg.NavPollRounds}

	if link, ok := find.FirstVisible(ctx, h.sel.OrdersNav); ok {
		if err := d.Click(ctx, link); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.log.Warn("Clicking the orders link failed", zap.Stringer("link", link), zap.Error(err))
		} else {
			err := p.Poll(ctx, func(ctx context.Context) bool {
				return find.AnyVisible(ctx, h.sel.OrderPageLandmarks) || h.onHistoryURL(ctx, d)
			})
			if err == nil {
				h.log.Info("Order history opened from the orders link")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.log.Warn("Orders link did not lead to the history view")
		}
	} else {
		h.log.Info("No orders link visible, opening history directly")
	}

	if err := d.Navigate(ctx, h.site.HistoryURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.log.Warn("Opening history address failed", zap.Error(err))
	}
	err := p.Poll(ctx, func(ctx context.Context) bool {
		return find.AnyVisible(ctx, h.sel.OrderPageLandmarks)
	})
	if err == nil {
		h.log.Info("Order history opened by address")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if h.onHistoryURL(ctx, d) {
		h.log.Warn("History landmarks not found, continuing because the address matches")
		return nil
	}
	u, _ := d.CurrentURL(ctx)
	return fmt.Errorf("%w: ended on %s", ErrHistoryUnavailable, u)
}

func (h *Harvester) onHistoryURL(ctx context.Context, d page.Driver) bool {
	u, err := d.CurrentURL(ctx)
	if err != nil {
		h.log.Debug("Reading current address failed", zap.Error(err))
		return false
	}
	for _, re := range h.patterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// year opens the history filtered to one year, waits for cards or the
// empty-history notice, and extracts whatever is on the page.
func (h *Harvester) year(ctx context.Context, d page.Driver, find *page.Finder, year int) ([]Order, error) {
	h.years = append(h.years, year)
	if err := d.Navigate(ctx, h.site.YearURL(year)); err != nil {
		return nil, fmt.Errorf("opening %d: %w", year, err)
	}

	empty := false
	p := page.Poller{Interval: h.cfg.PollInterval, Rounds: h.cfg.YearPollRounds}
	err := p.Poll(ctx, func(ctx context.Context) bool {
		if _, _, ok := find.FirstPresent(ctx, h.cards); ok {
			return true
		}
		empty = find.AnyVisible(ctx, h.sel.EmptyHistory)
		return empty
	})
	switch {
	case errors.Is(err, page.ErrTimeout):
		h.log.Warn("Year page did not settle, extracting anyway", zap.Int("year", year))
		h.snapshot(ctx, d, fmt.Sprintf("year-%d-fallback", year))
	case err != nil:
		return nil, err
	case empty:
		h.log.Info("No orders placed", zap.Int("year", year))
		return nil, nil
	}

	html, err := d.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %d page: %w", year, err)
	}
	return h.x.Extract(html)
}

func (h *Harvester) snapshot(ctx context.Context, d page.Driver, name string) {
	if err := d.Snapshot(ctx, name); err != nil {
		h.log.Warn("Snapshot failed", zap.String("name", name), zap.Error(err))
	}
}
