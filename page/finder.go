package page

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Finder evaluates ordered candidate lists against a Driver. Candidates are
// tried top-down and lazily; the first one that resolves wins. Driver errors
// on one candidate are logged and the next candidate is tried.
type Finder struct {
	d   Driver
	log *zap.Logger
}

// NewFinder returns a Finder over d.
func NewFinder(d Driver, log *zap.Logger) *Finder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Finder{d: d, log: log}
}

// Driver returns the underlying driver.
func (f *Finder) Driver() Driver { return f.d }

// FirstVisible returns the first candidate with a visible match.
func (f *Finder) FirstVisible(ctx context.Context, locs []Locator) (Locator, bool) {
	for _, l := range locs {
		ok, err := f.d.Visible(ctx, l)
		if err != nil {
			f.log.Debug("Visibility check failed", zap.Stringer("locator", l), zap.Error(err))
			continue
		}
		if ok {
			return l, true
		}
	}
	return Locator{}, false
}

// AnyVisible reports whether any candidate has a visible match.
func (f *Finder) AnyVisible(ctx context.Context, locs []Locator) bool {
	_, ok := f.FirstVisible(ctx, locs)
	return ok
}

// FirstVisibleText returns the first visible candidate together with its text.
func (f *Finder) FirstVisibleText(ctx context.Context, locs []Locator) (Locator, string, bool) {
	l, ok := f.FirstVisible(ctx, locs)
	if !ok {
		return Locator{}, "", false
	}
	text, err := f.d.Text(ctx, l)
	if err != nil {
		f.log.Debug("Reading element text failed", zap.Stringer("locator", l), zap.Error(err))
	}
	return l, strings.TrimSpace(text), true
}

// FirstPresent returns the first candidate with at least one match in the
// document, visible or not.
func (f *Finder) FirstPresent(ctx context.Context, locs []Locator) (Locator, int, bool) {
	for _, l := range locs {
		n, err := f.d.Count(ctx, l)
		if err != nil {
			f.log.Debug("Element count failed", zap.Stringer("locator", l), zap.Error(err))
			continue
		}
		if n > 0 {
			return l, n, true
		}
	}
	return Locator{}, 0, false
}

// WaitFirstVisible polls until one of locs is visible.
func (f *Finder) WaitFirstVisible(ctx context.Context, p Poller, locs []Locator) (Locator, error) {
	var found Locator
	err := p.Poll(ctx, func(ctx context.Context) bool {
		l, ok := f.FirstVisible(ctx, locs)
		if ok {
			found = l
		}
		return ok
	})
	return found, err
}

// Poller runs a condition a bounded number of times with a fixed pause
// between rounds. Worst-case wait is Interval*(Rounds-1).
type Poller struct {
	Interval time.Duration
	Rounds   int
}

// Poll returns nil as soon as cond holds, ErrTimeout once the rounds are
// spent, or the context error if ctx ends first.
func (p Poller) Poll(ctx context.Context, cond func(context.Context) bool) error {
	rounds := p.Rounds
	if rounds < 1 {
		rounds = 1
	}
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cond(ctx) {
			return nil
		}
		if i == rounds-1 {
			break
		}
		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrTimeout
}

// ContainsAny reports the first needle found in haystack, ignoring case.
func ContainsAny(haystack string, needles []string) (string, bool) {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(h, strings.ToLower(n)) {
			return n, true
		}
	}
	return "", false
}
