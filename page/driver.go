package page

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Fill and Click when no visible element matches.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned when a bounded wait runs out.
	ErrTimeout = errors.New("timed out")
)

// Driver is the set of tab operations the login and harvest flows use.
// Implementations drive one tab; callers never invoke two operations at once.
//
// Count, Visible and Text report "nothing there" as zero values, not errors.
// An error from them means the tab itself misbehaved.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Count(ctx context.Context, loc Locator) (int, error)
	Visible(ctx context.Context, loc Locator) (bool, error)
	// Text returns the text of the first visible match, or "".
	Text(ctx context.Context, loc Locator) (string, error)
	// Fill clears the first visible match and types value into it.
	Fill(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// WatchNavigation starts listening for the next page load and returns
	// with the listener already in place, so a click issued afterwards cannot
	// outrun it. The channel yields one result (nil, ErrTimeout or ctx.Err())
	// and is then closed. It only listens, so it may overlap other calls.
	WatchNavigation(ctx context.Context, timeout time.Duration) <-chan error
	// Snapshot stores a diagnostic capture under name. Best effort.
	Snapshot(ctx context.Context, name string) error
}
