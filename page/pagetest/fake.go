// Package pagetest provides a scripted in-memory page.Driver for tests.
package pagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"orderscout/page"
)

// Call records one driver invocation.
type Call struct {
	Op  string
	Arg string
}

// Fake is a page.Driver whose page state is set directly by tests. Elements
// are keyed by the locator's string form. Hooks run without the lock held,
// so they may mutate the fake.
type Fake struct {
	mu sync.Mutex

	url     string
	title   string
	body    string
	html    string
	visible map[string]string
	present map[string]int
	calls   []Call
	shots   []string

	NavigateErr error
	NavWaitErr  error
	FillErr     error

	OnNavigate func(f *Fake, url string) error
	OnFill     func(f *Fake, loc page.Locator, value string) error
	OnClick    func(f *Fake, loc page.Locator) error
}

// New returns an empty fake at about:blank.
func New() *Fake {
	return &Fake{
		url:     "about:blank",
		visible: map[string]string{},
		present: map[string]int{},
	}
}

var _ page.Driver = (*Fake)(nil)

// Show makes loc visible with the given text.
func (f *Fake) Show(loc, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := page.MustParse(loc).String()
	f.visible[key] = text
	if f.present[key] == 0 {
		f.present[key] = 1
	}
}

// Hide removes loc from the page.
func (f *Fake) Hide(locs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, loc := range locs {
		key := page.MustParse(loc).String()
		delete(f.visible, key)
		delete(f.present, key)
	}
}

// HideAll clears every element, like a navigation to a blank page.
func (f *Fake) HideAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = map[string]string{}
	f.present = map[string]int{}
}

// SetCount marks loc as present n times without making it visible.
func (f *Fake) SetCount(loc string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.present[page.MustParse(loc).String()] = n
}

// SetURL sets the current address.
func (f *Fake) SetURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = u
}

// SetTitle sets the document title.
func (f *Fake) SetTitle(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = t
}

// SetBody sets the body text.
func (f *Fake) SetBody(b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = b
}

// SetHTML sets the document source.
func (f *Fake) SetHTML(h string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = h
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops returns the recorded calls for one operation.
func (f *Fake) Ops(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Snapshots returns the snapshot names taken so far.
func (f *Fake) Snapshots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shots...)
}

func (f *Fake) record(op, arg string) {
	f.calls = append(f.calls, Call{Op: op, Arg: arg})
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.record("navigate", url)
	err := f.NavigateErr
	hook := f.OnNavigate
	if err == nil {
		f.url = url
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		return hook(f, url)
	}
	return nil
}

func (f *Fake) Count(ctx context.Context, loc page.Locator) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present[loc.String()], nil
}

func (f *Fake) Visible(ctx context.Context, loc page.Locator) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visible[loc.String()]
	return ok, nil
}

func (f *Fake) Text(ctx context.Context, loc page.Locator) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[loc.String()], nil
}

func (f *Fake) Fill(ctx context.Context, loc page.Locator, value string) error {
	f.mu.Lock()
	f.record("fill", loc.String())
	_, ok := f.visible[loc.String()]
	err := f.FillErr
	hook := f.OnFill
	f.mu.Unlock()
	if !ok {
		return page.ErrNotFound
	}
	if err != nil {
		return err
	}
	if hook != nil {
		return hook(f, loc, value)
	}
	return nil
}

func (f *Fake) Click(ctx context.Context, loc page.Locator) error {
	f.mu.Lock()
	f.record("click", loc.String())
	_, ok := f.visible[loc.String()]
	hook := f.OnClick
	f.mu.Unlock()
	if !ok {
		return page.ErrNotFound
	}
	if hook != nil {
		return hook(f, loc)
	}
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *Fake) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, nil
}

func (f *Fake) BodyText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("html", "")
	return f.html, nil
}

// WatchNavigation records a "watch" call before returning. The result is
// NavWaitErr; ErrTimeout is only delivered once timeout has passed.
func (f *Fake) WatchNavigation(ctx context.Context, timeout time.Duration) <-chan error {
	f.mu.Lock()
	f.record("watch", "")
	err := f.NavWaitErr
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		if errors.Is(err, page.ErrTimeout) {
			t := time.NewTimer(timeout)
			defer t.Stop()
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case <-t.C:
			}
		}
		done <- err
	}()
	return done
}

func (f *Fake) Snapshot(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shots = append(f.shots, name)
	return nil
}
