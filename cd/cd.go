// Package cd drives a real Chrome tab through chromedp and exposes it as a
// page.Driver.
package cd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"orderscout/config"
	"orderscout/page"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// markerAttr tags the element a Fill or Click resolved to, so chromedp can
// address it with a plain css query whatever kind of locator found it.
const markerAttr = "data-orderscout-target"

// Browser is one Chrome process with a single tab. Close must be called on
// every path once CreateBrowser succeeds.
type Browser struct {
	tab         *Tab
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	once        sync.Once
	log         *zap.Logger
}

// CreateBrowser starts Chrome and opens its first tab.
//
// - Headless determines if the browser window is visible or not.
//
// - Fresh wipes the profile directory first, so no earlier session is reused.
//
// - UserDataDir keeps cookies between runs; "~" is expanded.
func CreateBrowser(ctx context.Context, cfg config.Browser, log *zap.Logger) (*Browser, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir, err := profileDir(cfg)
	if err != nil {
		return nil, err
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if dir != "" {
		opts = append(opts, chromedp.UserDataDir(dir))
	}
	for _, arg := range cfg.Args {
		name, value := splitFlag(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	sugar := log.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	// An empty Run launches the process and attaches to the first tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	log.Info("Browser started", zap.Bool("headless", cfg.Headless), zap.String("profile", dir))

	return &Browser{
		tab:         &Tab{ctx: tabCtx, cfg: cfg, log: log},
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		log:         log,
	}, nil
}

// Driver returns the tab.
func (b *Browser) Driver() page.Driver { return b.tab }

// Close shuts the tab and the Chrome process down. Safe to call twice.
func (b *Browser) Close() error {
	var err error
	b.once.Do(func() {
		err = chromedp.Cancel(b.tab.ctx)
		b.cancelTab()
		b.cancelAlloc()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		b.log.Info("Browser closed")
	})
	return err
}

func profileDir(cfg config.Browser) (string, error) {
	if cfg.UserDataDir == "" {
		return "", nil
	}
	dir, err := homedir.Expand(cfg.UserDataDir)
	if err != nil {
		return "", fmt.Errorf("expanding profile directory: %w", err)
	}
	if cfg.Fresh {
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("removing existing profile directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating profile directory: %w", err)
	}
	return dir, nil
}

// splitFlag turns "--name=value" or "name" into a chromedp flag pair.
func splitFlag(arg string) (string, any) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}

// Tab implements page.Driver on a chromedp context.
type Tab struct {
	ctx context.Context
	cfg config.Browser
	log *zap.Logger
}

var _ page.Driver = (*Tab)(nil)

// run executes actions on the tab, bounded by the action timeout and by the
// caller's ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if t.cfg.ActionTimeout > 0 {
		opCtx, cancel = context.WithTimeout(t.ctx, t.cfg.ActionTimeout)
	} else {
		opCtx, cancel = context.WithCancel(t.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", page.ErrTimeout, err)
	}
	return err
}

// lookupResult is what the resolver script reports about a locator.
type lookupResult struct {
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

func (t *Tab) lookup(ctx context.Context, loc page.Locator, mark string) (lookupResult, error) {
	expr, err := resolverExpr(loc, mark)
	if err != nil {
		return lookupResult{}, err
	}
	var p lookupResult
	if err := t.run(ctx, chromedp.Evaluate(expr, &p)); err != nil {
		return lookupResult{}, err
	}
	return p, nil
}

// Navigate loads url in the tab and waits for chromedp to report it loaded.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.log.Debug("Navigating", zap.String("url", url))
	if err := t.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Count returns how many elements match loc, visible or not.
func (t *Tab) Count(ctx context.Context, loc page.Locator) (int, error) {
	p, err := t.lookup(ctx, loc, "")
	return p.Count, err
}

// Visible reports whether any match of loc is rendered with a non-empty
// box and is not hidden by style.
func (t *Tab) Visible(ctx context.Context, loc page.Locator) (bool, error) {
	p, err := t.lookup(ctx, loc, "")
	return p.Visible, err
}

// Text returns the trimmed text of the first visible match of loc, or "".
func (t *Tab) Text(ctx context.Context, loc page.Locator) (string, error) {
	p, err := t.lookup(ctx, loc, "")
	return p.Text, err
}

// Fill clears the first visible match and types value into it. value is
// never logged.
func (t *Tab) Fill(ctx context.Context, loc page.Locator, value string) error {
	sel, err := t.mark(ctx, loc)
	if err != nil {
		return err
	}
	if err := t.run(ctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("filling %s: %w", loc, err)
	}
	return nil
}

// Click clicks the first visible match of loc.
//
// - loc is resolved in the page first; a miss returns page.ErrNotFound
func (t *Tab) Click(ctx context.Context, loc page.Locator) error {
	sel, err := t.mark(ctx, loc)
	if err != nil {
		return err
	}
	if err := t.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

// mark tags the first visible match of loc and returns a css selector for it.
func (t *Tab) mark(ctx context.Context, loc page.Locator) (string, error) {
	id := uuid.NewString()
	p, err := t.lookup(ctx, loc, id)
	if err != nil {
		return "", err
	}
	if !p.Visible {
		return "", fmt.Errorf("%s: %w", loc, page.ErrNotFound)
	}
	return markerSelector(id), nil
}

func markerSelector(id string) string {
	return fmt.Sprintf(`[%s="%s"]`, markerAttr, id)
}

// CurrentURL returns the address of the loaded document.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := t.run(ctx, chromedp.Location(&u))
	return u, err
}

// Title returns the document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	var title string
	err := t.run(ctx, chromedp.Title(&title))
	return title, err
}

// BodyText returns the rendered text of the body.
func (t *Tab) BodyText(ctx context.Context) (string, error) {
	var text string
	err := t.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// HTML returns the serialized document, including content added by scripts.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	err := t.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

// WatchNavigation waits in the background for the next load event on the
// tab. The listener is registered before it returns; it sends no commands,
// so it can run beside other calls.
//
// - timeout is how long to wait before the channel yields page.ErrTimeout
func (t *Tab) WatchNavigation(ctx context.Context, timeout time.Duration) <-chan error {
	loaded := make(chan struct{}, 1)
	lctx, cancel := context.WithCancel(t.ctx)
	chromedp.ListenTarget(lctx, func(ev any) {
		if _, ok := ev.(*cdpage.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer cancel()
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-loaded:
			done <- nil
		case <-timer.C:
			done <- page.ErrTimeout
		case <-ctx.Done():
			done <- ctx.Err()
		}
	}()
	return done
}

// Snapshot writes a PNG of the viewport to <snapshot_dir>/<name>.png.
func (t *Tab) Snapshot(ctx context.Context, name string) error {
	if !t.cfg.Snapshots {
		return nil
	}
	var buf []byte
	if err := t.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	dir := t.cfg.SnapshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("saving screenshot: %w", err)
	}
	t.log.Info("Saved snapshot", zap.String("path", path))
	return nil
}
