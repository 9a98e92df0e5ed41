package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orderscout/auth"
	"orderscout/config"
	"orderscout/creds/credstest"
	"orderscout/harvest"
	"orderscout/page"
	"orderscout/page/pagetest"
)

type fakeBrowser struct {
	f      *pagetest.Fake
	closed int
}

func (b *fakeBrowser) Driver() page.Driver { return b.f }

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

type memorySink struct {
	calls  int
	orders []harvest.Order
	err    error
}

func (s *memorySink) Emit(ctx context.Context, orders []harvest.Order) error {
	s.calls++
	s.orders = orders
	return s.err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Auth.PollInterval = time.Millisecond
	cfg.Auth.FieldWaitRounds = 5
	cfg.Auth.NavigationTimeout = 20 * time.Millisecond
	cfg.Harvest.PollInterval = time.Millisecond
	cfg.Harvest.NavPollRounds = 3
	cfg.Harvest.YearPollRounds = 3
	return cfg
}

func clock() time.Time { return time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC) }

const card = `<div class="order-card"><div class="order-header"><span class="a-color-secondary value">%s</span><span class="a-color-secondary value">$%d.00</span></div>` +
	`<div class="yohtmlc-product-title"><a href="/dp/B%d">Product %d</a></div></div>`

// store scripts a two-page sign-in for password "pw" and an order history
// with one order in each year listed in years.
func store(years ...int) *pagetest.Fake {
	f := pagetest.New()
	typed := map[string]string{}
	f.OnFill = func(f *pagetest.Fake, loc page.Locator, value string) error {
		typed[loc.String()] = value
		return nil
	}
	f.OnNavigate = func(f *pagetest.Fake, url string) error {
		f.HideAll()
		switch {
		case strings.Contains(url, "/ap/signin"):
			f.Show("#ap_email", "")
			f.Show("#continue", "Continue")
		case strings.Contains(url, "timeFilter=year-"):
			f.Show("#ordersContainer", "")
			for _, y := range years {
				if strings.HasSuffix(url, fmt.Sprint(y)) {
					f.SetCount(".order-card", 1)
					f.SetHTML(fmt.Sprintf(card, fmt.Sprintf("May 1, %d", y), y-2000, y, y))
					return nil
				}
			}
			f.Show("text=You have not placed any orders", "You have not placed any orders")
		}
		return nil
	}
	f.OnClick = func(f *pagetest.Fake, loc page.Locator) error {
		switch loc.String() {
		case "#continue":
			f.HideAll()
			f.SetURL("https://www.amazon.com/ap/signin")
			f.Show("#ap_password", "")
			f.Show("#signInSubmit", "Sign in")
		case "#signInSubmit":
			if typed["#ap_password"] != "pw" {
				f.Show("#auth-password-invalid-password-alert", "Your password is incorrect")
				return nil
			}
			f.HideAll()
			f.SetURL("https://www.amazon.com/")
			f.Show("#nav-orders", "Returns & Orders")
		case "#nav-orders":
			f.HideAll()
			f.SetURL("https://www.amazon.com/gp/css/order-history")
			f.Show("#ordersContainer", "")
		}
		return nil
	}
	return f
}

func deps(t *testing.T, b *fakeBrowser, sink *memorySink, secrets ...string) Deps {
	return Deps{
		Launch:   func(context.Context) (Browser, error) { return b, nil },
		Provider: credstest.New().WithIdentifiers("jordan@example.com").WithSecrets(secrets...),
		Sink:     sink,
		Logger:   zaptest.NewLogger(t),
		Clock:    clock,
	}
}

func TestRunEndToEnd(t *testing.T) {
	b := &fakeBrowser{f: store(2026, 2024)}
	sink := &memorySink{}

	res, err := Run(context.Background(), testConfig(), deps(t, b, sink, "pw"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []int{2026, 2025, 2024, 2023, 2022}, res.YearsVisited)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, "May 1, 2026", res.Orders[0].OrderDate)
	assert.Equal(t, "$26.00", res.Orders[0].Total)
	assert.Equal(t, "https://www.amazon.com/dp/B2024", res.Orders[1].Items[0].Link)
	assert.Equal(t, res.Orders, sink.orders)
	assert.Equal(t, 1, b.closed)
}

func TestRunWithNoOrdersSucceeds(t *testing.T) {
	b := &fakeBrowser{f: store()}
	sink := &memorySink{}

	res, err := Run(context.Background(), testConfig(), deps(t, b, sink, "pw"))
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.Equal(t, 1, sink.calls, "an empty result is still written")
	assert.Equal(t, 1, b.closed)
}

func TestRunAuthFailureSkipsHarvest(t *testing.T) {
	b := &fakeBrowser{f: store(2026)}
	sink := &memorySink{}

	_, err := Run(context.Background(), testConfig(), deps(t, b, sink, "no", "nope", "still no"))
	require.ErrorIs(t, err, auth.ErrAuthFailed)
	assert.Zero(t, sink.calls)
	assert.Empty(t, b.f.Ops("html"))
	for _, c := range b.f.Ops("navigate") {
		assert.NotContains(t, c.Arg, "timeFilter", "history is never opened")
	}
	assert.Equal(t, 1, b.closed)
}

func TestRunLaunchFailure(t *testing.T) {
	d := Deps{
		Launch: func(context.Context) (Browser, error) { return nil, errors.New("chrome not found") },
		Sink:   &memorySink{},
	}
	_, err := Run(context.Background(), testConfig(), d)
	require.ErrorIs(t, err, auth.ErrStartup)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestRunSinkFailure(t *testing.T) {
	b := &fakeBrowser{f: store(2026)}
	sink := &memorySink{err: errors.New("disk full")}

	res, err := Run(context.Background(), testConfig(), deps(t, b, sink, "pw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, res.Orders, 1, "orders are still reported")
	assert.Equal(t, 1, b.closed)
}
