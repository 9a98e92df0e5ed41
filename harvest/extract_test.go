package harvest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderscout/config"
)

func orderCard(date, total string, products ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="order-card js-order-card"><div class="order-header"><ul>`)
	fmt.Fprintf(&b, `<li class="order-header__header-list-item"><span class="a-text-caps">Order placed</span><span class="a-size-base">%s</span></li>`, date)
	fmt.Fprintf(&b, `<li class="order-header__header-list-item"><span class="a-text-caps">Total</span><span class="a-size-base">%s</span></li>`, total)
	b.WriteString(`</ul></div>`)
	for i, p := range products {
		fmt.Fprintf(&b, `<div class="delivery-box"><div class="yohtmlc-product-title"><a class="a-link-normal" href="/dp/B%07d?ref=ppx">  %s  </a></div></div>`, i+1, p)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func historyPage(body ...string) string {
	return "<html><body><div id=\"ordersContainer\">" + strings.Join(body, "") + "</div></body></html>"
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	x, err := NewExtractor(config.Default().Extraction, "https://www.amazon.com", nil)
	require.NoError(t, err)
	return x
}

func TestExtractOrderCards(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(
		orderCard("March 3, 2026", "$12.99", "USB-C cable"),
		orderCard("February 14, 2026", "$45.10", "Coffee grinder", "Descaling\n   tablets"),
	)

	got, err := x.Extract(html)
	require.NoError(t, err)
	want := []Order{
		{
			OrderDate: "March 3, 2026",
			Total:     "$12.99",
			Items:     []Item{{ProductName: "USB-C cable", Link: "https://www.amazon.com/dp/B0000001?ref=ppx"}},
		},
		{
			OrderDate: "February 14, 2026",
			Total:     "$45.10",
			Items: []Item{
				{ProductName: "Coffee grinder", Link: "https://www.amazon.com/dp/B0000001?ref=ppx"},
				{ProductName: "Descaling tablets", Link: "https://www.amazon.com/dp/B0000002?ref=ppx"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(
		orderCard("January 2, 2025", "$5.00", "Notebook"),
		orderCard("January 1, 2025", "$9.00", "Pen", "Ink"),
	)
	first, err := x.Extract(html)
	require.NoError(t, err)
	second, err := x.Extract(html)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second extraction differs (-first +second):\n%s", diff)
	}
}

func TestExtractDropsCardsWithoutItems(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(
		orderCard("May 1, 2025", "$0.00"),
		orderCard("April 1, 2025", "$3.50", "Stickers"),
	)
	got, err := x.Extract(html)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Stickers", got[0].Items[0].ProductName)
}

func TestExtractDigitalItem(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(`<div class="order-card">
		<div class="order-header"><span class="a-color-secondary value">June 9, 2024</span><span class="a-color-secondary value">$7.99</span></div>
		<div class="yohtmlc-digital-title"><a href="/gp/digital/your-account/order-summary.html?orderID=D01">The Go Programming Language [Kindle]</a></div>
	</div>`)

	got, err := x.Extract(html)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "June 9, 2024", got[0].OrderDate)
	assert.Equal(t, "$7.99", got[0].Total)
	assert.Equal(t, []Item{{
		ProductName: "The Go Programming Language [Kindle]",
		Link:        "https://www.amazon.com/gp/digital/your-account/order-summary.html?orderID=D01",
	}}, got[0].Items)
}

func TestExtractSingleDeliveryBoxUsesCard(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(`<div class="order-card">
		<div class="delivery-box"><a class="a-link-normal" href="/dp/B01"><img alt="Lamp"></a></div>
		<div class="delivery-box"><a class="a-link-normal" href="/dp/B02">Desk</a></div>
	</div>`, `<div class="order-card">
		<div class="delivery-box"><div class="yohtmlc-product-title"><span>Chair</span><a href="/dp/B03"></a></div></div>
	</div>`)

	got, err := x.Extract(html)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Two boxes: one item per box that has a titled product.
	assert.Equal(t, []Item{{ProductName: "Desk", Link: "https://www.amazon.com/dp/B02"}}, got[0].Items)
	// One box: the card yields a single item, link found inside the title.
	assert.Equal(t, []Item{{ProductName: "Chair", Link: "https://www.amazon.com/dp/B03"}}, got[1].Items)
	assert.Empty(t, got[1].OrderDate)
}

func TestExtractSkipsTitlesWithoutLinks(t *testing.T) {
	x := newTestExtractor(t)
	html := historyPage(`<div class="order-card">
		<div class="order-header"><span class="a-color-secondary value">May 2, 2026</span><span class="a-color-secondary value">$50.00</span></div>
		<div class="yohtmlc-product-title">Gift card balance reload</div>
	</div>`, `<div class="order-card">
		<div class="order-header"><span class="a-color-secondary value">May 1, 2026</span><span class="a-color-secondary value">$89.00</span></div>
		<div class="yohtmlc-product-title">Wireless headphones</div>
		<a class="a-link-normal" href="/dp/B09">Wireless headphones, black</a>
	</div>`)

	got, err := x.Extract(html)
	require.NoError(t, err)
	require.Len(t, got, 1, "a card with no linked product is dropped")
	assert.Equal(t, "May 1, 2026", got[0].OrderDate)
	assert.Equal(t, []Item{{ProductName: "Wireless headphones, black", Link: "https://www.amazon.com/dp/B09"}}, got[0].Items)
	for _, o := range got {
		for _, it := range o.Items {
			assert.NotEmpty(t, it.Link)
		}
	}
}

func TestExtractFallsBackToProductLinks(t *testing.T) {
	x := newTestExtractor(t)
	html := `<html><body>
		<div class="item">
			<a href="/dp/B1"><img src="mug.jpg" alt="Blue Mug"></a>
			<a href="/dp/B1">Blue Mug</a>
			<span class="a-price"><span class="a-offscreen">$9.50</span></span>
		</div>
		<div class="item"><div><a href="https://www.amazon.com/gp/product/B2" title="Red Pen"></a></div><span class="a-color-price">$1.25</span></div>
		<div class="item"><a href="/dp/B3"></a></div>
	</body></html>`

	got, err := x.Extract(html)
	require.NoError(t, err)
	want := []Order{
		{Total: "$9.50", Items: []Item{{ProductName: "Blue Mug", Link: "https://www.amazon.com/dp/B1"}}},
		{Total: "$1.25", Items: []Item{{ProductName: "Red Pen", Link: "https://www.amazon.com/gp/product/B2"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	x := newTestExtractor(t)
	got, err := x.Extract("<html><body><p>You have not placed any orders in 2022.</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFirstCardSelectorWins(t *testing.T) {
	cfg := config.Default().Extraction
	cfg.OrderCards = []string{".order-card", "div.order"}
	x, err := NewExtractor(cfg, "https://www.amazon.com", nil)
	require.NoError(t, err)

	html := historyPage(
		orderCard("March 1, 2026", "$1.00", "A"),
		`<div class="order"><div class="yohtmlc-product-title"><a href="/dp/Z">Z</a></div></div>`,
	)
	got, err := x.Extract(html)
	require.NoError(t, err)
	require.Len(t, got, 1, "later selectors are not merged in")
	assert.Equal(t, "A", got[0].Items[0].ProductName)
}
