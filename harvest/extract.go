package harvest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"orderscout/config"
)

// Extractor turns a history page's HTML into orders. It keeps no state
// between calls, so the same HTML always yields the same orders.
type Extractor struct {
	cfg  config.Extraction
	base *url.URL
	log  *zap.Logger
}

// NewExtractor resolves product links against baseURL.
func NewExtractor(cfg config.Extraction, baseURL string, log *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{cfg: cfg, base: base, log: log}, nil
}

// Extract reads orders from order cards. The first card selector with any
// match is used on its own. A page with no cards at all falls back to bare
// product links, one single-item order each.
func (x *Extractor) Extract(html string) ([]Order, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing history page: %w", err)
	}

	for _, sel := range x.cfg.OrderCards {
		cards := doc.Find(sel)
		if cards.Length() == 0 {
			continue
		}
		x.log.Debug("Order cards found", zap.String("selector", sel), zap.Int("count", cards.Length()))
		return x.fromCards(cards), nil
	}

	orders := x.fromLinks(doc.Selection)
	x.log.Debug("No order cards, used product links", zap.Int("count", len(orders)))
	return orders, nil
}

func (x *Extractor) fromCards(cards *goquery.Selection) []Order {
	var orders []Order
	cards.Each(func(i int, card *goquery.Selection) {
		o := x.card(card)
		if len(o.Items) == 0 {
			x.log.Debug("Dropping order without items", zap.Int("card", i), zap.String("date", o.OrderDate))
			return
		}
		orders = append(orders, o)
	})
	return orders
}

func (x *Extractor) card(card *goquery.Selection) Order {
	var o Order
	if values := x.headerValues(card); len(values) > 0 {
		o.OrderDate = at(values, x.cfg.DatePosition)
		o.Total = at(values, x.cfg.TotalPosition)
	}

	if boxes := firstMatch(card, x.cfg.DeliveryBoxes); boxes != nil && boxes.Length() > 1 {
		boxes.Each(func(_ int, box *goquery.Selection) {
			if it, ok := x.item(box); ok {
				o.Items = append(o.Items, it)
			}
		})
		return o
	}
	if it, ok := x.item(card); ok {
		o.Items = append(o.Items, it)
	}
	return o
}

// headerValues returns the non-empty texts of the first header selector
// that has any.
func (x *Extractor) headerValues(card *goquery.Selection) []string {
	for _, sel := range x.cfg.HeaderValues {
		var values []string
		card.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); t != "" {
				values = append(values, t)
			}
		})
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

// item reads one product from scope, physical titles before digital ones.
// A title is only taken together with a link that resolves.
func (x *Extractor) item(scope *goquery.Selection) (Item, bool) {
	for _, list := range [][]string{x.cfg.ProductTitle, x.cfg.DigitalTitle} {
		for _, sel := range list {
			node := scope.Find(sel).First()
			if node.Length() == 0 {
				continue
			}
			name := collapse(node.Text())
			if name == "" {
				continue
			}
			link := x.resolve(anchorHref(node))
			if link == "" {
				x.log.Debug("Product title without a link", zap.String("selector", sel), zap.String("name", name))
				continue
			}
			return Item{ProductName: name, Link: link}, true
		}
	}
	return Item{}, false
}

func (x *Extractor) fromLinks(doc *goquery.Selection) []Order {
	var orders []Order
	seen := map[string]bool{}
	for _, sel := range x.cfg.ProductLinks {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link := x.resolve(href)
			if link == "" || seen[link] {
				return
			}
			name := linkName(a)
			if name == "" {
				return
			}
			seen[link] = true
			orders = append(orders, Order{
				Total: x.priceNear(a),
				Items: []Item{{ProductName: name, Link: link}},
			})
		})
	}
	return orders
}

// priceNear looks for a price in the closest few ancestors of a.
func (x *Extractor) priceNear(a *goquery.Selection) string {
	node := a
	for i := 0; i < x.cfg.PriceAncestorDepth; i++ {
		node = node.Parent()
		if node.Length() == 0 {
			return ""
		}
		for _, sel := range x.cfg.PriceNodes {
			if t := collapse(node.Find(sel).First().Text()); t != "" {
				return t
			}
		}
	}
	return ""
}

func (x *Extractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := x.base.Parse(href)
	if err != nil {
		x.log.Debug("Unparseable product link", zap.String("href", href), zap.Error(err))
		return ""
	}
	return u.String()
}

func anchorHref(node *goquery.Selection) string {
	if goquery.NodeName(node) == "a" {
		href, _ := node.Attr("href")
		return href
	}
	if a := node.Closest("a"); a.Length() > 0 {
		href, _ := a.Attr("href")
		return href
	}
	href, _ := node.Find("a[href]").First().Attr("href")
	return href
}

func linkName(a *goquery.Selection) string {
	if t := collapse(a.Text()); t != "" {
		return t
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := a.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return collapse(v)
		}
	}
	alt, _ := a.Find("img[alt]").First().Attr("alt")
	return collapse(alt)
}

func firstMatch(scope *goquery.Selection, sels []string) *goquery.Selection {
	for _, sel := range sels {
		if m := scope.Find(sel); m.Length() > 0 {
			return m
		}
	}
	return nil
}

func at(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
