// Package page defines the small capability surface the login and harvest
// flows need from a browser tab, plus the helpers used to find elements on a
// page whose markup changes without notice.
package page

import (
	"fmt"
	"strings"
)

// Kind selects how a Locator's Query is interpreted.
type Kind int

const (
	// CSS queries with document.querySelectorAll.
	CSS Kind = iota
	// XPath queries with document.evaluate.
	XPath
	// Text matches elements whose visible text contains Locator.Text.
	Text
)

func (k Kind) String() string {
	switch k {
	case CSS:
		return "css"
	case XPath:
		return "xpath"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Locator is a declarative description of an element.
//
// The string form accepted by Parse is:
//
//	#ap_email                 css selector
//	css=#ap_email             css selector
//	xpath=//a[@id='nav']      xpath expression
//	text=a|Your Orders        <a> elements containing "Your Orders"
//	text=Your Orders          any element containing "Your Orders"
//
// Text matching is case-insensitive and keeps only the innermost matching
// elements, so a page's <body> never matches just because it contains the text.
type Locator struct {
	Kind  Kind
	Query string
	Text  string
}

// CSSLocator is shorthand for a plain css selector.
func CSSLocator(sel string) Locator {
	return Locator{Kind: CSS, Query: sel}
}

// Parse converts the string form of a locator.
func Parse(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	switch {
	case strings.HasPrefix(s, "xpath="):
		q := strings.TrimSpace(strings.TrimPrefix(s, "xpath="))
		if q == "" {
			return Locator{}, fmt.Errorf("locator %q: empty xpath", s)
		}
		return Locator{Kind: XPath, Query: q}, nil
	case strings.HasPrefix(s, "text="):
		body := strings.TrimPrefix(s, "text=")
		tag, text := "*", body
		if i := strings.Index(body, "|"); i >= 0 {
			tag, text = strings.TrimSpace(body[:i]), body[i+1:]
			if tag == "" {
				tag = "*"
			}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return Locator{}, fmt.Errorf("locator %q: empty text", s)
		}
		return Locator{Kind: Text, Query: tag, Text: text}, nil
	case strings.HasPrefix(s, "css="):
		q := strings.TrimSpace(strings.TrimPrefix(s, "css="))
		if q == "" {
			return Locator{}, fmt.Errorf("locator %q: empty css selector", s)
		}
		return Locator{Kind: CSS, Query: q}, nil
	default:
		return Locator{Kind: CSS, Query: s}, nil
	}
}

// MustParse is Parse for package-level tables and tests.
func MustParse(s string) Locator {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseAll parses an ordered candidate list, keeping its order.
func ParseAll(ss []string) ([]Locator, error) {
	out := make([]Locator, 0, len(ss))
	for _, s := range ss {
		l, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// String returns the form accepted by Parse.
func (l Locator) String() string {
	switch l.Kind {
	case XPath:
		return "xpath=" + l.Query
	case Text:
		if l.Query == "" || l.Query == "*" {
			return "text=" + l.Text
		}
		return "text=" + l.Query + "|" + l.Text
	default:
		return l.Query
	}
}

// UnmarshalText lets config decoding turn strings straight into locators.
func (l *Locator) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
