package creds

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"orderscout/config"
)

// Mailbox reads one-time codes from an IMAP inbox. Identifier, secret and
// notifications, as well as codes that never arrive, go to the fallback.
type Mailbox struct {
	cfg      config.IMAP
	fallback Provider
	pattern  *regexp.Regexp
	log      *zap.Logger

	// fetch returns the text of the newest matching message received since
	// the given time, or "" when there is none.
	fetch    func(ctx context.Context, since time.Time) (string, error)
	now      func() time.Time
	lastCode string
}

// NewMailbox wraps fallback with IMAP code retrieval.
func NewMailbox(cfg config.IMAP, fallback Provider, log *zap.Logger) (*Mailbox, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var pattern *regexp.Regexp
	if cfg.CodePattern != "" {
		var err error
		if pattern, err = regexp.Compile(cfg.CodePattern); err != nil {
			return nil, fmt.Errorf("compiling imap code pattern: %w", err)
		}
	}
	m := &Mailbox{cfg: cfg, fallback: fallback, pattern: pattern, log: log, now: time.Now}
	m.fetch = m.fetchLatest
	return m, nil
}

// Identifier is always asked of the fallback.
func (m *Mailbox) Identifier(ctx context.Context) (string, error) { return m.fallback.Identifier(ctx) }

// Secret is always asked of the fallback.
func (m *Mailbox) Secret(ctx context.Context) (string, error) { return m.fallback.Secret(ctx) }

// Notify forwards msg to the fallback.
func (m *Mailbox) Notify(msg string) { m.fallback.Notify(msg) }

// Code polls the inbox until a code different from the last one used shows
// up or cfg.Wait passes, then falls back to asking.
func (m *Mailbox) Code(ctx context.Context, attempt, max int) (string, error) {
	// Mail servers stamp SINCE with a date only, so look back a little.
	since := m.now().Add(-5 * time.Minute)
	deadline := m.now().Add(m.cfg.Wait)

	for {
		body, err := m.fetch(ctx, since)
		if err != nil {
			m.log.Warn("Fetching verification email failed", zap.Error(err))
		} else if code := extractCode(body, m.cfg.StartDelimiter, m.cfg.EndDelimiter, m.pattern); code != "" && code != m.lastCode {
			m.lastCode = code
			m.log.Info("Verification code received by email", zap.Int("attempt", attempt))
			return code, nil
		}

		if !m.now().Before(deadline) {
			break
		}
		timer := time.NewTimer(m.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	m.log.Warn("No verification email arrived", zap.Duration("waited", m.cfg.Wait))
	m.fallback.Notify("No verification email arrived; enter the code manually.")
	return m.fallback.Code(ctx, attempt, max)
}

// fetchLatest logs in, searches INBOX for the newest message with the
// configured subject and returns its text.
func (m *Mailbox) fetchLatest(ctx context.Context, since time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr := m.cfg.Server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		if m.cfg.TLS {
			addr += ":993"
		} else {
			addr += ":143"
		}
	}

	var (
		c   *client.Client
		err error
	)
	if m.cfg.TLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return "", fmt.Errorf("connecting to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		return "", fmt.Errorf("logging into IMAP server: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return "", fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Subject", m.cfg.Subject)
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("searching emails: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ids[len(ids)-1])
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
	}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetching email: %w", err)
	}
	if msg == nil {
		return "", nil
	}
	r := msg.GetBody(section)
	if r == nil {
		return "", nil
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading email body: %w", err)
	}
	return string(body), nil
}

// extractCode cuts body down to the text between start and end (either may
// be empty) and, when pattern is set, returns its first match there.
func extractCode(body, start, end string, pattern *regexp.Regexp) string {
	if start != "" {
		_, after, ok := strings.Cut(body, start)
		if !ok {
			return ""
		}
		body = after
	}
	if end != "" {
		before, _, ok := strings.Cut(body, end)
		if !ok {
			return ""
		}
		body = before
	}
	if pattern != nil {
		return pattern.FindString(body)
	}
	return strings.TrimSpace(body)
}
