package creds

import (
	"context"

	"orderscout/config"
)

// Static answers the first identifier and secret requests from
// configuration and hands every later request to a fallback provider.
// Codes always come from the fallback.
type Static struct {
	identifier string
	secret     string
	fallback   Provider
}

// NewStatic seeds a provider from c. fallback may be nil, in which case
// requests beyond the seeded values fail with ErrNoInput.
func NewStatic(c config.Credentials, fallback Provider) *Static {
	return &Static{identifier: c.Identifier, secret: c.Secret, fallback: fallback}
}

// Identifier returns the configured identifier once, then defers to the
// fallback.
func (s *Static) Identifier(ctx context.Context) (string, error) {
	if v := s.identifier; v != "" {
		s.identifier = ""
		return v, nil
	}
	if s.fallback == nil {
		return "", ErrNoInput
	}
	return s.fallback.Identifier(ctx)
}

// Secret returns the configured secret once, then defers to the fallback.
func (s *Static) Secret(ctx context.Context) (string, error) {
	if v := s.secret; v != "" {
		s.secret = ""
		return v, nil
	}
	if s.fallback == nil {
		return "", ErrNoInput
	}
	return s.fallback.Secret(ctx)
}

// Code always comes from the fallback.
func (s *Static) Code(ctx context.Context, attempt, max int) (string, error) {
	if s.fallback == nil {
		return "", ErrNoInput
	}
	return s.fallback.Code(ctx, attempt, max)
}

// Notify forwards msg to the fallback, if any.
func (s *Static) Notify(msg string) {
	if s.fallback != nil {
		s.fallback.Notify(msg)
	}
}
