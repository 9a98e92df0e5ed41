// Package creds supplies the identifier, secret and one-time codes the login
// flow asks for. Values live in memory only and are never logged.
package creds

import (
	"context"
	"errors"
)

// ErrNoInput is returned when a provider has nothing more to offer, such as
// end of piped input.
var ErrNoInput = errors.New("no input available")

// Provider is asked for credentials whenever the login flow needs them.
// Each call is a fresh prompt; providers do not validate values.
type Provider interface {
	Identifier(ctx context.Context) (string, error)
	Secret(ctx context.Context) (string, error)
	// Code asks for the one-time code of the given attempt (1-based).
	Code(ctx context.Context, attempt, max int) (string, error)
	// Notify shows a message to whoever is answering the prompts.
	Notify(msg string)
}
