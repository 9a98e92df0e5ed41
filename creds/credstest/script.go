// Package credstest provides a scripted creds.Provider for tests.
package credstest

import (
	"context"
	"fmt"
	"sync"

	"orderscout/creds"
)

// Script answers prompts from queued values. Once a queue is empty the
// matching method returns creds.ErrNoInput.
type Script struct {
	mu          sync.Mutex
	identifiers []string
	secrets     []string
	codes       []string

	// Err, when set, is returned by every prompt.
	Err error

	notes    []string
	prompts  []string
	attempts [][2]int
}

var _ creds.Provider = (*Script)(nil)

// New returns an empty Script.
func New() *Script { return &Script{} }

func (s *Script) WithIdentifiers(v ...string) *Script {
	s.identifiers = append(s.identifiers, v...)
	return s
}

func (s *Script) WithSecrets(v ...string) *Script {
	s.secrets = append(s.secrets, v...)
	return s
}

func (s *Script) WithCodes(v ...string) *Script {
	s.codes = append(s.codes, v...)
	return s
}

func (s *Script) Identifier(ctx context.Context) (string, error) {
	return s.pop(ctx, "identifier", &s.identifiers)
}

func (s *Script) Secret(ctx context.Context) (string, error) {
	return s.pop(ctx, "secret", &s.secrets)
}

func (s *Script) Code(ctx context.Context, attempt, max int) (string, error) {
	s.mu.Lock()
	s.attempts = append(s.attempts, [2]int{attempt, max})
	s.mu.Unlock()
	return s.pop(ctx, "code", &s.codes)
}

func (s *Script) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, msg)
}

func (s *Script) pop(ctx context.Context, kind string, q *[]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, kind)
	if s.Err != nil {
		return "", s.Err
	}
	if len(*q) == 0 {
		return "", fmt.Errorf("%s: %w", kind, creds.ErrNoInput)
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v, nil
}

// Prompts lists the kinds asked for, in order.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Count returns how many times kind was asked for.
func (s *Script) Count(kind string) int {
	n := 0
	for _, p := range s.Prompts() {
		if p == kind {
			n++
		}
	}
	return n
}

// Notes returns the messages passed to Notify.
func (s *Script) Notes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes...)
}

// CodeAttempts returns the (attempt, max) pairs Code was called with.
func (s *Script) CodeAttempts() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.attempts...)
}
