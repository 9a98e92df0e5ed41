package creds_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderscout/config"
	"orderscout/creds"
	"orderscout/creds/credstest"
)

func TestStaticSeedsFirstAnswerOnly(t *testing.T) {
	ctx := context.Background()
	fallback := credstest.New().WithIdentifiers("typed@example.com").WithSecrets("typed").WithCodes("111111")
	s := creds.NewStatic(config.Credentials{Identifier: "env@example.com", Secret: "env"}, fallback)

	id, err := s.Identifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", id)
	secret, err := s.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env", secret)

	id, err = s.Identifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "typed@example.com", id, "retries go to the fallback")
	secret, err = s.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "typed", secret)

	code, err := s.Code(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "111111", code)

	s.Notify("hello")
	assert.Equal(t, []string{"hello"}, fallback.Notes())
}

func TestStaticWithoutFallback(t *testing.T) {
	ctx := context.Background()
	s := creds.NewStatic(config.Credentials{Identifier: "5551234567"}, nil)

	id, err := s.Identifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5551234567", id)

	_, err = s.Identifier(ctx)
	assert.ErrorIs(t, err, creds.ErrNoInput)
	_, err = s.Secret(ctx)
	assert.ErrorIs(t, err, creds.ErrNoInput)
	_, err = s.Code(ctx, 1, 3)
	assert.ErrorIs(t, err, creds.ErrNoInput)
	assert.NotPanics(t, func() { s.Notify("ignored") })
}
