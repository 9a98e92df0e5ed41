package creds

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterPipedInput(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  user@example.com \nhunter2\n123456"), &out)

	id, err := p.Identifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", id)

	secret, err := p.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)

	code, err := p.Code(ctx, 2, 3)
	require.NoError(t, err, "last line without newline is still an answer")
	assert.Equal(t, "123456", code)

	assert.Contains(t, out.String(), "Verification code (attempt 2/3)")

	_, err = p.Code(ctx, 3, 3)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestPrompterNotifyAndCancel(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("x\n"), &out)
	p.Notify("That identifier is not an email address or phone number.")
	assert.Contains(t, out.String(), "not an email address")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Identifier(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.Secret(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrompterTerminalSecretUsesReadPassword(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) {
		assert.Equal(t, 7, fd)
		return []byte("s3cret"), nil
	}

	var out bytes.Buffer
	p := &Prompter{out: &out, fd: 7, tty: true}
	secret, err := p.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
	assert.NotContains(t, out.String(), "s3cret")
}
