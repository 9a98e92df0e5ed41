package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orderscout/config"
	"orderscout/creds"
	"orderscout/output"
)

func TestRootCmdVersionFlag(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, Version+"\n", out.String())
}

func TestRootCmdRejectsArguments(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"extra"})

	require.Error(t, root.ExecuteContext(context.Background()))
}

func TestFlagsOverrideConfig(t *testing.T) {
	o := &options{}
	root := newRootCmdWith(o)
	require.NoError(t, root.ParseFlags([]string{"--headless", "-o", "/tmp/orders.json", "--no-table"}))

	cfg := config.Default()
	cfg.Browser.Fresh = true
	o.apply(root, &cfg)

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Fresh, "unset flags leave the config alone")
	assert.Equal(t, "/tmp/orders.json", cfg.Output.File)
	assert.False(t, cfg.Output.Table)
}

func TestBuildProvider(t *testing.T) {
	log := zaptest.NewLogger(t)
	in := strings.NewReader("")

	cfg := config.Default()
	p, err := buildProvider(cfg, in, &bytes.Buffer{}, log)
	require.NoError(t, err)
	assert.IsType(t, &creds.Prompter{}, p)

	cfg.Credentials = config.Credentials{Identifier: "jordan@example.com", Secret: "pw"}
	p, err = buildProvider(cfg, in, &bytes.Buffer{}, log)
	require.NoError(t, err)
	assert.IsType(t, &creds.Static{}, p)
	id, err := p.Identifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jordan@example.com", id)

	cfg.IMAP.Enabled = true
	cfg.IMAP.Server = "imap.example.com"
	p, err = buildProvider(cfg, in, &bytes.Buffer{}, log)
	require.NoError(t, err)
	assert.IsType(t, &creds.Mailbox{}, p)

	cfg.IMAP.CodePattern = "("
	_, err = buildProvider(cfg, in, &bytes.Buffer{}, log)
	require.Error(t, err)
}

func TestBuildSinks(t *testing.T) {
	log := zaptest.NewLogger(t)

	cfg := config.Default()
	sinks, closeSinks := buildSinks(cfg, &bytes.Buffer{}, log)
	closeSinks()
	require.Len(t, sinks, 2)
	assert.Equal(t, output.JSONFile{Path: "orders.json"}, sinks[0])
	assert.IsType(t, output.Console{}, sinks[1])

	cfg.Output.File = ""
	cfg.Output.Console = false
	cfg.Influx = config.Influx{Enabled: true, URL: "http://localhost:8086", Org: "home", Bucket: "orders", Measurement: "purchase"}
	sinks, closeSinks = buildSinks(cfg, &bytes.Buffer{}, log)
	defer closeSinks()
	require.Len(t, sinks, 1)
	assert.IsType(t, &output.Influx{}, sinks[0])
}
