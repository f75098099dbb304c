package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"imposter/internal/config"
	"imposter/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCmd_EnvAndFlags(t *testing.T) {
	t.Setenv("IMPOSTER_PORT", "9000")
	t.Setenv("IMPOSTER_MAX_ROOMS", "12")

	cfg := config.Defaults()
	cmd := newCmd(&cfg, nil)
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs([]string{"--max-rooms", "3"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRooms, "command line wins over environment")
}

func TestNewCmd_Version(t *testing.T) {
	cfg := config.Defaults()
	cmd := newCmd(&cfg, nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "imposter v"+releaseVersion+"\n", out.String())
}

func TestNewCmd_RejectsArgs(t *testing.T) {
	cfg := config.Defaults()
	cmd := newCmd(&cfg, nil)
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestWarnEnv_UsesStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logging.SetupWriter(&buf, "info", false))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	warnEnv(nil)
	assert.Zero(t, buf.Len(), "nothing logged without an error")

	warnEnv(errors.New("line 3: unexpected character"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "reading .env", line["message"])
	assert.Equal(t, "line 3: unexpected character", line["error"])
}
