package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "debug", false))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := Component("rooms")
	logger.Info().Str("code", "ABCDE").Msg("room created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rooms", line["component"])
	assert.Equal(t, "ABCDE", line["code"])
	assert.Equal(t, "room created", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestSetupWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "WARN", false))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupWriter_EmptyLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "", false))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupWriter_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetupWriter(&buf, "loud", false))
}
