package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusd/internal/shared/types"
)

func TestInitWithWriter_FacadeFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "info"}, &buf))

	Info().Str("addr", "127.0.0.1:9000").Int("port", 9000).Uint16("code", 42).Msg("Response received")
	Error().Err(errors.New("connection refused")).Msg("Failed to send message")

	out := buf.String()
	assert.Contains(t, out, "Response received")
	assert.Contains(t, out, "127.0.0.1:9000")
	assert.Contains(t, out, "connection refused")
}

func TestInitWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "warn"}, &buf))

	Info().Msg("hidden")
	Warn().Msg("shown")
	componentLog := WithComponent("acceptor")
	componentLog.Warn().Msg("component line")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "acceptor")
}
