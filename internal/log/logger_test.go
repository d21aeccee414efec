package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResolveLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, resolveLevel("development", ""))
	assert.Equal(t, zerolog.InfoLevel, resolveLevel("production", ""))
	assert.Equal(t, zerolog.WarnLevel, resolveLevel("production", "WARN"))
	assert.Equal(t, zerolog.InfoLevel, resolveLevel("production", "loud"))
}

func TestNewLoggerWritesEnv(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Info().Str("user_id", "u1").Msg("login succeeded")
	logger.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "login succeeded")
	assert.Contains(t, out, "env=production")
	assert.Contains(t, out, "user_id=u1")
	assert.NotContains(t, out, "hidden")
}
