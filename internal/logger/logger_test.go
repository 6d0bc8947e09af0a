package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesRoleAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "relayer", "warn")

	l.Info().Msg("dropped")
	l.Warn().Str("vault", "0x01").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "relayer", entry["role"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "0x01", entry["vault"])
}

func TestFromContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "server", "debug").Named("dispatch")

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"dispatch"`)
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "server", "loud")

	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
