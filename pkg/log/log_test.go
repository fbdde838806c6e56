package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithInvocation(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithInvocation("abc", "dsc", "replaced")
	logger.Info().Str("state", "FETCHING").Msg("entering state")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["invocation_id"])
	assert.Equal(t, "dsc", entry["subsystem"])
	assert.Equal(t, "replaced", entry["operation"])
	assert.Equal(t, "FETCHING", entry["state"])
	assert.Equal(t, "info", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel, JSONOutput: true, Output: &bytes.Buffer{}})

	Logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	Logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}
