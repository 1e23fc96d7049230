package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.Debug("hidden")
	log.Info("crawl started", "timeframe", "current")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "crawl started", entry["msg"])
	assert.Equal(t, "current", entry["timeframe"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "text")

	log.Debug("scroll", "iteration", 3)

	assert.Contains(t, buf.String(), "msg=scroll")
	assert.Contains(t, buf.String(), "iteration=3")
}
