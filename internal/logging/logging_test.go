package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithLoglevelKey(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "")
	require.NoError(t, err)

	logger.WithField("session_id", "abc").Info("Session.Open.Start")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["loglevel"])
	assert.Equal(t, "Session.Open.Start", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.NotContains(t, entry, "level")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	_, err = NewLogger(&buf, "loud")
	assert.Error(t, err)
}
