package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)

	logger.WithField("component", "api").Debug("listening")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "listening", entry["msg"])
	assert.Equal(t, "api", entry["component"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithOutputDefaults(t *testing.T) {
	logger, err := NewWithOutput(&bytes.Buffer{}, "", "")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewWithOutputRejectsBadInput(t *testing.T) {
	_, err := NewWithOutput(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = NewWithOutput(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
