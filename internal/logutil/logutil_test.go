package logutil

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)

	log.Info("skipped")
	log.Warn("kept", "chat_id", int64(42))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.EqualValues(t, 42, rec["chat_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "", "")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown", "task", "object_detection")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "task=object_detection")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := New("verbose", "text")
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
}
