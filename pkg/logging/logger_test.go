package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"DEBUG", LevelDebug, false},
		{" warning ", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, JSON: true, Output: &buf, Component: "campaign"})

	logger.Info("dropped")
	logger.Warn("mutant_failed", "job", "abc")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "mutant_failed", rec["msg"])
	assert.Equal(t, "campaign", rec["component"])
	assert.Equal(t, "abc", rec["job"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: LevelDebug, Output: &buf}).Debug("hello", "n", 3)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "n=3")
}

func TestOrDiscard(t *testing.T) {
	l := OrDiscard(nil)
	require.NotNil(t, l)
	l.Error("nowhere")

	var buf bytes.Buffer
	own := New(Config{Output: &buf})
	assert.Same(t, own, OrDiscard(own))
}
