package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Writer: &buf})

	log.WithComponent("dispatcher").Info("request started", Fields("model", "gpt-4o", "attempt", 1))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "request started", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dispatcher", entry[FieldComponent])
	assert.Equal(t, "gpt-4o", entry["model"])
	assert.EqualValues(t, 1, entry["attempt"])
}

func TestLoggerRendersErrorsAsStrings(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf})

	log.Error("call failed", Fields(FieldError, errors.New("boom")))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry[FieldError])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithComponent("x").Error("nothing", Fields("k", "v"))
	})
}

func TestFieldsIgnoresDanglingAndNonStringKeys(t *testing.T) {
	f := Fields("a", 1, 2, "skipped", "dangling")
	assert.Equal(t, map[string]interface{}{"a": 1}, f)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"console", Config{Format: FormatConsole}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
