package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/earshot/config"
	"github.com/dudk/earshot/window"
)

const configYAML = `
out: /tmp/session.wav
duration: 10s
monitor: true
capture:
  warmup: 64ms
transform:
  gain_db: 6
  high_pass_hz: 100
  gate_threshold: 0.02
window:
  max_wait: 500ms
  max_audio: 2s
recognizer:
  url: ws://localhost:9000/recognize
`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "earshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, window.DefaultPolicy, c.Policy())
	assert.Equal(t, 50*time.Millisecond, c.Capture.Warmup)
}

func TestLoad(t *testing.T) {
	c, err := config.Load(writeConfig(t, configYAML))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "/tmp/session.wav", c.Out)
	assert.Equal(t, 10*time.Second, c.Duration)
	assert.True(t, c.Monitor)
	assert.Equal(t, 64*time.Millisecond, c.Capture.Warmup)
	// not set in file, default is kept.
	assert.Equal(t, 100*time.Millisecond, c.Capture.Grace)
	assert.Equal(t, 6.0, c.Transform.GainDB)
	assert.Equal(t, 100.0, c.Transform.HighPassHz)
	assert.Equal(t, 8, c.Transform.GateHangover)
	assert.Equal(t, window.Policy{MaxWait: 500 * time.Millisecond, MaxBytes: 64000}, c.Policy())
	assert.Equal(t, "ws://localhost:9000/recognize", c.Recognizer.URL)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = config.Load(writeConfig(t, "duration: [1, 2]"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		config.EnvOut:        "env.wav",
		config.EnvDuration:   "1m",
		config.EnvGainDB:     "-3.5",
		config.EnvRecognizer: "wss://asr.example.com",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	c := config.Default()
	require.NoError(t, c.FromEnv(lookup))
	assert.Equal(t, "env.wav", c.Out)
	assert.Equal(t, time.Minute, c.Duration)
	assert.Equal(t, -3.5, c.Transform.GainDB)
	assert.Equal(t, "wss://asr.example.com", c.Recognizer.URL)

	env[config.EnvDuration] = "forever"
	assert.Error(t, c.FromEnv(lookup))
	env[config.EnvDuration] = "1s"
	env[config.EnvGainDB] = "loud"
	assert.Error(t, c.FromEnv(lookup))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(config.EnvOut, "override.wav")
	c, err := config.Load(writeConfig(t, configYAML))
	require.NoError(t, err)
	assert.Equal(t, "override.wav", c.Out)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		description string
		mutate      func(*config.Config)
	}{
		{description: "empty out", mutate: func(c *config.Config) { c.Out = "" }},
		{description: "negative duration", mutate: func(c *config.Config) { c.Duration = -time.Second }},
		{description: "negative warmup", mutate: func(c *config.Config) { c.Capture.Warmup = -1 }},
		{description: "gain", mutate: func(c *config.Config) { c.Transform.GainDB = 61 }},
		{description: "high pass", mutate: func(c *config.Config) { c.Transform.HighPassHz = 8000 }},
		{description: "denoise floor", mutate: func(c *config.Config) { c.Transform.DenoiseFloor = -1 }},
		{description: "gate threshold", mutate: func(c *config.Config) { c.Transform.GateThreshold = 1.5 }},
		{description: "gate hangover", mutate: func(c *config.Config) { c.Transform.GateHangover = -1 }},
		{description: "max wait", mutate: func(c *config.Config) { c.Window.MaxWait = 0 }},
		{description: "max audio", mutate: func(c *config.Config) { c.Window.MaxAudio = time.Millisecond }},
		{description: "stop timeout", mutate: func(c *config.Config) { c.Window.StopTimeout = -1 }},
		{description: "url scheme", mutate: func(c *config.Config) { c.Recognizer.URL = "http://localhost" }},
		{description: "url", mutate: func(c *config.Config) { c.Recognizer.URL = "ws://[::1" }},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c := config.Default()
			test.mutate(&c)
			assert.True(t, errors.Is(c.Validate(), config.ErrInvalid))
		})
	}
}
