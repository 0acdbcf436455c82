// Package config provides run configuration. Values are read from YAML
// file and can be overridden with environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/capture"
	"github.com/dudk/earshot/recognize"
	"github.com/dudk/earshot/window"
)

// Environment variables that override file values.
const (
	EnvOut        = "EARSHOT_OUT"
	EnvDuration   = "EARSHOT_DURATION"
	EnvGainDB     = "EARSHOT_GAIN_DB"
	EnvRecognizer = "EARSHOT_RECOGNIZER"
)

// ErrInvalid is returned when configuration values are out of range.
var ErrInvalid = errors.New("invalid config")

type (
	// Config is a configuration of a single recording run.
	Config struct {
		// Out is the path of the wav file.
		Out string `yaml:"out"`
		// Input is an optional wav file replayed instead of the microphone.
		Input    string        `yaml:"input"`
		Duration time.Duration `yaml:"duration"`
		// Monitor plays captured audio on the default output device.
		Monitor    bool             `yaml:"monitor"`
		Capture    CaptureConfig    `yaml:"capture"`
		Transform  TransformConfig  `yaml:"transform"`
		Window     WindowConfig     `yaml:"window"`
		Recognizer RecognizerConfig `yaml:"recognizer"`
	}

	// CaptureConfig configures capture stage.
	CaptureConfig struct {
		Warmup time.Duration `yaml:"warmup"`
		Grace  time.Duration `yaml:"grace"`
	}

	// TransformConfig configures synchronous stages. Zero values disable
	// the stage.
	TransformConfig struct {
		GainDB        float64 `yaml:"gain_db"`
		HighPassHz    float64 `yaml:"high_pass_hz"`
		DenoiseFloor  int     `yaml:"denoise_floor"`
		GateThreshold float64 `yaml:"gate_threshold"`
		GateHangover  int     `yaml:"gate_hangover"`
	}

	// WindowConfig configures the buffering stage.
	WindowConfig struct {
		MaxWait time.Duration `yaml:"max_wait"`
		// MaxAudio is the duration of audio buffered before drain.
		MaxAudio    time.Duration `yaml:"max_audio"`
		StopTimeout time.Duration `yaml:"stop_timeout"`
	}

	// RecognizerConfig configures recognizer client. Window stage is only
	// added if URL is set.
	RecognizerConfig struct {
		URL         string        `yaml:"url"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
	}
)

// Default returns default configuration.
func Default() Config {
	return Config{
		Out: "earshot.wav",
		Capture: CaptureConfig{
			Warmup: capture.DefaultWarmup,
			Grace:  capture.DefaultGrace,
		},
		Transform: TransformConfig{
			HighPassHz:   80,
			GateHangover: 8,
		},
		Window: WindowConfig{
			MaxWait:     window.DefaultPolicy.MaxWait,
			MaxAudio:    earshot.DefaultFormat.DurationOf(window.DefaultPolicy.MaxBytes),
			StopTimeout: 5 * time.Second,
		},
		Recognizer: RecognizerConfig{
			DialTimeout: recognize.DefaultDialTimeout,
		},
	}
}

// Load reads configuration file on top of defaults and applies
// environment overrides. Empty path means defaults only.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := c.FromEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, nil
}

// FromEnv overrides values with environment variables.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvOut); ok {
		c.Out = v
	}
	if v, ok := lookup(EnvDuration); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDuration, err)
		}
		c.Duration = d
	}
	if v, ok := lookup(EnvGainDB); ok {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGainDB, err)
		}
		c.Transform.GainDB = g
	}
	if v, ok := lookup(EnvRecognizer); ok {
		c.Recognizer.URL = v
	}
	return nil
}

// Validate checks values are in range.
func (c Config) Validate() error {
	nyquist := float64(earshot.DefaultFormat.SampleRate) / 2
	switch {
	case c.Out == "":
		return fmt.Errorf("%w: empty output path", ErrInvalid)
	case c.Duration < 0:
		return fmt.Errorf("%w: negative duration %v", ErrInvalid, c.Duration)
	case c.Capture.Warmup < 0:
		return fmt.Errorf("%w: negative warmup %v", ErrInvalid, c.Capture.Warmup)
	case c.Capture.Grace < 0:
		return fmt.Errorf("%w: negative grace %v", ErrInvalid, c.Capture.Grace)
	case c.Transform.GainDB < -60 || c.Transform.GainDB > 60:
		return fmt.Errorf("%w: gain %v dB out of [-60, 60]", ErrInvalid, c.Transform.GainDB)
	case c.Transform.HighPassHz < 0 || c.Transform.HighPassHz >= nyquist:
		return fmt.Errorf("%w: high-pass cutoff %v Hz out of [0, %v)", ErrInvalid, c.Transform.HighPassHz, nyquist)
	case c.Transform.DenoiseFloor < 0 || c.Transform.DenoiseFloor > 32767:
		return fmt.Errorf("%w: denoise floor %d out of [0, 32767]", ErrInvalid, c.Transform.DenoiseFloor)
	case c.Transform.GateThreshold < 0 || c.Transform.GateThreshold > 1:
		return fmt.Errorf("%w: gate threshold %v out of [0, 1]", ErrInvalid, c.Transform.GateThreshold)
	case c.Transform.GateHangover < 0:
		return fmt.Errorf("%w: negative gate hangover %d", ErrInvalid, c.Transform.GateHangover)
	case c.Window.MaxWait <= 0:
		return fmt.Errorf("%w: window max wait must be positive", ErrInvalid)
	case c.Window.MaxAudio < earshot.DefaultFormat.ChunkDuration():
		return fmt.Errorf("%w: window max audio %v is shorter than a chunk", ErrInvalid, c.Window.MaxAudio)
	case c.Window.StopTimeout < 0:
		return fmt.Errorf("%w: negative stop timeout %v", ErrInvalid, c.Window.StopTimeout)
	}
	if c.Recognizer.URL != "" {
		u, err := url.Parse(c.Recognizer.URL)
		if err != nil {
			return fmt.Errorf("%w: recognizer url: %v", ErrInvalid, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: recognizer url scheme %q, expected ws or wss", ErrInvalid, u.Scheme)
		}
	}
	return nil
}

// Policy returns window drain policy.
func (c Config) Policy() window.Policy {
	f := earshot.DefaultFormat
	return window.Policy{
		MaxWait:  c.Window.MaxWait,
		MaxBytes: int(c.Window.MaxAudio.Seconds() * float64(f.SampleRate*f.FrameBytes())),
	}
}
