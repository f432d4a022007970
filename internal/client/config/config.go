package config

import (
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
)

// Config holds runtime settings for the EncounterScribe client.
//
// Durations are time.Duration values; file sources accept "10s" style
// strings or integer nanoseconds.
type Config struct {
	ServerURL           string
	DataDir             string
	LogLevel            string
	OnlineCheckInterval time.Duration

	PollInterval     time.Duration
	PollMaxInterval  time.Duration
	PollTimeout      time.Duration
	MaxNetworkErrors int

	MaxUploadSize int64

	RecordingMaxDuration time.Duration
	HeartbeatInterval    time.Duration
	FFmpegPath           string
	FFprobePath          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DataDir = "encounterscribe_data"
	c.LogLevel = "info"
	c.OnlineCheckInterval = 15 * time.Second

	c.PollInterval = jobs.DefaultInterval
	c.PollMaxInterval = jobs.DefaultMaxInterval
	c.PollTimeout = jobs.DefaultTimeout
	c.MaxNetworkErrors = jobs.DefaultMaxNetworkErrors

	c.MaxUploadSize = upload.DefaultMaxSize

	c.RecordingMaxDuration = recording.DefaultMaxDuration
	c.HeartbeatInterval = recording.DefaultHeartbeatInterval
	c.FFmpegPath = "ffmpeg"
	c.FFprobePath = "ffprobe"
}

// Jobs returns the polling settings.
func (c *Config) Jobs() jobs.Config {
	return jobs.Config{
		Interval:         c.PollInterval,
		MaxInterval:      c.PollMaxInterval,
		Timeout:          c.PollTimeout,
		MaxNetworkErrors: c.MaxNetworkErrors,
	}
}

// Recording returns the recording session settings.
func (c *Config) Recording() recording.Config {
	return recording.Config{
		MaxDuration:       c.RecordingMaxDuration,
		HeartbeatInterval: c.HeartbeatInterval,
		Format:            recording.DefaultFormat,
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
