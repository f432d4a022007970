package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/flagx"
	"github.com/dmitrijs2005/encounterscribe/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO used only for decoding config files. Pointer fields
// tell "absent" apart from a zero value, so a file overrides only what it
// names.
type fileConfig struct {
	ServerURL string `json:"server_url" yaml:"server_url"`
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`

	PollInterval     *timex.Duration `json:"poll_interval" yaml:"poll_interval"`
	PollMaxInterval  *timex.Duration `json:"poll_max_interval" yaml:"poll_max_interval"`
	PollTimeout      *timex.Duration `json:"poll_timeout" yaml:"poll_timeout"`
	MaxNetworkErrors *int            `json:"max_network_errors" yaml:"max_network_errors"`

	MaxUploadSize *int64 `json:"max_upload_size" yaml:"max_upload_size"`

	RecordingMaxDuration *timex.Duration `json:"recording_max_duration" yaml:"recording_max_duration"`
	HeartbeatInterval    *timex.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	FFmpegPath           string          `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath          string          `json:"ffprobe_path" yaml:"ffprobe_path"`
}

// parseFile overlays cfg with values from the file named by -c/-config.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
// No flag means nothing to load.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.FFmpegPath, fc.FFmpegPath)
	setString(&cfg.FFprobePath, fc.FFprobePath)

	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.PollInterval != nil {
		cfg.PollInterval = fc.PollInterval.Duration
	}
	if fc.PollMaxInterval != nil {
		cfg.PollMaxInterval = fc.PollMaxInterval.Duration
	}
	if fc.PollTimeout != nil {
		cfg.PollTimeout = fc.PollTimeout.Duration
	}
	if fc.MaxNetworkErrors != nil {
		cfg.MaxNetworkErrors = *fc.MaxNetworkErrors
	}
	if fc.MaxUploadSize != nil {
		cfg.MaxUploadSize = *fc.MaxUploadSize
	}
	if fc.RecordingMaxDuration != nil {
		cfg.RecordingMaxDuration = fc.RecordingMaxDuration.Duration
	}
	if fc.HeartbeatInterval != nil {
		cfg.HeartbeatInterval = fc.HeartbeatInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
