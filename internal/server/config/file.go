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

// fileConfig is the decoding DTO for config files. Duration fields accept
// "1m" style strings or integer nanoseconds.
type fileConfig struct {
	HTTPAddr                     string          `json:"http_addr" yaml:"http_addr"`
	DatabaseDSN                  string          `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string          `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`

	S3RootUser     string          `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string          `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       string          `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string          `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string          `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	PresignExpiry  *timex.Duration `json:"presign_expiry" yaml:"presign_expiry"`
	MaxUploadSize  *int64          `json:"max_upload_size" yaml:"max_upload_size"`

	OpenAIBaseURL      string `json:"openai_base_url" yaml:"openai_base_url"`
	TranscriptionModel string `json:"transcription_model" yaml:"transcription_model"`
	ChatModel          string `json:"chat_model" yaml:"chat_model"`
	Workers            *int   `json:"workers" yaml:"workers"`
	QueueSize          *int   `json:"queue_size" yaml:"queue_size"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// parseFile overlays config with the file named by -c/-config. The API key
// is only taken from the environment, see parseEnv.
func parseFile(config *Config, args []string) error {
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

	fc.apply(config)
	return nil
}

func (fc *fileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.OpenAIBaseURL, fc.OpenAIBaseURL)
	setString(&c.TranscriptionModel, fc.TranscriptionModel)
	setString(&c.ChatModel, fc.ChatModel)
	setString(&c.LogLevel, fc.LogLevel)

	if fc.AccessTokenValidityDuration != nil {
		c.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration != nil {
		c.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}
	if fc.PresignExpiry != nil {
		c.PresignExpiry = fc.PresignExpiry.Duration
	}
	if fc.MaxUploadSize != nil {
		c.MaxUploadSize = *fc.MaxUploadSize
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.QueueSize != nil {
		c.QueueSize = *fc.QueueSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
