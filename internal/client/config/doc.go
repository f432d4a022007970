// Package config loads runtime configuration for the EncounterScribe client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. JSON by default,
//     YAML when the name ends in .yaml or .yml.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string   backend base URL
//	-d string   local data directory
//	-l string   log level
//	-ffmpeg     path to ffmpeg
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "10s" or
// integer nanoseconds. Keys that are absent keep their default:
//
//	{
//	  "server_url": "https://api.example.com",
//	  "data_dir": "encounterscribe_data",
//	  "poll_interval": "10s",
//	  "poll_max_interval": "60s",
//	  "poll_timeout": "10m",
//	  "max_network_errors": 10,
//	  "max_upload_size": 104857600,
//	  "recording_max_duration": "40m",
//	  "heartbeat_interval": "60m",
//	  "ffmpeg_path": "ffmpeg",
//	  "ffprobe_path": "ffprobe",
//	  "log_level": "info",
//	  "online_check_interval": "15s"
//	}
package config
