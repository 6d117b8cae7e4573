package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nextlevelbuilder/storycast/internal/guard"
	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/internal/store"
)

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		add("gateway.port: %d out of range", c.Gateway.Port)
	}
	if c.Gateway.RateLimitRPM < 0 || c.Gateway.RateLimitBurst < 0 {
		add("gateway.rate_limit_rpm and rate_limit_burst must not be negative")
	}
	if _, err := guard.ParseAction(c.Gateway.InjectionAction); err != nil {
		add("gateway.injection_action: %v", err)
	}
	if c.Gateway.MaxBodyBytes < 0 {
		add("gateway.max_body_bytes must not be negative")
	}

	if _, ok := c.Providers.Get(c.Providers.Completion); !ok {
		add("providers.completion: unknown provider %q (want openai, gemini or dashscope)", c.Providers.Completion)
	}

	switch c.TTS.Provider {
	case "", "openai", "elevenlabs":
	default:
		add("tts.provider: unknown provider %q (want openai or elevenlabs)", c.TTS.Provider)
	}
	if c.TTS.MaxLength <= 0 {
		add("tts.max_length must be positive")
	}
	if c.TTS.TimeoutMs < 0 {
		add("tts.timeout_ms must not be negative")
	}
	switch c.TTS.Format {
	case "", "mp3", "opus":
	default:
		add("tts.format: unsupported format %q", c.TTS.Format)
	}

	if c.Story.DefaultYearOfBirth != 0 {
		if err := store.ValidateYearOfBirth(c.Story.DefaultYearOfBirth, time.Now()); err != nil {
			add("story.default_year_of_birth: %v", err)
		}
	}

	if c.Story.Images.MaxSide < 0 || c.Story.Images.MaxBytes < 0 {
		add("story.images: max_side and max_bytes must not be negative")
	}

	switch c.Database.Mode {
	case "standalone":
		if c.Database.SQLitePath == "" {
			add("database.sqlite_path is required in standalone mode")
		}
	case "managed":
		if c.Database.PostgresDSN == "" {
			add("database.postgres_dsn is required in managed mode")
		}
	default:
		add("database.mode: unknown mode %q (want standalone or managed)", c.Database.Mode)
	}
	if c.Database.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Database.Cache.TTL); err != nil {
			add("database.cache.ttl: %v", err)
		}
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		add("archive.bucket is required when archive is enabled")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "", "grpc", "http":
		default:
			add("telemetry.protocol: unknown protocol %q (want grpc or http)", c.Telemetry.Protocol)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		add("log.format: unknown format %q (want text or json)", c.Log.Format)
	}

	return result.ErrorOrNil()
}
