// Package config loads the storycast configuration: a JSON5 or YAML file,
// overlaid with STORYCAST_* environment variables.
package config

import (
	"time"

	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/internal/store"
)

const (
	DefaultConfigFile = "storycast.json5"
	DefaultPort       = 8080
)

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	TTS       TTSConfig       `json:"tts" yaml:"tts"`
	Story     StoryConfig     `json:"story" yaml:"story"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Log       logging.Config  `json:"log" yaml:"log"`
}

// GatewayConfig controls the HTTP listener and request admission.
type GatewayConfig struct {
	Host            string `json:"host" yaml:"host" env:"STORYCAST_HOST"`
	Port            int    `json:"port" yaml:"port" env:"STORYCAST_PORT"`
	Token           string `json:"token,omitempty" yaml:"token,omitempty" env:"STORYCAST_GATEWAY_TOKEN"` // bearer token; empty disables auth
	RateLimitRPM    int    `json:"rate_limit_rpm,omitempty" yaml:"rate_limit_rpm,omitempty"`           // per user; 0 disables
	RateLimitBurst  int    `json:"rate_limit_burst,omitempty" yaml:"rate_limit_burst,omitempty"`
	InjectionAction string `json:"injection_action,omitempty" yaml:"injection_action,omitempty"` // off|log|warn|block
	MaxBodyBytes    int64  `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`
}

// ProviderConfig is one completion provider.
type ProviderConfig struct {
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"API_KEY"`
	APIBase     string `json:"api_base,omitempty" yaml:"api_base,omitempty" env:"API_BASE"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`
	VisionModel string `json:"vision_model,omitempty" yaml:"vision_model,omitempty" env:"VISION_MODEL"` // dashscope only
}

// ProvidersConfig lists the completion providers; Completion picks the one in use.
type ProvidersConfig struct {
	Completion string         `json:"completion" yaml:"completion" env:"STORYCAST_COMPLETION_PROVIDER"`
	OpenAI     ProviderConfig `json:"openai" yaml:"openai" envPrefix:"STORYCAST_OPENAI_"`
	Gemini     ProviderConfig `json:"gemini" yaml:"gemini" envPrefix:"STORYCAST_GEMINI_"`
	DashScope  ProviderConfig `json:"dashscope" yaml:"dashscope" envPrefix:"STORYCAST_DASHSCOPE_"`
}

// Get returns the config of the named provider.
func (p ProvidersConfig) Get(name string) (ProviderConfig, bool) {
	switch name {
	case "openai":
		return p.OpenAI, true
	case "gemini":
		return p.Gemini, true
	case "dashscope":
		return p.DashScope, true
	}
	return ProviderConfig{}, false
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	Provider   string            `json:"provider,omitempty" yaml:"provider,omitempty" env:"STORYCAST_TTS_PROVIDER"` // "openai", "elevenlabs"; empty disables audio
	Fallback   bool              `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	MaxLength  int               `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	TimeoutMs  int               `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Format     string            `json:"format,omitempty" yaml:"format,omitempty"` // mp3|opus
	OpenAI     TTSOpenAIConfig   `json:"openai" yaml:"openai"`
	ElevenLabs ElevenLabsConfig  `json:"elevenlabs" yaml:"elevenlabs"`
	Voices     map[string]string `json:"voices,omitempty" yaml:"voices,omitempty"`
}

type TTSOpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"STORYCAST_TTS_OPENAI_API_KEY"`
	APIBase string `json:"api_base,omitempty" yaml:"api_base,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Voice   string `json:"voice,omitempty" yaml:"voice,omitempty"`
}

type ElevenLabsConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"STORYCAST_ELEVENLABS_API_KEY"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	VoiceID string `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	ModelID string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
}

// StoryConfig holds product settings for generated stories.
type StoryConfig struct {
	WelcomeMessage     string       `json:"welcome_message,omitempty" yaml:"welcome_message,omitempty"` // empty = no welcome turn
	DefaultVoice       string       `json:"default_voice,omitempty" yaml:"default_voice,omitempty"`
	DefaultYearOfBirth int          `json:"default_year_of_birth,omitempty" yaml:"default_year_of_birth,omitempty"`
	Images             ImagesConfig `json:"images" yaml:"images"`
}

// ImagesConfig bounds inline images before they reach the vision model.
// MaxSide 0 disables fitting.
type ImagesConfig struct {
	MaxSide  int `json:"max_side" yaml:"max_side"`
	MaxBytes int `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
}

// DatabaseConfig selects the profile store.
type DatabaseConfig struct {
	Mode        string      `json:"mode" yaml:"mode" env:"STORYCAST_DATABASE_MODE"` // standalone|managed
	PostgresDSN string      `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty" env:"STORYCAST_DATABASE_DSN"`
	SQLitePath  string      `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" env:"STORYCAST_SQLITE_PATH"`
	Cache       CacheConfig `json:"cache" yaml:"cache"`
}

type CacheConfig struct {
	Size     int    `json:"size,omitempty" yaml:"size,omitempty"` // 0 disables the profile cache
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`   // Go duration, e.g. "5m"
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" env:"STORYCAST_REDIS_URL"`
}

// TTLDuration parses TTL. Invalid or empty values give 0 (Validate reports them).
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0
	}
	return d
}

// StoreConfig converts the section for the store layer.
func (d DatabaseConfig) StoreConfig() store.StoreConfig {
	return store.StoreConfig{
		Mode:        d.Mode,
		PostgresDSN: d.PostgresDSN,
		SQLitePath:  d.SQLitePath,
		CacheSize:   d.Cache.Size,
		CacheTTL:    d.Cache.TTLDuration(),
		RedisURL:    d.Cache.RedisURL,
	}
}

// ArchiveConfig enables uploading synthesized clips to S3.
type ArchiveConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled" env:"STORYCAST_ARCHIVE_ENABLED"`
	Bucket          string `json:"bucket,omitempty" yaml:"bucket,omitempty" env:"STORYCAST_ARCHIVE_BUCKET"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Prefix          string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" env:"STORYCAST_ARCHIVE_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" env:"STORYCAST_ARCHIVE_SECRET_ACCESS_KEY"`
	Concurrency     int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled" env:"STORYCAST_TELEMETRY_ENABLED"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"STORYCAST_TELEMETRY_ENDPOINT"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc|http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            DefaultPort,
			RateLimitRPM:    20,
			RateLimitBurst:  5,
			InjectionAction: "warn",
			MaxBodyBytes:    8 << 20,
		},
		Providers: ProvidersConfig{
			Completion: "openai",
			OpenAI:     ProviderConfig{Model: "gpt-4o-mini"},
			Gemini:     ProviderConfig{Model: "gemini-2.5-flash"},
			DashScope:  ProviderConfig{Model: "qwen-plus", VisionModel: "qwen-vl-max"},
		},
		TTS: TTSConfig{
			Provider:  "openai",
			MaxLength: 4096,
			TimeoutMs: 30000,
			Format:    "mp3",
			OpenAI:    TTSOpenAIConfig{Model: "gpt-4o-mini-tts", Voice: "alloy"},
			ElevenLabs: ElevenLabsConfig{
				BaseURL: "https://api.elevenlabs.io",
				ModelID: "eleven_multilingual_v2",
			},
		},
		Story: StoryConfig{
			Images: ImagesConfig{MaxSide: 1200, MaxBytes: 5 << 20},
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "storycast.db",
			Cache:      CacheConfig{Size: 1024, TTL: "5m"},
		},
		Archive: ArchiveConfig{Prefix: "stories", Concurrency: 4},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "storycast",
		},
		Log: logging.Config{Level: "info", Format: "text", Output: "stderr"},
	}
}
