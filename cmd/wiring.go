package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/storycast/internal/archive"
	"github.com/nextlevelbuilder/storycast/internal/config"
	"github.com/nextlevelbuilder/storycast/internal/providers"
	"github.com/nextlevelbuilder/storycast/internal/store"
	"github.com/nextlevelbuilder/storycast/internal/store/cache"
	"github.com/nextlevelbuilder/storycast/internal/store/pg"
	"github.com/nextlevelbuilder/storycast/internal/store/sqlite"
	"github.com/nextlevelbuilder/storycast/internal/tts"
)

// registerProviders builds every completion provider that has credentials.
func registerProviders(ctx context.Context, cfg *config.Config) (*providers.Registry, error) {
	reg := providers.NewRegistry()
	p := cfg.Providers

	if p.OpenAI.APIKey != "" {
		reg.Register(providers.NewOpenAIProvider("openai", p.OpenAI.APIKey, p.OpenAI.APIBase, p.OpenAI.Model))
	}
	if p.DashScope.APIKey != "" {
		reg.Register(providers.NewDashScopeProvider(p.DashScope.APIKey, p.DashScope.APIBase, p.DashScope.Model, p.DashScope.VisionModel))
	}
	if p.Gemini.APIKey != "" {
		g, err := providers.NewGeminiProvider(ctx, p.Gemini.APIKey, p.Gemini.APIBase, p.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		reg.Register(g)
	}
	return reg, nil
}

// completionProvider returns the configured completion provider and, when it
// can transcribe, the same provider as a Transcriber.
func completionProvider(reg *providers.Registry, name string) (providers.Provider, providers.Transcriber, error) {
	p, err := reg.Get(name)
	if err != nil {
		return nil, nil, fmt.Errorf("completion provider %q is not configured (registered: %v): %w", name, reg.List(), err)
	}
	t, _ := p.(providers.Transcriber)
	return p, t, nil
}

// buildTTS creates the synthesis manager. It returns nil when no TTS provider
// has credentials, which disables audio.
func buildTTS(cfg *config.Config) *tts.Manager {
	t := cfg.TTS

	defaultVoice := cfg.Story.DefaultVoice
	if v, ok := t.Voices[defaultVoice]; ok {
		defaultVoice = v
	}

	mgr := tts.NewManager(tts.ManagerConfig{
		Primary:      t.Provider,
		Fallback:     t.Fallback,
		MaxLength:    t.MaxLength,
		TimeoutMs:    t.TimeoutMs,
		Format:       t.Format,
		Voices:       t.Voices,
		DefaultVoice: defaultVoice,
	})

	openaiKey := t.OpenAI.APIKey
	if openaiKey == "" {
		openaiKey = cfg.Providers.OpenAI.APIKey
	}
	if openaiKey != "" {
		mgr.RegisterProvider(tts.NewOpenAIProvider(tts.OpenAIConfig{
			APIKey:    openaiKey,
			APIBase:   t.OpenAI.APIBase,
			Model:     t.OpenAI.Model,
			Voice:     t.OpenAI.Voice,
			TimeoutMs: t.TimeoutMs,
		}))
	}
	if t.ElevenLabs.APIKey != "" {
		mgr.RegisterProvider(tts.NewElevenLabsProvider(tts.ElevenLabsConfig{
			APIKey:    t.ElevenLabs.APIKey,
			BaseURL:   t.ElevenLabs.BaseURL,
			VoiceID:   t.ElevenLabs.VoiceID,
			ModelID:   t.ElevenLabs.ModelID,
			TimeoutMs: t.TimeoutMs,
		}))
	}

	if t.Provider == "" || !mgr.HasProviders() {
		slog.Warn("tts disabled, streams will carry text only", "provider", t.Provider)
		return nil
	}
	return mgr
}

// openUserStore opens the profile store for the configured mode, wrapped in
// the profile cache when enabled. The returned closer also releases the
// shared cache.
func openUserStore(ctx context.Context, sc store.StoreConfig) (store.UserStore, func() error, error) {
	var backend store.UserStore
	switch sc.Mode {
	case "managed":
		db, err := pg.OpenDB(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		backend = pg.NewPGUserStore(db)
	default:
		s, err := sqlite.Open(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		backend = s
	}

	if sc.CacheSize <= 0 {
		return backend, backend.Close, nil
	}

	var remote *cache.RedisRemote
	if sc.RedisURL != "" {
		r, err := cache.NewRedisRemote(ctx, sc.RedisURL)
		if err != nil {
			slog.Warn("cache.redis_unavailable", "error", err)
		} else {
			remote = r
		}
	}

	var cached *cache.UserStore
	if remote != nil {
		cached = cache.NewUserStore(backend, sc.CacheSize, sc.CacheTTL, remote)
	} else {
		cached = cache.NewUserStore(backend, sc.CacheSize, sc.CacheTTL, nil)
	}
	closeAll := func() error {
		err := cached.Close()
		if remote != nil {
			err = errors.Join(err, remote.Close())
		}
		return err
	}
	return cached, closeAll, nil
}

// buildArchive creates the S3 clip archive, or nil when disabled.
func buildArchive(ctx context.Context, cfg *config.Config) (*archive.S3Archive, error) {
	a := cfg.Archive
	if !a.Enabled {
		return nil, nil
	}
	return archive.New(ctx, archive.Config{
		Bucket:          a.Bucket,
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		Prefix:          a.Prefix,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
		Concurrency:     a.Concurrency,
	})
}
