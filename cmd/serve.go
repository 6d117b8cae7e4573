package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/storycast/internal/config"
	"github.com/nextlevelbuilder/storycast/internal/gateway"
	"github.com/nextlevelbuilder/storycast/internal/guard"
	storyhttp "github.com/nextlevelbuilder/storycast/internal/http"
	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/internal/pipeline"
	"github.com/nextlevelbuilder/storycast/internal/themes"
	"github.com/nextlevelbuilder/storycast/internal/tracing"
	"github.com/nextlevelbuilder/storycast/internal/vision"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the story gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfg.Telemetry.Enabled {
		shutdown, err := tracing.Setup(ctx, tracing.Config{
			Endpoint:    cfg.Telemetry.Endpoint,
			Protocol:    cfg.Telemetry.Protocol,
			Insecure:    cfg.Telemetry.Insecure,
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     Version,
			Headers:     cfg.Telemetry.Headers,
		})
		if err != nil {
			slog.Warn("failed to create OTel exporter", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					slog.Warn("otel shutdown", "error", err)
				}
			}()
		}
	}

	reg, err := registerProviders(ctx, cfg)
	if err != nil {
		return err
	}
	completer, transcriber, err := completionProvider(reg, cfg.Providers.Completion)
	if err != nil {
		return err
	}

	users, closeUsers, err := openUserStore(ctx, cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer closeUsers()

	pcfg := pipeline.Config{
		Completer:          completer,
		Detector:           themes.NewDetector(),
		MaxParagraphLength: cfg.TTS.MaxLength,
		Welcome:            cfg.Story.WelcomeMessage,
	}
	if cfg.Story.Images.MaxSide > 0 {
		pcfg.Images = vision.New(cfg.Story.Images.MaxSide, cfg.Story.Images.MaxBytes)
	}
	ttsMgr := buildTTS(cfg)
	if ttsMgr != nil {
		pcfg.Synthesizer = ttsMgr
	}
	clipArchive, err := buildArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("audio archive: %w", err)
	}
	if clipArchive != nil {
		pcfg.Archiver = clipArchive
		defer func() {
			if err := clipArchive.Close(context.Background()); err != nil {
				slog.Warn("archive.close", "error", err)
			}
		}()
	}
	pipe := pipeline.New(pcfg)

	action, _ := guard.ParseAction(cfg.Gateway.InjectionAction)
	inputGuard := guard.New(action)
	limiter := gateway.NewRateLimiter(cfg.Gateway.RateLimitRPM, cfg.Gateway.RateLimitBurst)
	defer limiter.Stop()

	storyCfg := storyhttp.StoryHandlerConfig{
		Pipeline:     pipe,
		Users:        users,
		Guard:        inputGuard,
		Limiter:      limiter,
		Token:        cfg.Gateway.Token,
		MaxBodyBytes: cfg.Gateway.MaxBodyBytes,
		Defaults:     storyhttp.StoryDefaults{YearOfBirth: cfg.Story.DefaultYearOfBirth},
	}
	if ttsMgr != nil {
		storyCfg.Voices = ttsMgr
	}
	story := storyhttp.NewStoryHandler(storyCfg)
	transcriptions := storyhttp.NewTranscriptionsHandler(transcriber, limiter, cfg.Gateway.Token)

	srv := gateway.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, storyhttp.NewMux(storyhttp.Routes{
		Story:          story,
		Transcriptions: transcriptions,
		Version:        Version,
	}))

	slog.Info("storycast starting",
		"version", Version,
		"config", cfgPath,
		"completion", completer.Name(),
		"model", completer.DefaultModel(),
		"tts", ttsMgr != nil,
		"database", cfg.Database.Mode,
		"archive", clipArchive != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if watcher, err := config.NewWatcher(cfgPath); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.OnChange(func(next *config.Config) {
			applyRuntimeConfig(next, logger, limiter, inputGuard, pipe, story)
		})
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// applyRuntimeConfig swaps the settings that are safe to change without a restart.
func applyRuntimeConfig(next *config.Config, logger *logging.Logger, limiter *gateway.RateLimiter,
	inputGuard *guard.Guard, pipe *pipeline.Pipeline, story *storyhttp.StoryHandler) {
	if err := logger.SetLevel(next.Log.Level); err != nil {
		slog.Warn("config reload: log level", "error", err)
	}
	limiter.SetLimit(next.Gateway.RateLimitRPM, next.Gateway.RateLimitBurst)
	if action, err := guard.ParseAction(next.Gateway.InjectionAction); err == nil {
		inputGuard.SetAction(action)
	}
	pipe.SetWelcome(next.Story.WelcomeMessage)
	story.SetDefaults(storyhttp.StoryDefaults{YearOfBirth: next.Story.DefaultYearOfBirth})

	slog.Info("runtime config applied",
		"log_level", next.Log.Level,
		"rate_limit_rpm", next.Gateway.RateLimitRPM,
		"injection_action", next.Gateway.InjectionAction,
		"welcome", next.Story.WelcomeMessage != "",
	)
}
