package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/storycast/internal/config"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	headColor = color.New(color.Bold)
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			if !runDoctor(cmd.Context()) {
				os.Exit(1)
			}
		},
	}
}

// runDoctor prints a health report and returns false if a required piece is missing.
func runDoctor(ctx context.Context) bool {
	headColor.Println("storycast doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		warnColor.Println(" (not found, using defaults)")
	} else {
		okColor.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		failColor.Printf("  Config load error: %s\n", err)
		return false
	}
	healthy := true

	fmt.Println()
	headColor.Println("  Completion providers:")
	checkProvider("openai", cfg.Providers.OpenAI.APIKey, cfg.Providers.Completion)
	checkProvider("gemini", cfg.Providers.Gemini.APIKey, cfg.Providers.Completion)
	checkProvider("dashscope", cfg.Providers.DashScope.APIKey, cfg.Providers.Completion)
	if sel, _ := cfg.Providers.Get(cfg.Providers.Completion); sel.APIKey == "" {
		failColor.Printf("    selected provider %q has no api_key\n", cfg.Providers.Completion)
		healthy = false
	}

	fmt.Println()
	headColor.Println("  Speech:")
	if mgr := buildTTS(cfg); mgr != nil {
		fmt.Printf("    %-12s ", "tts:")
		okColor.Printf("%s (max %d chars)\n", mgr.PrimaryProvider(), mgr.MaxLength())
	} else {
		fmt.Printf("    %-12s ", "tts:")
		warnColor.Println("disabled (text-only streams)")
	}

	fmt.Println()
	headColor.Println("  Profile store:")
	storeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, closeUsers, err := openUserStore(storeCtx, cfg.Database.StoreConfig())
	fmt.Printf("    %-12s ", cfg.Database.Mode+":")
	if err != nil {
		failColor.Printf("%s\n", err)
		healthy = false
	} else {
		okColor.Println("reachable")
		closeUsers()
	}

	fmt.Println()
	headColor.Println("  Optional:")
	checkToggle("archive", cfg.Archive.Enabled, cfg.Archive.Bucket)
	checkToggle("telemetry", cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
	checkToggle("welcome", cfg.Story.WelcomeMessage != "", "")
	checkToggle("auth token", cfg.Gateway.Token != "", "")

	fmt.Println()
	if healthy {
		okColor.Println("Doctor check complete.")
	} else {
		failColor.Println("Doctor found problems.")
	}
	return healthy
}

func checkProvider(name, apiKey, selected string) {
	label := name
	if name == selected {
		label += "*"
	}
	fmt.Printf("    %-12s ", label+":")
	if apiKey == "" {
		warnColor.Println("(not configured)")
		return
	}
	okColor.Println(maskKey(apiKey))
}

func checkToggle(name string, enabled bool, detail string) {
	fmt.Printf("    %-12s ", name+":")
	if !enabled {
		fmt.Println("disabled")
		return
	}
	if detail != "" {
		okColor.Printf("enabled (%s)\n", detail)
		return
	}
	okColor.Println("enabled")
}

func maskKey(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
