package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storycast.json5")
	if err := os.WriteFile(path, []byte(`{ story: { welcome_message: "one" } }`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	got := make(chan string, 4)
	w.OnChange(func(cfg *Config) { got <- cfg.Story.WelcomeMessage })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{ story: { welcome_message: "two" } }`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-got:
		if msg != "two" {
			t.Errorf("reloaded welcome = %q, want two", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestWatcher_InvalidConfigKeepsHandlersQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storycast.json5")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{ gateway: { port: -1 } }`), 0o644); err != nil {
		t.Fatal(err)
	}
	called := false
	w.OnChange(func(*Config) { called = true })
	w.reload()
	if called {
		t.Error("handler must not run for an invalid config")
	}
	w.fs.Close()
}

func TestWatcher_UnchangedContentIsNotReapplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storycast.json5")
	if err := os.WriteFile(path, []byte(`{ story: { welcome_message: "one" } }`), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()
	calls := 0
	w.OnChange(func(*Config) { calls++ })

	w.reload()
	if calls != 0 {
		t.Fatalf("reload of the startup content ran handlers %d times", calls)
	}

	if err := os.WriteFile(path, []byte(`{ story: { welcome_message: "two" } }`), 0o644); err != nil {
		t.Fatal(err)
	}
	w.reload()
	w.reload()
	if calls != 1 {
		t.Errorf("handlers ran %d times, want 1", calls)
	}
}
