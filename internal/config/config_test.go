package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != "1" {
		t.Errorf("Expected version '1', got '%s'", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.BufferDebounce() != 150*time.Millisecond {
		t.Errorf("Expected buffer debounce 150ms, got %v", cfg.BufferDebounce())
	}
	if cfg.GitDebounce() != 300*time.Millisecond {
		t.Errorf("Expected git debounce 300ms, got %v", cfg.GitDebounce())
	}
	if cfg.GitTimeout() != 3*time.Second {
		t.Errorf("Expected git timeout 3s, got %v", cfg.GitTimeout())
	}
	if cfg.ProcessInterval() != 2*time.Second {
		t.Errorf("Expected process interval 2s, got %v", cfg.ProcessInterval())
	}

	visible, hidden := cfg.SweepIntervals()
	if visible != 500*time.Millisecond || hidden != 2*time.Second {
		t.Errorf("Expected sweep 500ms/2s, got %v/%v", visible, hidden)
	}

	if cfg.Notify.Stdout || cfg.Notify.EventFile || cfg.Notify.Socket || cfg.Notify.WebSocket.Enabled {
		t.Error("Expected every event sink to be off by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"buffer too small", func(c *Config) { c.Buffer.MaxSize = 10 }, "buffer.max_size"},
		{"debounce too short", func(c *Config) { c.Buffer.DebounceMS = 1 }, "buffer.debounce_ms"},
		{"window not above burst", func(c *Config) { c.Activity.OutputWindowMS = 200 }, "activity.output_window_ms"},
		{"baseline out of range", func(c *Config) { c.Activity.Baseline = 101 }, "activity.baseline"},
		{"negative decay", func(c *Config) { c.Activity.DecayAfterMS = -1 }, "activity"},
		{"idle not above spinner idle", func(c *Config) { c.Assistant.Timing.IdleTimeoutMS = 5000 }, "assistant.timing.idle_timeout_ms"},
		{"zero debounce", func(c *Config) { c.Assistant.Timing.StateDebounceMS = 0 }, "assistant.timing.state_debounce_ms"},
		{"unknown override", func(c *Config) {
			c.Assistant.Overrides = map[string]TimingConfig{"nope": {IdleTimeoutMS: 1000}}
		}, "assistant.overrides.nope"},
		{"negative override", func(c *Config) {
			c.Assistant.Overrides = map[string]TimingConfig{"claude": {StateDebounceMS: -5}}
		}, "assistant.overrides.claude.state_debounce_ms"},
		{"unknown disabled", func(c *Config) { c.Assistant.Disabled = []string{"clippy"} }, "assistant.disabled"},
		{"git zero timeout", func(c *Config) { c.Git.TimeoutMS = 0 }, "git"},
		{"process interval", func(c *Config) { c.Process.IntervalMS = 10 }, "process.interval_ms"},
		{"sweep order", func(c *Config) { c.Sweep.HiddenIntervalMS = 100 }, "sweep"},
		{"pattern without name", func(c *Config) {
			c.Patterns.CWD = []CWDPatternConfig{{Regex: `cd (\S+)`}}
		}, "patterns.cwd[0].name"},
		{"pattern without group", func(c *Config) {
			c.Patterns.CWD = []CWDPatternConfig{{Name: "x", Regex: `cd \S+`}}
		}, "patterns.cwd[0]"},
		{"duplicate pattern", func(c *Config) {
			c.Patterns.CWD = []CWDPatternConfig{
				{Name: "x", Regex: `a (\S+)`},
				{Name: "x", Regex: `b (\S+)`},
			}
		}, "patterns.cwd[1].name"},
		{"bad event name", func(c *Config) { c.Notify.Events = []string{"Session-Start"} }, "notify.events"},
		{"webhook scheme", func(c *Config) {
			c.Notify.Webhooks = []WebhookConfig{{URL: "ftp://example.com"}}
		}, "notify.webhooks[0].url"},
		{"websocket without addr", func(c *Config) {
			c.Notify.WebSocket.Enabled = true
			c.Notify.WebSocket.Addr = ""
		}, "notify.websocket.addr"},
		{"empty queue", func(c *Config) { c.Notify.QueueSize = 0 }, "notify.queue_size"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"retention", func(c *Config) { c.Logging.RetentionDays = -1 }, "logging.retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q (%s)", tt.field, verr.Field, verr.Message)
			}
		})
	}
}

func TestValidateAcceptsKnownOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assistant.Overrides = map[string]TimingConfig{"claude": {IdleTimeoutMS: 60000}}
	cfg.Assistant.Disabled = []string{"aider"}
	cfg.Logging.Level = "WARNING"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseYAMLKeepsDefaults(t *testing.T) {
	data := []byte(`
buffer:
  max_size: 8192
assistant:
  overrides:
    codex:
      idle_timeout_ms: 60000
notify:
  stdout: true
  events: [assistant_state, cwd_changed]
`)
	cfg, err := Parse(data, FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Buffer.MaxSize != 8192 {
		t.Errorf("Expected max_size 8192, got %d", cfg.Buffer.MaxSize)
	}
	if cfg.Buffer.DebounceMS != 150 {
		t.Errorf("Expected debounce to keep default 150, got %d", cfg.Buffer.DebounceMS)
	}
	if !cfg.Notify.Stdout || len(cfg.Notify.Events) != 2 {
		t.Errorf("Expected stdout with two events, got %+v", cfg.Notify)
	}
	if cfg.Notify.QueueSize != 256 {
		t.Errorf("Expected queue size default, got %d", cfg.Notify.QueueSize)
	}

	def, overrides := cfg.AssistantTiming()
	if def.IdleTimeout != 30*time.Second {
		t.Errorf("Expected default idle timeout 30s, got %v", def.IdleTimeout)
	}
	if overrides["codex"].IdleTimeout != time.Minute {
		t.Errorf("Expected codex override 1m, got %v", overrides["codex"].IdleTimeout)
	}
	if overrides["codex"].StateDebounce != 0 {
		t.Errorf("Expected unset override field to stay zero, got %v", overrides["codex"].StateDebounce)
	}
}

func TestParseTOML(t *testing.T) {
	data := []byte(`
[git]
enabled = false

[logging]
level = "debug"
format = "json"
`)
	cfg, err := Parse(data, FormatTOML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Git.Enabled {
		t.Error("Expected git disabled")
	}
	if cfg.Git.DebounceMS != 300 {
		t.Errorf("Expected git debounce default, got %d", cfg.Git.DebounceMS)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("buffer: [unclosed"), FormatYAML); err == nil {
		t.Error("Expected YAML error")
	}
	if _, err := Parse([]byte("[git\nenabled ="), FormatTOML); err == nil {
		t.Error("Expected TOML error")
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"config.yaml":         FormatYAML,
		"config.yml":          FormatYAML,
		"config.toml":         FormatTOML,
		"/etc/termsense.TOML": FormatTOML,
		"config":              FormatYAML,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("Expected default config, got version %q", cfg.Version)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("buffer:\n  max_size: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Notify.EventFile = true
			cfg.Notify.Webhooks = []WebhookConfig{{
				URL:     "https://example.com/hook",
				Events:  []string{"assistant_state"},
				Headers: map[string]string{"Authorization": "Bearer x"},
			}}
			cfg.Assistant.Disabled = []string{"gemini"}
			cfg.Patterns.CWD = []CWDPatternConfig{{Name: "fish", Regex: `^(\S+) >`, Priority: 55, Transforms: []string{"home"}}}

			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !loaded.Notify.EventFile {
				t.Error("Expected event file enabled")
			}
			if len(loaded.Notify.Webhooks) != 1 || loaded.Notify.Webhooks[0].Headers["Authorization"] != "Bearer x" {
				t.Errorf("webhook not preserved: %+v", loaded.Notify.Webhooks)
			}
			if len(loaded.Assistant.Disabled) != 1 || loaded.Assistant.Disabled[0] != "gemini" {
				t.Errorf("disabled not preserved: %v", loaded.Assistant.Disabled)
			}
			if len(loaded.Patterns.CWD) != 1 || loaded.Patterns.CWD[0].Priority != 55 {
				t.Errorf("pattern not preserved: %+v", loaded.Patterns.CWD)
			}
		})
	}
}

func TestDefaultConfigPathEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.toml")
	if got := DefaultConfigPath(); got != "/tmp/custom.toml" {
		t.Errorf("Expected env override, got %q", got)
	}
}

func TestActivitySettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Activity.Baseline = 20
	cfg.Activity.DecayAfterMS = 3000

	s := cfg.ActivitySettings()
	if s.Baseline != 20 {
		t.Errorf("Expected baseline 20, got %d", s.Baseline)
	}
	if s.DecayAfter != 3*time.Second {
		t.Errorf("Expected decay after 3s, got %v", s.DecayAfter)
	}
	if s.BurstGain != 4 || s.SnapThreshold != 3 {
		t.Errorf("Expected unexposed knobs to keep defaults, got gain=%d snap=%d", s.BurstGain, s.SnapThreshold)
	}
}

func TestCWDPatterns(t *testing.T) {
	cfg := DefaultConfig()
	base, err := cfg.CWDPatterns("/home/u")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Patterns.CWD = []CWDPatternConfig{{Name: "fish", Regex: `^(\S+) >`, Priority: 55, Transforms: []string{"home"}}}
	ps, err := cfg.CWDPatterns("/home/u")
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != len(base)+1 {
		t.Fatalf("Expected %d patterns, got %d", len(base)+1, len(ps))
	}

	custom := ps[len(ps)-1]
	if custom.Name != "fish" || custom.Priority != 55 {
		t.Errorf("unexpected custom pattern: %s/%d", custom.Name, custom.Priority)
	}
	if got := custom.Transform("~/src"); got != "/home/u/src" {
		t.Errorf("Expected home expansion, got %q", got)
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", data)
	}
	for _, key := range []string{"buffer", "activity", "assistant", "notify", "logging"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing %q", key)
		}
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	errs := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, func(err error) { errs <- err })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("buffer:\n  max_size: 1024\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.Buffer.MaxSize != 1024 {
			t.Errorf("Expected reloaded max_size 1024, got %d", cfg.Buffer.MaxSize)
		}
	case err := <-errs:
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestSetupWizard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := strings.NewReader(strings.Join([]string{
		"3",                        // webhook
		"https://example.com/hook", // URL
		"2, 9",                     // disable second assistant; 9 is out of range
		"n",                        // git off
		"2",                        // debug
	}, "\n") + "\n")
	var out bytes.Buffer

	var tested string
	cfg, err := SetupWizard(SetupOptions{
		In:   in,
		Out:  &out,
		Path: path,
		Assistants: []AssistantInfo{
			{ID: "claude", Name: "Claude Code"},
			{ID: "codex", Name: "Codex CLI"},
		},
		TestWebhook: func(url string) error {
			tested = url
			return nil
		},
	})
	if err != nil {
		t.Fatalf("SetupWizard failed: %v", err)
	}

	if tested != "https://example.com/hook" {
		t.Errorf("Expected webhook test, got %q", tested)
	}
	if len(cfg.Notify.Webhooks) != 1 {
		t.Errorf("Expected one webhook, got %d", len(cfg.Notify.Webhooks))
	}
	if len(cfg.Assistant.Disabled) != 1 || cfg.Assistant.Disabled[0] != "codex" {
		t.Errorf("Expected codex disabled, got %v", cfg.Assistant.Disabled)
	}
	if cfg.Git.Enabled {
		t.Error("Expected git disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
	if !strings.Contains(out.String(), "Configuration saved to") {
		t.Errorf("missing confirmation in output:\n%s", out.String())
	}

	if _, err := Load(path); err != nil {
		t.Errorf("saved config does not load: %v", err)
	}
}

func TestSetupWizardDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := SetupWizard(SetupOptions{
		In:   strings.NewReader(""),
		Out:  &bytes.Buffer{},
		Path: path,
	})
	if err != nil {
		t.Fatalf("SetupWizard failed: %v", err)
	}
	if !cfg.Notify.Stdout {
		t.Error("Expected stdout delivery by default")
	}
	if !cfg.Git.Enabled {
		t.Error("Expected git enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected info level, got %q", cfg.Logging.Level)
	}
}
