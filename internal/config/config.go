// Package config provides configuration management for termsense.
// Config files are YAML or TOML, chosen by file extension.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"termsense/internal/activity"
	"termsense/internal/detect"
	"termsense/internal/patterns"
)

// Config is the root configuration structure.
type Config struct {
	Version   string          `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration format version"`
	Buffer    BufferConfig    `yaml:"buffer" toml:"buffer" json:"buffer"`
	Activity  ActivityConfig  `yaml:"activity" toml:"activity" json:"activity"`
	Assistant AssistantConfig `yaml:"assistant" toml:"assistant" json:"assistant"`
	Git       GitConfig       `yaml:"git" toml:"git" json:"git"`
	Process   ProcessConfig   `yaml:"process" toml:"process" json:"process"`
	Sweep     SweepConfig     `yaml:"sweep" toml:"sweep" json:"sweep"`
	Patterns  PatternsConfig  `yaml:"patterns" toml:"patterns" json:"patterns"`
	Notify    NotifyConfig    `yaml:"notify" toml:"notify" json:"notify"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" json:"logging"`
}

// BufferConfig controls prompt text accumulation for working-directory detection.
type BufferConfig struct {
	MaxSize    int `yaml:"max_size" toml:"max_size" json:"max_size" jsonschema:"description=Maximum buffered characters per session"`
	DebounceMS int `yaml:"debounce_ms" toml:"debounce_ms" json:"debounce_ms" jsonschema:"description=Quiet period before buffered text is scanned"`
}

// ActivityConfig tunes the activity classifier and its decay.
type ActivityConfig struct {
	BurstThresholdMS int `yaml:"burst_threshold_ms" toml:"burst_threshold_ms" json:"burst_threshold_ms"`
	OutputWindowMS   int `yaml:"output_window_ms" toml:"output_window_ms" json:"output_window_ms"`
	Baseline         int `yaml:"baseline" toml:"baseline" json:"baseline"`
	Plateau          int `yaml:"plateau" toml:"plateau" json:"plateau"`
	DecayAfterMS     int `yaml:"decay_after_ms" toml:"decay_after_ms" json:"decay_after_ms"`
	OutputTypeTTLMS  int `yaml:"output_type_ttl_ms" toml:"output_type_ttl_ms" json:"output_type_ttl_ms"`
	UnseenTimeoutMS  int `yaml:"unseen_timeout_ms" toml:"unseen_timeout_ms" json:"unseen_timeout_ms" jsonschema:"description=How long background activity stays flagged as unseen"`
}

// TimingConfig holds assistant state machine thresholds. Zero values inherit.
type TimingConfig struct {
	SpinnerIdleTimeoutMS int `yaml:"spinner_idle_timeout_ms,omitempty" toml:"spinner_idle_timeout_ms,omitempty" json:"spinner_idle_timeout_ms,omitempty"`
	IdleTimeoutMS        int `yaml:"idle_timeout_ms,omitempty" toml:"idle_timeout_ms,omitempty" json:"idle_timeout_ms,omitempty"`
	StateDebounceMS      int `yaml:"state_debounce_ms,omitempty" toml:"state_debounce_ms,omitempty" json:"state_debounce_ms,omitempty"`
}

// AssistantConfig controls assistant detection.
type AssistantConfig struct {
	Timing    TimingConfig            `yaml:"timing" toml:"timing" json:"timing"`
	Overrides map[string]TimingConfig `yaml:"overrides,omitempty" toml:"overrides,omitempty" json:"overrides,omitempty" jsonschema:"description=Per-assistant timing keyed by assistant id"`
	Disabled  []string                `yaml:"disabled,omitempty" toml:"disabled,omitempty" json:"disabled,omitempty" jsonschema:"description=Assistant ids that are never detected"`
}

// GitConfig controls the git status query run after a working-directory change.
type GitConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	DebounceMS int  `yaml:"debounce_ms" toml:"debounce_ms" json:"debounce_ms"`
	TimeoutMS  int  `yaml:"timeout_ms" toml:"timeout_ms" json:"timeout_ms"`
}

// ProcessConfig controls the optional working-directory lookup by process ID.
type ProcessConfig struct {
	CwdLookup  bool `yaml:"cwd_lookup" toml:"cwd_lookup" json:"cwd_lookup"`
	IntervalMS int  `yaml:"interval_ms" toml:"interval_ms" json:"interval_ms"`
}

// SweepConfig sets the decay sweep cadence.
type SweepConfig struct {
	VisibleIntervalMS int `yaml:"visible_interval_ms" toml:"visible_interval_ms" json:"visible_interval_ms"`
	HiddenIntervalMS  int `yaml:"hidden_interval_ms" toml:"hidden_interval_ms" json:"hidden_interval_ms"`
}

// CWDPatternConfig is a user-defined working-directory pattern.
type CWDPatternConfig struct {
	Name         string   `yaml:"name" toml:"name" json:"name"`
	Regex        string   `yaml:"regex" toml:"regex" json:"regex" jsonschema:"description=RE2 expression with exactly one capture group"`
	Priority     int      `yaml:"priority" toml:"priority" json:"priority"`
	Transforms   []string `yaml:"transforms,omitempty" toml:"transforms,omitempty" json:"transforms,omitempty" jsonschema:"enum=home,enum=msys,enum=trim"`
	SkipPrefixes []string `yaml:"skip_prefixes,omitempty" toml:"skip_prefixes,omitempty" json:"skip_prefixes,omitempty"`
}

// PatternsConfig extends the built-in pattern tables.
type PatternsConfig struct {
	CWD []CWDPatternConfig `yaml:"cwd,omitempty" toml:"cwd,omitempty" json:"cwd,omitempty"`
}

// NotifyConfig defines where engine events are delivered.
type NotifyConfig struct {
	Stdout           bool            `yaml:"stdout" toml:"stdout" json:"stdout"`
	Events           []string        `yaml:"events,omitempty" toml:"events,omitempty" json:"events,omitempty" jsonschema:"description=Event types to deliver (empty = all)"`
	EventFile        bool            `yaml:"event_file" toml:"event_file" json:"event_file"`
	EventFilePath    string          `yaml:"event_file_path" toml:"event_file_path" json:"event_file_path"`
	EventFileMaxSize int64           `yaml:"event_file_max_size" toml:"event_file_max_size" json:"event_file_max_size"`
	Socket           bool            `yaml:"socket" toml:"socket" json:"socket"`
	SocketPath       string          `yaml:"socket_path" toml:"socket_path" json:"socket_path"`
	WebSocket        WebSocketConfig `yaml:"websocket" toml:"websocket" json:"websocket"`
	Webhooks         []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks,omitempty" json:"webhooks,omitempty"`
	QueueSize        int             `yaml:"queue_size" toml:"queue_size" json:"queue_size"`
}

// WebSocketConfig configures the websocket event stream.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" toml:"addr" json:"addr" jsonschema:"description=Listen address (e.g. 127.0.0.1:7878)"`
	Path    string `yaml:"path" toml:"path" json:"path"`
}

// WebhookConfig defines a webhook endpoint for notifications.
type WebhookConfig struct {
	URL     string            `yaml:"url" toml:"url" json:"url"`
	Events  []string          `yaml:"events,omitempty" toml:"events,omitempty" json:"events,omitempty"`    // Event types to send (empty = all)
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty" json:"headers,omitempty"` // Custom HTTP headers
	Timeout int               `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"` // Timeout in seconds (default: 10)
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level         string `yaml:"level" toml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format        string `yaml:"format" toml:"format" json:"format" jsonschema:"enum=text,enum=json"`
	File          bool   `yaml:"file" toml:"file" json:"file"`
	Dir           string `yaml:"dir" toml:"dir" json:"dir"`
	RetentionDays int    `yaml:"retention_days" toml:"retention_days" json:"retention_days"` // Days to keep logs (0 = forever)
}

// DefaultConfig returns a Config with the standard tuning.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Buffer: BufferConfig{
			MaxSize:    4096,
			DebounceMS: 150,
		},
		Activity: ActivityConfig{
			BurstThresholdMS: 250,
			OutputWindowMS:   1000,
			Baseline:         35,
			Plateau:          50,
			DecayAfterMS:     1500,
			OutputTypeTTLMS:  3000,
			UnseenTimeoutMS:  10000,
		},
		Assistant: AssistantConfig{
			Timing: TimingConfig{
				SpinnerIdleTimeoutMS: 5000,
				IdleTimeoutMS:        30000,
				StateDebounceMS:      500,
			},
		},
		Git: GitConfig{
			Enabled:    true,
			DebounceMS: 300,
			TimeoutMS:  3000,
		},
		Process: ProcessConfig{
			CwdLookup:  true,
			IntervalMS: 2000,
		},
		Sweep: SweepConfig{
			VisibleIntervalMS: 500,
			HiddenIntervalMS:  2000,
		},
		Notify: NotifyConfig{
			Stdout:           false,
			EventFile:        false,
			EventFileMaxSize: 10 * 1024 * 1024, // 10MB
			WebSocket: WebSocketConfig{
				Addr: "127.0.0.1:7878",
				Path: "/events",
			},
			QueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			RetentionDays: 7,
		},
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// BufferDebounce returns the buffer debounce as a time.Duration.
func (c *Config) BufferDebounce() time.Duration {
	return ms(c.Buffer.DebounceMS)
}

// GitDebounce returns the git trigger debounce.
func (c *Config) GitDebounce() time.Duration {
	return ms(c.Git.DebounceMS)
}

// GitTimeout returns the per-query git timeout.
func (c *Config) GitTimeout() time.Duration {
	return ms(c.Git.TimeoutMS)
}

// ProcessInterval returns the minimum gap between process working-directory lookups.
func (c *Config) ProcessInterval() time.Duration {
	return ms(c.Process.IntervalMS)
}

// SweepIntervals returns the sweep cadence while the host is visible and hidden.
func (c *Config) SweepIntervals() (visible, hidden time.Duration) {
	return ms(c.Sweep.VisibleIntervalMS), ms(c.Sweep.HiddenIntervalMS)
}

// ActivitySettings converts the activity section, keeping built-in values for knobs the
// file does not expose.
func (c *Config) ActivitySettings() activity.Settings {
	s := activity.DefaultSettings()
	a := c.Activity
	s.BurstThreshold = ms(a.BurstThresholdMS)
	s.OutputWindow = ms(a.OutputWindowMS)
	s.Baseline = a.Baseline
	s.Plateau = a.Plateau
	s.DecayAfter = ms(a.DecayAfterMS)
	s.OutputTypeTTL = ms(a.OutputTypeTTLMS)
	s.UnseenTimeout = ms(a.UnseenTimeoutMS)
	return s
}

func (t TimingConfig) timing() detect.Timing {
	return detect.Timing{
		SpinnerIdleTimeout: ms(t.SpinnerIdleTimeoutMS),
		IdleTimeout:        ms(t.IdleTimeoutMS),
		StateDebounce:      ms(t.StateDebounceMS),
	}
}

// AssistantTiming returns the default timing and per-assistant overrides.
func (c *Config) AssistantTiming() (detect.Timing, map[string]detect.Timing) {
	overrides := make(map[string]detect.Timing, len(c.Assistant.Overrides))
	for id, t := range c.Assistant.Overrides {
		overrides[id] = t.timing()
	}
	return c.Assistant.Timing.timing(), overrides
}

// CWDPatterns returns the built-in patterns followed by the configured custom ones.
func (c *Config) CWDPatterns(home string) ([]patterns.CWDPattern, error) {
	ps := patterns.DefaultCWDPatterns(home)
	for _, pc := range c.Patterns.CWD {
		p, err := patterns.CompileCustom(patterns.CustomCWDPattern{
			Name:         pc.Name,
			Regex:        pc.Regex,
			Priority:     pc.Priority,
			Transforms:   pc.Transforms,
			SkipPrefixes: pc.SkipPrefixes,
		}, home)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Buffer.MaxSize < 256 {
		return &ValidationError{Field: "buffer.max_size", Message: "must be at least 256"}
	}
	if c.Buffer.DebounceMS < 10 {
		return &ValidationError{Field: "buffer.debounce_ms", Message: "must be at least 10ms"}
	}

	a := c.Activity
	if a.BurstThresholdMS <= 0 || a.OutputWindowMS <= a.BurstThresholdMS {
		return &ValidationError{Field: "activity.output_window_ms", Message: "must be greater than burst_threshold_ms, which must be positive"}
	}
	if a.Baseline < 0 || a.Baseline > activity.MaxIntensity {
		return &ValidationError{Field: "activity.baseline", Message: "must be between 0 and 100"}
	}
	if a.Plateau < 0 || a.Plateau > activity.MaxIntensity {
		return &ValidationError{Field: "activity.plateau", Message: "must be between 0 and 100"}
	}
	if a.DecayAfterMS < 0 || a.OutputTypeTTLMS < 0 || a.UnseenTimeoutMS < 0 {
		return &ValidationError{Field: "activity", Message: "durations cannot be negative"}
	}

	if err := validateTiming("assistant.timing", c.Assistant.Timing, true); err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, id := range detect.DefaultRegistry().IDs() {
		known[id] = true
	}
	for id, t := range c.Assistant.Overrides {
		if !known[id] {
			return &ValidationError{Field: "assistant.overrides." + id, Message: "unknown assistant"}
		}
		if err := validateTiming("assistant.overrides."+id, t, false); err != nil {
			return err
		}
	}
	for _, id := range c.Assistant.Disabled {
		if !known[id] {
			return &ValidationError{Field: "assistant.disabled", Message: fmt.Sprintf("unknown assistant %q", id)}
		}
	}

	if c.Git.Enabled && (c.Git.DebounceMS <= 0 || c.Git.TimeoutMS <= 0) {
		return &ValidationError{Field: "git", Message: "debounce_ms and timeout_ms must be positive"}
	}
	if c.Process.CwdLookup && c.Process.IntervalMS < 100 {
		return &ValidationError{Field: "process.interval_ms", Message: "must be at least 100ms"}
	}
	if c.Sweep.VisibleIntervalMS < 50 || c.Sweep.HiddenIntervalMS < c.Sweep.VisibleIntervalMS {
		return &ValidationError{Field: "sweep", Message: "visible_interval_ms must be at least 50ms and not exceed hidden_interval_ms"}
	}

	seen := make(map[string]bool)
	for i, p := range c.Patterns.CWD {
		field := fmt.Sprintf("patterns.cwd[%d]", i)
		if p.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "is required"}
		}
		if seen[p.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate pattern %q", p.Name)}
		}
		seen[p.Name] = true
		if _, err := patterns.CompileCustom(patterns.CustomCWDPattern{
			Name:       p.Name,
			Regex:      p.Regex,
			Transforms: p.Transforms,
		}, ""); err != nil {
			return &ValidationError{Field: field, Message: err.Error()}
		}
	}

	for _, e := range c.Notify.Events {
		if !validEventName.MatchString(e) {
			return &ValidationError{Field: "notify.events", Message: fmt.Sprintf("invalid event name %q", e)}
		}
	}
	for i, w := range c.Notify.Webhooks {
		if !strings.HasPrefix(w.URL, "http://") && !strings.HasPrefix(w.URL, "https://") {
			return &ValidationError{Field: fmt.Sprintf("notify.webhooks[%d].url", i), Message: "must be an http(s) URL"}
		}
	}
	if c.Notify.WebSocket.Enabled && c.Notify.WebSocket.Addr == "" {
		return &ValidationError{Field: "notify.websocket.addr", Message: "is required when websocket is enabled"}
	}
	if c.Notify.QueueSize < 1 {
		return &ValidationError{Field: "notify.queue_size", Message: "must be at least 1"}
	}

	validLevel := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevel[strings.ToLower(c.Logging.Level)] {
		return &ValidationError{Field: "logging.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return &ValidationError{Field: "logging.format", Message: "must be 'text' or 'json'"}
	}
	if c.Logging.RetentionDays < 0 {
		return &ValidationError{Field: "logging.retention_days", Message: "cannot be negative"}
	}

	return nil
}

var validEventName = regexp.MustCompile(`^[a-z_]+$`)

func validateTiming(field string, t TimingConfig, required bool) error {
	values := []struct {
		name string
		v    int
	}{
		{"spinner_idle_timeout_ms", t.SpinnerIdleTimeoutMS},
		{"idle_timeout_ms", t.IdleTimeoutMS},
		{"state_debounce_ms", t.StateDebounceMS},
	}
	for _, f := range values {
		if f.v < 0 || (required && f.v == 0) {
			return &ValidationError{Field: field + "." + f.name, Message: "must be positive"}
		}
	}
	if required && t.IdleTimeoutMS <= t.SpinnerIdleTimeoutMS {
		return &ValidationError{Field: field + ".idle_timeout_ms", Message: "must exceed spinner_idle_timeout_ms"}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
