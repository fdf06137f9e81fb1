package monitor

import (
	"fmt"
	"time"

	"termsense/internal/activity"
	"termsense/internal/chunkbuf"
	"termsense/internal/config"
	"termsense/internal/detect"
	"termsense/internal/gitinfo"
	"termsense/internal/patterns"
)

// Settings is the engine's live-tunable behaviour.
type Settings struct {
	Activity    activity.Settings
	OutputRules []patterns.OutputRule // nil selects patterns.DefaultOutputRules
	Assistants  *detect.Registry      // nil selects detect.DefaultRegistry
	CWDPatterns []patterns.CWDPattern // nil selects patterns.DefaultCWDPatterns(Home)
	Home        string

	BufferMaxSize  int
	BufferDebounce time.Duration

	GitEnabled  bool
	GitDebounce time.Duration
	GitTimeout  time.Duration // Applied when the engine is created

	CwdLookup         bool
	CwdLookupInterval time.Duration

	SweepVisible time.Duration
	SweepHidden  time.Duration
}

// DefaultSettings returns the standard tuning with the built-in registries.
func DefaultSettings() Settings {
	return Settings{
		Activity:          activity.DefaultSettings(),
		BufferMaxSize:     chunkbuf.DefaultMaxSize,
		BufferDebounce:    chunkbuf.DefaultDebounce,
		GitEnabled:        true,
		GitDebounce:       gitinfo.DefaultDebounce,
		GitTimeout:        gitinfo.DefaultTimeout,
		CwdLookup:         true,
		CwdLookupInterval: 2 * time.Second,
		SweepVisible:      500 * time.Millisecond,
		SweepHidden:       2 * time.Second,
	}
}

// SettingsFromConfig converts a validated configuration. home is substituted for "~" in
// prompts and custom patterns.
func SettingsFromConfig(cfg *config.Config, home string) (Settings, error) {
	s := DefaultSettings()
	s.Home = home
	s.Activity = cfg.ActivitySettings()

	defaults, overrides := cfg.AssistantTiming()
	reg, err := detect.DefaultRegistry().Configure(defaults, overrides, cfg.Assistant.Disabled)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to configure assistants: %w", err)
	}
	s.Assistants = reg

	ps, err := cfg.CWDPatterns(home)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to compile cwd patterns: %w", err)
	}
	s.CWDPatterns = ps

	s.BufferMaxSize = cfg.Buffer.MaxSize
	s.BufferDebounce = cfg.BufferDebounce()
	s.GitEnabled = cfg.Git.Enabled
	s.GitDebounce = cfg.GitDebounce()
	s.GitTimeout = cfg.GitTimeout()
	s.CwdLookup = cfg.Process.CwdLookup
	s.CwdLookupInterval = cfg.ProcessInterval()
	s.SweepVisible, s.SweepHidden = cfg.SweepIntervals()
	return s, nil
}

// withDefaults fills unset registries and non-positive durations.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Assistants == nil {
		s.Assistants = detect.DefaultRegistry()
	}
	if s.CWDPatterns == nil {
		s.CWDPatterns = patterns.DefaultCWDPatterns(s.Home)
	}
	if s.BufferMaxSize <= 0 {
		s.BufferMaxSize = d.BufferMaxSize
	}
	if s.BufferDebounce <= 0 {
		s.BufferDebounce = d.BufferDebounce
	}
	if s.GitDebounce <= 0 {
		s.GitDebounce = d.GitDebounce
	}
	if s.GitTimeout <= 0 {
		s.GitTimeout = d.GitTimeout
	}
	if s.CwdLookupInterval <= 0 {
		s.CwdLookupInterval = d.CwdLookupInterval
	}
	if s.SweepVisible <= 0 {
		s.SweepVisible = d.SweepVisible
	}
	if s.SweepHidden <= 0 {
		s.SweepHidden = d.SweepHidden
	}
	return s
}
