package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"

	"termsense/internal/config"
	"termsense/internal/detect"
	"termsense/internal/logging"
	"termsense/internal/monitor"
	"termsense/internal/notify"
	"termsense/internal/patterns"
)

// checkReport is the machine-readable form of the check command.
type checkReport struct {
	Config      string           `json:"config"`
	ConfigFound bool             `json:"config_found"`
	ConfigError string           `json:"config_error,omitempty"`
	Assistants  []checkAssistant `json:"assistants"`
	CWDPatterns []checkPattern   `json:"cwd_patterns"`
	OutputRules []string         `json:"output_rules"`
	Sinks       []string         `json:"sinks"`
	Events      []string         `json:"events"`
	Git         string           `json:"git,omitempty"`
	LogFiles    int              `json:"log_files"`
}

type checkAssistant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SpinnerIdle string `json:"spinner_idle"`
	Idle        string `json:"idle"`
	Debounce    string `json:"debounce"`
}

type checkPattern struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and show what is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildCheckReport(opts.configPath)
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
				return err
			}
			printCheckReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

// buildCheckReport loads and validates the config at path. The report is filled in
// as far as possible even when the config is invalid.
func buildCheckReport(path string) (*checkReport, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	report := &checkReport{Config: path}
	if _, err := os.Stat(path); err == nil {
		report.ConfigFound = true
	}

	cfg, err := config.Load(path)
	if err != nil {
		report.ConfigError = err.Error()
		cfg = config.DefaultConfig()
	}

	home, _ := os.UserHomeDir()
	settings, settingsErr := monitor.SettingsFromConfig(cfg, home)
	if settingsErr != nil {
		if err == nil {
			err = settingsErr
			report.ConfigError = settingsErr.Error()
		}
		settings = monitor.DefaultSettings()
	}
	if settings.Assistants == nil {
		settings.Assistants = detect.DefaultRegistry()
	}
	if settings.CWDPatterns == nil {
		settings.CWDPatterns = patterns.DefaultCWDPatterns(home)
	}
	if settings.OutputRules == nil {
		settings.OutputRules = patterns.DefaultOutputRules()
	}

	for _, def := range settings.Assistants.All() {
		report.Assistants = append(report.Assistants, checkAssistant{
			ID:          def.ID,
			Name:        def.Name,
			SpinnerIdle: def.Timing.SpinnerIdleTimeout.String(),
			Idle:        def.Timing.IdleTimeout.String(),
			Debounce:    def.Timing.StateDebounce.String(),
		})
	}

	for _, p := range settings.CWDPatterns {
		report.CWDPatterns = append(report.CWDPatterns, checkPattern{Name: p.Name, Priority: p.Priority})
	}
	sort.SliceStable(report.CWDPatterns, func(i, j int) bool {
		return report.CWDPatterns[i].Priority > report.CWDPatterns[j].Priority
	})

	for _, r := range settings.OutputRules {
		report.OutputRules = append(report.OutputRules, string(r.Type))
	}

	report.Sinks = enabledSinks(cfg.Notify)
	report.Events = cfg.Notify.Events
	if len(report.Events) == 0 {
		for _, t := range notify.EventTypes() {
			report.Events = append(report.Events, string(t))
		}
	}

	if cfg.Git.Enabled {
		if gitPath, lookErr := exec.LookPath("git"); lookErr == nil {
			report.Git = gitPath
		}
	}

	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = logging.DefaultDir()
	}
	if files, listErr := logging.ListLogFiles(logDir); listErr == nil {
		report.LogFiles = len(files)
	}

	if err != nil {
		return report, fmt.Errorf("invalid config: %w", err)
	}
	return report, nil
}

func enabledSinks(n config.NotifyConfig) []string {
	var sinks []string
	if n.Stdout {
		sinks = append(sinks, "stdout")
	}
	if n.EventFile {
		sinks = append(sinks, "eventfile")
	}
	if n.Socket {
		sinks = append(sinks, "socket")
	}
	if n.WebSocket.Enabled {
		sinks = append(sinks, "websocket "+n.WebSocket.Addr)
	}
	for _, w := range n.Webhooks {
		if w.URL != "" {
			sinks = append(sinks, "webhook "+w.URL)
		}
	}
	return sinks
}

func printCheckReport(w io.Writer, r *checkReport) {
	fmt.Fprintln(w, headerStyle.Render("termsense "+version))
	fmt.Fprintln(w)

	switch {
	case r.ConfigError != "":
		fmt.Fprintf(w, "Config:  %s %s (%s)\n", mark(false), r.Config, r.ConfigError)
	case r.ConfigFound:
		fmt.Fprintf(w, "Config:  %s %s\n", mark(true), r.Config)
	default:
		fmt.Fprintf(w, "Config:  defaults (run 'termsense init' to create %s)\n", r.Config)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Assistants:"))
	for _, a := range r.Assistants {
		fmt.Fprintf(w, "  %-12s %-14s waiting after %s, idle after %s, debounce %s\n",
			a.ID, a.Name, a.SpinnerIdle, a.Idle, a.Debounce)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Working-directory patterns:"))
	for _, p := range r.CWDPatterns {
		fmt.Fprintf(w, "  %-12s priority %d\n", p.Name, p.Priority)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Output rules: %v\n", r.OutputRules)
	if len(r.Sinks) == 0 {
		fmt.Fprintln(w, "Sinks:        none")
	} else {
		fmt.Fprintf(w, "Sinks:        %v\n", r.Sinks)
	}
	fmt.Fprintf(w, "Events:       %v\n", r.Events)
	fmt.Fprintf(w, "Git:          %s %s\n", mark(r.Git != ""), r.Git)
	fmt.Fprintf(w, "Log files:    %d\n", r.LogFiles)
}
