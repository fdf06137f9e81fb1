package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// AssistantInfo holds basic assistant information for the setup wizard.
// This avoids importing the detect registry into the wizard's callers.
type AssistantInfo struct {
	ID   string
	Name string
}

// SetupWebhookTester is a function type for testing webhooks.
type SetupWebhookTester func(url string) error

// SetupOptions configures the setup wizard.
type SetupOptions struct {
	In          io.Reader
	Out         io.Writer
	Path        string // Destination; DefaultConfigPath when empty
	Assistants  []AssistantInfo
	TestWebhook SetupWebhookTester
}

// SetupWizard runs the interactive configuration wizard and saves the result.
func SetupWizard(opts SetupOptions) (*Config, error) {
	w := &wizard{in: bufio.NewReader(opts.In), out: opts.Out}
	cfg := DefaultConfig()

	w.printf("\ntermsense setup\n\n")
	w.setupDelivery(cfg, opts.TestWebhook)
	w.setupAssistants(cfg, opts.Assistants)
	w.setupGit(cfg)
	w.setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path := opts.Path
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := Save(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	w.printf("\nConfiguration saved to %s\n\n", path)
	return cfg, nil
}

type wizard struct {
	in  *bufio.Reader
	out io.Writer
}

func (w *wizard) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

// setupDelivery configures where events go.
func (w *wizard) setupDelivery(cfg *Config, testWebhook SetupWebhookTester) {
	w.printf("[1/4] Event delivery\n")
	w.printf("  1. Print to stdout [default]\n")
	w.printf("  2. Append to an event file (~/.termsense/events.jsonl)\n")
	w.printf("  3. POST to a webhook\n\n")

	switch w.promptChoice("Choice", 1, 3) {
	case 0, 1:
		cfg.Notify.Stdout = true
	case 2:
		cfg.Notify.EventFile = true
	case 3:
		url := w.promptString("Webhook URL")
		cfg.Notify.Webhooks = append(cfg.Notify.Webhooks, WebhookConfig{URL: url})

		if testWebhook != nil {
			w.printf("Testing webhook... ")
			if err := testWebhook(url); err != nil {
				w.printf("FAILED\n  Error: %v\n  You can edit the URL later in the config file.\n", err)
			} else {
				w.printf("Success!\n")
			}
		}
	}
	w.printf("\n")
}

// setupAssistants lets the user turn off detection for some assistants.
func (w *wizard) setupAssistants(cfg *Config, assistants []AssistantInfo) {
	w.printf("[2/4] Assistants to ignore\n")
	for i, a := range assistants {
		w.printf("  %d. %s\n", i+1, a.Name)
	}
	w.printf("\n")

	response := w.promptString("Numbers to disable, comma separated (Enter for none)")
	for _, part := range strings.Split(response, ",") {
		part = strings.TrimSpace(part)
		if idx, err := strconv.Atoi(part); err == nil && idx >= 1 && idx <= len(assistants) {
			cfg.Assistant.Disabled = append(cfg.Assistant.Disabled, assistants[idx-1].ID)
		}
	}
	w.printf("\n")
}

// setupGit toggles the git status query.
func (w *wizard) setupGit(cfg *Config) {
	w.printf("[3/4] Git status\n")
	cfg.Git.Enabled = w.promptYesNo("Show branch and dirty count for detected directories?", true)
	w.printf("\n")
}

// setupLogging sets the log level.
func (w *wizard) setupLogging(cfg *Config) {
	w.printf("[4/4] Log level\n")
	w.printf("  1. info [default]\n")
	w.printf("  2. debug\n")
	w.printf("  3. warn\n\n")

	switch w.promptChoice("Choice", 1, 3) {
	case 2:
		cfg.Logging.Level = "debug"
	case 3:
		cfg.Logging.Level = "warn"
	default:
		cfg.Logging.Level = "info"
	}
}

// promptChoice prompts for a numeric choice within a range. Empty input or EOF returns 0.
func (w *wizard) promptChoice(prompt string, min, max int) int {
	for {
		w.printf("%s [%d-%d]: ", prompt, min, max)
		input, err := w.in.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "" {
			return 0 // Default
		}

		choice, convErr := strconv.Atoi(input)
		if convErr != nil || choice < min || choice > max {
			w.printf("  Please enter a number between %d and %d\n", min, max)
			if err != nil {
				return 0
			}
			continue
		}
		return choice
	}
}

// promptString prompts for a string value.
func (w *wizard) promptString(prompt string) string {
	w.printf("%s: ", prompt)
	input, _ := w.in.ReadString('\n')
	return strings.TrimSpace(input)
}

func (w *wizard) promptYesNo(prompt string, def bool) bool {
	hint := "[Y/n]"
	if !def {
		hint = "[y/N]"
	}
	response := strings.ToLower(w.promptString(prompt + " " + hint))
	if response == "" {
		return def
	}
	return response == "y" || response == "yes"
}
