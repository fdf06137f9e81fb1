package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"termsense/internal/config"
	"termsense/internal/logging"
	"termsense/internal/monitor"
	"termsense/internal/notify"
)

// app is the running pipeline: config, logging, event sinks and the engine.
type app struct {
	cfgPath    string
	cfg        *config.Config
	home       string
	engine     *monitor.Engine
	sweeper    *monitor.Sweeper
	notifier   *notify.MultiNotifier
	dispatcher *notify.Dispatcher
	closeLog   func() error
	log        *logrus.Entry
}

// newApp loads the config, applies command-line overrides and builds the engine.
// eventOut receives human-readable events when --events is set.
func newApp(ctx context.Context, opts *rootOptions, eventOut io.Writer) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, opts)

	closeLog, err := logging.Configure(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	a := &app{
		cfgPath:  path,
		cfg:      cfg,
		closeLog: closeLog,
		log:      logging.NewLogger("termsense"),
	}
	a.home, _ = os.UserHomeDir()

	settings, err := monitor.SettingsFromConfig(cfg, a.home)
	if err != nil {
		a.Close()
		return nil, err
	}

	var extras []notify.Notifier
	if opts.events {
		extras = append(extras, notify.NewStdoutNotifier(eventOut))
	}
	a.notifier, err = notify.NewNotifier(ctx, cfg.Notify, extras...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	a.dispatcher = notify.NewDispatcher(a.notifier, cfg.Notify.QueueSize)

	engineOpts := []monitor.Option{monitor.WithPublisher(a.dispatcher)}
	if cfg.Process.CwdLookup {
		engineOpts = append(engineOpts, monitor.WithCwdLookup(monitor.ProcessCwd))
	}
	a.engine = monitor.New(settings, engineOpts...)
	a.sweeper = monitor.NewSweeper(a.engine)

	a.log.WithFields(logrus.Fields{
		"config":     path,
		"notify":     a.notifier.Name(),
		"assistants": len(a.engine.Assistants().IDs()),
	}).Debug("pipeline ready")
	return a, nil
}

// applyOverrides folds persistent flags into cfg.
func applyOverrides(cfg *config.Config, opts *rootOptions) {
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	if opts.jsonOutput {
		cfg.Logging.Format = "json"
	}
	if opts.events {
		// The --events sink replaces the configured stdout sink so events print once.
		cfg.Notify.Stdout = false
	}
}

// start runs the sweeper and the config watcher until ctx is done.
func (a *app) start(ctx context.Context) {
	go func() {
		_ = a.sweeper.Run(ctx)
	}()
	go func() {
		err := config.Watch(ctx, a.cfgPath, a.reload, func(err error) {
			a.log.WithError(err).Warn("config reload failed; keeping previous settings")
		})
		if err != nil && ctx.Err() == nil {
			a.log.WithError(err).Debug("config watcher stopped")
		}
	}()
}

// reload applies a changed config file to logging and the engine.
func (a *app) reload(cfg *config.Config) {
	if _, err := logging.Configure(cfg.Logging); err != nil {
		a.log.WithError(err).Warn("failed to reconfigure logging")
	}
	settings, err := monitor.SettingsFromConfig(cfg, a.home)
	if err != nil {
		a.log.WithError(err).Warn("config reload failed; keeping previous settings")
		return
	}
	a.engine.ApplySettings(settings)
	a.log.WithField("config", a.cfgPath).Info("config reloaded")
}

// Close stops the engine and flushes queued events.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
		if n := a.dispatcher.Dropped(); n > 0 {
			a.log.WithField("dropped", n).Warn("events were dropped")
		}
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}
