// Package logging configures logrus for termsense components.
//
// Every component logs through an entry returned by NewLogger. All entries share one
// root logger so Configure can change level, format and sinks after they were handed out.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"termsense/internal/config"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "TERMSENSE_LOG_LEVEL"

var (
	root      = newRoot()
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	fileMu sync.Mutex
	file   *DailyFile
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&TextFormatter{})
	l.SetOutput(defaultOutput(l.GetLevel()))
	return l
}

// NewLogger returns the logger for a component. Entries are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if entry, ok := loggers[component]; ok {
		return entry
	}
	entry := root.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Root returns the shared logger. Tests use it to attach hooks.
func Root() *logrus.Logger {
	return root
}

// Configure applies the logging section of the config to every component logger.
// It returns a close function for the log file, if one was opened.
func Configure(cfg config.LoggingConfig) (func() error, error) {
	root.SetLevel(ParseLevel(cfg.Level))

	switch cfg.Format {
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	default:
		root.SetFormatter(&TextFormatter{})
	}

	writers := []io.Writer{}
	if out := defaultOutput(root.GetLevel()); out != io.Discard {
		writers = append(writers, out)
	}

	fileMu.Lock()
	defer fileMu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}

	if cfg.File {
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultDir()
		}
		f, err := OpenDailyFile(dir, cfg.RetentionDays)
		if err != nil {
			return nil, err
		}
		file = f
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		root.SetOutput(io.Discard)
	case 1:
		root.SetOutput(writers[0])
	default:
		root.SetOutput(io.MultiWriter(writers...))
	}

	return closeFile, nil
}

func closeFile() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// ParseLevel resolves the effective level, honoring TERMSENSE_LOG_LEVEL.
func ParseLevel(configured string) logrus.Level {
	levelStr := "info"
	if env := os.Getenv(EnvLevel); env != "" {
		levelStr = env
	} else if configured != "" {
		levelStr = configured
	}
	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// defaultOutput decides whether stderr receives log lines. An interactive terminal is
// owned by the wrapped program, so logs only go there at debug level.
func defaultOutput(level logrus.Level) io.Writer {
	fd := os.Stderr.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if !interactive || level >= logrus.DebugLevel {
		return os.Stderr
	}
	return io.Discard
}
