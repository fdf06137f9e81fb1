package wrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"termsense/internal/logging"
	"termsense/internal/monitor"
	"termsense/internal/util"
)

// drainTimeout bounds how long output is read after the command exits. Background children
// can keep the terminal open indefinitely.
const drainTimeout = 2 * time.Second

// Sink consumes a session's lifecycle and output. *monitor.Engine satisfies it.
type Sink interface {
	OnSessionStart(id string, meta monitor.Meta)
	OnChunk(id, text string, now time.Time)
	OnSessionEnd(id string)
}

// Runner executes a command and feeds its output to a Sink.
type Runner struct {
	sink      Sink
	sessionID string
	out       io.Writer
	now       func() time.Time
	onExit    func(sessionID string)
	log       *logrus.Entry
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where the command's output is echoed (default os.Stdout).
// A nil writer discards it.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w == nil {
			w = io.Discard
		}
		r.out = w
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.sessionID = id
		}
	}
}

// WithClock sets the timestamp source for chunks.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithExitHook registers fn to run after the command's output is drained and before the
// session ends, while the sink still holds the session.
func WithExitHook(fn func(sessionID string)) Option {
	return func(r *Runner) {
		r.onExit = fn
	}
}

// NewRunner creates a runner feeding sink.
func NewRunner(sink Sink, opts ...Option) *Runner {
	r := &Runner{
		sink:      sink,
		sessionID: fmt.Sprintf("wrap-%d", os.Getpid()),
		out:       os.Stdout,
		now:       time.Now,
		log:       logging.NewLogger("wrap"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionID returns the ID chunks are reported under.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Run executes args[0] with args[1:] under a pseudo-terminal and returns its exit code.
// The session starts when the command starts and ends after its output is drained.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	p := NewPTY(ctx, args[0], args[1:]...)
	output, err := p.Start()
	if err != nil {
		return 1, fmt.Errorf("failed to start command: %w", err)
	}
	defer p.Close()

	meta := monitor.Meta{
		PID:        p.Pid(),
		Shell:      monitor.ProcessName(p.Pid()),
		Title:      strings.Join(args, " "),
		Foreground: true,
	}
	if meta.Shell == "" {
		meta.Shell = filepath.Base(args[0])
	}
	if wd, err := os.Getwd(); err == nil {
		meta.Cwd = wd
	}
	r.sink.OnSessionStart(r.sessionID, meta)
	defer func() {
		if r.onExit != nil {
			r.onExit(r.sessionID)
		}
		r.sink.OnSessionEnd(r.sessionID)
	}()

	cols, rows := p.Size()
	r.log.WithFields(logrus.Fields{
		"session": r.sessionID,
		"pid":     meta.PID,
		"command": meta.Title,
		"size":    fmt.Sprintf("%dx%d", cols, rows),
	}).Debug("command started")

	done := make(chan error, 1)
	go func() {
		done <- r.Pump(output)
	}()

	exitCode, waitErr := p.Wait()

	select {
	case err := <-done:
		if err != nil {
			r.log.WithError(err).Warn("output stream failed")
		}
	case <-time.After(drainTimeout):
		r.log.WithField("session", r.sessionID).Debug("output still open after exit; closing")
		p.Close()
		<-done
	}

	r.log.WithFields(logrus.Fields{"session": r.sessionID, "exit": exitCode}).Debug("command finished")
	return exitCode, waitErr
}

// Pump copies src to the runner's output and reports each read to the sink as a chunk.
// A multi-byte sequence split across reads is held back until it is complete. It returns
// nil when src ends or the terminal is closed.
func (r *Runner) Pump(src io.Reader) error {
	var carry []byte
	for {
		buf := util.GetBuffer()
		n := copy(*buf, carry)
		m, err := src.Read((*buf)[n:])

		if m > 0 {
			if _, werr := r.out.Write((*buf)[n : n+m]); werr != nil {
				r.log.WithError(werr).Debug("failed to echo output")
			}
			var chunk string
			chunk, carry = util.CopyChunk((*buf)[:n+m])
			if chunk != "" {
				r.sink.OnChunk(r.sessionID, chunk, r.now())
			}
		}
		util.PutBuffer(buf)

		if err != nil {
			if len(carry) > 0 {
				r.sink.OnChunk(r.sessionID, string(carry), r.now())
			}
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
