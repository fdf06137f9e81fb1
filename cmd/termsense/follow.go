package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"termsense/internal/monitor"
)

func newFollowCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID string
		fromStart bool
		noFollow  bool
		poll      bool
	)

	cmd := &cobra.Command{
		Use:   "follow FILE",
		Short: "Classify a terminal transcript as it grows",
		Long: `Tail a terminal transcript (for example one written by script(1) or tmux pipe-pane)
and print a status line whenever the classification changes.

Examples:
  termsense follow ~/typescript
  termsense follow --from-start --no-follow session.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			a.start(ctx)

			path := args[0]
			if sessionID == "" {
				sessionID = filepath.Base(path)
			}
			a.engine.OnSessionStart(sessionID, monitor.Meta{Title: path, Foreground: true})
			defer a.engine.OnSessionEnd(sessionID)

			out := cmd.OutOrStdout()
			last := ""
			onChunk := func() {
				v, ok := a.engine.SessionView(sessionID)
				if !ok {
					return
				}
				if line := renderStatus(v); line != last {
					fmt.Fprintln(out, line)
					last = line
				}
			}

			return followFile(ctx, path, followOptions{
				sessionID: sessionID,
				fromStart: fromStart,
				follow:    !noFollow,
				poll:      poll,
			}, a.engine, onChunk)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID reported in events (default file name)")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Read the file from the beginning")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Stop at end of file")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll for changes instead of using inotify")
	return cmd
}

// chunkSink is the part of the engine follow feeds.
type chunkSink interface {
	OnChunk(id, text string, now time.Time)
}

type followOptions struct {
	sessionID string
	fromStart bool
	follow    bool
	poll      bool
}

// followFile feeds each line of path to sink until ctx is done or, when not following,
// the end of the file. onChunk runs after every line.
func followFile(ctx context.Context, path string, opts followOptions, sink chunkSink, onChunk func()) error {
	whence := io.SeekEnd
	if opts.fromStart || !opts.follow {
		whence = io.SeekStart
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    opts.follow,
		ReOpen:    opts.follow,
		MustExist: true,
		Poll:      opts.poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read %s: %w", path, line.Err)
			}
			now := line.Time
			if now.IsZero() {
				now = time.Now()
			}
			sink.OnChunk(opts.sessionID, line.Text+"\n", now)
			if onChunk != nil {
				onChunk()
			}
		}
	}
}
