package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"termsense/internal/wrap"
)

func newWrapCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID string
		status    bool
	)

	cmd := &cobra.Command{
		Use:   "wrap -- <command> [args...]",
		Short: "Run a command in a pseudo-terminal and classify its output",
		Long: `Run a command in a pseudo-terminal. Output passes through unchanged while termsense
tracks the working directory, activity and assistant state, delivering events to the
configured sinks.

Examples:
  termsense wrap -- claude
  termsense wrap --events -- bash -l
  termsense wrap --status -- make test`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()

			// The wrapped program owns stdout; events go to stderr.
			a, err := newApp(ctx, opts, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			a.start(ctx)

			var final string
			runnerOpts := []wrap.Option{wrap.WithSessionID(sessionID)}
			if status {
				runnerOpts = append(runnerOpts, wrap.WithExitHook(func(id string) {
					if v, ok := a.engine.SessionView(id); ok {
						final = renderStatus(v)
					}
				}))
			}

			code, err := wrap.NewRunner(a.engine, runnerOpts...).Run(ctx, args)
			if err != nil {
				return err
			}
			if final != "" {
				fmt.Fprintln(os.Stderr, final)
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID reported in events (default wrap-<pid>)")
	cmd.Flags().BoolVar(&status, "status", false, "Print a status line when the command exits")
	return cmd
}
