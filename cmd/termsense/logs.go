package main

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"termsense/internal/config"
	"termsense/internal/logging"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		lines  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent diagnostic log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := logging.DefaultDir()
			if cfg, err := config.Load(configPathOrDefault(opts.configPath)); err == nil && cfg.Logging.Dir != "" {
				dir = cfg.Logging.Dir
			}

			files, err := logging.ListLogFiles(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no log files found in %s", dir)
			}
			path := files[0].Path
			out := cmd.OutOrStdout()

			if !follow {
				return printLastLines(out, path, lines)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n\n", path)
			t, err := tail.TailFile(path, tail.Config{
				Follow:   true,
				ReOpen:   true,
				Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
				Logger:   stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return err
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
					fmt.Fprintln(out, line.Text)
				}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log as it grows")
	return cmd
}

func configPathOrDefault(path string) string {
	if path == "" {
		return config.DefaultConfigPath()
	}
	return path
}

// printLastLines writes the last n lines of path to w.
func printLastLines(w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return scanner.Err()
}
