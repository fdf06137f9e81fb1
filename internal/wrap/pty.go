// Package wrap runs a command under a pseudo-terminal and streams its output into the
// classification engine while passing it through to the real terminal.
package wrap

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTY runs a command attached to a pseudo-terminal.
type PTY struct {
	cmd      *exec.Cmd
	pty      *os.File
	stdin    *os.File
	oldState *term.State
	winch    chan os.Signal
}

// NewPTY prepares name with args. The command is killed when ctx is done.
func NewPTY(ctx context.Context, name string, args ...string) *PTY {
	return &PTY{
		cmd:   exec.CommandContext(ctx, name, args...),
		stdin: os.Stdin,
	}
}

// Start launches the command and returns the terminal's output stream. When stdin is a
// terminal it is switched to raw mode and window size changes are forwarded.
func (p *PTY) Start() (io.Reader, error) {
	ptmx, err := pty.Start(p.cmd)
	if err != nil {
		return nil, err
	}
	p.pty = ptmx

	fd := int(p.stdin.Fd())
	if term.IsTerminal(fd) {
		p.winch = make(chan os.Signal, 1)
		signal.Notify(p.winch, syscall.SIGWINCH)
		go func() {
			for range p.winch {
				_ = pty.InheritSize(p.stdin, ptmx)
			}
		}()
		p.winch <- syscall.SIGWINCH // Initial size

		if oldState, err := term.MakeRaw(fd); err == nil {
			p.oldState = oldState
		}
	}

	go func() {
		_, _ = io.Copy(ptmx, p.stdin)
	}()

	return ptmx, nil
}

// Pid returns the command's process ID, or 0 before Start.
func (p *PTY) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Size returns the host terminal's size, falling back to 80x24.
func (p *PTY) Size() (cols, rows int) {
	cols, rows, err := term.GetSize(int(p.stdin.Fd()))
	if err != nil || cols <= 0 || rows <= 0 {
		return 80, 24
	}
	return cols, rows
}

// Wait waits for the command to exit and returns its exit code.
func (p *PTY) Wait() (int, error) {
	err := p.cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// Close restores the terminal and releases the pseudo-terminal.
func (p *PTY) Close() {
	if p.winch != nil {
		signal.Stop(p.winch)
		close(p.winch)
		p.winch = nil
	}
	if p.oldState != nil {
		_ = term.Restore(int(p.stdin.Fd()), p.oldState)
		p.oldState = nil
	}
	if p.pty != nil {
		p.pty.Close()
		p.pty = nil
	}
}
