package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// StdoutNotifier prints one line per event.
type StdoutNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutNotifier creates a notifier writing to out, or os.Stdout when out is nil.
func NewStdoutNotifier(out io.Writer) *StdoutNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutNotifier{out: out}
}

// Name returns the notifier type.
func (s *StdoutNotifier) Name() string {
	return "stdout"
}

// Send prints the event.
func (s *StdoutNotifier) Send(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, FormatEvent(e))
	return err
}
