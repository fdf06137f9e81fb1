package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
	events    eventSet
}

// NewMultiNotifier creates a notifier that sends to every given destination.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Name returns the combined notifier names.
func (m *MultiNotifier) Name() string {
	if len(m.notifiers) == 0 {
		return "none"
	}
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Send delivers the event to every notifier. A failing sink doesn't stop the others;
// their errors are joined.
func (m *MultiNotifier) Send(ctx context.Context, e *Event) error {
	if !m.events.allows(e.Event) {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

// Close closes every notifier that has a Close method.
func (m *MultiNotifier) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if closer, ok := n.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
