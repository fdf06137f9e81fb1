package notify

import (
	"context"
	"fmt"
	"strings"

	"termsense/internal/config"
)

// Notifier is the interface for delivering events.
type Notifier interface {
	// Send delivers an event.
	Send(ctx context.Context, e *Event) error

	// Name returns the notifier type name.
	Name() string
}

// NewNotifier builds the sinks enabled in cfg. The socket and websocket servers start
// listening immediately and stop when ctx is done or the returned notifier is closed.
// Extra notifiers that aren't created from config are appended as is.
func NewNotifier(ctx context.Context, cfg config.NotifyConfig, extras ...Notifier) (*MultiNotifier, error) {
	var sinks []Notifier

	if cfg.Stdout {
		sinks = append(sinks, NewStdoutNotifier(nil))
	}

	if cfg.EventFile {
		eventFile, err := NewEventFileNotifier(cfg.EventFilePath, cfg.EventFileMaxSize)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, eventFile)
	}

	if len(cfg.Webhooks) > 0 {
		webhooks := NewWebhookNotifier(cfg.Webhooks)
		if webhooks.EndpointCount() > 0 {
			sinks = append(sinks, webhooks)
		}
	}

	if cfg.Socket {
		server, err := NewSocketServer(cfg.SocketPath)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		server.Start(ctx)
		sinks = append(sinks, NewSocketNotifier(server))
	}

	if cfg.WebSocket.Enabled {
		hub := NewWebSocketHub(cfg.WebSocket.Path)
		if err := hub.Listen(ctx, cfg.WebSocket.Addr); err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, hub)
	}

	sinks = append(sinks, extras...)

	multi := NewMultiNotifier(sinks...)
	multi.events = newEventSet(cfg.Events)
	return multi, nil
}

func closeAll(sinks []Notifier) {
	for _, n := range sinks {
		if closer, ok := n.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}

// FormatEvent renders an event as one human-readable line.
func FormatEvent(e *Event) string {
	var sb strings.Builder

	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(string(e.Event))
	if e.Session != "" {
		fmt.Fprintf(&sb, " [%s]", e.Session)
	}
	if e.Assistant != "" {
		fmt.Fprintf(&sb, " %s", e.Assistant)
	}
	if e.Title != "" {
		fmt.Fprintf(&sb, " | %s", e.Title)
	}
	if e.Message != "" {
		fmt.Fprintf(&sb, ": %s", truncate(e.Message, 200))
	}
	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}
