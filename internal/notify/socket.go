package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"termsense/internal/config"
)

// SocketServer broadcasts events as JSON lines to clients of a Unix domain socket.
type SocketServer struct {
	path      string
	listener  net.Listener
	clients   map[net.Conn]bool
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewSocketServer listens on path, or ~/.termsense/termsense.sock when path is empty.
func NewSocketServer(path string) (*SocketServer, error) {
	if path == "" {
		dir := config.DefaultConfigDir()
		if dir == "" {
			return nil, fmt.Errorf("failed to get home directory for socket")
		}
		path = filepath.Join(dir, "termsense.sock")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// A stale socket from a previous run blocks Listen.
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return &SocketServer{
		path:     path,
		listener: listener,
		clients:  make(map[net.Conn]bool),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the socket path.
func (s *SocketServer) Path() string {
	return s.path
}

// Start accepts connections until ctx is done or the server is closed.
func (s *SocketServer) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	go s.acceptLoop()
}

func (s *SocketServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			continue
		}

		s.mu.Lock()
		s.clients[conn] = true
		s.mu.Unlock()

		go s.handleClient(conn)
	}
}

// handleClient greets the client and holds the connection until it hangs up.
func (s *SocketServer) handleClient(conn net.Conn) {
	defer s.drop(conn)

	welcome, _ := json.Marshal(map[string]string{
		"type":    "welcome",
		"message": "Connected to termsense socket",
	})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(append(welcome, '\n')); err != nil {
		return
	}

	buf := make([]byte, 1024)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func (s *SocketServer) drop(conn net.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast sends an event to all connected clients, dropping any that can't keep up.
func (s *SocketServer) Broadcast(event *Event) {
	data, err := event.JSON()
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.RLock()
	clients := make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		clients = append(clients, conn)
	}
	s.mu.RUnlock()

	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(data); err != nil {
			s.drop(conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *SocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and removes the socket file.
func (s *SocketServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.listener.Close()

		s.mu.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		s.clients = make(map[net.Conn]bool)
		s.mu.Unlock()

		os.Remove(s.path)
	})
	return nil
}

// SocketNotifier adapts a SocketServer to the Notifier interface.
type SocketNotifier struct {
	server *SocketServer
}

// NewSocketNotifier creates a notifier that broadcasts to socket clients.
func NewSocketNotifier(server *SocketServer) *SocketNotifier {
	return &SocketNotifier{server: server}
}

// Name returns the notifier type.
func (s *SocketNotifier) Name() string {
	return "socket"
}

// Send broadcasts the event.
func (s *SocketNotifier) Send(ctx context.Context, e *Event) error {
	s.server.Broadcast(e)
	return nil
}

// Close closes the underlying socket server.
func (s *SocketNotifier) Close() error {
	return s.server.Close()
}

// Server returns the underlying socket server.
func (s *SocketNotifier) Server() *SocketServer {
	return s.server
}
