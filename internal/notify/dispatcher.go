package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"termsense/internal/logging"
)

// DefaultQueueSize bounds the dispatcher queue when none is configured.
const DefaultQueueSize = 256

// sendTimeout bounds one delivery to all sinks.
const sendTimeout = 30 * time.Second

// Dispatcher queues events for a Notifier and delivers them from one goroutine.
// Publish never blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	notifier Notifier
	queue    chan *Event
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts delivering to n. A queueSize below 1 uses DefaultQueueSize.
func NewDispatcher(n Notifier, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		notifier: n,
		queue:    make(chan *Event, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues e and reports whether it was accepted.
func (d *Dispatcher) Publish(e *Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- e:
		return true
	default:
		if d.dropped.Add(1) == 1 {
			logging.NewLogger("notify").WithField("event", e.Event).Warn("event queue full; dropping events")
		}
		return false
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	log := logging.NewLogger("notify")

	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.notifier.Send(ctx, e); err != nil {
			log.WithError(err).WithField("event", e.Event).Warn("event delivery failed")
		}
		cancel()
	}
}

// Close stops accepting events, delivers what is queued and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}
