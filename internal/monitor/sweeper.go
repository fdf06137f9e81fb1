package monitor

import (
	"context"
	"sync/atomic"
	"time"
)

// Sweeper drives Engine.OnTick. It ticks faster while the host is visible.
type Sweeper struct {
	engine  *Engine
	visible atomic.Bool
	wake    chan struct{}
	ticks   atomic.Uint64
}

// NewSweeper creates a sweeper for e. The host starts visible.
func NewSweeper(e *Engine) *Sweeper {
	s := &Sweeper{
		engine: e,
		wake:   make(chan struct{}, 1),
	}
	s.visible.Store(true)
	return s
}

// SetVisible switches the cadence. A change takes effect immediately.
func (s *Sweeper) SetVisible(v bool) {
	if s.visible.Swap(v) == v {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Visible reports the current host visibility.
func (s *Sweeper) Visible() bool {
	return s.visible.Load()
}

// Interval returns the delay before the next tick.
func (s *Sweeper) Interval() time.Duration {
	st := s.engine.Settings()
	if s.visible.Load() {
		return st.SweepVisible
	}
	return st.SweepHidden
}

// Ticks returns how many sweeps have run.
func (s *Sweeper) Ticks() uint64 {
	return s.ticks.Load()
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.wake:
			// Cadence changed; restart the wait with the new interval.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.Interval())

		case <-timer.C:
			s.engine.OnTick(s.engine.Now())
			s.ticks.Add(1)
			timer.Reset(s.Interval())
		}
	}
}
