// Package poller keeps a ticket snapshot fresh while backend processing is
// still pending.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tix/internal/models"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 4 * time.Second

// State is the controller state.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// RefreshFunc performs one silent refresh. It runs on the controller's
// goroutine; errors are the callee's to log and swallow.
type RefreshFunc func(ctx context.Context)

// ShouldPoll reports whether a snapshot still needs refreshing: AI enrichment
// has not landed or the ticket is not resolved.
func ShouldPoll(ticket *models.Ticket) bool {
	return ticket != nil && !ticket.Converged()
}

// Controller owns at most one polling timer.
type Controller struct {
	interval time.Duration
	refresh  RefreshFunc
	logger   *slog.Logger
	ticker   func(time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates an idle controller. A non-positive interval selects DefaultInterval.
func New(interval time.Duration, refresh RefreshFunc, logger *slog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		interval: interval,
		refresh:  refresh,
		logger:   logger,
		ticker:   systemTicker,
	}
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe moves the controller to Polling or Idle for the given snapshot.
// Starting while already polling is a no-op.
func (c *Controller) Observe(ticket *models.Ticket) State {
	if ShouldPoll(ticket) {
		c.start()
	} else {
		c.halt()
	}
	return c.State()
}

// Stop cancels the timer for good. Later calls to Observe do nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.halt()
}

// Done is closed when the current polling goroutine has exited. It returns a
// closed channel when idle.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Controller) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == Polling {
		return
	}

	// The timer exists before start returns; there is never more than one.
	ticks, stopTicker := c.ticker(c.interval)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.state = Polling
	c.cancel = cancel
	c.done = done
	c.logger.Debug("polling started", "interval", c.interval)

	go c.loop(ctx, ticks, stopTicker, done)
}

func (c *Controller) halt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Polling {
		return
	}
	c.cancel()
	c.cancel = nil
	c.state = Idle
	c.logger.Debug("polling stopped")
}

func (c *Controller) loop(ctx context.Context, ticks <-chan time.Time, stopTicker func(), done chan struct{}) {
	defer close(done)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if ctx.Err() != nil {
				return
			}
			// Runs inline so refreshes never overlap.
			c.refresh(ctx)
		}
	}
}
