package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Driver owns a tick clock and a set of conductors and advances them in
// lock-step.
//
// CRITICAL: Step and Run must be called from exactly ONE goroutine. Every
// hook, handler callback and conductor mutation happens there. Other
// goroutines talk to conductors only through Post.
type Driver struct {
	clock      *Clock
	queue      *triggerQueue
	conductors []*Conductor
	byName     map[string]*Conductor
	logger     *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDriverLogger sets the driver's logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock replaces the driver's clock, e.g. to resume at a recorded tick.
func WithClock(clock *Clock) DriverOption {
	return func(d *Driver) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDriver creates a driver with no conductors and a clock at tick 0.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		clock:  NewClock(),
		queue:  newTriggerQueue(),
		byName: make(map[string]*Conductor),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add registers a conductor. Conductors are conducted in the order added.
// Names must be unique within a driver.
func (d *Driver) Add(c *Conductor) error {
	if _, exists := d.byName[c.Name()]; exists {
		return fmt.Errorf("conductor %q already registered", c.Name())
	}
	d.conductors = append(d.conductors, c)
	d.byName[c.Name()] = c
	return nil
}

// Conductor returns the conductor registered under name.
func (d *Driver) Conductor(name string) (*Conductor, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Conductors returns the registered conductors in conduct order.
func (d *Driver) Conductors() []*Conductor {
	out := make([]*Conductor, len(d.conductors))
	copy(out, d.conductors)
	return out
}

// Tick returns the tick of the most recent step.
func (d *Driver) Tick() int64 {
	return d.clock.Current()
}

// Post queues an event completion for a conductor.
// Thread-safe: may be called from any goroutine.
// Returns false once the driver has stopped.
func (d *Driver) Post(conductor, event string) bool {
	return d.queue.Enqueue(Trigger{Conductor: conductor, Event: event})
}

// Pending returns the number of posted triggers not yet delivered.
func (d *Driver) Pending() int {
	return d.queue.Len()
}

// Stable reports whether every conductor is stable.
func (d *Driver) Stable() bool {
	for _, c := range d.conductors {
		if !c.IsStable() {
			return false
		}
	}
	return true
}

// Step advances the clock by one tick, delivers posted triggers and then
// conducts every conductor at the new tick.
//
// Conductor errors do not stop the remaining conductors from running; they
// are joined and returned together.
func (d *Driver) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tick := d.clock.Next()

	for _, t := range d.queue.Drain() {
		c, ok := d.byName[t.Conductor]
		if !ok {
			d.logger.Warn("trigger for unknown conductor", "conductor", t.Conductor, "event", t.Event, "tick", tick)
			continue
		}
		c.Trigger(t.Event)
	}

	var errs []error
	for _, c := range d.conductors {
		if err := c.Conduct(tick); err != nil {
			d.logger.Error("conduct failed", "conductor", c.Name(), "tick", tick, "error", err)
			errs = append(errs, fmt.Errorf("conductor %q: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Run steps the driver every interval until ctx is cancelled, Stop is
// called, or stopWhen (if non-nil) returns true after a step.
//
// A zero interval steps as fast as possible. Step errors are logged and do
// not end the loop.
func (d *Driver) Run(ctx context.Context, interval time.Duration, stopWhen func(*Driver) bool) error {
	d.logger.Info("driver starting", "conductors", len(d.conductors), "interval", interval)

	var tickC <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if interval > 0 {
			select {
			case <-ctx.Done():
				d.logger.Info("driver stopping: context cancelled")
				d.queue.Close()
				return ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			d.logger.Info("driver stopping: context cancelled")
			d.queue.Close()
			return err
		}

		if d.queue.Closed() {
			d.logger.Info("driver stopping: closed")
			return nil
		}

		if err := d.Step(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Warn("step failed", "tick", d.Tick(), "error", err)
		}

		if stopWhen != nil && stopWhen(d) {
			d.logger.Info("driver stopping: condition met", "tick", d.Tick())
			return nil
		}
	}
}

// Stop closes the trigger queue. Run returns before its next step.
func (d *Driver) Stop() {
	d.queue.Close()
}

// UntilStable is a Run stop condition: every conductor is stable and no
// trigger is waiting to be delivered.
func UntilStable(d *Driver) bool {
	return d.Pending() == 0 && d.Stable()
}

// UntilTick returns a Run stop condition that holds once the clock reaches tick.
func UntilTick(tick int64) func(*Driver) bool {
	return func(d *Driver) bool {
		return d.Tick() >= tick
	}
}
