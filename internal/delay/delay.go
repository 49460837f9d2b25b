package delay

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// ErrInvalidWindow is returned when a window's bounds are unusable.
var ErrInvalidWindow = errors.New("delay window must satisfy 0 <= min <= max")

// Window is a closed range of durations from which waits are drawn uniformly.
type Window struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// NewWindow returns a window after checking its bounds.
func NewWindow(lo, hi time.Duration) (Window, error) {
	w := Window{Min: lo, Max: hi}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate checks that 0 <= Min <= Max.
func (w Window) Validate() error {
	if w.Min < 0 || w.Max < w.Min {
		return ErrInvalidWindow
	}
	return nil
}

// Draw returns a uniformly random duration in [Min, Max].
func (w Window) Draw() time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + rand.N(w.Max-w.Min+1) //nolint:gosec // jitter does not need a CSPRNG
}

// Scale returns the window with both bounds multiplied by factor and capped
// at limit. A non-positive limit disables the cap.
func (w Window) Scale(factor int, limit time.Duration) Window {
	if factor < 1 {
		factor = 1
	}
	s := Window{Min: w.Min * time.Duration(factor), Max: w.Max * time.Duration(factor)}
	if limit > 0 {
		s.Min = min(s.Min, limit)
		s.Max = min(s.Max, limit)
	}
	return s
}

// Backoff returns the wait before the given retry. retry is 1 for the wait
// between the first and second attempts. The window doubles for each further
// retry and never exceeds limit.
func (w Window) Backoff(retry int, limit time.Duration) time.Duration {
	factor := 1
	for i := 1; i < retry && factor < 1<<16; i++ {
		factor *= 2
	}
	return w.Scale(factor, limit).Draw()
}

// Sleeper blocks for a duration or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on the wall clock.
type RealSleeper struct{}

// Sleep waits for d. It returns ctx.Err() if the context ends first.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Recorder is a Sleeper that returns immediately and remembers every request.
// It is intended for tests in other packages.
type Recorder struct {
	Calls []time.Duration
}

// Sleep records d and returns ctx.Err().
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.Calls = append(r.Calls, d)
	return ctx.Err()
}

// Total returns the sum of all recorded durations.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Calls {
		total += d
	}
	return total
}

// VirtualClock is a manual clock whose Sleep advances time instantly.
// It is intended for tests in other packages that poll against a deadline.
type VirtualClock struct {
	mu    sync.Mutex
	now   time.Time
	calls []time.Duration
}

// NewVirtualClock returns a clock set to start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep advances the clock by d and records the call.
func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.calls = append(c.calls, d)
	return nil
}

// Sleeps returns the recorded sleep durations.
func (c *VirtualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}
