// Package timectrl drives the globe animation: it advances a simulated
// clock one frame at a time and notifies listeners on every frame.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock exposes the current animation time.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime waits one wall-clock Tick between frames.
	RealTime Mode = iota
	// Accelerated emits frames back to back while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// DefaultTick is one frame at 60 frames per second.
const DefaultTick = time.Second / 60

// Listener is invoked once per frame with the frame number (from 1) and the
// animation time at that frame.
type Listener func(frame uint64, t time.Time)

// TimeController drives animation time and notifies registered listeners.
// Listeners run on the controller goroutine, in registration order.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	frames      uint64

	listeners []Listener
}

// NewTimeController constructs a controller. A non-positive tick falls back
// to DefaultTick.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current animation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the clock without emitting a frame.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// Frames returns the number of frames emitted so far.
func (tc *TimeController) Frames() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// AddListener registers a callback invoked on every frame. Register before
// calling Start.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Start runs the controller in a separate goroutine until duration of
// animation time has elapsed (duration <= 0 means no limit) or ctx is
// cancelled. The returned channel is closed when the controller stops.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})

	tc.mu.Lock()
	listeners := append([]Listener(nil), tc.listeners...)
	simTime := tc.StartTime
	tc.currentTime = simTime
	tick := tc.Tick
	mode := tc.Mode
	tc.mu.Unlock()

	go func() {
		defer close(done)

		var ticks <-chan time.Time
		if mode == RealTime {
			ticker := time.NewTicker(tick)
			defer ticker.Stop()
			ticks = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if ticks != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticks:
				}
			} else if ctx.Err() != nil {
				return
			}

			simTime = simTime.Add(tick)
			elapsed += tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.frames++
			frame := tc.frames
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(frame, simTime)
			}
		}
	}()
	return done
}
