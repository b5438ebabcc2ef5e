// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	eventInterval := time.Duration(cfg.EventPollDelay) * time.Millisecond
	if eventInterval <= 0 {
		eventInterval = time.Millisecond
	}

	return &Time{
		fps:            cfg.FramesPerSecond,
		fpsTicker:      time.NewTicker(interval),
		eventPollDelay: cfg.EventPollDelay,
		eventTicker:    time.NewTicker(eventInterval),
		now:            time.Now,
	}
}

// Time contains all the time services and tickers
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	eventPollDelay int
	eventTicker    *time.Ticker

	now      func() time.Time
	last     time.Time
	frames   uint64
	elapsed  time.Duration
	lastTick time.Duration
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Tick marks the start of a frame and returns the time since the previous one.
// The first tick returns zero.
func (t *Time) Tick() time.Duration {
	now := t.now()
	var delta time.Duration
	if !t.last.IsZero() {
		delta = now.Sub(t.last)
	}
	t.last = now
	t.frames++
	t.elapsed += delta
	t.lastTick = delta
	return delta
}

// Delta returns the duration measured by the last Tick
func (t *Time) Delta() time.Duration {
	return t.lastTick
}

// Frames returns the number of ticks so far
func (t *Time) Frames() uint64 {
	return t.frames
}

// Elapsed returns the time between the first and the last tick
func (t *Time) Elapsed() time.Duration {
	return t.elapsed
}

// Stop stops the tickers
func (t *Time) Stop() {
	t.fpsTicker.Stop()
	t.eventTicker.Stop()
}
