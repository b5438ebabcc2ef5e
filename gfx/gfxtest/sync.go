// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"time"

	"github.com/devblok/umbra/gfx"
)

type fence struct {
	signaled bool
	done     chan struct{}
}

func newFence(signaled bool) *fence {
	f := &fence{done: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f
}

func (f *fence) signal() {
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

func (f *fence) reset() {
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
}

type submission struct {
	fence    gfx.Fence
	cbs      []gfx.CommandBuffer
	commands [][]Command
}

// Submission is a record of one submitted batch
type Submission struct {
	Queue            gfx.Queue
	WaitSemaphores   []gfx.Semaphore
	WaitStages       []gfx.PipelineStage
	SignalSemaphores []gfx.Semaphore
	CommandBuffers   []gfx.CommandBuffer
	Fence            gfx.Fence

	// Commands holds the commands of each command buffer at submission time.
	Commands [][]Command
}

// SetAutoComplete controls whether submissions complete as soon as they are
// submitted, the default. When disabled, CompleteNext and CompleteAfter
// decide when work finishes.
func (d *Device) SetAutoComplete(auto bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.autoComplete = auto
}

// Pending returns the number of submissions that have not completed
func (d *Device) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.pending)
}

// CompleteNext completes the oldest pending submission, signaling its fence.
// It returns false if nothing was pending.
func (d *Device) CompleteNext() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.completeLocked()
}

// CompleteAfter completes the oldest pending submission once delay elapsed.
func (d *Device) CompleteAfter(delay time.Duration) {
	time.AfterFunc(delay, func() {
		d.CompleteNext()
	})
}

func (d *Device) completeLocked() bool {
	if len(d.pending) == 0 {
		return false
	}
	s := d.pending[0]
	d.pending = d.pending[1:]
	for _, h := range s.cbs {
		if cb, ok := d.cmdBuffers[h]; ok {
			cb.pending = false
		}
	}
	if f, ok := d.fences[s.fence]; ok {
		f.signal()
	}
	return true
}

func (d *Device) checkNotPendingLocked(match func(Command) bool, format string, arg interface{}) {
	for _, s := range d.pending {
		for _, cmds := range s.commands {
			for _, c := range cmds {
				if match(c) {
					d.violation(format, arg)
					return
				}
			}
		}
	}
}

// Submissions returns every batch submitted so far
func (d *Device) Submissions() []Submission {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]Submission(nil), d.submissions...)
}

// CreateSemaphore implements interface
func (d *Device) CreateSemaphore() (gfx.Semaphore, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	h := gfx.Semaphore(d.newHandle(KindSemaphore))
	d.semaphores[h] = false
	return h, nil
}

// DestroySemaphore implements interface
func (d *Device) DestroySemaphore(s gfx.Semaphore) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(s), KindSemaphore) {
		delete(d.semaphores, s)
	}
}

// Signaled reports whether a semaphore is signaled and not yet waited on
func (d *Device) Signaled(s gfx.Semaphore) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.semaphores[s]
}

// CreateFence implements interface
func (d *Device) CreateFence(signaled bool) (gfx.Fence, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	h := gfx.Fence(d.newHandle(KindFence))
	d.fences[h] = newFence(signaled)
	return h, nil
}

// DestroyFence implements interface
func (d *Device) DestroyFence(f gfx.Fence) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(f), KindFence) {
		for _, s := range d.pending {
			if s.fence == f {
				d.violation("fence %d destroyed while its submission is pending", f)
			}
		}
		delete(d.fences, f)
	}
}

// FenceSignaled reports whether a fence is signaled
func (d *Device) FenceSignaled(f gfx.Fence) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if fc, ok := d.fences[f]; ok {
		return fc.signaled
	}
	return false
}

// WaitForFences implements interface. It blocks until every fence is
// signaled by a completing submission, or the timeout elapses.
func (d *Device) WaitForFences(fences []gfx.Fence, timeout time.Duration) error {
	d.mutex.Lock()
	var waits []chan struct{}
	for _, h := range fences {
		f, ok := d.fences[h]
		if !ok {
			d.mutex.Unlock()
			return gfx.ErrUnknownHandle
		}
		waits = append(waits, f.done)
	}
	d.mutex.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for _, w := range waits {
		select {
		case <-w:
		case <-timer.C:
			return gfx.ErrTimeout
		}
	}
	return nil
}

// ResetFences implements interface
func (d *Device) ResetFences(fences []gfx.Fence) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, h := range fences {
		f, ok := d.fences[h]
		if !ok {
			return gfx.ErrUnknownHandle
		}
		for _, s := range d.pending {
			if s.fence == h {
				d.violation("fence %d reset while its submission is pending", h)
			}
		}
		f.reset()
	}
	return nil
}

// QueueSubmit implements interface
func (d *Device) QueueSubmit(queue gfx.Queue, submits []gfx.SubmitInfo, fence gfx.Fence) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if fence != gfx.NullHandle {
		f, ok := d.fences[fence]
		if !ok {
			return gfx.ErrUnknownHandle
		}
		if f.signaled {
			d.violation("submit with fence %d that is already signaled", fence)
		}
	}

	s := &submission{fence: fence}
	for _, info := range submits {
		if len(info.WaitSemaphores) != len(info.WaitStages) {
			d.violation("submit with %d wait semaphores and %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
		}
		for _, w := range info.WaitSemaphores {
			if signaled, ok := d.semaphores[w]; !ok || !signaled {
				d.violation("submit waits on semaphore %d that will never be signaled", w)
			}
			d.semaphores[w] = false
		}
		var snapshot [][]Command
		for _, h := range info.CommandBuffers {
			cb, ok := d.cmdBuffers[h]
			if !ok {
				return gfx.ErrUnknownHandle
			}
			if cb.recording {
				d.violation("submit of command buffer %d that is still recording", h)
			}
			if cb.pending {
				d.violation("submit of command buffer %d that is already pending", h)
			}
			cb.pending = true
			cmds := append([]Command(nil), cb.commands...)
			snapshot = append(snapshot, cmds)
			d.executeLocked(cmds)
		}
		for _, sig := range info.SignalSemaphores {
			d.semaphores[sig] = true
		}
		s.cbs = append(s.cbs, info.CommandBuffers...)
		s.commands = append(s.commands, snapshot...)
		d.submissions = append(d.submissions, Submission{
			Queue:            queue,
			WaitSemaphores:   append([]gfx.Semaphore(nil), info.WaitSemaphores...),
			WaitStages:       append([]gfx.PipelineStage(nil), info.WaitStages...),
			SignalSemaphores: append([]gfx.Semaphore(nil), info.SignalSemaphores...),
			CommandBuffers:   append([]gfx.CommandBuffer(nil), info.CommandBuffers...),
			Fence:            fence,
			Commands:         snapshot,
		})
	}

	d.pending = append(d.pending, s)
	if d.autoComplete {
		d.completeLocked()
	}
	return nil
}
