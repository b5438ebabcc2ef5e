// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "github.com/devblok/umbra/gfx"

type deletion struct {
	frame    uint64
	resource gfx.Releasable
}

// DeletionQueue holds resources that may still be referenced by submitted
// frames. Each one is released once the frame it was queued with completed.
type DeletionQueue struct {
	entries []deletion
}

// Push queues r for release after frame completes.
func (q *DeletionQueue) Push(frame uint64, r gfx.Releasable) {
	q.entries = append(q.entries, deletion{frame: frame, resource: r})
}

// Collect releases, in queue order, everything queued for frames up to
// and including completed. It returns the number of released resources.
func (q *DeletionQueue) Collect(completed uint64) int {
	var (
		released int
		kept     = q.entries[:0]
	)
	for _, e := range q.entries {
		if e.frame <= completed {
			e.resource.Release()
			released++
			continue
		}
		kept = append(kept, e)
	}
	for idx := len(kept); idx < len(q.entries); idx++ {
		q.entries[idx] = deletion{}
	}
	q.entries = kept
	return released
}

// Flush releases everything, the device must be idle.
func (q *DeletionQueue) Flush() int {
	released := len(q.entries)
	for _, e := range q.entries {
		e.resource.Release()
	}
	q.entries = nil
	return released
}

// Len returns the number of resources waiting for release
func (q *DeletionQueue) Len() int {
	return len(q.entries)
}
