// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
)

func TestDeletionQueue(t *testing.T) {
	c := qt.New(t)

	var released []string
	releaser := func(name string) gfx.Releasable {
		return gfx.ReleaseFunc(func() {
			released = append(released, name)
		})
	}

	var q core.DeletionQueue
	q.Push(1, releaser("a"))
	q.Push(3, releaser("b"))
	q.Push(2, releaser("c"))
	q.Push(1, releaser("d"))
	c.Assert(q.Len(), qt.Equals, 4)

	c.Assert(q.Collect(0), qt.Equals, 0)
	c.Assert(released, qt.HasLen, 0)

	c.Assert(q.Collect(1), qt.Equals, 2)
	c.Assert(released, qt.DeepEquals, []string{"a", "d"})

	c.Assert(q.Collect(2), qt.Equals, 1)
	c.Assert(released, qt.DeepEquals, []string{"a", "d", "c"})
	c.Assert(q.Len(), qt.Equals, 1)

	q.Push(5, releaser("e"))
	c.Assert(q.Flush(), qt.Equals, 2)
	c.Assert(released, qt.DeepEquals, []string{"a", "d", "c", "b", "e"})
	c.Assert(q.Len(), qt.Equals, 0)
	c.Assert(q.Flush(), qt.Equals, 0)
}
