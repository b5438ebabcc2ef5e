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
	"github.com/devblok/umbra/gfx/gfxtest"
)

const (
	hostCoherent = gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCoherent
	hostCached   = gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCached
)

func TestNewBufferUploadsInitialData(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	data := []byte("vertices and indices")

	c.Run("coherent", func(c *qt.C) {
		buf, err := core.NewBuffer(ctx, gfx.BufferUsageVertex, hostCoherent, uint64(len(data)), data)
		c.Assert(err, qt.IsNil)
		defer buf.Destroy()

		c.Assert(buf.Coherent(), qt.IsTrue)
		c.Assert(buf.Mapped(), qt.IsNil)
		c.Assert(dev.Mapped(buf.Memory.Get()), qt.IsFalse)
		c.Assert(dev.BufferContents(buf.Handle), qt.DeepEquals, data)
		c.Assert(dev.Flushes(buf.Memory.Get()), qt.Equals, 0)
	})

	c.Run("non coherent is flushed", func(c *qt.C) {
		buf, err := core.NewBuffer(ctx, gfx.BufferUsageVertex, hostCached, uint64(len(data)), data)
		c.Assert(err, qt.IsNil)
		defer buf.Destroy()

		c.Assert(buf.Coherent(), qt.IsFalse)
		c.Assert(dev.BufferContents(buf.Handle), qt.DeepEquals, data)
		c.Assert(dev.Flushes(buf.Memory.Get()), qt.Equals, 1)
	})

	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestNonCoherentWritesNeedFlush(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCached, 16, nil)
	c.Assert(err, qt.IsNil)
	defer buf.Destroy()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	c.Assert(buf.Map(0, 0), qt.IsNil)
	c.Assert(buf.Mapped(), qt.HasLen, 16)
	c.Assert(buf.CopyTo(data, 4), qt.IsNil)

	stale := dev.BufferContents(buf.Handle)
	c.Assert(stale[4:12], qt.DeepEquals, make([]byte, 8))

	c.Assert(buf.Flush(0, 0), qt.IsNil)
	fresh := dev.BufferContents(buf.Handle)
	c.Assert(fresh[4:12], qt.DeepEquals, data)

	buf.Unmap()
	c.Assert(buf.Mapped(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestBufferWriteAtOffset(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCached, 8, nil)
	c.Assert(err, qt.IsNil)
	defer buf.Destroy()

	c.Assert(buf.Write([]byte{9, 9}, 6), qt.IsNil)
	c.Assert(dev.BufferContents(buf.Handle), qt.DeepEquals, []byte{0, 0, 0, 0, 0, 0, 9, 9})
	c.Assert(buf.Mapped(), qt.IsNil)
}

func TestBufferMappingContract(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCoherent, 32, nil)
	c.Assert(err, qt.IsNil)

	// unmapping what is not mapped is allowed
	buf.Unmap()

	c.Assert(buf.CopyTo([]byte{1}, 0), qt.ErrorIs, core.ErrNotMapped)
	c.Assert(buf.Map(8, 0), qt.IsNil)
	c.Assert(buf.Map(8, 0), qt.ErrorIs, core.ErrAlreadyMapped)
	c.Assert(buf.CopyTo(make([]byte, 9), 0), qt.ErrorMatches, "copy of 9 bytes .*")
	c.Assert(buf.Flush(0, 0), qt.IsNil)

	c.Assert(buf.Destroy(), qt.IsNil)
	c.Assert(dev.Mapped(buf.Memory.Get()), qt.IsFalse)
	c.Assert(buf.Destroy(), qt.ErrorIs, core.ErrAlreadyDestroyed)
	c.Assert(buf.Map(0, 0), qt.ErrorIs, core.ErrAlreadyDestroyed)

	c.Assert(dev.LiveCount(gfxtest.KindBuffer), qt.Equals, 0)
	c.Assert(dev.LiveCount(gfxtest.KindMemory), qt.Equals, 0)
	c.Assert(ctx.LiveResources(), qt.HasLen, 0)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestBufferRangeErrors(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCached, 64, nil)
	c.Assert(err, qt.IsNil)
	defer buf.Destroy()

	tests := []struct {
		size, offset uint64
		err          string
	}{
		{0, 128, "map offset 128 exceeds buffer size 64"},
		{8, 128, "map offset 128 exceeds buffer size 64"},
		{65, 0, "map range 0\\+65 exceeds buffer size 64"},
		{16, 56, "map range 56\\+16 exceeds buffer size 64"},
		{^uint64(0), 8, "map range 8\\+18446744073709551615 exceeds buffer size 64"},
	}
	for _, test := range tests {
		c.Assert(buf.Map(test.size, test.offset), qt.ErrorMatches, test.err, qt.Commentf("%d+%d", test.offset, test.size))
		c.Assert(buf.Mapped(), qt.IsNil)
	}

	c.Assert(buf.Map(0, 0), qt.IsNil)
	c.Assert(buf.Flush(0, 128), qt.ErrorMatches, "flush offset 128 exceeds buffer size 64")
	c.Assert(buf.Flush(^uint64(0), 1), qt.ErrorMatches, "flush range .* exceeds buffer size 64")
	c.Assert(buf.Flush(0, 64), qt.IsNil)
	c.Assert(buf.Flush(8, 56), qt.IsNil)
	buf.Unmap()
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestNewBufferErrors(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	_, err := core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCoherent, 2, []byte{1, 2, 3})
	c.Assert(err, qt.ErrorMatches, "initial data .*")

	dev.MemoryTypeBits = 1 << gfxtest.MemoryTypeDeviceLocal
	_, err = core.NewBuffer(ctx, gfx.BufferUsageUniform, hostCoherent, 16, nil)
	c.Assert(err, qt.ErrorIs, core.ErrNoMatchingMemoryType)

	c.Assert(dev.LiveCount(gfxtest.KindBuffer), qt.Equals, 0)
	c.Assert(ctx.LiveResources(), qt.HasLen, 0)
}

func TestNewStagedBuffer(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	buf, err := core.NewStagedBuffer(ctx, gfx.BufferUsageIndex, data)
	c.Assert(err, qt.IsNil)
	defer buf.Destroy()

	c.Assert(buf.MemoryFlags&gfx.MemoryPropertyDeviceLocal, qt.Not(qt.Equals), gfx.MemoryProperty(0))
	c.Assert(buf.Usage, qt.Equals, gfx.BufferUsageIndex|gfx.BufferUsageTransferDst)
	c.Assert(dev.BufferContents(buf.Handle), qt.DeepEquals, data)

	// only the staged buffer survives
	c.Assert(dev.LiveCount(gfxtest.KindBuffer), qt.Equals, 1)

	subs := dev.Submissions()
	c.Assert(subs, qt.HasLen, 1)
	c.Assert(subs[0].Commands[0][0].Op, qt.Equals, gfxtest.OpCopyBuffer)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}
