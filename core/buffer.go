// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
)

// NewBuffer creates, allocates and binds a new buffer. When data is given it is
// uploaded by mapping the memory, copying, flushing if the memory
// is not host coherent and unmapping again.
func NewBuffer(ctx *Context, usage gfx.BufferUsage, props gfx.MemoryProperty, size uint64, data []byte) (*Buffer, error) {
	if uint64(len(data)) > size {
		return nil, fmt.Errorf("initial data of %d bytes exceeds buffer size %d", len(data), size)
	}

	buffer, req, err := ctx.Device.CreateBuffer(gfx.BufferCreateInfo{
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("vk.CreateBuffer(): %w", err)
	}

	memory, err := ctx.Allocator.Malloc(req, props)
	if err != nil {
		ctx.Device.DestroyBuffer(buffer)
		return nil, err
	}

	if err := ctx.Device.BindBufferMemory(buffer, memory.Get(), 0); err != nil {
		ctx.Device.DestroyBuffer(buffer)
		memory.Release()
		return nil, fmt.Errorf("vk.BindBufferMemory(): %w", err)
	}

	b := &Buffer{
		Handle:      buffer,
		Memory:      memory,
		Size:        size,
		Usage:       usage,
		MemoryFlags: memory.Flags(),
		ctx:         ctx,
		id:          ctx.track("buffer"),
	}

	if len(data) > 0 {
		if err := b.Write(data, 0); err != nil {
			b.Destroy()
			return nil, err
		}
	}
	return b, nil
}

// NewStagedBuffer creates a device local buffer and fills it with data
// through a host visible staging buffer and a one time copy.
func NewStagedBuffer(ctx *Context, usage gfx.BufferUsage, data []byte) (*Buffer, error) {
	size := uint64(len(data))
	staging, err := NewBuffer(ctx, gfx.BufferUsageTransferSrc,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, size, data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	buffer, err := NewBuffer(ctx, usage|gfx.BufferUsageTransferDst, gfx.MemoryPropertyDeviceLocal, size, nil)
	if err != nil {
		return nil, err
	}

	cmd, err := ctx.BeginSingleTimeCommands()
	if err != nil {
		buffer.Destroy()
		return nil, err
	}
	ctx.Device.CmdCopyBuffer(cmd, staging.Handle, buffer.Handle, []gfx.BufferCopy{{Size: size}})
	if err := ctx.EndSingleTimeCommands(cmd); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}

// Buffer is a buffer bound to its own memory. The memory is
// host mapped between Map and Unmap.
type Buffer struct {
	Handle      gfx.Buffer
	Memory      Memory
	Size        uint64
	Usage       gfx.BufferUsage
	MemoryFlags gfx.MemoryProperty

	ctx       *Context
	id        uint64
	mapped    []byte
	mapOffset uint64
	destroyed bool
}

// Coherent tells whether writes through the mapping need no flush.
func (b *Buffer) Coherent() bool {
	return b.MemoryFlags&gfx.MemoryPropertyHostCoherent != 0
}

// Mapped returns the host mapping, nil when the buffer is not mapped.
func (b *Buffer) Mapped() []byte {
	return b.mapped
}

// Map maps size bytes of the buffer memory starting at offset.
// A size of zero maps the rest of the buffer.
func (b *Buffer) Map(size, offset uint64) error {
	if b.destroyed {
		return ErrAlreadyDestroyed
	}
	if b.mapped != nil {
		return ErrAlreadyMapped
	}
	size, err := b.span("map", size, offset)
	if err != nil {
		return err
	}
	mapped, err := b.ctx.Device.MapMemory(b.Memory.Get(), offset, size)
	if err != nil {
		return fmt.Errorf("vk.MapMemory(): %w", err)
	}
	b.mapped = mapped
	b.mapOffset = offset
	return nil
}

// span resolves a size of zero to the rest of the buffer and checks
// that the range lies within it without overflowing.
func (b *Buffer) span(op string, size, offset uint64) (uint64, error) {
	if offset > b.Size {
		return 0, fmt.Errorf("%s offset %d exceeds buffer size %d", op, offset, b.Size)
	}
	if size == 0 {
		size = b.Size - offset
	}
	if size > b.Size-offset {
		return 0, fmt.Errorf("%s range %d+%d exceeds buffer size %d", op, offset, size, b.Size)
	}
	return size, nil
}

// Unmap removes the mapping, it does nothing when the buffer is not mapped.
func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.ctx.Device.UnmapMemory(b.Memory.Get())
	b.mapped = nil
	b.mapOffset = 0
}

// CopyTo copies data into the mapping, offset is relative to the start of the mapping.
func (b *Buffer) CopyTo(data []byte, offset uint64) error {
	if b.mapped == nil {
		return ErrNotMapped
	}
	if offset+uint64(len(data)) > uint64(len(b.mapped)) {
		return fmt.Errorf("copy of %d bytes at %d exceeds mapping of %d bytes", len(data), offset, len(b.mapped))
	}
	copy(b.mapped[offset:], data)
	return nil
}

// Flush makes host writes in the range visible to the device. Offset is relative
// to the start of the buffer and a size of zero flushes to its end.
// It does nothing on host coherent memory.
func (b *Buffer) Flush(size, offset uint64) error {
	size, err := b.span("flush", size, offset)
	if err != nil {
		return err
	}
	if b.Coherent() {
		return nil
	}
	if b.mapped == nil {
		return ErrNotMapped
	}
	if err := b.ctx.Device.FlushMemory(b.Memory.Get(), offset, size); err != nil {
		return fmt.Errorf("vk.FlushMappedMemoryRanges(): %w", err)
	}
	return nil
}

// Write maps the range, copies data, flushes it when needed and unmaps again.
func (b *Buffer) Write(data []byte, offset uint64) error {
	size := uint64(len(data))
	if err := b.Map(size, offset); err != nil {
		return err
	}
	defer b.Unmap()

	if err := b.CopyTo(data, 0); err != nil {
		return err
	}
	return b.Flush(size, offset)
}

// Destroy unmaps the buffer if needed, then destroys the buffer and frees its memory.
func (b *Buffer) Destroy() error {
	if b.destroyed {
		return ErrAlreadyDestroyed
	}
	b.destroyed = true
	b.Unmap()
	b.ctx.Device.DestroyBuffer(b.Handle)
	b.Memory.Release()
	b.ctx.untrack(b.id)
	return nil
}

// Release implements gfx.Releasable
func (b *Buffer) Release() {
	b.Destroy()
}
