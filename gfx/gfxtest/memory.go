// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
)

// memory keeps what the host wrote apart from what the device sees.
// Coherent memory shares one backing array between both.
type memory struct {
	typeIndex uint32
	coherent  bool
	host      []byte
	device    []byte
	mapped    bool
	flushes   int
}

type buffer struct {
	info   gfx.BufferCreateInfo
	memory gfx.Memory
	offset uint64
}

type image struct {
	info      gfx.ImageCreateInfo
	memory    gfx.Memory
	swapchain gfx.Swapchain
}

// AllocateMemory implements interface
func (d *Device) AllocateMemory(size uint64, memoryType uint32) (gfx.Memory, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if int(memoryType) >= len(d.physical.Memory.Types) {
		return gfx.NullHandle, fmt.Errorf("gfxtest: memory type %d does not exist", memoryType)
	}
	flags := d.physical.Memory.Types[memoryType].Flags
	m := &memory{
		typeIndex: memoryType,
		coherent:  flags&gfx.MemoryPropertyHostCoherent != 0,
		host:      make([]byte, size),
	}
	if m.coherent {
		m.device = m.host
	} else {
		m.device = make([]byte, size)
	}
	h := gfx.Memory(d.newHandle(KindMemory))
	d.memories[h] = m
	return h, nil
}

// FreeMemory implements interface
func (d *Device) FreeMemory(mem gfx.Memory) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(mem), KindMemory) {
		for h, b := range d.buffers {
			if b.memory == mem && d.alive(uint64(h), KindBuffer) {
				d.violation("memory %d freed while buffer %d is bound to it", mem, h)
			}
		}
		delete(d.memories, mem)
	}
}

// MapMemory implements interface
func (d *Device) MapMemory(mem gfx.Memory, offset, size uint64) ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return nil, gfx.ErrUnknownHandle
	}
	flags := d.physical.Memory.Types[m.typeIndex].Flags
	if flags&gfx.MemoryPropertyHostVisible == 0 {
		d.violation("map of memory %d which is not host visible", mem)
		return nil, fmt.Errorf("gfxtest: memory %d is not host visible", mem)
	}
	if m.mapped {
		d.violation("memory %d mapped twice", mem)
		return nil, fmt.Errorf("gfxtest: memory %d is already mapped", mem)
	}
	if offset+size > uint64(len(m.host)) {
		return nil, fmt.Errorf("gfxtest: map range %d+%d exceeds allocation of %d", offset, size, len(m.host))
	}
	m.mapped = true
	return m.host[offset : offset+size : offset+size], nil
}

// UnmapMemory implements interface
func (d *Device) UnmapMemory(mem gfx.Memory) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return
	}
	if !m.mapped {
		d.violation("unmap of memory %d that is not mapped", mem)
	}
	m.mapped = false
}

// FlushMemory implements interface. It makes the host writes in range visible to the device.
func (d *Device) FlushMemory(mem gfx.Memory, offset, size uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if !m.mapped {
		d.violation("flush of memory %d that is not mapped", mem)
	}
	end := offset + size
	if end > uint64(len(m.host)) {
		end = uint64(len(m.host))
	}
	copy(m.device[offset:end], m.host[offset:end])
	m.flushes++
	return nil
}

// DeviceView returns a copy of the memory as the device would read it.
func (d *Device) DeviceView(mem gfx.Memory) []byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return nil
	}
	return append([]byte(nil), m.device...)
}

// Flushes returns how many times the memory was flushed
func (d *Device) Flushes(mem gfx.Memory) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if m, ok := d.memories[mem]; ok {
		return m.flushes
	}
	return 0
}

// Mapped reports whether the memory is currently mapped
func (d *Device) Mapped(mem gfx.Memory) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if m, ok := d.memories[mem]; ok {
		return m.mapped
	}
	return false
}

// BufferContents returns the buffer contents as the device would read them.
func (d *Device) BufferContents(buf gfx.Buffer) []byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return nil
	}
	m, ok := d.memories[b.memory]
	if !ok {
		return nil
	}
	return append([]byte(nil), m.device[b.offset:b.offset+b.info.Size]...)
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer(info gfx.BufferCreateInfo) (gfx.Buffer, gfx.MemoryRequirements, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info.Size == 0 {
		return gfx.NullHandle, gfx.MemoryRequirements{}, fmt.Errorf("gfxtest: buffer size must not be zero")
	}
	h := gfx.Buffer(d.newHandle(KindBuffer))
	d.buffers[h] = &buffer{info: info}
	return h, gfx.MemoryRequirements{
		Size:           alignUp(info.Size, 16),
		Alignment:      256,
		MemoryTypeBits: d.MemoryTypeBits,
	}, nil
}

// BindBufferMemory implements interface
func (d *Device) BindBufferMemory(buf gfx.Buffer, mem gfx.Memory, offset uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	m, ok := d.memories[mem]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if offset+b.info.Size > uint64(len(m.host)) {
		return fmt.Errorf("gfxtest: buffer of %d bytes does not fit memory at offset %d", b.info.Size, offset)
	}
	b.memory = mem
	b.offset = offset
	return nil
}

// DestroyBuffer implements interface
func (d *Device) DestroyBuffer(buf gfx.Buffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(buf), KindBuffer) {
		d.checkNotPendingLocked(func(c Command) bool {
			for _, b := range c.Buffers {
				if b == buf {
					return true
				}
			}
			return false
		}, "buffer %d destroyed while in use", buf)
		delete(d.buffers, buf)
	}
}

// CreateImage implements interface
func (d *Device) CreateImage(info gfx.ImageCreateInfo) (gfx.Image, gfx.MemoryRequirements, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info.Width == 0 || info.Height == 0 {
		return gfx.NullHandle, gfx.MemoryRequirements{}, fmt.Errorf("gfxtest: image extent must not be zero")
	}
	if d.unsupported[info.Format] {
		return gfx.NullHandle, gfx.MemoryRequirements{}, fmt.Errorf("gfxtest: format %d not supported", info.Format)
	}
	layers := info.Layers
	if layers == 0 {
		layers = 1
	}
	h := gfx.Image(d.newHandle(KindImage))
	d.images[h] = &image{info: info}
	return h, gfx.MemoryRequirements{
		Size:           uint64(info.Width) * uint64(info.Height) * uint64(layers) * uint64(FormatSize(info.Format)),
		Alignment:      4096,
		MemoryTypeBits: d.MemoryTypeBits,
	}, nil
}

// BindImageMemory implements interface
func (d *Device) BindImageMemory(img gfx.Image, mem gfx.Memory, offset uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	i, ok := d.images[img]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if _, ok := d.memories[mem]; !ok {
		return gfx.ErrUnknownHandle
	}
	i.memory = mem
	return nil
}

// DestroyImage implements interface
func (d *Device) DestroyImage(img gfx.Image) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if i, ok := d.images[img]; ok && i.swapchain != gfx.NullHandle {
		d.violation("destroy of image %d owned by swapchain %d", img, i.swapchain)
		return
	}
	if d.release(uint64(img), KindImage) {
		delete(d.images, img)
	}
}

// CreateImageView implements interface
func (d *Device) CreateImageView(info gfx.ImageViewCreateInfo) (gfx.ImageView, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.images[info.Image]; !ok {
		return gfx.NullHandle, fmt.Errorf("gfxtest: view of unknown image %d", info.Image)
	}
	if info.Range.Aspect == 0 {
		d.violation("image view of image %d with empty aspect", info.Image)
	}
	h := gfx.ImageView(d.newHandle(KindImageView))
	d.views[h] = info
	return h, nil
}

// DestroyImageView implements interface
func (d *Device) DestroyImageView(view gfx.ImageView) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(view), KindImageView) {
		delete(d.views, view)
	}
}

// ImageViewInfo returns the create info of a live view
func (d *Device) ImageViewInfo(view gfx.ImageView) (gfx.ImageViewCreateInfo, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	info, ok := d.views[view]
	return info, ok
}

// CreateSampler implements interface
func (d *Device) CreateSampler(info gfx.SamplerCreateInfo) (gfx.Sampler, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return gfx.Sampler(d.newHandle(KindSampler)), nil
}

// DestroySampler implements interface
func (d *Device) DestroySampler(s gfx.Sampler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.release(uint64(s), KindSampler)
}

// FormatSupported implements interface
func (d *Device) FormatSupported(format gfx.Format, usage gfx.ImageUsage) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return !d.unsupported[format]
}

// FormatSize returns the size of one texel in bytes
func FormatSize(f gfx.Format) int {
	switch f {
	case gfx.FormatS8Uint:
		return 1
	case gfx.FormatD16Unorm:
		return 2
	case gfx.FormatD16UnormS8Uint:
		return 3
	case gfx.FormatR16G16B16A16Sfloat, gfx.FormatR32G32Sfloat, gfx.FormatD32SfloatS8Uint:
		return 8
	case gfx.FormatR32G32B32Sfloat:
		return 12
	case gfx.FormatR32G32B32A32Sfloat:
		return 16
	}
	return 4
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}
