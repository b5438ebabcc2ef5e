// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
)

// frameSlot holds what one frame in flight records into and synchronizes with.
// The fence is created signaled so the first wait on every slot returns at once.
type frameSlot struct {
	cmd            gfx.CommandBuffer
	imageAcquired  gfx.Semaphore
	renderFinished gfx.Semaphore
	fence          gfx.Fence

	camera    *core.Buffer
	lights    *core.Buffer
	cameraSet gfx.DescriptorSet

	overlay overlayBuffers

	// frame is the number of the last frame submitted from this slot
	frame uint64
}

// frameRing cycles through the slots, waiting on a slot's fence before
// reusing it bounds how far the CPU runs ahead of the GPU.
type frameRing struct {
	slots   []*frameSlot
	current int

	ctx *core.Context
}

func newFrameRing(ctx *core.Context, count int, d *descriptors) (*frameRing, error) {
	r := &frameRing{ctx: ctx}
	device := ctx.Device

	cbs, err := device.AllocateCommandBuffers(ctx.CommandPool, count)
	if err != nil {
		return nil, fmt.Errorf("vk.AllocateCommandBuffers(): %w", err)
	}

	for idx := 0; idx < count; idx++ {
		slot := &frameSlot{cmd: cbs[idx], overlay: overlayBuffers{ctx: ctx}}
		r.slots = append(r.slots, slot)

		if slot.imageAcquired, err = device.CreateSemaphore(); err != nil {
			r.destroy()
			return nil, fmt.Errorf("vk.CreateSemaphore(): %w", err)
		}
		if slot.renderFinished, err = device.CreateSemaphore(); err != nil {
			r.destroy()
			return nil, fmt.Errorf("vk.CreateSemaphore(): %w", err)
		}
		if slot.fence, err = device.CreateFence(true); err != nil {
			r.destroy()
			return nil, fmt.Errorf("vk.CreateFence(): %w", err)
		}

		if slot.camera, err = newUniformBuffer(ctx, CameraUniformSize); err != nil {
			r.destroy()
			return nil, err
		}
		if slot.lights, err = newUniformBuffer(ctx, LightsUniformSize); err != nil {
			r.destroy()
			return nil, err
		}
		if slot.cameraSet, err = d.allocate(d.camera); err != nil {
			r.destroy()
			return nil, err
		}
		device.UpdateDescriptorSet(slot.cameraSet, []gfx.DescriptorWrite{
			writeUniform(0, slot.camera),
			writeUniform(1, slot.lights),
		})
	}
	return r, nil
}

// newUniformBuffer creates a persistently mapped uniform buffer
func newUniformBuffer(ctx *core.Context, size uint64) (*core.Buffer, error) {
	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, size, nil)
	if err != nil {
		return nil, err
	}
	if err := buf.Map(0, 0); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

func (r *frameRing) slot() *frameSlot {
	return r.slots[r.current]
}

func (r *frameRing) advance() {
	r.current = (r.current + 1) % len(r.slots)
}

// destroy expects the device to be idle
func (r *frameRing) destroy() {
	device := r.ctx.Device
	var cbs []gfx.CommandBuffer
	for idx := len(r.slots) - 1; idx >= 0; idx-- {
		slot := r.slots[idx]
		slot.overlay.destroy()
		if slot.lights != nil {
			slot.lights.Destroy()
		}
		if slot.camera != nil {
			slot.camera.Destroy()
		}
		if slot.fence != gfx.NullHandle {
			device.DestroyFence(slot.fence)
		}
		if slot.renderFinished != gfx.NullHandle {
			device.DestroySemaphore(slot.renderFinished)
		}
		if slot.imageAcquired != gfx.NullHandle {
			device.DestroySemaphore(slot.imageAcquired)
		}
		cbs = append(cbs, slot.cmd)
	}
	if len(cbs) > 0 {
		device.FreeCommandBuffers(r.ctx.CommandPool, cbs)
	}
	r.slots = nil
}
