// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/gfx/gfxtest"
)

func newDevice(c *qt.C) (*gfxtest.Instance, *gfxtest.Device) {
	instance := gfxtest.NewInstance()
	dev, err := instance.CreateDevice(0, gfx.DeviceCreateInfo{
		Queues: []gfx.DeviceQueueCreateInfo{{Family: 0, Count: 1, Priorities: []float32{1}}},
	})
	c.Assert(err, qt.IsNil)
	return instance, dev.(*gfxtest.Device)
}

func TestNonCoherentMemoryNeedsFlush(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	mem, err := dev.AllocateMemory(16, gfxtest.MemoryTypeHostCached)
	c.Assert(err, qt.IsNil)
	mapped, err := dev.MapMemory(mem, 0, 16)
	c.Assert(err, qt.IsNil)
	copy(mapped, []byte{1, 2, 3, 4})

	c.Assert(dev.DeviceView(mem)[:4], qt.DeepEquals, []byte{0, 0, 0, 0})
	c.Assert(dev.FlushMemory(mem, 0, 16), qt.IsNil)
	c.Assert(dev.DeviceView(mem)[:4], qt.DeepEquals, []byte{1, 2, 3, 4})

	dev.UnmapMemory(mem)
	dev.FreeMemory(mem)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestCoherentMemoryIsVisibleImmediately(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	mem, err := dev.AllocateMemory(8, gfxtest.MemoryTypeHostCoherent)
	c.Assert(err, qt.IsNil)
	mapped, err := dev.MapMemory(mem, 0, 8)
	c.Assert(err, qt.IsNil)
	copy(mapped, []byte{9, 9})
	c.Assert(dev.DeviceView(mem)[:2], qt.DeepEquals, []byte{9, 9})
	dev.UnmapMemory(mem)
	dev.FreeMemory(mem)
}

func TestMapDeviceLocalIsViolation(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	mem, err := dev.AllocateMemory(8, gfxtest.MemoryTypeDeviceLocal)
	c.Assert(err, qt.IsNil)
	_, err = dev.MapMemory(mem, 0, 8)
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(dev.Violations(), qt.HasLen, 1)
}

func TestFenceCompletesUnderTestControl(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)
	dev.SetAutoComplete(false)

	pool, err := dev.CreateCommandPool(0, true)
	c.Assert(err, qt.IsNil)
	cbs, err := dev.AllocateCommandBuffers(pool, 1)
	c.Assert(err, qt.IsNil)
	fence, err := dev.CreateFence(false)
	c.Assert(err, qt.IsNil)

	c.Assert(dev.BeginCommandBuffer(cbs[0], false), qt.IsNil)
	c.Assert(dev.EndCommandBuffer(cbs[0]), qt.IsNil)
	c.Assert(dev.QueueSubmit(dev.Queue(0, 0), []gfx.SubmitInfo{{CommandBuffers: cbs}}, fence), qt.IsNil)

	c.Assert(dev.WaitForFences([]gfx.Fence{fence}, 10*time.Millisecond), qt.Equals, gfx.ErrTimeout)
	c.Assert(dev.Pending(), qt.Equals, 1)

	dev.CompleteAfter(20 * time.Millisecond)
	c.Assert(dev.WaitForFences([]gfx.Fence{fence}, time.Second), qt.IsNil)
	c.Assert(dev.FenceSignaled(fence), qt.IsTrue)

	// no longer pending once its fence signaled
	c.Assert(dev.BeginCommandBuffer(cbs[0], false), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
	c.Assert(dev.EndCommandBuffer(cbs[0]), qt.IsNil)

	dev.DestroyFence(fence)
	dev.DestroyCommandPool(pool)
	dev.Destroy()
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestCopyExecutesOnSubmit(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	newBuffer := func(memType uint32) (gfx.Buffer, gfx.Memory) {
		buf, req, err := dev.CreateBuffer(gfx.BufferCreateInfo{Size: 4})
		c.Assert(err, qt.IsNil)
		mem, err := dev.AllocateMemory(req.Size, memType)
		c.Assert(err, qt.IsNil)
		c.Assert(dev.BindBufferMemory(buf, mem, 0), qt.IsNil)
		return buf, mem
	}
	src, srcMem := newBuffer(gfxtest.MemoryTypeHostCoherent)
	dst, _ := newBuffer(gfxtest.MemoryTypeDeviceLocal)

	mapped, err := dev.MapMemory(srcMem, 0, 4)
	c.Assert(err, qt.IsNil)
	copy(mapped, []byte{5, 6, 7, 8})
	dev.UnmapMemory(srcMem)

	pool, _ := dev.CreateCommandPool(0, false)
	cbs, _ := dev.AllocateCommandBuffers(pool, 1)
	c.Assert(dev.BeginCommandBuffer(cbs[0], true), qt.IsNil)
	dev.CmdCopyBuffer(cbs[0], src, dst, []gfx.BufferCopy{{Size: 4}})
	c.Assert(dev.EndCommandBuffer(cbs[0]), qt.IsNil)
	c.Assert(dev.BufferContents(dst), qt.DeepEquals, []byte{0, 0, 0, 0})

	c.Assert(dev.QueueSubmit(dev.Queue(0, 0), []gfx.SubmitInfo{{CommandBuffers: cbs}}, gfx.NullHandle), qt.IsNil)
	c.Assert(dev.BufferContents(dst), qt.DeepEquals, []byte{5, 6, 7, 8})
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestDrawOutsideRenderPassIsViolation(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	pool, _ := dev.CreateCommandPool(0, false)
	cbs, _ := dev.AllocateCommandBuffers(pool, 1)
	c.Assert(dev.BeginCommandBuffer(cbs[0], false), qt.IsNil)
	dev.CmdDraw(cbs[0], 3, 1, 0, 0)
	c.Assert(dev.Violations(), qt.HasLen, 1)
	c.Assert(dev.Commands(cbs[0]), qt.HasLen, 1)
	c.Assert(dev.Commands(cbs[0])[0].Op, qt.Equals, gfxtest.OpDraw)
}

func TestSwapchainOutOfDateAfterResize(t *testing.T) {
	c := qt.New(t)
	instance, dev := newDevice(c)

	sem, _ := dev.CreateSemaphore()
	sc, err := dev.CreateSwapchain(gfx.SwapchainCreateInfo{
		Surface:       instance.Surface(),
		MinImageCount: 3,
		Format:        gfx.FormatB8G8R8A8Unorm,
		Extent:        gfx.Extent2D{Width: 800, Height: 600},
		Usage:         gfx.ImageUsageColorAttachment,
		PresentMode:   gfx.PresentModeFifo,
	})
	c.Assert(err, qt.IsNil)
	images, err := dev.SwapchainImages(sc)
	c.Assert(err, qt.IsNil)
	c.Assert(images, qt.HasLen, 3)

	index, err := dev.AcquireNextImage(sc, time.Second, sem)
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint32(0))
	c.Assert(dev.QueuePresent(dev.Queue(0, 0), gfx.PresentInfo{
		WaitSemaphores: []gfx.Semaphore{sem},
		Swapchain:      sc,
		ImageIndex:     index,
	}), qt.IsNil)
	c.Assert(dev.Presents(), qt.HasLen, 1)

	instance.SetSurfaceExtent(1024, 768)
	_, err = dev.AcquireNextImage(sc, time.Second, sem)
	c.Assert(err, qt.Equals, gfx.ErrOutOfDate)

	dev.DestroySwapchain(sc)
	dev.DestroySemaphore(sem)
	c.Assert(dev.LiveCount(gfxtest.KindImage), qt.Equals, 0)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestDestroyReportsLeaks(t *testing.T) {
	c := qt.New(t)
	_, dev := newDevice(c)

	_, err := dev.CreateSampler(gfx.SamplerCreateInfo{})
	c.Assert(err, qt.IsNil)
	dev.Destroy()
	c.Assert(dev.Violations(), qt.HasLen, 1)
	c.Assert(dev.LiveSummary(), qt.Equals, "sampler=1 ")
}
