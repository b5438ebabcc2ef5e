// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/gfx/gfxtest"
)

func newTestContext(c *qt.C, cfg core.ContextConfiguration) (*core.Context, *gfxtest.Device) {
	instance := gfxtest.NewInstance()
	ctx, err := core.NewContext(instance, 0, cfg)
	c.Assert(err, qt.IsNil)
	return ctx, ctx.Device.(*gfxtest.Device)
}

func physicalDevice(name string, kind gfx.PhysicalDeviceType, families ...gfx.QueueFamily) gfx.PhysicalDeviceInfo {
	pd := gfxtest.DefaultPhysicalDevice()
	pd.Name = name
	pd.Type = kind
	pd.QueueFamilies = families
	return pd
}

var (
	graphicsPresent = gfx.QueueFamily{Flags: gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer, Count: 1, PresentSupport: true}
	graphicsOnly    = gfx.QueueFamily{Flags: gfx.QueueGraphics | gfx.QueueTransfer, Count: 1}
	computeOnly     = gfx.QueueFamily{Flags: gfx.QueueCompute | gfx.QueueTransfer, Count: 2}
	transferOnly    = gfx.QueueFamily{Flags: gfx.QueueTransfer, Count: 1}
)

func TestSelectPhysicalDevice(t *testing.T) {
	c := qt.New(t)

	integrated := physicalDevice("integrated", gfx.PhysicalDeviceTypeIntegrated, graphicsPresent)
	discreteNoPresent := physicalDevice("headless", gfx.PhysicalDeviceTypeDiscrete, graphicsOnly)
	discrete := physicalDevice("discrete", gfx.PhysicalDeviceTypeDiscrete, graphicsOnly, graphicsPresent)
	cpu := physicalDevice("cpu", gfx.PhysicalDeviceTypeCPU, computeOnly)

	tests := []struct {
		about      string
		candidates []gfx.PhysicalDeviceInfo
		expected   int
	}{{
		about:      "discrete preferred over earlier integrated",
		candidates: []gfx.PhysicalDeviceInfo{integrated, discreteNoPresent, discrete},
		expected:   2,
	}, {
		about:      "falls back to first capable device",
		candidates: []gfx.PhysicalDeviceInfo{cpu, discreteNoPresent, integrated, integrated},
		expected:   2,
	}, {
		about:      "single discrete",
		candidates: []gfx.PhysicalDeviceInfo{discrete},
		expected:   0,
	}}

	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			idx, err := core.SelectPhysicalDevice(test.candidates)
			c.Assert(err, qt.IsNil)
			c.Assert(idx, qt.Equals, test.expected)
		})
	}

	_, err := core.SelectPhysicalDevice([]gfx.PhysicalDeviceInfo{cpu, discreteNoPresent})
	c.Assert(err, qt.ErrorIs, core.ErrNoSuitableDevice)

	_, err = core.SelectPhysicalDevice(nil)
	c.Assert(err, qt.ErrorIs, core.ErrNoSuitableDevice)
}

func TestResolveQueueFamilies(t *testing.T) {
	c := qt.New(t)

	c.Run("one family serves everything", func(c *qt.C) {
		indices, infos, err := core.ResolveQueueFamilies([]gfx.QueueFamily{graphicsPresent},
			gfx.QueueGraphics|gfx.QueueCompute|gfx.QueueTransfer)
		c.Assert(err, qt.IsNil)
		c.Assert(indices, qt.Equals, core.QueueFamilyIndices{})
		c.Assert(infos, qt.HasLen, 1)
		c.Assert(infos[0].Family, qt.Equals, uint32(0))
		c.Assert(infos[0].Priorities, qt.DeepEquals, []float32{1})
	})

	c.Run("separate families preferred", func(c *qt.C) {
		families := []gfx.QueueFamily{graphicsOnly, graphicsPresent, computeOnly, transferOnly}
		indices, infos, err := core.ResolveQueueFamilies(families, gfx.QueueGraphics|gfx.QueueCompute|gfx.QueueTransfer)
		c.Assert(err, qt.IsNil)
		c.Assert(indices.Graphics, qt.Equals, uint32(1))
		c.Assert(indices.Compute, qt.Equals, uint32(2))
		c.Assert(indices.Transfer, qt.Equals, uint32(0))
		c.Assert(infos, qt.HasLen, 3)
	})

	c.Run("compute not requested", func(c *qt.C) {
		families := []gfx.QueueFamily{graphicsPresent, computeOnly}
		indices, infos, err := core.ResolveQueueFamilies(families, gfx.QueueGraphics)
		c.Assert(err, qt.IsNil)
		c.Assert(indices.Compute, qt.Equals, uint32(0))
		c.Assert(infos, qt.HasLen, 1)
	})

	c.Run("no present support", func(c *qt.C) {
		_, _, err := core.ResolveQueueFamilies([]gfx.QueueFamily{graphicsOnly}, gfx.QueueGraphics)
		c.Assert(err, qt.ErrorIs, core.ErrNoSuitableDevice)
	})
}

func TestMemoryTypeLowestMatch(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	types := ctx.Physical.Memory.Types
	props := []gfx.MemoryProperty{
		0,
		gfx.MemoryPropertyDeviceLocal,
		gfx.MemoryPropertyHostVisible,
		gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCoherent,
		gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCached,
		gfx.MemoryPropertyDeviceLocal | gfx.MemoryPropertyHostVisible,
		gfx.MemoryPropertyLazilyAllocated,
	}

	for filter := uint32(0); filter < 1<<uint(len(types)); filter++ {
		for _, prop := range props {
			expected := -1
			for idx, mt := range types {
				if filter&(1<<uint(idx)) != 0 && mt.Flags&prop == prop {
					expected = idx
					break
				}
			}

			idx, err := ctx.MemoryType(filter, prop)
			if expected < 0 {
				c.Assert(err, qt.ErrorIs, core.ErrNoMatchingMemoryType, qt.Commentf("filter %b props %#x", filter, prop))
				continue
			}
			c.Assert(err, qt.IsNil, qt.Commentf("filter %b props %#x", filter, prop))
			c.Assert(idx, qt.Equals, uint32(expected), qt.Commentf("filter %b props %#x", filter, prop))
		}
	}
}

func TestContextQueuesAndPool(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{
		Extensions: []string{"VK_KHR_swapchain"},
		Queues:     gfx.QueueCompute,
	})

	info := dev.CreateInfo()
	c.Assert(info.Queues, qt.HasLen, 1)
	c.Assert(info.Extensions, qt.DeepEquals, []string{"VK_KHR_swapchain"})
	c.Assert(ctx.GraphicsQueue, qt.Equals, dev.Queue(0, 0))
	c.Assert(ctx.Surface, qt.Equals, gfxtest.DefaultSurfaceHandle)
	c.Assert(ctx.FenceTimeout(), qt.Equals, core.DefaultFenceTimeout)
	c.Assert(dev.LiveCount(gfxtest.KindCommandPool), qt.Equals, 1)

	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Destroyed(), qt.IsTrue)
	c.Assert(dev.Violations(), qt.HasLen, 0)
	c.Assert(dev.LiveSummary(), qt.Equals, "")
	c.Assert(ctx.Destroy(), qt.ErrorIs, core.ErrAlreadyDestroyed)
}

func TestContextDestroyReportsLeaks(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newTestContext(c, core.ContextConfiguration{Strict: true})

	buf, err := core.NewBuffer(ctx, gfx.BufferUsageUniform,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, 64, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.LiveResources(), qt.DeepEquals, map[string]int{"buffer": 1})

	err = ctx.Destroy()
	c.Assert(err, qt.ErrorIs, core.ErrResourceLeak)
	c.Assert(err, qt.ErrorMatches, ".*buffer:1.*")
	_ = buf
}

func TestContextLeaksTolerated(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})

	_, err := core.NewBuffer(ctx, gfx.BufferUsageUniform,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, 64, nil)
	c.Assert(err, qt.IsNil)

	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(len(dev.Violations()) > 0, qt.IsTrue)
}

func TestSingleTimeCommands(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	cb, err := ctx.BeginSingleTimeCommands()
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.EndSingleTimeCommands(cb), qt.IsNil)

	subs := dev.Submissions()
	c.Assert(subs, qt.HasLen, 1)
	c.Assert(subs[0].Queue, qt.Equals, ctx.GraphicsQueue)
	c.Assert(subs[0].Fence, qt.Not(qt.Equals), gfx.Fence(gfx.NullHandle))
	c.Assert(dev.LiveCount(gfxtest.KindFence), qt.Equals, 0)
	c.Assert(dev.LiveCount(gfxtest.KindCommandBuffer), qt.Equals, 0)
}

func TestSingleTimeCommandsWaitIsBounded(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{FenceTimeout: 20 * time.Millisecond})
	dev.SetAutoComplete(false)

	cb, err := ctx.BeginSingleTimeCommands()
	c.Assert(err, qt.IsNil)

	start := time.Now()
	err = ctx.EndSingleTimeCommands(cb)
	c.Assert(errors.Is(err, core.ErrDeviceLost), qt.IsTrue)
	c.Assert(time.Since(start) < time.Second, qt.IsTrue)

	dev.CompleteNext()
}

func TestSingleTimeCommandsTimeoutReportedAtDestroy(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{FenceTimeout: 10 * time.Millisecond, Strict: true})
	dev.SetAutoComplete(false)

	cb, err := ctx.BeginSingleTimeCommands()
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.EndSingleTimeCommands(cb), qt.ErrorIs, core.ErrDeviceLost)

	c.Assert(ctx.LiveResources(), qt.DeepEquals, map[string]int{"single time commands": 1})
	c.Assert(dev.LiveCount(gfxtest.KindFence), qt.Equals, 1)

	c.Assert(ctx.Destroy(), qt.ErrorIs, core.ErrResourceLeak)
	c.Assert(dev.LiveCount(gfxtest.KindFence), qt.Equals, 0)
	c.Assert(dev.LiveCount(gfxtest.KindCommandBuffer), qt.Equals, 0)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}
