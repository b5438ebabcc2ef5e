// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/gfx/gfxtest"
)

func newTestContext(c *qt.C, cfg core.ContextConfiguration) (*core.Context, *gfxtest.Instance, *gfxtest.Device) {
	instance := gfxtest.NewInstance()
	ctx, err := core.NewContext(instance, 0, cfg)
	c.Assert(err, qt.IsNil)
	return ctx, instance, ctx.Device.(*gfxtest.Device)
}

func TestSwapchainLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx, _, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	sc := renderer.NewSwapchain(ctx)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainUninitialized)
	c.Assert(sc.Create(800, 600, true), qt.ErrorIs, renderer.ErrSwapchainState)

	c.Assert(sc.InitSurface(ctx.Surface), qt.IsNil)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainConfigured)
	c.Assert(sc.Format, qt.Equals, gfx.FormatB8G8R8A8Unorm)
	c.Assert(sc.InitSurface(ctx.Surface), qt.ErrorIs, renderer.ErrSwapchainState)

	c.Assert(sc.Create(800, 600, true), qt.IsNil)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainPresenting)
	c.Assert(sc.ImageCount(), qt.Equals, 3)
	c.Assert(sc.Extent, qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	info, ok := dev.SwapchainInfo(sc.Handle)
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.PresentMode, qt.Equals, gfx.PresentModeFifo)
	c.Assert(info.MinImageCount, qt.Equals, uint32(3))
	c.Assert(info.OldSwapchain, qt.Equals, gfx.Swapchain(gfx.NullHandle))

	first := sc.Handle
	sc.Invalidate()
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainInvalidated)
	c.Assert(sc.Create(800, 600, false), qt.IsNil)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainPresenting)
	c.Assert(sc.PresentMode, qt.Equals, gfx.PresentModeMailbox)
	info, _ = dev.SwapchainInfo(sc.Handle)
	c.Assert(info.OldSwapchain, qt.Equals, first)

	// the old chain and its views are gone, only the new ones remain
	c.Assert(dev.SwapchainsCreated(), qt.Equals, 2)
	c.Assert(dev.LiveCount(gfxtest.KindSwapchain), qt.Equals, 1)
	c.Assert(dev.SwapchainViewCount(), qt.Equals, sc.ImageCount())

	sem, err := ctx.Device.CreateSemaphore()
	c.Assert(err, qt.IsNil)
	index, err := sc.AcquireNextImage(sem, ctx.FenceTimeout())
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint32(0))
	ctx.Device.DestroySemaphore(sem)

	c.Assert(sc.Destroy(), qt.IsNil)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainDestroyed)
	c.Assert(sc.Destroy(), qt.ErrorIs, core.ErrAlreadyDestroyed)
	_, err = sc.AcquireNextImage(gfx.NullHandle, ctx.FenceTimeout())
	c.Assert(err, qt.ErrorIs, renderer.ErrSwapchainState)

	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestSwapchainResizeRoundTrip(t *testing.T) {
	c := qt.New(t)
	ctx, instance, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	sc := renderer.NewSwapchain(ctx)
	c.Assert(sc.InitSurface(ctx.Surface), qt.IsNil)
	c.Assert(sc.Create(800, 600, true), qt.IsNil)

	type shape struct {
		images      int
		format      gfx.Format
		colorSpace  gfx.ColorSpace
		presentMode gfx.PresentMode
		extent      gfx.Extent2D
	}
	current := func() shape {
		return shape{sc.ImageCount(), sc.Format, sc.ColorSpace, sc.PresentMode, sc.Extent}
	}
	original := current()

	instance.SetSurfaceExtent(1920, 1080)
	sc.Invalidate()
	c.Assert(sc.Create(800, 600, true), qt.IsNil)
	resized := current()
	c.Assert(resized.extent, qt.Equals, gfx.Extent2D{Width: 1920, Height: 1080})
	c.Assert(dev.SwapchainViewCount(), qt.Equals, resized.images)

	instance.SetSurfaceExtent(800, 600)
	sc.Invalidate()
	c.Assert(sc.Create(800, 600, true), qt.IsNil)
	c.Assert(current(), qt.Equals, original)

	c.Assert(dev.SwapchainsCreated(), qt.Equals, 3)
	c.Assert(dev.LiveCount(gfxtest.KindSwapchain), qt.Equals, 1)
	c.Assert(dev.SwapchainViewCount(), qt.Equals, original.images)

	c.Assert(sc.Destroy(), qt.IsNil)
	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestSwapchainOutOfDate(t *testing.T) {
	c := qt.New(t)
	ctx, instance, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	sc := renderer.NewSwapchain(ctx)
	c.Assert(sc.InitSurface(ctx.Surface), qt.IsNil)
	c.Assert(sc.Create(800, 600, true), qt.IsNil)

	instance.SetSurfaceExtent(1024, 768)
	_, err := sc.AcquireNextImage(gfx.NullHandle, ctx.FenceTimeout())
	c.Assert(err, qt.ErrorIs, gfx.ErrOutOfDate)
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainInvalidated)

	c.Assert(sc.Create(800, 600, true), qt.IsNil)
	c.Assert(sc.Extent, qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})

	dev.FailNextAcquire(gfx.ErrSuboptimal)
	sem, err := ctx.Device.CreateSemaphore()
	c.Assert(err, qt.IsNil)
	index, err := sc.AcquireNextImage(sem, ctx.FenceTimeout())
	c.Assert(err, qt.ErrorIs, gfx.ErrSuboptimal)
	c.Assert(index, qt.Equals, uint32(0))
	c.Assert(sc.State(), qt.Equals, renderer.SwapchainInvalidated)

	// a suboptimal image is still presentable
	c.Assert(sc.QueuePresent(ctx.GraphicsQueue, index, sem), qt.IsNil)
	c.Assert(dev.Presents(), qt.HasLen, 1)

	instance.SetSurfaceExtent(0, 0)
	_, err = sc.SurfaceExtent(800, 600)
	c.Assert(err, qt.ErrorIs, renderer.ErrSurfaceHidden)
	c.Assert(sc.Create(800, 600, true), qt.ErrorIs, renderer.ErrSurfaceHidden)

	ctx.Device.DestroySemaphore(sem)
	c.Assert(sc.Destroy(), qt.IsNil)
	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestSwapchainRequiresPresentFromGraphicsQueue(t *testing.T) {
	c := qt.New(t)
	ctx, _, _ := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	c.Assert(renderer.NewSwapchain(ctx).InitSurface(gfx.NullHandle), qt.ErrorMatches, "no presentation surface")

	// a context whose graphics family cannot present
	ctx.Families.Graphics = 1
	c.Assert(renderer.NewSwapchain(ctx).InitSurface(ctx.Surface), qt.ErrorIs, renderer.ErrSeparatePresentQueue)
}

func TestChooseSurfaceFormat(t *testing.T) {
	c := qt.New(t)
	srgb := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	unorm := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	rgba := gfx.SurfaceFormat{Format: gfx.FormatR8G8B8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}

	tests := []struct {
		about    string
		formats  []gfx.SurfaceFormat
		expected gfx.SurfaceFormat
	}{
		{"no preference", []gfx.SurfaceFormat{{Format: gfx.FormatUndefined}}, unorm},
		{"unorm preferred", []gfx.SurfaceFormat{srgb, unorm}, unorm},
		{"first otherwise", []gfx.SurfaceFormat{rgba, srgb}, rgba},
	}
	for _, test := range tests {
		f, err := renderer.ChooseSurfaceFormat(test.formats)
		c.Assert(err, qt.IsNil, qt.Commentf(test.about))
		c.Assert(f, qt.Equals, test.expected, qt.Commentf(test.about))
	}

	_, err := renderer.ChooseSurfaceFormat(nil)
	c.Assert(err, qt.IsNotNil)
}

func TestChoosePresentMode(t *testing.T) {
	c := qt.New(t)
	all := []gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeMailbox, gfx.PresentModeImmediate}
	noMailbox := []gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeImmediate}
	fifo := []gfx.PresentMode{gfx.PresentModeFifo}

	tests := []struct {
		modes    []gfx.PresentMode
		vsync    bool
		expected gfx.PresentMode
	}{
		{all, false, gfx.PresentModeMailbox},
		{all, true, gfx.PresentModeFifo},
		{noMailbox, false, gfx.PresentModeImmediate},
		{noMailbox, true, gfx.PresentModeFifo},
		{fifo, false, gfx.PresentModeFifo},
	}
	for _, test := range tests {
		c.Assert(renderer.ChoosePresentMode(test.modes, test.vsync), qt.Equals, test.expected,
			qt.Commentf("%v vsync=%v", test.modes, test.vsync))
	}
}

func TestChooseExtentAndImageCount(t *testing.T) {
	c := qt.New(t)
	caps := gfx.SurfaceCapabilities{
		MinImageCount:  2,
		MaxImageCount:  3,
		CurrentExtent:  gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
		MinImageExtent: gfx.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: gfx.Extent2D{Width: 1920, Height: 1080},
	}

	c.Assert(renderer.ChooseExtent(caps, 4000, 50), qt.Equals, gfx.Extent2D{Width: 1920, Height: 100})
	c.Assert(renderer.ChooseExtent(caps, 640, 480), qt.Equals, gfx.Extent2D{Width: 640, Height: 480})

	caps.CurrentExtent = gfx.Extent2D{Width: 800, Height: 600}
	c.Assert(renderer.ChooseExtent(caps, 640, 480), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})

	c.Assert(renderer.ImageCount(caps), qt.Equals, uint32(3))
	caps.MaxImageCount = 2
	c.Assert(renderer.ImageCount(caps), qt.Equals, uint32(2))
	caps.MaxImageCount = 0
	c.Assert(renderer.ImageCount(caps), qt.Equals, uint32(3))
}
