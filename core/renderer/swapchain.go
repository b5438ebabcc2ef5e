// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
)

// SwapchainState of the swapchain life cycle
type SwapchainState int

// Swapchain states. A chain is created in Configured, used in Presenting,
// moved to Invalidated by out of date or suboptimal results and created again.
const (
	SwapchainUninitialized SwapchainState = iota
	SwapchainConfigured
	SwapchainPresenting
	SwapchainInvalidated
	SwapchainDestroyed
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainUninitialized:
		return "uninitialized"
	case SwapchainConfigured:
		return "configured"
	case SwapchainPresenting:
		return "presenting"
	case SwapchainInvalidated:
		return "invalidated"
	case SwapchainDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Swapchain owns the presentable images of a surface and a view of each
type Swapchain struct {
	Surface     gfx.Surface
	Format      gfx.Format
	ColorSpace  gfx.ColorSpace
	PresentMode gfx.PresentMode
	Extent      gfx.Extent2D

	Handle gfx.Swapchain
	Images []gfx.Image
	Views  []gfx.ImageView

	ctx   *core.Context
	state SwapchainState
}

// NewSwapchain creates an uninitialized swapchain
func NewSwapchain(ctx *core.Context) *Swapchain {
	return &Swapchain{ctx: ctx}
}

// State returns the life cycle state
func (s *Swapchain) State() SwapchainState {
	return s.state
}

// ImageCount is the number of presentable images
func (s *Swapchain) ImageCount() int {
	return len(s.Images)
}

// InitSurface binds the swapchain to a surface. Presentation must be possible
// from the graphics queue family of the context, separate present queues are not supported.
func (s *Swapchain) InitSurface(surface gfx.Surface) error {
	if s.state != SwapchainUninitialized {
		return fmt.Errorf("init surface when %s: %w", s.state, ErrSwapchainState)
	}
	if surface == gfx.NullHandle {
		return errors.New("no presentation surface")
	}
	device := s.ctx.Device

	family := -1
	for idx, qf := range s.ctx.Physical.QueueFamilies {
		supported, err := device.SurfaceSupport(uint32(idx), surface)
		if err != nil {
			return fmt.Errorf("vk.GetPhysicalDeviceSurfaceSupport(): %w", err)
		}
		if supported && qf.Supports(gfx.QueueGraphics) {
			family = idx
			break
		}
	}
	if family < 0 || uint32(family) != s.ctx.Families.Graphics {
		return ErrSeparatePresentQueue
	}

	formats, err := device.SurfaceFormats(surface)
	if err != nil {
		return fmt.Errorf("vk.GetPhysicalDeviceSurfaceFormats(): %w", err)
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return err
	}

	s.Surface = surface
	s.Format = format.Format
	s.ColorSpace = format.ColorSpace
	s.state = SwapchainConfigured
	return nil
}

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM, a surface without preference gets it too.
func ChooseSurfaceFormat(formats []gfx.SurfaceFormat) (gfx.SurfaceFormat, error) {
	preferred := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	switch {
	case len(formats) == 0:
		return gfx.SurfaceFormat{}, errors.New("surface reports no formats")
	case len(formats) == 1 && formats[0].Format == gfx.FormatUndefined:
		return preferred, nil
	}
	if idx := slices.IndexFunc(formats, func(f gfx.SurfaceFormat) bool {
		return f.Format == gfx.FormatB8G8R8A8Unorm
	}); idx >= 0 {
		return formats[idx], nil
	}
	return formats[0], nil
}

// ChoosePresentMode picks mailbox, then immediate when vsync is off, FIFO otherwise.
func ChoosePresentMode(modes []gfx.PresentMode, vsync bool) gfx.PresentMode {
	if !vsync {
		for _, want := range []gfx.PresentMode{gfx.PresentModeMailbox, gfx.PresentModeImmediate} {
			if slices.Contains(modes, want) {
				return want
			}
		}
	}
	return gfx.PresentModeFifo
}

// ChooseExtent uses the surface extent when it is defined, else the requested one within limits.
func ChooseExtent(caps gfx.SurfaceCapabilities, width, height uint32) gfx.Extent2D {
	if caps.CurrentExtent.Width != gfx.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gfx.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ImageCount is one more than the minimum, as long as the surface allows it
func ImageCount(caps gfx.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// SurfaceExtent returns the extent Create would use, without creating anything
func (s *Swapchain) SurfaceExtent(width, height uint32) (gfx.Extent2D, error) {
	caps, err := s.ctx.Device.SurfaceCapabilities(s.Surface)
	if err != nil {
		return gfx.Extent2D{}, fmt.Errorf("vk.GetPhysicalDeviceSurfaceCapabilities(): %w", err)
	}
	extent := ChooseExtent(caps, width, height)
	if extent.Width == 0 || extent.Height == 0 {
		return extent, ErrSurfaceHidden
	}
	return extent, nil
}

// Create creates the chain and a view per image. An existing chain is handed
// over to the new one and destroyed with its views once the new chain exists.
func (s *Swapchain) Create(width, height uint32, vsync bool) error {
	switch s.state {
	case SwapchainConfigured, SwapchainPresenting, SwapchainInvalidated:
	default:
		return fmt.Errorf("create when %s: %w", s.state, ErrSwapchainState)
	}
	device := s.ctx.Device

	caps, err := device.SurfaceCapabilities(s.Surface)
	if err != nil {
		return fmt.Errorf("vk.GetPhysicalDeviceSurfaceCapabilities(): %w", err)
	}
	modes, err := device.SurfacePresentModes(s.Surface)
	if err != nil {
		return fmt.Errorf("vk.GetPhysicalDeviceSurfacePresentModes(): %w", err)
	}

	extent := ChooseExtent(caps, width, height)
	if extent.Width == 0 || extent.Height == 0 {
		return ErrSurfaceHidden
	}
	presentMode := ChoosePresentMode(modes, vsync)

	// PreTransform
	preTransform := caps.CurrentTransform
	if caps.SupportedTransforms&gfx.SurfaceTransformIdentity != 0 {
		preTransform = gfx.SurfaceTransformIdentity
	}

	// CompositeAlpha
	compositeAlpha := gfx.CompositeAlphaOpaque
	for _, flag := range []gfx.CompositeAlpha{
		gfx.CompositeAlphaOpaque,
		gfx.CompositeAlphaPreMultiplied,
		gfx.CompositeAlphaPostMultiplied,
		gfx.CompositeAlphaInherit,
	} {
		if caps.SupportedCompositeAlpha&flag != 0 {
			compositeAlpha = flag
			break
		}
	}

	old, oldViews := s.Handle, s.Views
	handle, err := device.CreateSwapchain(gfx.SwapchainCreateInfo{
		Surface:        s.Surface,
		MinImageCount:  ImageCount(caps),
		Format:         s.Format,
		ColorSpace:     s.ColorSpace,
		Extent:         extent,
		Usage:          gfx.ImageUsageColorAttachment,
		PreTransform:   preTransform,
		CompositeAlpha: compositeAlpha,
		PresentMode:    presentMode,
		OldSwapchain:   old,
	})
	if err != nil {
		s.state = SwapchainInvalidated
		return fmt.Errorf("vk.CreateSwapchain(): %w", err)
	}

	images, err := device.SwapchainImages(handle)
	if err != nil {
		device.DestroySwapchain(handle)
		s.state = SwapchainInvalidated
		return fmt.Errorf("vk.GetSwapchainImages(): %w", err)
	}

	views := make([]gfx.ImageView, 0, len(images))
	for _, img := range images {
		view, err := device.CreateImageView(gfx.ImageViewCreateInfo{
			Image:  img,
			Format: s.Format,
			Range: gfx.ImageSubresourceRange{
				Aspect:     gfx.ImageAspectColor,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			for _, v := range views {
				device.DestroyImageView(v)
			}
			device.DestroySwapchain(handle)
			s.state = SwapchainInvalidated
			return fmt.Errorf("vk.CreateImageView(): %w", err)
		}
		views = append(views, view)
	}

	if old != gfx.NullHandle {
		if err := device.WaitIdle(); err != nil {
			log.WithError(err).Warn("vk.DeviceWaitIdle() failed before swapchain teardown")
		}
		for _, v := range oldViews {
			device.DestroyImageView(v)
		}
		device.DestroySwapchain(old)
	}

	s.Handle = handle
	s.Images = images
	s.Views = views
	s.Extent = extent
	s.PresentMode = presentMode
	s.state = SwapchainPresenting

	log.WithFields(log.Fields{
		"width":   extent.Width,
		"height":  extent.Height,
		"images":  len(images),
		"mode":    presentMode,
		"format":  s.Format,
		"recycle": old != gfx.NullHandle,
	}).Info("swapchain created")
	return nil
}

// Invalidate marks the chain for recreation
func (s *Swapchain) Invalidate() {
	if s.state == SwapchainPresenting {
		s.state = SwapchainInvalidated
	}
}

// AcquireNextImage gets the index of the next image, which becomes usable
// once semaphore signals. Out of date and suboptimal chains are invalidated,
// a suboptimal result still returns a usable index. A timeout means the device is lost.
func (s *Swapchain) AcquireNextImage(semaphore gfx.Semaphore, timeout time.Duration) (uint32, error) {
	if s.state != SwapchainPresenting && s.state != SwapchainInvalidated {
		return 0, fmt.Errorf("acquire when %s: %w", s.state, ErrSwapchainState)
	}
	index, err := s.ctx.Device.AcquireNextImage(s.Handle, timeout, semaphore)
	switch {
	case err == nil:
		return index, nil
	case errors.Is(err, gfx.ErrOutOfDate), errors.Is(err, gfx.ErrSuboptimal):
		s.state = SwapchainInvalidated
		return index, err
	case errors.Is(err, gfx.ErrTimeout):
		return 0, fmt.Errorf("vk.AcquireNextImage(): no image within %s: %w", timeout, core.ErrDeviceLost)
	}
	return 0, fmt.Errorf("vk.AcquireNextImage(): %w", err)
}

// QueuePresent presents an image once waitSemaphore signals.
// Out of date and suboptimal results invalidate the chain and are returned as is.
func (s *Swapchain) QueuePresent(queue gfx.Queue, index uint32, waitSemaphore gfx.Semaphore) error {
	err := s.ctx.Device.QueuePresent(queue, gfx.PresentInfo{
		WaitSemaphores: []gfx.Semaphore{waitSemaphore},
		Swapchain:      s.Handle,
		ImageIndex:     index,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gfx.ErrOutOfDate), errors.Is(err, gfx.ErrSuboptimal):
		s.state = SwapchainInvalidated
		return err
	}
	return fmt.Errorf("vk.QueuePresent(): %w", err)
}

// Destroy destroys the views and the chain
func (s *Swapchain) Destroy() error {
	if s.state == SwapchainDestroyed {
		return core.ErrAlreadyDestroyed
	}
	for _, v := range s.Views {
		s.ctx.Device.DestroyImageView(v)
	}
	if s.Handle != gfx.NullHandle {
		s.ctx.Device.DestroySwapchain(s.Handle)
	}
	s.Handle = gfx.NullHandle
	s.Images = nil
	s.Views = nil
	s.state = SwapchainDestroyed
	return nil
}
