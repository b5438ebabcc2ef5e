// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"fmt"
	"time"

	"github.com/devblok/umbra/gfx"
)

type swapchain struct {
	info    gfx.SwapchainCreateInfo
	images  []gfx.Image
	next    uint32
	retired bool
}

// Present is a record of one present request
type Present struct {
	Swapchain      gfx.Swapchain
	ImageIndex     uint32
	WaitSemaphores []gfx.Semaphore
	Extent         gfx.Extent2D
}

// Presents returns every successful present so far
func (d *Device) Presents() []Present {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]Present(nil), d.presents...)
}

// SwapchainsCreated returns the number of swapchains created
func (d *Device) SwapchainsCreated() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.swapchainsCreated
}

// SwapchainInfo returns the create info of a live swapchain
func (d *Device) SwapchainInfo(sc gfx.Swapchain) (gfx.SwapchainCreateInfo, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return gfx.SwapchainCreateInfo{}, false
	}
	return s.info, true
}

// SwapchainViewCount returns the number of live image views of swapchain images.
func (d *Device) SwapchainViewCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	count := 0
	for _, info := range d.views {
		if img, ok := d.images[info.Image]; ok && img.swapchain != gfx.NullHandle {
			count++
		}
	}
	return count
}

// FailNextAcquire makes the next AcquireNextImage return err
func (d *Device) FailNextAcquire(err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.acquireErr = err
}

// FailNextPresent makes the next QueuePresent return err
func (d *Device) FailNextPresent(err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.presentErr = err
}

func (d *Device) surfaceConfig(surface gfx.Surface) (*SurfaceConfig, error) {
	if surface == gfx.NullHandle || surface != d.instance.Surface() {
		return nil, fmt.Errorf("gfxtest: unknown surface %d", surface)
	}
	return d.instance.surface, nil
}

// SurfaceSupport implements interface
func (d *Device) SurfaceSupport(family uint32, surface gfx.Surface) (bool, error) {
	if _, err := d.surfaceConfig(surface); err != nil {
		return false, err
	}
	if int(family) >= len(d.physical.QueueFamilies) {
		return false, fmt.Errorf("gfxtest: queue family %d does not exist", family)
	}
	return d.physical.QueueFamilies[family].PresentSupport, nil
}

// SurfaceCapabilities implements interface
func (d *Device) SurfaceCapabilities(surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	cfg, err := d.surfaceConfig(surface)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	d.instance.mutex.Lock()
	defer d.instance.mutex.Unlock()
	return cfg.Capabilities, nil
}

// SurfaceFormats implements interface
func (d *Device) SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	cfg, err := d.surfaceConfig(surface)
	if err != nil {
		return nil, err
	}
	return append([]gfx.SurfaceFormat(nil), cfg.Formats...), nil
}

// SurfacePresentModes implements interface
func (d *Device) SurfacePresentModes(surface gfx.Surface) ([]gfx.PresentMode, error) {
	cfg, err := d.surfaceConfig(surface)
	if err != nil {
		return nil, err
	}
	return append([]gfx.PresentMode(nil), cfg.PresentModes...), nil
}

// CreateSwapchain implements interface
func (d *Device) CreateSwapchain(info gfx.SwapchainCreateInfo) (gfx.Swapchain, error) {
	caps, err := d.SurfaceCapabilities(info.Surface)
	if err != nil {
		return gfx.NullHandle, err
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		d.violation("swapchain image count %d outside of [%d, %d]", info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return gfx.NullHandle, fmt.Errorf("gfxtest: swapchain extent must not be zero")
	}
	if info.OldSwapchain != gfx.NullHandle {
		old, ok := d.swapchains[info.OldSwapchain]
		if !ok {
			return gfx.NullHandle, gfx.ErrUnknownHandle
		}
		old.retired = true
	}

	h := gfx.Swapchain(d.newHandle(KindSwapchain))
	sc := &swapchain{info: info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		img := gfx.Image(d.newHandle(KindImage))
		d.images[img] = &image{
			info: gfx.ImageCreateInfo{
				Width:     info.Extent.Width,
				Height:    info.Extent.Height,
				MipLevels: 1,
				Layers:    1,
				Format:    info.Format,
				Usage:     info.Usage,
			},
			swapchain: h,
		}
		sc.images = append(sc.images, img)
	}
	d.swapchains[h] = sc
	d.swapchainsCreated++
	return h, nil
}

// DestroySwapchain implements interface. Its images go with it; views of them must be gone already.
func (d *Device) DestroySwapchain(h gfx.Swapchain) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	sc, ok := d.swapchains[h]
	if !d.release(uint64(h), KindSwapchain) || !ok {
		return
	}
	for _, img := range sc.images {
		for v, info := range d.views {
			if info.Image == img {
				d.violation("swapchain %d destroyed while view %d of its image %d is alive", h, v, img)
			}
		}
		delete(d.objects, uint64(img))
		delete(d.images, img)
	}
	delete(d.swapchains, h)
}

// SwapchainImages implements interface
func (d *Device) SwapchainImages(h gfx.Swapchain) ([]gfx.Image, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	sc, ok := d.swapchains[h]
	if !ok {
		return nil, gfx.ErrUnknownHandle
	}
	return append([]gfx.Image(nil), sc.images...), nil
}

func (d *Device) outOfDateLocked(sc *swapchain) bool {
	if sc.retired {
		return true
	}
	d.instance.mutex.Lock()
	current := d.instance.surface.Capabilities.CurrentExtent
	d.instance.mutex.Unlock()
	if current.Width == gfx.UndefinedExtent {
		return false
	}
	return current != sc.info.Extent
}

// AcquireNextImage implements interface. Images are handed out round robin.
func (d *Device) AcquireNextImage(h gfx.Swapchain, timeout time.Duration, semaphore gfx.Semaphore) (uint32, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	sc, ok := d.swapchains[h]
	if !ok {
		return 0, gfx.ErrUnknownHandle
	}
	var suboptimal bool
	if err := d.acquireErr; err != nil {
		d.acquireErr = nil
		if err != gfx.ErrSuboptimal {
			return 0, err
		}
		suboptimal = true
	}
	if d.outOfDateLocked(sc) {
		return 0, gfx.ErrOutOfDate
	}
	if semaphore != gfx.NullHandle {
		if d.semaphores[semaphore] {
			d.violation("acquire signals semaphore %d that is already signaled", semaphore)
		}
		d.semaphores[semaphore] = true
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	if suboptimal {
		return index, gfx.ErrSuboptimal
	}
	return index, nil
}

// QueuePresent implements interface
func (d *Device) QueuePresent(queue gfx.Queue, info gfx.PresentInfo) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	sc, ok := d.swapchains[info.Swapchain]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	for _, w := range info.WaitSemaphores {
		if !d.semaphores[w] {
			d.violation("present waits on semaphore %d that will never be signaled", w)
		}
		d.semaphores[w] = false
	}
	if int(info.ImageIndex) >= len(sc.images) {
		return fmt.Errorf("gfxtest: image index %d out of range", info.ImageIndex)
	}
	if err := d.presentErr; err != nil {
		d.presentErr = nil
		return err
	}
	if d.outOfDateLocked(sc) {
		return gfx.ErrOutOfDate
	}
	d.presents = append(d.presents, Present{
		Swapchain:      info.Swapchain,
		ImageIndex:     info.ImageIndex,
		WaitSemaphores: append([]gfx.Semaphore(nil), info.WaitSemaphores...),
		Extent:         sc.info.Extent,
	})
	return nil
}
