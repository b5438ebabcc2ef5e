// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"time"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

// CreateSemaphore implements interface
func (d *Device) CreateSemaphore() (gfx.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := resultError("vk.CreateSemaphore()", vk.CreateSemaphore(d.logicalDevice, &sci, nil, &semaphore)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Semaphore(put(d, d.semaphores, semaphore)), nil
}

// DestroySemaphore implements interface
func (d *Device) DestroySemaphore(h gfx.Semaphore) {
	if semaphore, ok := take(d, d.semaphores, uint64(h)); ok {
		vk.DestroySemaphore(d.logicalDevice, semaphore, nil)
	}
}

// CreateFence implements interface
func (d *Device) CreateFence(signaled bool) (gfx.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := resultError("vk.CreateFence()", vk.CreateFence(d.logicalDevice, &fci, nil, &fence)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Fence(put(d, d.fences, fence)), nil
}

// DestroyFence implements interface
func (d *Device) DestroyFence(h gfx.Fence) {
	if fence, ok := take(d, d.fences, uint64(h)); ok {
		vk.DestroyFence(d.logicalDevice, fence, nil)
	}
}

func (d *Device) vkFences(fences []gfx.Fence) ([]vk.Fence, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	vkFences := make([]vk.Fence, len(fences))
	for idx, h := range fences {
		f, ok := d.fences[uint64(h)]
		if !ok {
			return nil, gfx.ErrUnknownHandle
		}
		vkFences[idx] = f
	}
	return vkFences, nil
}

// WaitForFences implements interface
func (d *Device) WaitForFences(fences []gfx.Fence, timeout time.Duration) error {
	vkFences, err := d.vkFences(fences)
	if err != nil {
		return err
	}
	result := vk.WaitForFences(d.logicalDevice, uint32(len(vkFences)), vkFences, vk.True, uint64(timeout.Nanoseconds()))
	return resultError("vk.WaitForFences()", result)
}

// ResetFences implements interface
func (d *Device) ResetFences(fences []gfx.Fence) error {
	vkFences, err := d.vkFences(fences)
	if err != nil {
		return err
	}
	return resultError("vk.ResetFences()", vk.ResetFences(d.logicalDevice, uint32(len(vkFences)), vkFences))
}

// QueueSubmit implements interface
func (d *Device) QueueSubmit(queue gfx.Queue, submits []gfx.SubmitInfo, fence gfx.Fence) error {
	d.mutex.Lock()
	deviceQueue := d.deviceQueues[uint64(queue)]
	vkFence := vk.NullFence
	if fence != gfx.NullHandle {
		vkFence = d.fences[uint64(fence)]
	}

	submit := make([]vk.SubmitInfo, len(submits))
	for idx, s := range submits {
		waits := make([]vk.Semaphore, len(s.WaitSemaphores))
		for i, h := range s.WaitSemaphores {
			waits[i] = d.semaphores[uint64(h)]
		}
		stages := make([]vk.PipelineStageFlags, len(s.WaitStages))
		for i, st := range s.WaitStages {
			stages[i] = vk.PipelineStageFlags(st)
		}
		signals := make([]vk.Semaphore, len(s.SignalSemaphores))
		for i, h := range s.SignalSemaphores {
			signals[i] = d.semaphores[uint64(h)]
		}
		commandBuffers := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for i, h := range s.CommandBuffers {
			commandBuffers[i] = d.cmdBuffers[uint64(h)]
		}
		submit[idx] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(waits)),
			PWaitSemaphores:      waits,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(commandBuffers)),
			PCommandBuffers:      commandBuffers,
			SignalSemaphoreCount: uint32(len(signals)),
			PSignalSemaphores:    signals,
		}
	}
	d.mutex.Unlock()

	return resultError("vk.QueueSubmit()", vk.QueueSubmit(deviceQueue, uint32(len(submit)), submit, vkFence))
}

func (d *Device) checkSurface(surface gfx.Surface) error {
	if surface != surfaceHandle || d.instance.surface == vk.NullSurface {
		return fmt.Errorf("vkr: unknown surface %d", surface)
	}
	return nil
}

// SurfaceSupport implements interface
func (d *Device) SurfaceSupport(family uint32, surface gfx.Surface) (bool, error) {
	if err := d.checkSurface(surface); err != nil {
		return false, err
	}
	var supported vk.Bool32
	if err := resultError("vk.GetPhysicalDeviceSurfaceSupport()", vk.GetPhysicalDeviceSurfaceSupport(d.physicalDevice, family, d.instance.surface, &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// SurfaceCapabilities implements interface
func (d *Device) SurfaceCapabilities(surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	if err := d.checkSurface(surface); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}

	var surfaceCapabilities vk.SurfaceCapabilities
	if err := resultError("vk.GetPhysicalDeviceSurfaceCapabilities()", vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.instance.surface, &surfaceCapabilities)); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	surfaceCapabilities.Deref()
	surfaceCapabilities.CurrentExtent.Deref()
	surfaceCapabilities.MinImageExtent.Deref()
	surfaceCapabilities.MaxImageExtent.Deref()

	return gfx.SurfaceCapabilities{
		MinImageCount: surfaceCapabilities.MinImageCount,
		MaxImageCount: surfaceCapabilities.MaxImageCount,
		CurrentExtent: gfx.Extent2D{
			Width:  surfaceCapabilities.CurrentExtent.Width,
			Height: surfaceCapabilities.CurrentExtent.Height,
		},
		MinImageExtent: gfx.Extent2D{
			Width:  surfaceCapabilities.MinImageExtent.Width,
			Height: surfaceCapabilities.MinImageExtent.Height,
		},
		MaxImageExtent: gfx.Extent2D{
			Width:  surfaceCapabilities.MaxImageExtent.Width,
			Height: surfaceCapabilities.MaxImageExtent.Height,
		},
		SupportedTransforms:     gfx.SurfaceTransform(surfaceCapabilities.SupportedTransforms),
		CurrentTransform:        gfx.SurfaceTransform(surfaceCapabilities.CurrentTransform),
		SupportedCompositeAlpha: gfx.CompositeAlpha(surfaceCapabilities.SupportedCompositeAlpha),
		SupportedUsage:          gfx.ImageUsage(surfaceCapabilities.SupportedUsageFlags),
	}, nil
}

// SurfaceFormats implements interface
func (d *Device) SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	if err := d.checkSurface(surface); err != nil {
		return nil, err
	}

	var surfaceFormatCount uint32
	if err := resultError("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.instance.surface, &surfaceFormatCount, nil)); err != nil {
		return nil, err
	}
	surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := resultError("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.instance.surface, &surfaceFormatCount, surfaceFormats)); err != nil {
		return nil, err
	}

	formats := make([]gfx.SurfaceFormat, len(surfaceFormats))
	for idx := range surfaceFormats {
		surfaceFormats[idx].Deref()
		formats[idx] = gfx.SurfaceFormat{
			Format:     gfx.Format(surfaceFormats[idx].Format),
			ColorSpace: gfx.ColorSpace(surfaceFormats[idx].ColorSpace),
		}
	}
	return formats, nil
}

// SurfacePresentModes implements interface
func (d *Device) SurfacePresentModes(surface gfx.Surface) ([]gfx.PresentMode, error) {
	if err := d.checkSurface(surface); err != nil {
		return nil, err
	}

	var presentModeCount uint32
	if err := resultError("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.instance.surface, &presentModeCount, nil)); err != nil {
		return nil, err
	}
	presentModes := make([]vk.PresentMode, presentModeCount)
	if err := resultError("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.instance.surface, &presentModeCount, presentModes)); err != nil {
		return nil, err
	}

	modes := make([]gfx.PresentMode, len(presentModes))
	for idx, m := range presentModes {
		modes[idx] = gfx.PresentMode(m)
	}
	return modes, nil
}

// CreateSwapchain implements interface
func (d *Device) CreateSwapchain(info gfx.SwapchainCreateInfo) (gfx.Swapchain, error) {
	if err := d.checkSurface(info.Surface); err != nil {
		return gfx.NullHandle, err
	}

	oldSwapchain := vk.NullSwapchain
	if info.OldSwapchain != gfx.NullHandle {
		old := get(d, d.swapchains, uint64(info.OldSwapchain))
		if old == nil {
			return gfx.NullHandle, gfx.ErrUnknownHandle
		}
		oldSwapchain = old.swapchain
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.instance.surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format),
		ImageColorSpace:  vk.ColorSpace(info.ColorSpace),
		ImageExtent:      extent(info.Extent),
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	var vkSwapchain vk.Swapchain
	if err := resultError("vk.CreateSwapchain()", vk.CreateSwapchain(d.logicalDevice, &scci, nil, &vkSwapchain)); err != nil {
		return gfx.NullHandle, err
	}

	var numImages uint32
	if err := resultError("vk.GetSwapchainImages(num)", vk.GetSwapchainImages(d.logicalDevice, vkSwapchain, &numImages, nil)); err != nil {
		vk.DestroySwapchain(d.logicalDevice, vkSwapchain, nil)
		return gfx.NullHandle, err
	}
	swapchainImages := make([]vk.Image, numImages)
	if err := resultError("vk.GetSwapchainImages(images)", vk.GetSwapchainImages(d.logicalDevice, vkSwapchain, &numImages, swapchainImages)); err != nil {
		vk.DestroySwapchain(d.logicalDevice, vkSwapchain, nil)
		return gfx.NullHandle, err
	}

	sc := &swapchain{swapchain: vkSwapchain}
	for _, img := range swapchainImages {
		h := put(d, d.images, img)
		d.mutex.Lock()
		d.swapchainOwned[h] = true
		d.mutex.Unlock()
		sc.images = append(sc.images, gfx.Image(h))
	}
	return gfx.Swapchain(put(d, d.swapchains, sc)), nil
}

// DestroySwapchain implements interface
func (d *Device) DestroySwapchain(h gfx.Swapchain) {
	sc, ok := take(d, d.swapchains, uint64(h))
	if !ok {
		return
	}
	d.mutex.Lock()
	for _, img := range sc.images {
		delete(d.images, uint64(img))
		delete(d.swapchainOwned, uint64(img))
	}
	d.mutex.Unlock()
	vk.DestroySwapchain(d.logicalDevice, sc.swapchain, nil)
}

// SwapchainImages implements interface
func (d *Device) SwapchainImages(h gfx.Swapchain) ([]gfx.Image, error) {
	sc := get(d, d.swapchains, uint64(h))
	if sc == nil {
		return nil, gfx.ErrUnknownHandle
	}
	return append([]gfx.Image(nil), sc.images...), nil
}

// AcquireNextImage implements interface
func (d *Device) AcquireNextImage(h gfx.Swapchain, timeout time.Duration, semaphore gfx.Semaphore) (uint32, error) {
	d.mutex.Lock()
	sc := d.swapchains[uint64(h)]
	vkSemaphore := d.semaphores[uint64(semaphore)]
	d.mutex.Unlock()
	if sc == nil {
		return 0, gfx.ErrUnknownHandle
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(d.logicalDevice, sc.swapchain, uint64(timeout.Nanoseconds()), vkSemaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, nil
	case vk.Suboptimal:
		return imageIndex, gfx.ErrSuboptimal
	}
	return 0, resultError("vk.AcquireNextImage()", result)
}

// QueuePresent implements interface
func (d *Device) QueuePresent(queue gfx.Queue, info gfx.PresentInfo) error {
	d.mutex.Lock()
	deviceQueue := d.deviceQueues[uint64(queue)]
	sc := d.swapchains[uint64(info.Swapchain)]
	waits := make([]vk.Semaphore, len(info.WaitSemaphores))
	for idx, s := range info.WaitSemaphores {
		waits[idx] = d.semaphores[uint64(s)]
	}
	d.mutex.Unlock()
	if sc == nil {
		return gfx.ErrUnknownHandle
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.swapchain},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	return resultError("vk.QueuePresent()", vk.QueuePresent(deviceQueue, &presentInfo))
}
