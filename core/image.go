// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
)

// AccessMaskForLayout returns the accesses that must be made available
// before leaving, or visible after entering, an image layout.
func AccessMaskForLayout(layout gfx.ImageLayout) gfx.Access {
	switch layout {
	case gfx.ImageLayoutGeneral:
		return gfx.AccessShaderRead | gfx.AccessShaderWrite
	case gfx.ImageLayoutColorAttachmentOptimal:
		return gfx.AccessColorAttachmentRead | gfx.AccessColorAttachmentWrite
	case gfx.ImageLayoutDepthStencilAttachmentOptimal:
		return gfx.AccessDepthStencilAttachmentRead | gfx.AccessDepthStencilAttachmentWrite
	case gfx.ImageLayoutDepthStencilReadOnlyOptimal:
		return gfx.AccessDepthStencilAttachmentRead | gfx.AccessShaderRead
	case gfx.ImageLayoutShaderReadOnlyOptimal:
		return gfx.AccessShaderRead
	case gfx.ImageLayoutTransferSrcOptimal:
		return gfx.AccessTransferRead
	case gfx.ImageLayoutTransferDstOptimal:
		return gfx.AccessTransferWrite
	case gfx.ImageLayoutPreinitialized:
		return gfx.AccessHostWrite
	case gfx.ImageLayoutPresentSrc:
		return gfx.AccessMemoryRead
	}
	return 0
}

// ImageCreateInfo configures an image together with its view
type ImageCreateInfo struct {
	Width, Height uint32
	MipLevels     uint32
	Layers        uint32
	Format        gfx.Format
	Usage         gfx.ImageUsage
	Aspect        gfx.ImageAspect
	Memory        gfx.MemoryProperty
}

// NewImage creates an image in its own memory, device local unless
// info says otherwise, and a view covering all of it.
func NewImage(ctx *Context, info ImageCreateInfo) (*Image, error) {
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	if info.Layers == 0 {
		info.Layers = 1
	}
	if info.Aspect == 0 {
		info.Aspect = gfx.ImageAspectColor
	}
	if info.Memory == 0 {
		info.Memory = gfx.MemoryPropertyDeviceLocal
	}

	image, req, err := ctx.Device.CreateImage(gfx.ImageCreateInfo{
		Width:     info.Width,
		Height:    info.Height,
		MipLevels: info.MipLevels,
		Layers:    info.Layers,
		Format:    info.Format,
		Usage:     info.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("vk.CreateImage(): %w", err)
	}

	memory, err := ctx.Allocator.Malloc(req, info.Memory)
	if err != nil {
		ctx.Device.DestroyImage(image)
		return nil, err
	}

	if err := ctx.Device.BindImageMemory(image, memory.Get(), 0); err != nil {
		ctx.Device.DestroyImage(image)
		memory.Release()
		return nil, fmt.Errorf("vk.BindImageMemory(): %w", err)
	}

	subresource := gfx.ImageSubresourceRange{
		Aspect:     info.Aspect,
		LevelCount: info.MipLevels,
		LayerCount: info.Layers,
	}
	view, err := ctx.Device.CreateImageView(gfx.ImageViewCreateInfo{
		Image:  image,
		Format: info.Format,
		Range:  subresource,
	})
	if err != nil {
		ctx.Device.DestroyImage(image)
		memory.Release()
		return nil, fmt.Errorf("vk.CreateImageView(): %w", err)
	}

	return &Image{
		Handle:    image,
		View:      view,
		Memory:    memory,
		Format:    info.Format,
		Width:     info.Width,
		Height:    info.Height,
		MipLevels: info.MipLevels,
		Layers:    info.Layers,
		Range:     subresource,
		layout:    gfx.ImageLayoutUndefined,
		ctx:       ctx,
		id:        ctx.track("image"),
	}, nil
}

// NewTexture uploads tightly packed RGBA8 pixels into a sampled image.
// The image ends up in the shader read only layout with a linear sampler.
func NewTexture(ctx *Context, pixels []byte, width, height uint32) (*Image, error) {
	size := uint64(width) * uint64(height) * 4
	if size == 0 || uint64(len(pixels)) != size {
		return nil, fmt.Errorf("texture of %dx%d needs %d bytes of pixels, got %d", width, height, size, len(pixels))
	}

	staging, err := NewBuffer(ctx, gfx.BufferUsageTransferSrc,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, size, pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := NewImage(ctx, ImageCreateInfo{
		Width:  width,
		Height: height,
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageTransferDst | gfx.ImageUsageSampled,
	})
	if err != nil {
		return nil, err
	}

	cmd, err := ctx.BeginSingleTimeCommands()
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.TransitionLayout(cmd, gfx.ImageLayoutTransferDstOptimal,
		gfx.PipelineStageTopOfPipe, gfx.PipelineStageTransfer)
	ctx.Device.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, gfx.ImageLayoutTransferDstOptimal, []gfx.BufferImageCopy{{
		Aspect:     gfx.ImageAspectColor,
		LayerCount: 1,
		Width:      width,
		Height:     height,
	}})
	img.TransitionLayout(cmd, gfx.ImageLayoutShaderReadOnlyOptimal,
		gfx.PipelineStageTransfer, gfx.PipelineStageFragmentShader)
	if err := ctx.EndSingleTimeCommands(cmd); err != nil {
		img.Destroy()
		return nil, err
	}

	sampler, err := ctx.Device.CreateSampler(gfx.SamplerCreateInfo{
		MagFilter:     gfx.FilterLinear,
		MinFilter:     gfx.FilterLinear,
		AddressMode:   gfx.SamplerAddressModeRepeat,
		MaxAnisotropy: 16,
	})
	if err != nil {
		img.Destroy()
		return nil, fmt.Errorf("vk.CreateSampler(): %w", err)
	}
	img.Sampler = sampler
	return img, nil
}

// Image is an image with its memory, a view and an optional sampler.
// It remembers the layout it was last transitioned to.
type Image struct {
	Handle    gfx.Image
	View      gfx.ImageView
	Sampler   gfx.Sampler
	Memory    Memory
	Format    gfx.Format
	Width     uint32
	Height    uint32
	MipLevels uint32
	Layers    uint32
	Range     gfx.ImageSubresourceRange

	ctx       *Context
	id        uint64
	layout    gfx.ImageLayout
	destroyed bool
}

// Layout returns the layout declared by the last transition
func (i *Image) Layout() gfx.ImageLayout {
	return i.layout
}

// SetLayout records a layout change made without TransitionLayout,
// by the final layout of a render pass for example.
func (i *Image) SetLayout(layout gfx.ImageLayout) {
	i.layout = layout
}

// TransitionLayout records a barrier moving the whole image from its
// current layout to newLayout. Access masks follow AccessMaskForLayout.
func (i *Image) TransitionLayout(cb gfx.CommandBuffer, newLayout gfx.ImageLayout, srcStage, dstStage gfx.PipelineStage) {
	barrier := gfx.ImageBarrier{
		Image:     i.Handle,
		OldLayout: i.layout,
		NewLayout: newLayout,
		SrcAccess: AccessMaskForLayout(i.layout),
		DstAccess: AccessMaskForLayout(newLayout),
		Range:     i.Range,
	}
	i.ctx.Device.CmdPipelineBarrier(cb, srcStage, dstStage, []gfx.ImageBarrier{barrier})
	i.layout = newLayout
}

// Destroy destroys the sampler, view and image, then frees the memory.
func (i *Image) Destroy() error {
	if i.destroyed {
		return ErrAlreadyDestroyed
	}
	i.destroyed = true
	if i.Sampler != gfx.NullHandle {
		i.ctx.Device.DestroySampler(i.Sampler)
	}
	i.ctx.Device.DestroyImageView(i.View)
	i.ctx.Device.DestroyImage(i.Handle)
	i.Memory.Release()
	i.ctx.untrack(i.id)
	return nil
}

// Release implements gfx.Releasable
func (i *Image) Release() {
	i.Destroy()
}
