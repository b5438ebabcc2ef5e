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

type depthStencil struct {
	depth, stencil bool
}

var depthStencilFormats = map[gfx.Format]depthStencil{
	gfx.FormatD16Unorm:         {depth: true},
	gfx.FormatX8D24UnormPack32: {depth: true},
	gfx.FormatD32Sfloat:        {depth: true},
	gfx.FormatS8Uint:           {stencil: true},
	gfx.FormatD16UnormS8Uint:   {depth: true, stencil: true},
	gfx.FormatD24UnormS8Uint:   {depth: true, stencil: true},
	gfx.FormatD32SfloatS8Uint:  {depth: true, stencil: true},
}

// DepthFormats are tried in order when choosing a G-buffer depth format
var DepthFormats = []gfx.Format{
	gfx.FormatD32SfloatS8Uint,
	gfx.FormatD32Sfloat,
	gfx.FormatD24UnormS8Uint,
	gfx.FormatD16UnormS8Uint,
	gfx.FormatD16Unorm,
}

// FormatHasDepth tells if a format has a depth component
func FormatHasDepth(f gfx.Format) bool {
	return depthStencilFormats[f].depth
}

// FormatHasStencil tells if a format has a stencil component
func FormatHasStencil(f gfx.Format) bool {
	return depthStencilFormats[f].stencil
}

// FormatIsDepthStencil tells if a format belongs to the depth/stencil set
func FormatIsDepthStencil(f gfx.Format) bool {
	_, ok := depthStencilFormats[f]
	return ok
}

// DepthFormat returns the first of DepthFormats the device can use as a depth attachment
func DepthFormat(device gfx.Device) (gfx.Format, error) {
	for _, f := range DepthFormats {
		if device.FormatSupported(f, gfx.ImageUsageDepthStencilAttachment|gfx.ImageUsageSampled) {
			return f, nil
		}
	}
	return gfx.FormatUndefined, fmt.Errorf("no supported depth format: %w", ErrMissingDepthAttachment)
}

// AttachmentCreateInfo configures a framebuffer attachment
type AttachmentCreateInfo struct {
	Width, Height uint32
	Layers        uint32
	Format        gfx.Format
	Usage         gfx.ImageUsage
}

// Attachment is an image rendered to by a render pass
type Attachment struct {
	Image       *core.Image
	Format      gfx.Format
	Aspect      gfx.ImageAspect
	Description gfx.AttachmentDescription
}

// HasDepth tells if the attachment has a depth component
func (a *Attachment) HasDepth() bool {
	return FormatHasDepth(a.Format)
}

// HasStencil tells if the attachment has a stencil component
func (a *Attachment) HasStencil() bool {
	return FormatHasStencil(a.Format)
}

// IsDepthStencil tells if the attachment is a depth and/or stencil attachment
func (a *Attachment) IsDepthStencil() bool {
	return FormatIsDepthStencil(a.Format)
}

// Framebuffer bundles attachments with the render pass and framebuffer rendering to them
type Framebuffer struct {
	Width, Height uint32
	Attachments   []*Attachment
	RenderPass    gfx.RenderPass
	Framebuffer   gfx.Framebuffer
	Sampler       gfx.Sampler

	// RequireDepth makes CreateRenderPass fail without a depth/stencil attachment.
	RequireDepth bool

	ctx *core.Context
}

// NewFramebuffer starts an empty framebuffer of the given size
func NewFramebuffer(ctx *core.Context, width, height uint32) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		ctx:    ctx,
	}
}

// AddAttachment creates a device local image with a view for a new attachment
// and returns the attachment index. Sampled attachments are stored at the end
// of the pass and left in a read only layout for sampling.
func (f *Framebuffer) AddAttachment(info AttachmentCreateInfo) (int, error) {
	var aspect gfx.ImageAspect
	if info.Usage&gfx.ImageUsageColorAttachment != 0 {
		aspect = gfx.ImageAspectColor
	}
	if info.Usage&gfx.ImageUsageDepthStencilAttachment != 0 {
		if !FormatIsDepthStencil(info.Format) {
			return -1, fmt.Errorf("format %d is not a depth/stencil format", info.Format)
		}
		if FormatHasDepth(info.Format) {
			aspect |= gfx.ImageAspectDepth
		}
		if FormatHasStencil(info.Format) {
			aspect |= gfx.ImageAspectStencil
		}
	}
	if aspect == 0 {
		return -1, fmt.Errorf("attachment usage %#x is neither color nor depth/stencil", info.Usage)
	}

	img, err := core.NewImage(f.ctx, core.ImageCreateInfo{
		Width:  info.Width,
		Height: info.Height,
		Layers: info.Layers,
		Format: info.Format,
		Usage:  info.Usage,
		Aspect: aspect,
	})
	if err != nil {
		return -1, err
	}

	desc := gfx.AttachmentDescription{
		Format:         info.Format,
		LoadOp:         gfx.AttachmentLoadOpClear,
		StoreOp:        gfx.AttachmentStoreOpDontCare,
		StencilLoadOp:  gfx.AttachmentLoadOpDontCare,
		StencilStoreOp: gfx.AttachmentStoreOpDontCare,
		InitialLayout:  gfx.ImageLayoutUndefined,
		FinalLayout:    gfx.ImageLayoutShaderReadOnlyOptimal,
	}
	if info.Usage&gfx.ImageUsageSampled != 0 {
		desc.StoreOp = gfx.AttachmentStoreOpStore
	}
	if FormatIsDepthStencil(info.Format) {
		desc.FinalLayout = gfx.ImageLayoutDepthStencilReadOnlyOptimal
	}

	f.Attachments = append(f.Attachments, &Attachment{
		Image:       img,
		Format:      info.Format,
		Aspect:      aspect,
		Description: desc,
	})
	return len(f.Attachments) - 1, nil
}

// CreateSampler creates the sampler used to read the attachments
func (f *Framebuffer) CreateSampler(magFilter, minFilter gfx.Filter, addressMode gfx.SamplerAddressMode) error {
	sampler, err := f.ctx.Device.CreateSampler(gfx.SamplerCreateInfo{
		MagFilter:     magFilter,
		MinFilter:     minFilter,
		AddressMode:   addressMode,
		MaxAnisotropy: 1,
		MaxLod:        1,
	})
	if err != nil {
		return fmt.Errorf("vk.CreateSampler(): %w", err)
	}
	if f.Sampler != gfx.NullHandle {
		f.ctx.Device.DestroySampler(f.Sampler)
	}
	f.Sampler = sampler
	return nil
}

// RenderPassInfo describes a single subpass writing every color attachment,
// in the order they were added, and the depth/stencil attachment if any.
// Dependencies order the pass against reads before and after it.
func (f *Framebuffer) RenderPassInfo() (gfx.RenderPassCreateInfo, error) {
	var (
		descriptions []gfx.AttachmentDescription
		colors       []gfx.AttachmentReference
		depth        *gfx.AttachmentReference
	)
	for idx, a := range f.Attachments {
		descriptions = append(descriptions, a.Description)
		if a.IsDepthStencil() {
			if depth != nil {
				return gfx.RenderPassCreateInfo{}, ErrMultipleDepthAttachments
			}
			depth = &gfx.AttachmentReference{
				Attachment: uint32(idx),
				Layout:     gfx.ImageLayoutDepthStencilAttachmentOptimal,
			}
			continue
		}
		colors = append(colors, gfx.AttachmentReference{
			Attachment: uint32(idx),
			Layout:     gfx.ImageLayoutColorAttachmentOptimal,
		})
	}
	if depth == nil && f.RequireDepth {
		return gfx.RenderPassCreateInfo{}, ErrMissingDepthAttachment
	}

	return gfx.RenderPassCreateInfo{
		Attachments: descriptions,
		Subpasses: []gfx.SubpassDescription{{
			ColorAttachments:       colors,
			DepthStencilAttachment: depth,
		}},
		Dependencies: []gfx.SubpassDependency{
			// the previous frame's lighting reads and depth writes
			// finish before this pass clears and writes again
			{
				SrcSubpass:    gfx.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  gfx.PipelineStageFragmentShader | gfx.PipelineStageLateFragmentTests,
				DstStageMask:  gfx.PipelineStageColorAttachmentOutput | gfx.PipelineStageEarlyFragmentTests | gfx.PipelineStageLateFragmentTests,
				SrcAccessMask: gfx.AccessShaderRead | gfx.AccessDepthStencilAttachmentWrite,
				DstAccessMask: gfx.AccessColorAttachmentRead | gfx.AccessColorAttachmentWrite |
					gfx.AccessDepthStencilAttachmentRead | gfx.AccessDepthStencilAttachmentWrite,
			},
			// attachments are sampled by fragment shaders of later passes
			{
				SrcSubpass:    0,
				DstSubpass:    gfx.SubpassExternal,
				SrcStageMask:  gfx.PipelineStageColorAttachmentOutput | gfx.PipelineStageLateFragmentTests,
				DstStageMask:  gfx.PipelineStageFragmentShader,
				SrcAccessMask: gfx.AccessColorAttachmentWrite | gfx.AccessDepthStencilAttachmentWrite,
				DstAccessMask: gfx.AccessShaderRead,
			},
		},
	}, nil
}

// CreateRenderPass creates the render pass and then the framebuffer,
// with as many layers as the attachment with the most.
func (f *Framebuffer) CreateRenderPass() error {
	info, err := f.RenderPassInfo()
	if err != nil {
		return err
	}

	rp, err := f.ctx.Device.CreateRenderPass(info)
	if err != nil {
		return fmt.Errorf("vk.CreateRenderPass(): %w", err)
	}

	var layers uint32 = 1
	views := make([]gfx.ImageView, 0, len(f.Attachments))
	for _, a := range f.Attachments {
		views = append(views, a.Image.View)
		if a.Image.Layers > layers {
			layers = a.Image.Layers
		}
	}

	fb, err := f.ctx.Device.CreateFramebuffer(gfx.FramebufferCreateInfo{
		RenderPass:  rp,
		Attachments: views,
		Width:       f.Width,
		Height:      f.Height,
		Layers:      layers,
	})
	if err != nil {
		f.ctx.Device.DestroyRenderPass(rp)
		return fmt.Errorf("vk.CreateFramebuffer(): %w", err)
	}

	f.RenderPass = rp
	f.Framebuffer = fb
	return nil
}

// ClearValues returns a clear value per attachment: black for color, far for depth.
func (f *Framebuffer) ClearValues() []gfx.ClearValue {
	values := make([]gfx.ClearValue, len(f.Attachments))
	for idx, a := range f.Attachments {
		if a.IsDepthStencil() {
			values[idx] = gfx.ClearDepthStencil(1, 0)
		} else {
			values[idx] = gfx.ClearColor(0, 0, 0, 0)
		}
	}
	return values
}

// PassEnded records that the render pass left every attachment in its final layout
func (f *Framebuffer) PassEnded() {
	for _, a := range f.Attachments {
		a.Image.SetLayout(a.Description.FinalLayout)
	}
}

// Destroy destroys the framebuffer, render pass, sampler and attachments
func (f *Framebuffer) Destroy() {
	device := f.ctx.Device
	if f.Framebuffer != gfx.NullHandle {
		device.DestroyFramebuffer(f.Framebuffer)
		f.Framebuffer = gfx.NullHandle
	}
	if f.RenderPass != gfx.NullHandle {
		device.DestroyRenderPass(f.RenderPass)
		f.RenderPass = gfx.NullHandle
	}
	if f.Sampler != gfx.NullHandle {
		device.DestroySampler(f.Sampler)
		f.Sampler = gfx.NullHandle
	}
	for idx := len(f.Attachments) - 1; idx >= 0; idx-- {
		f.Attachments[idx].Image.Destroy()
	}
	f.Attachments = nil
}

// G-buffer attachment indices
const (
	GBufferPosition = iota
	GBufferNormal
	GBufferAlbedo
	GBufferDepth
)

// NewGBuffer creates the deferred geometry pass targets: position, normal and
// albedo color attachments plus depth, all sampled by the lighting pass.
func NewGBuffer(ctx *core.Context, width, height uint32) (*Framebuffer, error) {
	depthFormat, err := DepthFormat(ctx.Device)
	if err != nil {
		return nil, err
	}

	f := NewFramebuffer(ctx, width, height)
	f.RequireDepth = true

	attachments := []AttachmentCreateInfo{
		{Format: gfx.FormatR16G16B16A16Sfloat, Usage: gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled},
		{Format: gfx.FormatR16G16B16A16Sfloat, Usage: gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled},
		{Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled},
		{Format: depthFormat, Usage: gfx.ImageUsageDepthStencilAttachment | gfx.ImageUsageSampled},
	}
	for _, info := range attachments {
		info.Width, info.Height, info.Layers = width, height, 1
		if _, err := f.AddAttachment(info); err != nil {
			f.Destroy()
			return nil, err
		}
	}
	if err := f.CreateSampler(gfx.FilterNearest, gfx.FilterNearest, gfx.SamplerAddressModeClampToEdge); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.CreateRenderPass(); err != nil {
		f.Destroy()
		return nil, err
	}
	return f, nil
}
