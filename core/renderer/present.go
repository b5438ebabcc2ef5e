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

// presentPasses render into swapchain images. The lighting pass clears and
// composites the G-buffer, the overlay pass loads its result, draws on top
// and hands the image over to presentation. Both passes are compatible and
// share one framebuffer per swapchain image.
type presentPasses struct {
	lighting     gfx.RenderPass
	overlay      gfx.RenderPass
	framebuffers []gfx.Framebuffer

	ctx *core.Context
}

func presentPassInfo(format gfx.Format, load gfx.AttachmentLoadOp, initial, final gfx.ImageLayout) gfx.RenderPassCreateInfo {
	return gfx.RenderPassCreateInfo{
		Attachments: []gfx.AttachmentDescription{{
			Format:         format,
			LoadOp:         load,
			StoreOp:        gfx.AttachmentStoreOpStore,
			StencilLoadOp:  gfx.AttachmentLoadOpDontCare,
			StencilStoreOp: gfx.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    final,
		}},
		Subpasses: []gfx.SubpassDescription{{
			ColorAttachments: []gfx.AttachmentReference{{
				Attachment: 0,
				Layout:     gfx.ImageLayoutColorAttachmentOptimal,
			}},
		}},
		Dependencies: []gfx.SubpassDependency{{
			SrcSubpass:    gfx.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  gfx.PipelineStageColorAttachmentOutput,
			DstStageMask:  gfx.PipelineStageColorAttachmentOutput,
			SrcAccessMask: gfx.AccessColorAttachmentWrite,
			DstAccessMask: gfx.AccessColorAttachmentRead | gfx.AccessColorAttachmentWrite,
		}},
	}
}

func newPresentPasses(ctx *core.Context, sc *Swapchain) (*presentPasses, error) {
	p := &presentPasses{ctx: ctx}

	var err error
	p.lighting, err = ctx.Device.CreateRenderPass(presentPassInfo(sc.Format,
		gfx.AttachmentLoadOpClear, gfx.ImageLayoutUndefined, gfx.ImageLayoutColorAttachmentOptimal))
	if err != nil {
		return nil, fmt.Errorf("vk.CreateRenderPass(): %w", err)
	}
	p.overlay, err = ctx.Device.CreateRenderPass(presentPassInfo(sc.Format,
		gfx.AttachmentLoadOpLoad, gfx.ImageLayoutColorAttachmentOptimal, gfx.ImageLayoutPresentSrc))
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("vk.CreateRenderPass(): %w", err)
	}

	for _, view := range sc.Views {
		fb, err := ctx.Device.CreateFramebuffer(gfx.FramebufferCreateInfo{
			RenderPass:  p.lighting,
			Attachments: []gfx.ImageView{view},
			Width:       sc.Extent.Width,
			Height:      sc.Extent.Height,
			Layers:      1,
		})
		if err != nil {
			p.destroy()
			return nil, fmt.Errorf("vk.CreateFramebuffer(): %w", err)
		}
		p.framebuffers = append(p.framebuffers, fb)
	}
	return p, nil
}

func (p *presentPasses) destroy() {
	for _, fb := range p.framebuffers {
		p.ctx.Device.DestroyFramebuffer(fb)
	}
	p.framebuffers = nil
	if p.overlay != gfx.NullHandle {
		p.ctx.Device.DestroyRenderPass(p.overlay)
		p.overlay = gfx.NullHandle
	}
	if p.lighting != gfx.NullHandle {
		p.ctx.Device.DestroyRenderPass(p.lighting)
		p.lighting = gfx.NullHandle
	}
}
