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
)

func TestDepthStencilFormats(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		format           gfx.Format
		depth, stencil   bool
		isDepthOrStencil bool
	}{
		{gfx.FormatD16Unorm, true, false, true},
		{gfx.FormatX8D24UnormPack32, true, false, true},
		{gfx.FormatD32Sfloat, true, false, true},
		{gfx.FormatS8Uint, false, true, true},
		{gfx.FormatD16UnormS8Uint, true, true, true},
		{gfx.FormatD24UnormS8Uint, true, true, true},
		{gfx.FormatD32SfloatS8Uint, true, true, true},
		{gfx.FormatR8G8B8A8Unorm, false, false, false},
		{gfx.FormatR16G16B16A16Sfloat, false, false, false},
	}
	for _, test := range tests {
		comment := qt.Commentf("format %d", test.format)
		c.Assert(renderer.FormatHasDepth(test.format), qt.Equals, test.depth, comment)
		c.Assert(renderer.FormatHasStencil(test.format), qt.Equals, test.stencil, comment)
		c.Assert(renderer.FormatIsDepthStencil(test.format), qt.Equals, test.isDepthOrStencil, comment)
	}
}

func TestAddAttachment(t *testing.T) {
	c := qt.New(t)
	ctx, _, _ := newTestContext(c, core.ContextConfiguration{Strict: true})

	fb := renderer.NewFramebuffer(ctx, 64, 64)
	tests := []struct {
		about   string
		info    renderer.AttachmentCreateInfo
		aspect  gfx.ImageAspect
		store   gfx.AttachmentStoreOp
		stencil gfx.AttachmentLoadOp
		final   gfx.ImageLayout
	}{{
		about:   "sampled color",
		info:    renderer.AttachmentCreateInfo{Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled},
		aspect:  gfx.ImageAspectColor,
		store:   gfx.AttachmentStoreOpStore,
		stencil: gfx.AttachmentLoadOpDontCare,
		final:   gfx.ImageLayoutShaderReadOnlyOptimal,
	}, {
		about:   "transient color",
		info:    renderer.AttachmentCreateInfo{Format: gfx.FormatR16G16B16A16Sfloat, Usage: gfx.ImageUsageColorAttachment},
		aspect:  gfx.ImageAspectColor,
		store:   gfx.AttachmentStoreOpDontCare,
		stencil: gfx.AttachmentLoadOpDontCare,
		final:   gfx.ImageLayoutShaderReadOnlyOptimal,
	}, {
		about:   "depth stencil",
		info:    renderer.AttachmentCreateInfo{Format: gfx.FormatD24UnormS8Uint, Usage: gfx.ImageUsageDepthStencilAttachment | gfx.ImageUsageSampled},
		aspect:  gfx.ImageAspectDepth | gfx.ImageAspectStencil,
		store:   gfx.AttachmentStoreOpStore,
		stencil: gfx.AttachmentLoadOpDontCare,
		final:   gfx.ImageLayoutDepthStencilReadOnlyOptimal,
	}}

	for idx, test := range tests {
		test.info.Width, test.info.Height = 64, 64
		n, err := fb.AddAttachment(test.info)
		c.Assert(err, qt.IsNil, qt.Commentf(test.about))
		c.Assert(n, qt.Equals, idx)

		a := fb.Attachments[n]
		c.Assert(a.Aspect, qt.Equals, test.aspect, qt.Commentf(test.about))
		c.Assert(a.Description.LoadOp, qt.Equals, gfx.AttachmentLoadOpClear)
		c.Assert(a.Description.StoreOp, qt.Equals, test.store, qt.Commentf(test.about))
		c.Assert(a.Description.StencilLoadOp, qt.Equals, test.stencil, qt.Commentf(test.about))
		c.Assert(a.Description.InitialLayout, qt.Equals, gfx.ImageLayoutUndefined)
		c.Assert(a.Description.FinalLayout, qt.Equals, test.final, qt.Commentf(test.about))
	}
	c.Assert(fb.Attachments[2].IsDepthStencil(), qt.IsTrue)
	c.Assert(fb.Attachments[2].HasStencil(), qt.IsTrue)
	c.Assert(fb.Attachments[0].HasDepth(), qt.IsFalse)

	_, err := fb.AddAttachment(renderer.AttachmentCreateInfo{
		Width: 64, Height: 64, Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageDepthStencilAttachment,
	})
	c.Assert(err, qt.ErrorMatches, "format 37 is not a depth/stencil format")
	_, err = fb.AddAttachment(renderer.AttachmentCreateInfo{
		Width: 64, Height: 64, Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageSampled,
	})
	c.Assert(err, qt.ErrorMatches, "attachment usage 0x4 is neither color nor depth/stencil")
	c.Assert(fb.Attachments, qt.HasLen, 3)

	fb.Destroy()
	c.Assert(ctx.Destroy(), qt.IsNil)
}

func TestCreateRenderPass(t *testing.T) {
	c := qt.New(t)
	ctx, _, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	fb := renderer.NewFramebuffer(ctx, 128, 32)
	for _, info := range []renderer.AttachmentCreateInfo{
		{Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled},
		{Format: gfx.FormatD32Sfloat, Usage: gfx.ImageUsageDepthStencilAttachment, Layers: 4},
		{Format: gfx.FormatR16G16B16A16Sfloat, Usage: gfx.ImageUsageColorAttachment, Layers: 2},
	} {
		info.Width, info.Height = 128, 32
		_, err := fb.AddAttachment(info)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(fb.CreateRenderPass(), qt.IsNil)

	info, ok := dev.RenderPassInfo(fb.RenderPass)
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.Attachments, qt.HasLen, 3)
	c.Assert(info.Subpasses, qt.HasLen, 1)
	subpass := info.Subpasses[0]
	c.Assert(subpass.ColorAttachments, qt.DeepEquals, []gfx.AttachmentReference{
		{Attachment: 0, Layout: gfx.ImageLayoutColorAttachmentOptimal},
		{Attachment: 2, Layout: gfx.ImageLayoutColorAttachmentOptimal},
	})
	c.Assert(subpass.DepthStencilAttachment, qt.DeepEquals, &gfx.AttachmentReference{
		Attachment: 1, Layout: gfx.ImageLayoutDepthStencilAttachmentOptimal,
	})
	c.Assert(info.Dependencies, qt.HasLen, 2)
	c.Assert(info.Dependencies[0].SrcSubpass, qt.Equals, gfx.SubpassExternal)
	c.Assert(info.Dependencies[1].DstSubpass, qt.Equals, gfx.SubpassExternal)

	// the next frame's writes wait for the lighting pass reads
	pre := info.Dependencies[0]
	c.Assert(pre.SrcStageMask, qt.Equals, gfx.PipelineStageFragmentShader|gfx.PipelineStageLateFragmentTests)
	c.Assert(pre.DstStageMask&gfx.PipelineStageColorAttachmentOutput, qt.Not(qt.Equals), gfx.PipelineStage(0))
	c.Assert(pre.DstStageMask&gfx.PipelineStageEarlyFragmentTests, qt.Not(qt.Equals), gfx.PipelineStage(0))
	c.Assert(pre.DstAccessMask&gfx.AccessDepthStencilAttachmentWrite, qt.Not(qt.Equals), gfx.Access(0))

	// sampling in later passes waits for color and depth writes
	post := info.Dependencies[1]
	c.Assert(post.SrcStageMask, qt.Equals, gfx.PipelineStageColorAttachmentOutput|gfx.PipelineStageLateFragmentTests)
	c.Assert(post.SrcAccessMask, qt.Equals, gfx.AccessColorAttachmentWrite|gfx.AccessDepthStencilAttachmentWrite)
	c.Assert(post.DstStageMask, qt.Equals, gfx.PipelineStageFragmentShader)
	c.Assert(post.DstAccessMask, qt.Equals, gfx.AccessShaderRead)
	for _, d := range info.Dependencies {
		c.Assert(d.DstStageMask&gfx.PipelineStageBottomOfPipe, qt.Equals, gfx.PipelineStage(0))
	}

	fbInfo, ok := dev.FramebufferInfo(fb.Framebuffer)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fbInfo.Layers, qt.Equals, uint32(4))
	c.Assert(fbInfo.Width, qt.Equals, uint32(128))
	c.Assert(fbInfo.Attachments, qt.HasLen, 3)

	c.Assert(fb.ClearValues()[1].DepthStencil, qt.IsTrue)
	c.Assert(fb.ClearValues()[0].DepthStencil, qt.IsFalse)

	fb.PassEnded()
	c.Assert(fb.Attachments[0].Image.Layout(), qt.Equals, gfx.ImageLayoutShaderReadOnlyOptimal)
	c.Assert(fb.Attachments[1].Image.Layout(), qt.Equals, gfx.ImageLayoutDepthStencilReadOnlyOptimal)

	fb.Destroy()
	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestCreateRenderPassDepthRules(t *testing.T) {
	c := qt.New(t)
	ctx, _, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	twoDepth := renderer.NewFramebuffer(ctx, 16, 16)
	for _, f := range []gfx.Format{gfx.FormatD16Unorm, gfx.FormatD32Sfloat} {
		_, err := twoDepth.AddAttachment(renderer.AttachmentCreateInfo{
			Width: 16, Height: 16, Format: f, Usage: gfx.ImageUsageDepthStencilAttachment,
		})
		c.Assert(err, qt.IsNil)
	}
	c.Assert(twoDepth.CreateRenderPass(), qt.ErrorIs, renderer.ErrMultipleDepthAttachments)
	c.Assert(dev.LiveCount("renderPass"), qt.Equals, 0)
	twoDepth.Destroy()

	colorOnly := renderer.NewFramebuffer(ctx, 16, 16)
	_, err := colorOnly.AddAttachment(renderer.AttachmentCreateInfo{
		Width: 16, Height: 16, Format: gfx.FormatR8G8B8A8Unorm, Usage: gfx.ImageUsageColorAttachment,
	})
	c.Assert(err, qt.IsNil)
	colorOnly.RequireDepth = true
	c.Assert(colorOnly.CreateRenderPass(), qt.ErrorIs, renderer.ErrMissingDepthAttachment)
	colorOnly.RequireDepth = false
	c.Assert(colorOnly.CreateRenderPass(), qt.IsNil)
	colorOnly.Destroy()

	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestNewGBuffer(t *testing.T) {
	c := qt.New(t)
	ctx, _, dev := newTestContext(c, core.ContextConfiguration{Strict: true})

	gb, err := renderer.NewGBuffer(ctx, 320, 240)
	c.Assert(err, qt.IsNil)
	formats := make([]gfx.Format, 0, len(gb.Attachments))
	for _, a := range gb.Attachments {
		formats = append(formats, a.Format)
	}
	c.Assert(formats, qt.DeepEquals, []gfx.Format{
		gfx.FormatR16G16B16A16Sfloat,
		gfx.FormatR16G16B16A16Sfloat,
		gfx.FormatR8G8B8A8Unorm,
		gfx.FormatD32SfloatS8Uint,
	})
	c.Assert(gb.Sampler, qt.Not(qt.Equals), gfx.Sampler(gfx.NullHandle))
	c.Assert(gb.RenderPass, qt.Not(qt.Equals), gfx.RenderPass(gfx.NullHandle))
	gb.Destroy()

	dev.SetFormatSupported(gfx.FormatD32SfloatS8Uint, false)
	dev.SetFormatSupported(gfx.FormatD32Sfloat, false)
	f, err := renderer.DepthFormat(dev)
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, gfx.FormatD24UnormS8Uint)

	for _, f := range renderer.DepthFormats {
		dev.SetFormatSupported(f, false)
	}
	_, err = renderer.NewGBuffer(ctx, 320, 240)
	c.Assert(err, qt.ErrorIs, renderer.ErrMissingDepthAttachment)

	c.Assert(ctx.Destroy(), qt.IsNil)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}
