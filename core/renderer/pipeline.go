// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/model"
)

// Push constant sizes
const (
	worldPushConstantSize   = 64
	overlayPushConstantSize = 16
)

// Descriptor set indices of the geometry pipeline layout
const (
	setCamera = iota
	setMaterial
	setTexture
)

// descriptors owns the set layouts, pipeline layouts and the pool every set
// of the renderer is allocated from. They live as long as the renderer.
type descriptors struct {
	camera   gfx.DescriptorSetLayout
	material gfx.DescriptorSetLayout
	texture  gfx.DescriptorSetLayout
	gbuffer  gfx.DescriptorSetLayout

	geometryLayout gfx.PipelineLayout
	lightingLayout gfx.PipelineLayout
	overlayLayout  gfx.PipelineLayout

	pool gfx.DescriptorPool

	device gfx.Device
}

func newDescriptors(device gfx.Device, framesInFlight, capacity int) (*descriptors, error) {
	d := &descriptors{device: device}

	layouts := []struct {
		layout   *gfx.DescriptorSetLayout
		bindings []gfx.DescriptorSetLayoutBinding
	}{
		{&d.camera, []gfx.DescriptorSetLayoutBinding{
			{Binding: 0, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageVertex | gfx.ShaderStageFragment},
			{Binding: 1, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageFragment},
		}},
		{&d.material, []gfx.DescriptorSetLayoutBinding{
			{Binding: 0, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageFragment},
		}},
		{&d.texture, []gfx.DescriptorSetLayoutBinding{
			{Binding: 0, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gfx.ShaderStageFragment},
		}},
		{&d.gbuffer, []gfx.DescriptorSetLayoutBinding{
			{Binding: 0, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gfx.ShaderStageFragment},
			{Binding: 1, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gfx.ShaderStageFragment},
			{Binding: 2, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gfx.ShaderStageFragment},
		}},
	}
	for _, l := range layouts {
		layout, err := device.CreateDescriptorSetLayout(l.bindings)
		if err != nil {
			d.destroy()
			return nil, fmt.Errorf("vk.CreateDescriptorSetLayout(): %w", err)
		}
		*l.layout = layout
	}

	pipelineLayouts := []struct {
		layout *gfx.PipelineLayout
		info   gfx.PipelineLayoutCreateInfo
	}{
		{&d.geometryLayout, gfx.PipelineLayoutCreateInfo{
			SetLayouts:    []gfx.DescriptorSetLayout{d.camera, d.material, d.texture},
			PushConstants: []gfx.PushConstantRange{{Stages: gfx.ShaderStageVertex, Size: worldPushConstantSize}},
		}},
		{&d.lightingLayout, gfx.PipelineLayoutCreateInfo{
			SetLayouts: []gfx.DescriptorSetLayout{d.camera, d.gbuffer},
		}},
		{&d.overlayLayout, gfx.PipelineLayoutCreateInfo{
			SetLayouts:    []gfx.DescriptorSetLayout{d.texture},
			PushConstants: []gfx.PushConstantRange{{Stages: gfx.ShaderStageVertex, Size: overlayPushConstantSize}},
		}},
	}
	for _, l := range pipelineLayouts {
		layout, err := device.CreatePipelineLayout(l.info)
		if err != nil {
			d.destroy()
			return nil, fmt.Errorf("vk.CreatePipelineLayout(): %w", err)
		}
		*l.layout = layout
	}

	// camera sets per frame, one G-buffer input set, material and texture sets per registry entry
	pool, err := device.CreateDescriptorPool(gfx.DescriptorPoolCreateInfo{
		MaxSets: uint32(framesInFlight + 1 + 2*capacity),
		Sizes: []gfx.DescriptorPoolSize{
			{Type: gfx.DescriptorTypeUniformBuffer, Count: uint32(2*framesInFlight + capacity)},
			{Type: gfx.DescriptorTypeCombinedImageSampler, Count: uint32(3 + capacity)},
		},
		FreeDescriptorSet: true,
	})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("vk.CreateDescriptorPool(): %w", err)
	}
	d.pool = pool
	return d, nil
}

func (d *descriptors) allocate(layout gfx.DescriptorSetLayout) (gfx.DescriptorSet, error) {
	set, err := d.device.AllocateDescriptorSet(d.pool, layout)
	if err != nil {
		return gfx.NullHandle, fmt.Errorf("vk.AllocateDescriptorSets(): %w", err)
	}
	return set, nil
}

func (d *descriptors) free(set gfx.DescriptorSet) {
	d.device.FreeDescriptorSet(d.pool, set)
}

func (d *descriptors) destroy() {
	if d.pool != gfx.NullHandle {
		d.device.DestroyDescriptorPool(d.pool)
		d.pool = gfx.NullHandle
	}
	for _, l := range []*gfx.PipelineLayout{&d.overlayLayout, &d.lightingLayout, &d.geometryLayout} {
		if *l != gfx.NullHandle {
			d.device.DestroyPipelineLayout(*l)
			*l = gfx.NullHandle
		}
	}
	for _, l := range []*gfx.DescriptorSetLayout{&d.gbuffer, &d.texture, &d.material, &d.camera} {
		if *l != gfx.NullHandle {
			d.device.DestroyDescriptorSetLayout(*l)
			*l = gfx.NullHandle
		}
	}
}

func writeUniform(binding uint32, buf *core.Buffer) gfx.DescriptorWrite {
	return gfx.DescriptorWrite{
		Binding: binding,
		Type:    gfx.DescriptorTypeUniformBuffer,
		Buffers: []gfx.DescriptorBufferInfo{{Buffer: buf.Handle, Range: buf.Size}},
	}
}

func writeSampler(binding uint32, sampler gfx.Sampler, view gfx.ImageView, layout gfx.ImageLayout) gfx.DescriptorWrite {
	return gfx.DescriptorWrite{
		Binding: binding,
		Type:    gfx.DescriptorTypeCombinedImageSampler,
		Images:  []gfx.DescriptorImageInfo{{Sampler: sampler, View: view, Layout: layout}},
	}
}

// pipelines are tied to the render passes and recreated with them
type pipelines struct {
	geometry gfx.Pipeline
	lighting gfx.Pipeline
	overlay  gfx.Pipeline

	device gfx.Device
}

func opaque(count int) []gfx.ColorBlendAttachment {
	return make([]gfx.ColorBlendAttachment, count)
}

func newPipelines(device gfx.Device, shaders core.ShaderSet, d *descriptors, gbuffer *Framebuffer, present *presentPasses) (*pipelines, error) {
	p := &pipelines{device: device}

	geometryStages, err := shaders.Stages("gbuffer")
	if err != nil {
		return nil, err
	}
	lightingStages, err := shaders.Stages("lighting")
	if err != nil {
		return nil, err
	}
	overlayStages, err := shaders.Stages("overlay")
	if err != nil {
		return nil, err
	}

	colorAttachments := 0
	for _, a := range gbuffer.Attachments {
		if !a.IsDepthStencil() {
			colorAttachments++
		}
	}

	infos := []struct {
		pipeline *gfx.Pipeline
		info     gfx.GraphicsPipelineCreateInfo
	}{
		{&p.geometry, gfx.GraphicsPipelineCreateInfo{
			Stages:           geometryStages,
			VertexBindings:   model.VertexBindings(),
			VertexAttributes: model.VertexAttributes(),
			Topology:         gfx.PrimitiveTopologyTriangleList,
			CullMode:         gfx.CullModeBack,
			FrontFace:        gfx.FrontFaceCounterClockwise,
			DepthTest:        true,
			DepthWrite:       true,
			DepthCompare:     gfx.CompareOpLessOrEqual,
			ColorBlend:       opaque(colorAttachments),
			Layout:           d.geometryLayout,
			RenderPass:       gbuffer.RenderPass,
		}},
		{&p.lighting, gfx.GraphicsPipelineCreateInfo{
			Stages:       lightingStages,
			Topology:     gfx.PrimitiveTopologyTriangleList,
			CullMode:     gfx.CullModeNone,
			FrontFace:    gfx.FrontFaceCounterClockwise,
			DepthCompare: gfx.CompareOpAlways,
			ColorBlend:   opaque(1),
			Layout:       d.lightingLayout,
			RenderPass:   present.lighting,
		}},
		{&p.overlay, gfx.GraphicsPipelineCreateInfo{
			Stages:           overlayStages,
			VertexBindings:   OverlayVertexBindings(),
			VertexAttributes: OverlayVertexAttributes(),
			Topology:         gfx.PrimitiveTopologyTriangleList,
			CullMode:         gfx.CullModeNone,
			FrontFace:        gfx.FrontFaceCounterClockwise,
			DepthCompare:     gfx.CompareOpAlways,
			ColorBlend: []gfx.ColorBlendAttachment{{
				BlendEnable: true,
				SrcColor:    gfx.BlendFactorSrcAlpha,
				DstColor:    gfx.BlendFactorOneMinusSrcAlpha,
				SrcAlpha:    gfx.BlendFactorOne,
				DstAlpha:    gfx.BlendFactorOneMinusSrcAlpha,
			}},
			Layout:     d.overlayLayout,
			RenderPass: present.overlay,
		}},
	}
	for _, i := range infos {
		pipeline, err := device.CreateGraphicsPipeline(i.info)
		if err != nil {
			p.destroy()
			return nil, fmt.Errorf("vk.CreateGraphicsPipelines(): %w", err)
		}
		*i.pipeline = pipeline
	}
	return p, nil
}

func (p *pipelines) destroy() {
	for _, pipeline := range []*gfx.Pipeline{&p.overlay, &p.lighting, &p.geometry} {
		if *pipeline != gfx.NullHandle {
			p.device.DestroyPipeline(*pipeline)
			*pipeline = gfx.NullHandle
		}
	}
}
