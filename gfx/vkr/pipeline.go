// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(info gfx.RenderPassCreateInfo) (gfx.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	for idx, a := range info.Attachments {
		attachments[idx] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: vk.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
	}

	subpasses := make([]vk.SubpassDescription, len(info.Subpasses))
	for idx, s := range info.Subpasses {
		colorRefs := make([]vk.AttachmentReference, len(s.ColorAttachments))
		for i, ref := range s.ColorAttachments {
			colorRefs[i] = vk.AttachmentReference{
				Attachment: ref.Attachment,
				Layout:     vk.ImageLayout(ref.Layout),
			}
		}
		subpasses[idx] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colorRefs)),
			PColorAttachments:    colorRefs,
		}
		if s.DepthStencilAttachment != nil {
			subpasses[idx].PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: s.DepthStencilAttachment.Attachment,
				Layout:     vk.ImageLayout(s.DepthStencilAttachment.Layout),
			}
		}
	}

	dependencies := make([]vk.SubpassDependency, len(info.Dependencies))
	for idx, dep := range info.Dependencies {
		dependencies[idx] = vk.SubpassDependency{
			SrcSubpass:      dep.SrcSubpass,
			DstSubpass:      dep.DstSubpass,
			SrcStageMask:    vk.PipelineStageFlags(dep.SrcStageMask),
			DstStageMask:    vk.PipelineStageFlags(dep.DstStageMask),
			SrcAccessMask:   vk.AccessFlags(dep.SrcAccessMask),
			DstAccessMask:   vk.AccessFlags(dep.DstAccessMask),
			DependencyFlags: vk.DependencyFlags(dep.Flags),
		}
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if err := resultError("vk.CreateRenderPass()", vk.CreateRenderPass(d.logicalDevice, &rpci, nil, &renderPass)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.RenderPass(put(d, d.renderPasses, renderPass)), nil
}

// DestroyRenderPass implements interface
func (d *Device) DestroyRenderPass(h gfx.RenderPass) {
	if renderPass, ok := take(d, d.renderPasses, uint64(h)); ok {
		vk.DestroyRenderPass(d.logicalDevice, renderPass, nil)
	}
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(info gfx.FramebufferCreateInfo) (gfx.Framebuffer, error) {
	d.mutex.Lock()
	renderPass, ok := d.renderPasses[uint64(info.RenderPass)]
	attachments := make([]vk.ImageView, len(info.Attachments))
	for idx, a := range info.Attachments {
		view, found := d.views[uint64(a)]
		ok = ok && found
		attachments[idx] = view
	}
	d.mutex.Unlock()
	if !ok {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}

	layers := info.Layers
	if layers == 0 {
		layers = 1
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          layers,
	}

	var framebuffer vk.Framebuffer
	if err := resultError("vk.CreateFramebuffer()", vk.CreateFramebuffer(d.logicalDevice, &fci, nil, &framebuffer)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Framebuffer(put(d, d.framebuffers, framebuffer)), nil
}

// DestroyFramebuffer implements interface
func (d *Device) DestroyFramebuffer(h gfx.Framebuffer) {
	if framebuffer, ok := take(d, d.framebuffers, uint64(h)); ok {
		vk.DestroyFramebuffer(d.logicalDevice, framebuffer, nil)
	}
}

// CreateShaderModule implements interface. The code is SPIR-V.
func (d *Device) CreateShaderModule(code []byte) (gfx.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return gfx.NullHandle, fmt.Errorf("vkr: shader code of %d bytes is not SPIR-V", len(code))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}

	var shader vk.ShaderModule
	if err := resultError("vk.CreateShaderModule()", vk.CreateShaderModule(d.logicalDevice, &smci, nil, &shader)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.ShaderModule(put(d, d.shaderModules, shader)), nil
}

// DestroyShaderModule implements interface
func (d *Device) DestroyShaderModule(h gfx.ShaderModule) {
	if shader, ok := take(d, d.shaderModules, uint64(h)); ok {
		vk.DestroyShaderModule(d.logicalDevice, shader, nil)
	}
}

// CreateDescriptorSetLayout implements interface
func (d *Device) CreateDescriptorSetLayout(bindings []gfx.DescriptorSetLayoutBinding) (gfx.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for idx, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		vkBindings[idx] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	if err := resultError("vk.CreateDescriptorSetLayout()", vk.CreateDescriptorSetLayout(d.logicalDevice, &dslci, nil, &descriptorSetLayout)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.DescriptorSetLayout(put(d, d.setLayouts, descriptorSetLayout)), nil
}

// DestroyDescriptorSetLayout implements interface
func (d *Device) DestroyDescriptorSetLayout(h gfx.DescriptorSetLayout) {
	if layout, ok := take(d, d.setLayouts, uint64(h)); ok {
		vk.DestroyDescriptorSetLayout(d.logicalDevice, layout, nil)
	}
}

// CreatePipelineLayout implements interface
func (d *Device) CreatePipelineLayout(info gfx.PipelineLayoutCreateInfo) (gfx.PipelineLayout, error) {
	d.mutex.Lock()
	setLayouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for idx, h := range info.SetLayouts {
		layout, ok := d.setLayouts[uint64(h)]
		if !ok {
			d.mutex.Unlock()
			return gfx.NullHandle, gfx.ErrUnknownHandle
		}
		setLayouts[idx] = layout
	}
	d.mutex.Unlock()

	pcr := make([]vk.PushConstantRange, len(info.PushConstants))
	for idx, r := range info.PushConstants {
		pcr[idx] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}

	var pipelineLayout vk.PipelineLayout
	if err := resultError("vk.CreatePipelineLayout()", vk.CreatePipelineLayout(d.logicalDevice, &plci, nil, &pipelineLayout)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.PipelineLayout(put(d, d.layouts, pipelineLayout)), nil
}

// DestroyPipelineLayout implements interface
func (d *Device) DestroyPipelineLayout(h gfx.PipelineLayout) {
	if layout, ok := take(d, d.layouts, uint64(h)); ok {
		vk.DestroyPipelineLayout(d.logicalDevice, layout, nil)
	}
}

// CreateGraphicsPipeline implements interface. Viewport and scissor are dynamic.
func (d *Device) CreateGraphicsPipeline(info gfx.GraphicsPipelineCreateInfo) (gfx.Pipeline, error) {
	d.mutex.Lock()
	layout, okLayout := d.layouts[uint64(info.Layout)]
	renderPass, okPass := d.renderPasses[uint64(info.RenderPass)]
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	okModules := true
	for idx, s := range info.Stages {
		module, found := d.shaderModules[uint64(s.Module)]
		okModules = okModules && found
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: module,
			PName:  safeString(entry),
		}
	}
	d.mutex.Unlock()
	if !okLayout || !okPass || !okModules {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}

	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for idx, b := range info.VertexBindings {
		bindings[idx] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for idx, a := range info.VertexAttributes {
		attributes[idx] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(info.ColorBlend))
	for idx, b := range info.ColorBlend {
		blendAttachments[idx] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask:      0xF,
			BlendEnable:         bool32(b.BlendEnable),
			SrcColorBlendFactor: vk.BlendFactor(b.SrcColor),
			DstColorBlendFactor: vk.BlendFactor(b.DstColor),
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactor(b.SrcAlpha),
			DstAlphaBlendFactor: vk.BlendFactor(b.DstAlpha),
			AlphaBlendOp:        vk.BlendOpAdd,
		}
	}

	depthCompare := vk.CompareOp(info.DepthCompare)
	if !info.DepthTest {
		depthCompare = vk.CompareOpAlways
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopology(info.Topology),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(info.CullMode),
			FrontFace:   vk.FrontFace(info.FrontFace),
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       bool32(info.DepthTest),
			DepthWriteEnable:      bool32(info.DepthWrite),
			DepthCompareOp:        depthCompare,
			DepthBoundsTestEnable: vk.False,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			StencilTestEnable: vk.False,
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendAttachments)),
			PAttachments:    blendAttachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     layout,
		RenderPass: renderPass,
		Subpass:    info.Subpass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := resultError("vk.CreateGraphicsPipelines()", vk.CreateGraphicsPipelines(d.logicalDevice, d.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Pipeline(put(d, d.pipelines, pipelines[0])), nil
}

// DestroyPipeline implements interface
func (d *Device) DestroyPipeline(h gfx.Pipeline) {
	if pipeline, ok := take(d, d.pipelines, uint64(h)); ok {
		vk.DestroyPipeline(d.logicalDevice, pipeline, nil)
	}
}

// CreateDescriptorPool implements interface
func (d *Device) CreateDescriptorPool(info gfx.DescriptorPoolCreateInfo) (gfx.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(info.Sizes))
	for idx, s := range info.Sizes {
		poolSizes[idx] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if info.FreeDescriptorSet {
		dpci.Flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}

	var descriptorPool vk.DescriptorPool
	if err := resultError("vk.CreateDescriptorPool()", vk.CreateDescriptorPool(d.logicalDevice, &dpci, nil, &descriptorPool)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.DescriptorPool(put(d, d.descPools, descriptorPool)), nil
}

// DestroyDescriptorPool implements interface. Sets allocated from the pool are released with it.
func (d *Device) DestroyDescriptorPool(h gfx.DescriptorPool) {
	if pool, ok := take(d, d.descPools, uint64(h)); ok {
		vk.DestroyDescriptorPool(d.logicalDevice, pool, nil)
	}
}

// AllocateDescriptorSet implements interface
func (d *Device) AllocateDescriptorSet(pool gfx.DescriptorPool, layout gfx.DescriptorSetLayout) (gfx.DescriptorSet, error) {
	d.mutex.Lock()
	descriptorPool, okPool := d.descPools[uint64(pool)]
	setLayout, okLayout := d.setLayouts[uint64(layout)]
	d.mutex.Unlock()
	if !okPool || !okLayout {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}

	var descriptorSet vk.DescriptorSet
	if err := resultError("vk.AllocateDescriptorSets()", vk.AllocateDescriptorSets(d.logicalDevice, &dsai, &descriptorSet)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.DescriptorSet(put(d, d.descSets, descriptorSet)), nil
}

// FreeDescriptorSet implements interface
func (d *Device) FreeDescriptorSet(pool gfx.DescriptorPool, set gfx.DescriptorSet) {
	descriptorPool := get(d, d.descPools, uint64(pool))
	if descriptorSet, ok := take(d, d.descSets, uint64(set)); ok {
		vk.FreeDescriptorSets(d.logicalDevice, descriptorPool, 1, []vk.DescriptorSet{descriptorSet})
	}
}

// UpdateDescriptorSet implements interface
func (d *Device) UpdateDescriptorSet(set gfx.DescriptorSet, writes []gfx.DescriptorWrite) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	descriptorSet := d.descSets[uint64(set)]
	wds := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		wd := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          descriptorSet,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		if len(w.Buffers) > 0 {
			dbi := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for idx, b := range w.Buffers {
				dbi[idx] = vk.DescriptorBufferInfo{
					Buffer: d.buffers[uint64(b.Buffer)],
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			wd.DescriptorCount = uint32(len(dbi))
			wd.PBufferInfo = dbi
		} else {
			dii := make([]vk.DescriptorImageInfo, len(w.Images))
			for idx, i := range w.Images {
				dii[idx] = vk.DescriptorImageInfo{
					Sampler:     d.samplers[uint64(i.Sampler)],
					ImageView:   d.views[uint64(i.View)],
					ImageLayout: vk.ImageLayout(i.Layout),
				}
			}
			wd.DescriptorCount = uint32(len(dii))
			wd.PImageInfo = dii
		}
		wds = append(wds, wd)
	}
	vk.UpdateDescriptorSets(d.logicalDevice, uint32(len(wds)), wds, 0, nil)
}
