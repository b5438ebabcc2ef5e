// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

// CreateCommandPool implements interface
func (d *Device) CreateCommandPool(family uint32, resettable bool) (gfx.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	if resettable {
		cpci.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}

	var commandPool vk.CommandPool
	if err := resultError("vk.CreateCommandPool()", vk.CreateCommandPool(d.logicalDevice, &cpci, nil, &commandPool)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.CommandPool(put(d, d.cmdPools, commandPool)), nil
}

// DestroyCommandPool implements interface
func (d *Device) DestroyCommandPool(h gfx.CommandPool) {
	if commandPool, ok := take(d, d.cmdPools, uint64(h)); ok {
		vk.DestroyCommandPool(d.logicalDevice, commandPool, nil)
	}
}

// AllocateCommandBuffers implements interface
func (d *Device) AllocateCommandBuffers(pool gfx.CommandPool, count int) ([]gfx.CommandBuffer, error) {
	d.mutex.Lock()
	commandPool, ok := d.cmdPools[uint64(pool)]
	d.mutex.Unlock()
	if !ok {
		return nil, gfx.ErrUnknownHandle
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	commandBuffers := make([]vk.CommandBuffer, count)
	if err := resultError("vk.AllocateCommandBuffers()", vk.AllocateCommandBuffers(d.logicalDevice, &cbai, commandBuffers)); err != nil {
		return nil, err
	}

	handles := make([]gfx.CommandBuffer, count)
	for idx, cb := range commandBuffers {
		handles[idx] = gfx.CommandBuffer(put(d, d.cmdBuffers, cb))
	}
	return handles, nil
}

// FreeCommandBuffers implements interface
func (d *Device) FreeCommandBuffers(pool gfx.CommandPool, cbs []gfx.CommandBuffer) {
	commandPool := get(d, d.cmdPools, uint64(pool))
	var commandBuffers []vk.CommandBuffer
	for _, h := range cbs {
		if cb, ok := take(d, d.cmdBuffers, uint64(h)); ok {
			commandBuffers = append(commandBuffers, cb)
		}
	}
	if len(commandBuffers) > 0 {
		vk.FreeCommandBuffers(d.logicalDevice, commandPool, uint32(len(commandBuffers)), commandBuffers)
	}
}

func (d *Device) commandBuffer(h gfx.CommandBuffer) vk.CommandBuffer {
	return get(d, d.cmdBuffers, uint64(h))
}

// BeginCommandBuffer implements interface
func (d *Device) BeginCommandBuffer(cb gfx.CommandBuffer, oneTime bool) error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTime {
		cbbi.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return resultError("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(d.commandBuffer(cb), &cbbi))
}

// EndCommandBuffer implements interface
func (d *Device) EndCommandBuffer(cb gfx.CommandBuffer) error {
	return resultError("vk.EndCommandBuffer()", vk.EndCommandBuffer(d.commandBuffer(cb)))
}

// ResetCommandBuffer implements interface
func (d *Device) ResetCommandBuffer(cb gfx.CommandBuffer) error {
	return resultError("vk.ResetCommandBuffer()", vk.ResetCommandBuffer(d.commandBuffer(cb), 0))
}

// CmdBeginRenderPass implements interface
func (d *Device) CmdBeginRenderPass(cb gfx.CommandBuffer, info gfx.RenderPassBeginInfo) {
	d.mutex.Lock()
	renderPass := d.renderPasses[uint64(info.RenderPass)]
	framebuffer := d.framebuffers[uint64(info.Framebuffer)]
	d.mutex.Unlock()

	clearValues := make([]vk.ClearValue, len(info.ClearValues))
	for idx, cv := range info.ClearValues {
		if cv.DepthStencil {
			clearValues[idx].SetDepthStencil(cv.Depth, cv.Stencil)
		} else {
			clearValues[idx].SetColor(cv.Color[:])
		}
	}

	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      renderPass,
		Framebuffer:     framebuffer,
		RenderArea:      rect(info.Area),
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(d.commandBuffer(cb), &rpbi, vk.SubpassContentsInline)
}

// CmdEndRenderPass implements interface
func (d *Device) CmdEndRenderPass(cb gfx.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffer(cb))
}

// CmdBindPipeline implements interface
func (d *Device) CmdBindPipeline(cb gfx.CommandBuffer, pipeline gfx.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffer(cb), vk.PipelineBindPointGraphics, get(d, d.pipelines, uint64(pipeline)))
}

// CmdSetViewport implements interface
func (d *Device) CmdSetViewport(cb gfx.CommandBuffer, viewport gfx.Viewport) {
	vk.CmdSetViewport(d.commandBuffer(cb), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

// CmdSetScissor implements interface
func (d *Device) CmdSetScissor(cb gfx.CommandBuffer, scissor gfx.Rect2D) {
	vk.CmdSetScissor(d.commandBuffer(cb), 0, 1, []vk.Rect2D{rect(scissor)})
}

// CmdBindVertexBuffers implements interface
func (d *Device) CmdBindVertexBuffers(cb gfx.CommandBuffer, first uint32, buffers []gfx.Buffer, offsets []uint64) {
	d.mutex.Lock()
	vkBuffers := make([]vk.Buffer, len(buffers))
	vkOffsets := make([]vk.DeviceSize, len(buffers))
	for idx, b := range buffers {
		vkBuffers[idx] = d.buffers[uint64(b)]
		if idx < len(offsets) {
			vkOffsets[idx] = vk.DeviceSize(offsets[idx])
		}
	}
	d.mutex.Unlock()
	vk.CmdBindVertexBuffers(d.commandBuffer(cb), first, uint32(len(vkBuffers)), vkBuffers, vkOffsets)
}

// CmdBindIndexBuffer implements interface
func (d *Device) CmdBindIndexBuffer(cb gfx.CommandBuffer, buffer gfx.Buffer, offset uint64, indexType gfx.IndexType) {
	vk.CmdBindIndexBuffer(d.commandBuffer(cb), get(d, d.buffers, uint64(buffer)), vk.DeviceSize(offset), vk.IndexType(indexType))
}

// CmdBindDescriptorSets implements interface
func (d *Device) CmdBindDescriptorSets(cb gfx.CommandBuffer, layout gfx.PipelineLayout, firstSet uint32, sets []gfx.DescriptorSet) {
	d.mutex.Lock()
	pipelineLayout := d.layouts[uint64(layout)]
	descriptorSets := make([]vk.DescriptorSet, len(sets))
	for idx, s := range sets {
		descriptorSets[idx] = d.descSets[uint64(s)]
	}
	d.mutex.Unlock()
	vk.CmdBindDescriptorSets(d.commandBuffer(cb), vk.PipelineBindPointGraphics, pipelineLayout, firstSet, uint32(len(descriptorSets)), descriptorSets, 0, nil)
}

// CmdPushConstants implements interface
func (d *Device) CmdPushConstants(cb gfx.CommandBuffer, layout gfx.PipelineLayout, stages gfx.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.commandBuffer(cb), get(d, d.layouts, uint64(layout)), vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

// CmdDraw implements interface
func (d *Device) CmdDraw(cb gfx.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.commandBuffer(cb), vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdDrawIndexed implements interface
func (d *Device) CmdDrawIndexed(cb gfx.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.commandBuffer(cb), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// CmdPipelineBarrier implements interface
func (d *Device) CmdPipelineBarrier(cb gfx.CommandBuffer, srcStage, dstStage gfx.PipelineStage, barriers []gfx.ImageBarrier) {
	d.mutex.Lock()
	imageBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for idx, b := range barriers {
		imageBarriers[idx] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               d.images[uint64(b.Image)],
			SubresourceRange:    subresourceRange(b.Range),
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
		}
	}
	d.mutex.Unlock()
	vk.CmdPipelineBarrier(d.commandBuffer(cb), vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, uint32(len(imageBarriers)), imageBarriers)
}

// CmdCopyBuffer implements interface
func (d *Device) CmdCopyBuffer(cb gfx.CommandBuffer, src, dst gfx.Buffer, regions []gfx.BufferCopy) {
	copies := make([]vk.BufferCopy, len(regions))
	for idx, r := range regions {
		copies[idx] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(d.commandBuffer(cb), get(d, d.buffers, uint64(src)), get(d, d.buffers, uint64(dst)), uint32(len(copies)), copies)
}

// CmdCopyBufferToImage implements interface
func (d *Device) CmdCopyBufferToImage(cb gfx.CommandBuffer, src gfx.Buffer, dst gfx.Image, layout gfx.ImageLayout, regions []gfx.BufferImageCopy) {
	copies := make([]vk.BufferImageCopy, len(regions))
	for idx, r := range regions {
		layers := r.LayerCount
		if layers == 0 {
			layers = 1
		}
		copies[idx] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(r.BufferOffset),
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(r.Aspect),
				MipLevel:       r.MipLevel,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     layers,
			},
			ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: vk.Extent3D{
				Width:  r.Width,
				Height: r.Height,
				Depth:  1,
			},
		}
	}
	vk.CmdCopyBufferToImage(d.commandBuffer(cb), get(d, d.buffers, uint64(src)), get(d, d.images, uint64(dst)), vk.ImageLayout(layout), uint32(len(copies)), copies)
}
