// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
)

// Op identifies a recorded command
type Op int

// Recorded command operations
const (
	OpBeginRenderPass Op = iota
	OpEndRenderPass
	OpBindPipeline
	OpSetViewport
	OpSetScissor
	OpBindVertexBuffers
	OpBindIndexBuffer
	OpBindDescriptorSets
	OpPushConstants
	OpDraw
	OpDrawIndexed
	OpPipelineBarrier
	OpCopyBuffer
	OpCopyBufferToImage
)

func (o Op) String() string {
	switch o {
	case OpBeginRenderPass:
		return "BeginRenderPass"
	case OpEndRenderPass:
		return "EndRenderPass"
	case OpBindPipeline:
		return "BindPipeline"
	case OpSetViewport:
		return "SetViewport"
	case OpSetScissor:
		return "SetScissor"
	case OpBindVertexBuffers:
		return "BindVertexBuffers"
	case OpBindIndexBuffer:
		return "BindIndexBuffer"
	case OpBindDescriptorSets:
		return "BindDescriptorSets"
	case OpPushConstants:
		return "PushConstants"
	case OpDraw:
		return "Draw"
	case OpDrawIndexed:
		return "DrawIndexed"
	case OpPipelineBarrier:
		return "PipelineBarrier"
	case OpCopyBuffer:
		return "CopyBuffer"
	case OpCopyBufferToImage:
		return "CopyBufferToImage"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	RenderPass  gfx.RenderPass
	Framebuffer gfx.Framebuffer
	ClearValues []gfx.ClearValue
	Pipeline    gfx.Pipeline
	Layout      gfx.PipelineLayout
	Viewport    gfx.Viewport
	Scissor     gfx.Rect2D
	Buffers     []gfx.Buffer
	Sets        []gfx.DescriptorSet
	Stages      gfx.ShaderStage
	Data        []byte
	Count       uint32
	First       uint32
	Offset      int32
	SrcStage    gfx.PipelineStage
	DstStage    gfx.PipelineStage
	Barriers    []gfx.ImageBarrier
	Image       gfx.Image
	ImageLayout gfx.ImageLayout
	Copies      []gfx.BufferCopy
}

type descriptorPool struct {
	info gfx.DescriptorPoolCreateInfo
	sets []gfx.DescriptorSet
}

type descriptorSet struct {
	pool   gfx.DescriptorPool
	layout gfx.DescriptorSetLayout
	writes map[uint32]gfx.DescriptorWrite
}

type commandBuffer struct {
	pool      gfx.CommandPool
	recording bool
	inPass    bool
	pending   bool
	commands  []Command
}

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(info gfx.RenderPassCreateInfo) (gfx.RenderPass, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(info.Subpasses) == 0 {
		return gfx.NullHandle, fmt.Errorf("gfxtest: render pass without subpasses")
	}
	for _, s := range info.Subpasses {
		for _, r := range s.ColorAttachments {
			if int(r.Attachment) >= len(info.Attachments) {
				return gfx.NullHandle, fmt.Errorf("gfxtest: color reference %d out of range", r.Attachment)
			}
		}
		if s.DepthStencilAttachment != nil && int(s.DepthStencilAttachment.Attachment) >= len(info.Attachments) {
			return gfx.NullHandle, fmt.Errorf("gfxtest: depth reference %d out of range", s.DepthStencilAttachment.Attachment)
		}
	}
	h := gfx.RenderPass(d.newHandle(KindRenderPass))
	d.renderPasses[h] = info
	return h, nil
}

// RenderPassInfo returns the create info of a live render pass
func (d *Device) RenderPassInfo(rp gfx.RenderPass) (gfx.RenderPassCreateInfo, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	info, ok := d.renderPasses[rp]
	return info, ok
}

// DestroyRenderPass implements interface
func (d *Device) DestroyRenderPass(rp gfx.RenderPass) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(rp), KindRenderPass) {
		delete(d.renderPasses, rp)
	}
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(info gfx.FramebufferCreateInfo) (gfx.Framebuffer, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	rp, ok := d.renderPasses[info.RenderPass]
	if !ok {
		return gfx.NullHandle, fmt.Errorf("gfxtest: framebuffer for unknown render pass %d", info.RenderPass)
	}
	if len(rp.Attachments) != len(info.Attachments) {
		return gfx.NullHandle, fmt.Errorf("gfxtest: framebuffer has %d attachments, render pass expects %d",
			len(info.Attachments), len(rp.Attachments))
	}
	for _, v := range info.Attachments {
		if _, ok := d.views[v]; !ok {
			return gfx.NullHandle, fmt.Errorf("gfxtest: framebuffer with unknown view %d", v)
		}
	}
	h := gfx.Framebuffer(d.newHandle(KindFramebuffer))
	d.framebuffers[h] = info
	return h, nil
}

// FramebufferInfo returns the create info of a live framebuffer
func (d *Device) FramebufferInfo(fb gfx.Framebuffer) (gfx.FramebufferCreateInfo, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	info, ok := d.framebuffers[fb]
	return info, ok
}

// DestroyFramebuffer implements interface
func (d *Device) DestroyFramebuffer(fb gfx.Framebuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.release(uint64(fb), KindFramebuffer) {
		d.checkNotPendingLocked(func(c Command) bool {
			return c.Op == OpBeginRenderPass && c.Framebuffer == fb
		}, "framebuffer %d destroyed while in use", fb)
		delete(d.framebuffers, fb)
	}
}

// CreateShaderModule implements interface
func (d *Device) CreateShaderModule(code []byte) (gfx.ShaderModule, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		return gfx.NullHandle, fmt.Errorf("gfxtest: shader code size %d is not a multiple of 4", len(code))
	}
	return gfx.ShaderModule(d.newHandle(KindShaderModule)), nil
}

// DestroyShaderModule implements interface
func (d *Device) DestroyShaderModule(m gfx.ShaderModule) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.release(uint64(m), KindShaderModule)
}

// CreateDescriptorSetLayout implements interface
func (d *Device) CreateDescriptorSetLayout(bindings []gfx.DescriptorSetLayoutBinding) (gfx.DescriptorSetLayout, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return gfx.DescriptorSetLayout(d.newHandle(KindDescriptorSetLayout)), nil
}

// DestroyDescriptorSetLayout implements interface
func (d *Device) DestroyDescriptorSetLayout(l gfx.DescriptorSetLayout) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.release(uint64(l), KindDescriptorSetLayout)
}

// CreatePipelineLayout implements interface
func (d *Device) CreatePipelineLayout(info gfx.PipelineLayoutCreateInfo) (gfx.PipelineLayout, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, l := range info.SetLayouts {
		if !d.alive(uint64(l), KindDescriptorSetLayout) {
			return gfx.NullHandle, fmt.Errorf("gfxtest: pipeline layout with unknown set layout %d", l)
		}
	}
	return gfx.PipelineLayout(d.newHandle(KindPipelineLayout)), nil
}

// DestroyPipelineLayout implements interface
func (d *Device) DestroyPipelineLayout(l gfx.PipelineLayout) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.release(uint64(l), KindPipelineLayout)
}

// CreateGraphicsPipeline implements interface
func (d *Device) CreateGraphicsPipeline(info gfx.GraphicsPipelineCreateInfo) (gfx.Pipeline, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, s := range info.Stages {
		if !d.alive(uint64(s.Module), KindShaderModule) {
			return gfx.NullHandle, fmt.Errorf("gfxtest: pipeline with unknown shader module %d", s.Module)
		}
	}
	if !d.alive(uint64(info.Layout), KindPipelineLayout) {
		return gfx.NullHandle, fmt.Errorf("gfxtest: pipeline with unknown layout %d", info.Layout)
	}
	if _, ok := d.renderPasses[info.RenderPass]; !ok {
		return gfx.NullHandle, fmt.Errorf("gfxtest: pipeline with unknown render pass %d", info.RenderPass)
	}
	return gfx.Pipeline(d.newHandle(KindPipeline)), nil
}

// DestroyPipeline implements interface
func (d *Device) DestroyPipeline(p gfx.Pipeline) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.release(uint64(p), KindPipeline)
}

// CreateDescriptorPool implements interface
func (d *Device) CreateDescriptorPool(info gfx.DescriptorPoolCreateInfo) (gfx.DescriptorPool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	h := gfx.DescriptorPool(d.newHandle(KindDescriptorPool))
	d.pools[h] = &descriptorPool{info: info}
	return h, nil
}

// DestroyDescriptorPool implements interface. Sets allocated from the pool are freed with it.
func (d *Device) DestroyDescriptorPool(pool gfx.DescriptorPool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	p, ok := d.pools[pool]
	if !d.release(uint64(pool), KindDescriptorPool) || !ok {
		return
	}
	for _, s := range p.sets {
		delete(d.objects, uint64(s))
		delete(d.sets, s)
	}
	delete(d.pools, pool)
}

// AllocateDescriptorSet implements interface
func (d *Device) AllocateDescriptorSet(pool gfx.DescriptorPool, layout gfx.DescriptorSetLayout) (gfx.DescriptorSet, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}
	if !d.alive(uint64(layout), KindDescriptorSetLayout) {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}
	if uint32(len(p.sets)) >= p.info.MaxSets {
		return gfx.NullHandle, gfx.ErrOutOfDeviceMemory
	}
	h := gfx.DescriptorSet(d.newHandle(KindDescriptorSet))
	p.sets = append(p.sets, h)
	d.sets[h] = &descriptorSet{
		pool:   pool,
		layout: layout,
		writes: make(map[uint32]gfx.DescriptorWrite),
	}
	return h, nil
}

// FreeDescriptorSet implements interface
func (d *Device) FreeDescriptorSet(pool gfx.DescriptorPool, set gfx.DescriptorSet) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		d.violation("free of set %d from unknown pool %d", set, pool)
		return
	}
	if !p.info.FreeDescriptorSet {
		d.violation("free of set %d from pool %d created without free support", set, pool)
	}
	if !d.release(uint64(set), KindDescriptorSet) {
		return
	}
	for i, s := range p.sets {
		if s == set {
			p.sets = append(p.sets[:i], p.sets[i+1:]...)
			break
		}
	}
	delete(d.sets, set)
}

// UpdateDescriptorSet implements interface
func (d *Device) UpdateDescriptorSet(set gfx.DescriptorSet, writes []gfx.DescriptorWrite) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	s, ok := d.sets[set]
	if !ok {
		d.violation("update of unknown descriptor set %d", set)
		return
	}
	for _, w := range writes {
		for _, img := range w.Images {
			if !d.alive(uint64(img.View), KindImageView) {
				d.violation("descriptor set %d written with unknown view %d", set, img.View)
			}
		}
		for _, b := range w.Buffers {
			if _, ok := d.buffers[b.Buffer]; !ok {
				d.violation("descriptor set %d written with unknown buffer %d", set, b.Buffer)
			}
		}
		s.writes[w.Binding] = w
	}
}

// DescriptorWrites returns the last write of every binding of a set
func (d *Device) DescriptorWrites(set gfx.DescriptorSet) map[uint32]gfx.DescriptorWrite {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	s, ok := d.sets[set]
	if !ok {
		return nil
	}
	writes := make(map[uint32]gfx.DescriptorWrite, len(s.writes))
	for k, v := range s.writes {
		writes[k] = v
	}
	return writes
}

// CreateCommandPool implements interface
func (d *Device) CreateCommandPool(family uint32, resettable bool) (gfx.CommandPool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if int(family) >= len(d.physical.QueueFamilies) {
		return gfx.NullHandle, fmt.Errorf("gfxtest: queue family %d does not exist", family)
	}
	return gfx.CommandPool(d.newHandle(KindCommandPool)), nil
}

// DestroyCommandPool implements interface. Command buffers of the pool are freed with it.
func (d *Device) DestroyCommandPool(pool gfx.CommandPool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.release(uint64(pool), KindCommandPool) {
		return
	}
	for h, cb := range d.cmdBuffers {
		if cb.pool == pool {
			if cb.pending {
				d.violation("command pool %d destroyed while command buffer %d is pending", pool, h)
			}
			delete(d.objects, uint64(h))
			delete(d.cmdBuffers, h)
		}
	}
}

// AllocateCommandBuffers implements interface
func (d *Device) AllocateCommandBuffers(pool gfx.CommandPool, count int) ([]gfx.CommandBuffer, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.alive(uint64(pool), KindCommandPool) {
		return nil, gfx.ErrUnknownHandle
	}
	cbs := make([]gfx.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = gfx.CommandBuffer(d.newHandle(KindCommandBuffer))
		d.cmdBuffers[cbs[i]] = &commandBuffer{pool: pool}
	}
	return cbs, nil
}

// FreeCommandBuffers implements interface
func (d *Device) FreeCommandBuffers(pool gfx.CommandPool, cbs []gfx.CommandBuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, h := range cbs {
		cb, ok := d.cmdBuffers[h]
		if !ok {
			d.violation("free of unknown command buffer %d", h)
			continue
		}
		if cb.pending {
			d.violation("command buffer %d freed while pending", h)
		}
		delete(d.objects, uint64(h))
		delete(d.cmdBuffers, h)
	}
}

// BeginCommandBuffer implements interface. Beginning implicitly resets the buffer.
func (d *Device) BeginCommandBuffer(h gfx.CommandBuffer, oneTime bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cb, ok := d.cmdBuffers[h]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if cb.pending {
		d.violation("command buffer %d recorded while pending execution", h)
	}
	if cb.recording {
		d.violation("command buffer %d begun twice", h)
	}
	cb.recording = true
	cb.commands = nil
	return nil
}

// EndCommandBuffer implements interface
func (d *Device) EndCommandBuffer(h gfx.CommandBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cb, ok := d.cmdBuffers[h]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if !cb.recording {
		d.violation("end of command buffer %d that is not recording", h)
	}
	if cb.inPass {
		d.violation("command buffer %d ended inside a render pass", h)
	}
	cb.recording = false
	return nil
}

// ResetCommandBuffer implements interface
func (d *Device) ResetCommandBuffer(h gfx.CommandBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cb, ok := d.cmdBuffers[h]
	if !ok {
		return gfx.ErrUnknownHandle
	}
	if cb.pending {
		d.violation("command buffer %d reset while pending execution", h)
	}
	cb.commands = nil
	cb.recording = false
	cb.inPass = false
	return nil
}

// Commands returns the commands recorded into a command buffer
func (d *Device) Commands(h gfx.CommandBuffer) []Command {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if cb, ok := d.cmdBuffers[h]; ok {
		return append([]Command(nil), cb.commands...)
	}
	return nil
}

func (d *Device) record(h gfx.CommandBuffer, c Command) *commandBuffer {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cb, ok := d.cmdBuffers[h]
	if !ok {
		d.violation("%s recorded into unknown command buffer %d", c.Op, h)
		return nil
	}
	if !cb.recording {
		d.violation("%s recorded into command buffer %d that is not recording", c.Op, h)
	}
	switch c.Op {
	case OpBeginRenderPass:
		if cb.inPass {
			d.violation("render pass begun inside a render pass in %d", h)
		}
		if _, ok := d.framebuffers[c.Framebuffer]; !ok {
			d.violation("render pass begun with unknown framebuffer %d", c.Framebuffer)
		}
		cb.inPass = true
	case OpEndRenderPass:
		if !cb.inPass {
			d.violation("render pass ended outside of a render pass in %d", h)
		}
		cb.inPass = false
	case OpDraw, OpDrawIndexed:
		if !cb.inPass {
			d.violation("draw outside of a render pass in %d", h)
		}
	case OpCopyBuffer, OpCopyBufferToImage, OpPipelineBarrier:
		if cb.inPass && c.Op != OpPipelineBarrier {
			d.violation("%s inside a render pass in %d", c.Op, h)
		}
	}
	cb.commands = append(cb.commands, c)
	return cb
}

// CmdBeginRenderPass implements interface
func (d *Device) CmdBeginRenderPass(cb gfx.CommandBuffer, info gfx.RenderPassBeginInfo) {
	d.record(cb, Command{
		Op:          OpBeginRenderPass,
		RenderPass:  info.RenderPass,
		Framebuffer: info.Framebuffer,
		ClearValues: append([]gfx.ClearValue(nil), info.ClearValues...),
		Scissor:     info.Area,
	})
}

// CmdEndRenderPass implements interface
func (d *Device) CmdEndRenderPass(cb gfx.CommandBuffer) {
	d.record(cb, Command{Op: OpEndRenderPass})
}

// CmdBindPipeline implements interface
func (d *Device) CmdBindPipeline(cb gfx.CommandBuffer, pipeline gfx.Pipeline) {
	d.record(cb, Command{Op: OpBindPipeline, Pipeline: pipeline})
}

// CmdSetViewport implements interface
func (d *Device) CmdSetViewport(cb gfx.CommandBuffer, viewport gfx.Viewport) {
	d.record(cb, Command{Op: OpSetViewport, Viewport: viewport})
}

// CmdSetScissor implements interface
func (d *Device) CmdSetScissor(cb gfx.CommandBuffer, scissor gfx.Rect2D) {
	d.record(cb, Command{Op: OpSetScissor, Scissor: scissor})
}

// CmdBindVertexBuffers implements interface
func (d *Device) CmdBindVertexBuffers(cb gfx.CommandBuffer, first uint32, buffers []gfx.Buffer, offsets []uint64) {
	d.record(cb, Command{Op: OpBindVertexBuffers, First: first, Buffers: append([]gfx.Buffer(nil), buffers...)})
}

// CmdBindIndexBuffer implements interface
func (d *Device) CmdBindIndexBuffer(cb gfx.CommandBuffer, buf gfx.Buffer, offset uint64, indexType gfx.IndexType) {
	d.record(cb, Command{Op: OpBindIndexBuffer, Buffers: []gfx.Buffer{buf}})
}

// CmdBindDescriptorSets implements interface
func (d *Device) CmdBindDescriptorSets(cb gfx.CommandBuffer, layout gfx.PipelineLayout, firstSet uint32, sets []gfx.DescriptorSet) {
	d.record(cb, Command{Op: OpBindDescriptorSets, Layout: layout, First: firstSet, Sets: append([]gfx.DescriptorSet(nil), sets...)})
}

// CmdPushConstants implements interface
func (d *Device) CmdPushConstants(cb gfx.CommandBuffer, layout gfx.PipelineLayout, stages gfx.ShaderStage, offset uint32, data []byte) {
	d.record(cb, Command{Op: OpPushConstants, Layout: layout, Stages: stages, First: offset, Data: append([]byte(nil), data...)})
}

// CmdDraw implements interface
func (d *Device) CmdDraw(cb gfx.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cb, Command{Op: OpDraw, Count: vertexCount, First: firstVertex})
}

// CmdDrawIndexed implements interface
func (d *Device) CmdDrawIndexed(cb gfx.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cb, Command{Op: OpDrawIndexed, Count: indexCount, First: firstIndex, Offset: vertexOffset})
}

// CmdPipelineBarrier implements interface
func (d *Device) CmdPipelineBarrier(cb gfx.CommandBuffer, srcStage, dstStage gfx.PipelineStage, barriers []gfx.ImageBarrier) {
	d.record(cb, Command{Op: OpPipelineBarrier, SrcStage: srcStage, DstStage: dstStage, Barriers: append([]gfx.ImageBarrier(nil), barriers...)})
}

// CmdCopyBuffer implements interface. The copy happens when the command buffer is submitted.
func (d *Device) CmdCopyBuffer(cb gfx.CommandBuffer, src, dst gfx.Buffer, regions []gfx.BufferCopy) {
	d.record(cb, Command{Op: OpCopyBuffer, Buffers: []gfx.Buffer{src, dst}, Copies: append([]gfx.BufferCopy(nil), regions...)})
}

// CmdCopyBufferToImage implements interface
func (d *Device) CmdCopyBufferToImage(cb gfx.CommandBuffer, src gfx.Buffer, dst gfx.Image, layout gfx.ImageLayout, regions []gfx.BufferImageCopy) {
	d.record(cb, Command{Op: OpCopyBufferToImage, Buffers: []gfx.Buffer{src}, Image: dst, ImageLayout: layout, Count: uint32(len(regions))})
}

// executeLocked runs the commands that have an effect on memory contents.
func (d *Device) executeLocked(commands []Command) {
	for _, c := range commands {
		if c.Op != OpCopyBuffer {
			continue
		}
		src, sok := d.buffers[c.Buffers[0]]
		dst, dok := d.buffers[c.Buffers[1]]
		if !sok || !dok {
			d.violation("copy between unknown buffers %v", c.Buffers)
			continue
		}
		sm, dm := d.memories[src.memory], d.memories[dst.memory]
		if sm == nil || dm == nil {
			d.violation("copy between unbound buffers %v", c.Buffers)
			continue
		}
		for _, r := range c.Copies {
			copy(dm.device[dst.offset+r.DstOffset:dst.offset+r.DstOffset+r.Size],
				sm.device[src.offset+r.SrcOffset:src.offset+r.SrcOffset+r.Size])
		}
	}
}
