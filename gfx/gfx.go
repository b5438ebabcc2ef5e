// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the explicit GPU interface that renderers are written against.
// It mirrors the shape of Vulkan closely: objects are referred to by typed handles,
// enumerations carry Vulkan's numeric values and synchronization is explicit.
// Backends (vkr for Vulkan, gfxtest for tests) implement Instance and Device.
package gfx

import "time"

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ReleaseFunc adapts a function to the Releasable interface.
type ReleaseFunc func()

// Release implements interface
func (f ReleaseFunc) Release() {
	f()
}

// Instance is the entry point of a backend. It knows the physical devices
// present in the system and the presentation surface, if any.
type Instance interface {

	// PhysicalDevices returns info for each physical device, in enumeration order.
	// Queue family present support is reported against Surface().
	PhysicalDevices() []PhysicalDeviceInfo

	// Surface returns the presentation surface, NullHandle when headless.
	Surface() Surface

	// CreateDevice creates a logical device on the physical device
	// with the given enumeration index.
	CreateDevice(physical int, info DeviceCreateInfo) (Device, error)

	// Destroy destroys the instance and the surface.
	Destroy()
}

// Device is a logical device. All methods must be called from one goroutine
// unless stated otherwise; command recording into one command buffer is never concurrent.
type Device interface {
	// Queue returns the queue with index within family.
	Queue(family, index uint32) Queue

	// WaitIdle blocks until the device has no pending work.
	WaitIdle() error

	// Memory
	AllocateMemory(size uint64, memoryType uint32) (Memory, error)
	FreeMemory(Memory)
	MapMemory(mem Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(Memory)
	FlushMemory(mem Memory, offset, size uint64) error

	// Buffers
	CreateBuffer(info BufferCreateInfo) (Buffer, MemoryRequirements, error)
	BindBufferMemory(buf Buffer, mem Memory, offset uint64) error
	DestroyBuffer(Buffer)

	// Images
	CreateImage(info ImageCreateInfo) (Image, MemoryRequirements, error)
	BindImageMemory(img Image, mem Memory, offset uint64) error
	DestroyImage(Image)
	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(ImageView)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)
	DestroySampler(Sampler)
	FormatSupported(format Format, usage ImageUsage) bool

	// Render passes
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(RenderPass)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(Framebuffer)

	// Pipelines
	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(ShaderModule)
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(DescriptorSetLayout)
	CreatePipelineLayout(info PipelineLayoutCreateInfo) (PipelineLayout, error)
	DestroyPipelineLayout(PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(Pipeline)

	// Descriptors
	CreateDescriptorPool(info DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSet(pool DescriptorPool, set DescriptorSet)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	// Commands
	CreateCommandPool(family uint32, resettable bool) (CommandPool, error)
	DestroyCommandPool(CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cbs []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdBeginRenderPass(cb CommandBuffer, info RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, offset uint64, indexType IndexType)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdPipelineBarrier(cb CommandBuffer, srcStage, dstStage PipelineStage, barriers []ImageBarrier)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout ImageLayout, regions []BufferImageCopy)

	// Synchronization
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(Fence)
	// WaitForFences returns ErrTimeout when timeout elapses before all fences signal.
	WaitForFences(fences []Fence, timeout time.Duration) error
	ResetFences(fences []Fence) error
	QueueSubmit(queue Queue, submits []SubmitInfo, fence Fence) error

	// Presentation
	SurfaceSupport(family uint32, surface Surface) (bool, error)
	SurfaceCapabilities(surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(surface Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(surface Surface) ([]PresentMode, error)
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	DestroySwapchain(Swapchain)
	SwapchainImages(Swapchain) ([]Image, error)
	// AcquireNextImage returns ErrOutOfDate, ErrTimeout, or the index together
	// with ErrSuboptimal when the image is usable but no longer matches the surface.
	AcquireNextImage(sc Swapchain, timeout time.Duration, semaphore Semaphore) (uint32, error)
	// QueuePresent returns ErrOutOfDate or ErrSuboptimal when the swapchain
	// needs to be recreated.
	QueuePresent(queue Queue, info PresentInfo) error

	// Destroy destroys the logical device. Every object created from it
	// must be destroyed beforehand.
	Destroy()
}
