// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// NullHandle is the zero value of every handle type.
const NullHandle = 0

// Handles to backend objects. They are opaque and only meaningful
// to the Device that created them.
type (
	Surface             uint64
	Queue               uint64
	Memory              uint64
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	DescriptorSetLayout uint64
	PipelineLayout      uint64
	Pipeline            uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
	Swapchain           uint64
)
