// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Extent2D is a two dimensional size in pixels
type Extent2D struct {
	Width, Height uint32
}

// Offset2D is a two dimensional offset in pixels
type Offset2D struct {
	X, Y int32
}

// Rect2D is a rectangle in framebuffer space
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport transform
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// QueueFamily describes one queue family of a physical device
type QueueFamily struct {
	Flags QueueFlags
	Count uint32

	// PresentSupport reports whether the family can present to the instance surface.
	PresentSupport bool
}

// Supports checks whether the family has every capability in mask
func (q QueueFamily) Supports(mask QueueFlags) bool {
	return q.Flags&mask == mask
}

// MemoryType of a physical device
type MemoryType struct {
	Flags MemoryProperty
	Heap  uint32
}

// MemoryHeap of a physical device
type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

// MemoryProperties lists the memory types and heaps of a physical device.
// Index in Types is the memory type index used for allocation.
type MemoryProperties struct {
	Types []MemoryType
	Heaps []MemoryHeap
}

// PhysicalDeviceInfo contains information about a physical device
type PhysicalDeviceInfo struct {
	Name          string
	Type          PhysicalDeviceType
	ID            int
	VendorID      int
	DriverVersion int
	APIVersion    string

	QueueFamilies []QueueFamily
	Memory        MemoryProperties
	Extensions    []string
	Layers        []string

	// Invalid is set when some of the information could not be queried.
	Invalid bool
}

// TotalMemory sums the size of all memory heaps
func (p PhysicalDeviceInfo) TotalMemory() uint64 {
	var total uint64
	for _, h := range p.Memory.Heaps {
		total += h.Size
	}
	return total
}

// HasExtension checks if the device advertises an extension
func (p PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, e := range p.Extensions {
		if e == name {
			return true
		}
	}
	return false
}

// DeviceQueueCreateInfo requests Count queues from one family
type DeviceQueueCreateInfo struct {
	Family     uint32
	Count      uint32
	Priorities []float32
}

// DeviceFeatures that can be enabled on a logical device
type DeviceFeatures struct {
	SamplerAnisotropy bool
	FillModeNonSolid  bool
}

// DeviceCreateInfo configures a logical device
type DeviceCreateInfo struct {
	Queues     []DeviceQueueCreateInfo
	Extensions []string
	Features   DeviceFeatures
}

// MemoryRequirements of a buffer or an image
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// BufferCreateInfo configures a buffer
type BufferCreateInfo struct {
	Size  uint64
	Usage BufferUsage
}

// ImageCreateInfo configures a two dimensional image
type ImageCreateInfo struct {
	Width, Height uint32
	MipLevels     uint32
	Layers        uint32
	Format        Format
	Usage         ImageUsage
	Linear        bool
}

// ImageSubresourceRange selects mip levels and layers of an image
type ImageSubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// ImageViewCreateInfo configures an image view.
// Array views are created when Range.LayerCount is greater than one.
type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Range  ImageSubresourceRange
}

// SamplerCreateInfo configures a sampler
type SamplerCreateInfo struct {
	MagFilter     Filter
	MinFilter     Filter
	AddressMode   SamplerAddressMode
	MaxAnisotropy float32
	MaxLod        float32
}

// AttachmentDescription of one render pass attachment
type AttachmentDescription struct {
	Format         Format
	LoadOp         AttachmentLoadOp
	StoreOp        AttachmentStoreOp
	StencilLoadOp  AttachmentLoadOp
	StencilStoreOp AttachmentStoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// AttachmentReference used by a subpass
type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

// SubpassDescription of a graphics subpass
type SubpassDescription struct {
	ColorAttachments []AttachmentReference

	// DepthStencilAttachment is nil when the subpass has no depth.
	DepthStencilAttachment *AttachmentReference
}

// SubpassDependency orders operations between subpasses
type SubpassDependency struct {
	SrcSubpass    uint32
	DstSubpass    uint32
	SrcStageMask  PipelineStage
	DstStageMask  PipelineStage
	SrcAccessMask Access
	DstAccessMask Access
	Flags         Dependency
}

// RenderPassCreateInfo configures a render pass
type RenderPassCreateInfo struct {
	Attachments  []AttachmentDescription
	Subpasses    []SubpassDescription
	Dependencies []SubpassDependency
}

// FramebufferCreateInfo configures a framebuffer
type FramebufferCreateInfo struct {
	RenderPass    RenderPass
	Attachments   []ImageView
	Width, Height uint32
	Layers        uint32
}

// ClearValue is either a color or a depth/stencil value.
type ClearValue struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
	DepthStencil bool
}

// ClearColor creates a color clear value
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

// ClearDepthStencil creates a depth/stencil clear value
func ClearDepthStencil(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, DepthStencil: true}
}

// RenderPassBeginInfo starts a render pass instance
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	ClearValues []ClearValue
}

// DescriptorSetLayoutBinding of one descriptor
type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// PushConstantRange visible to shader stages
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutCreateInfo configures a pipeline layout
type PipelineLayoutCreateInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

// DescriptorPoolSize is the number of descriptors of a type in a pool
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolCreateInfo configures a descriptor pool
type DescriptorPoolCreateInfo struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize

	// FreeDescriptorSet allows individual sets to be returned to the pool.
	FreeDescriptorSet bool
}

// DescriptorBufferInfo refers to a buffer range
type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorImageInfo refers to a sampled image
type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// DescriptorWrite updates one binding of a descriptor set.
// Exactly one of Buffers and Images is used, depending on Type.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffers []DescriptorBufferInfo
	Images  []DescriptorImageInfo
}

// ShaderStageInfo is one programmable stage of a pipeline
type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

// VertexBinding describes a vertex buffer binding
type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

// VertexAttribute describes one vertex attribute
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// ColorBlendAttachment state of one color attachment
type ColorBlendAttachment struct {
	BlendEnable bool
	SrcColor    BlendFactor
	DstColor    BlendFactor
	SrcAlpha    BlendFactor
	DstAlpha    BlendFactor
}

// GraphicsPipelineCreateInfo configures a graphics pipeline with dynamic viewport and scissor
type GraphicsPipelineCreateInfo struct {
	Stages           []ShaderStageInfo
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	CullMode         CullMode
	FrontFace        FrontFace
	DepthTest        bool
	DepthWrite       bool
	DepthCompare     CompareOp
	ColorBlend       []ColorBlendAttachment
	Layout           PipelineLayout
	RenderPass       RenderPass
	Subpass          uint32
}

// ImageBarrier is an image memory barrier with a layout transition
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	Range     ImageSubresourceRange
}

// BufferCopy region
type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

// BufferImageCopy region
type BufferImageCopy struct {
	BufferOffset  uint64
	Aspect        ImageAspect
	MipLevel      uint32
	BaseLayer     uint32
	LayerCount    uint32
	Width, Height uint32
}

// SubmitInfo for one batch of command buffers
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

// SurfaceCapabilities of a presentation surface
type SurfaceCapabilities struct {
	MinImageCount uint32

	// MaxImageCount is zero when there is no limit.
	MaxImageCount uint32

	// CurrentExtent is UndefinedExtent when the surface size
	// is determined by the swapchain extent.
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedTransforms     SurfaceTransform
	CurrentTransform        SurfaceTransform
	SupportedCompositeAlpha CompositeAlpha
	SupportedUsage          ImageUsage
}

// UndefinedExtent is reported as the current extent of surfaces without a fixed size
const UndefinedExtent = 0xFFFFFFFF

// SurfaceFormat is a supported format/color space pair
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SwapchainCreateInfo configures a swapchain
type SwapchainCreateInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         Format
	ColorSpace     ColorSpace
	Extent         Extent2D
	Usage          ImageUsage
	PreTransform   SurfaceTransform
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
	OldSwapchain   Swapchain
}

// PresentInfo for presenting one swapchain image
type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}
