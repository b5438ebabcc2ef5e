// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Enumerations carry the numeric values of their Vulkan counterparts,
// so the Vulkan backend converts them with plain casts.

// Format describes the layout of texel data.
type Format uint32

// Supported formats
const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatX8D24UnormPack32   Format = 125
	FormatD32Sfloat          Format = 126
	FormatS8Uint             Format = 127
	FormatD16UnormS8Uint     Format = 128
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
)

// ColorSpace of a presentable surface format.
type ColorSpace uint32

// ColorSpaceSrgbNonlinear is the only color space every surface supports.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// ImageLayout of an image subresource.
type ImageLayout uint32

// Image layouts
const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPreinitialized                ImageLayout = 8
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutColorAttachmentOptimal:
		return "ColorAttachmentOptimal"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachmentOptimal"
	case ImageLayoutDepthStencilReadOnlyOptimal:
		return "DepthStencilReadOnlyOptimal"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case ImageLayoutTransferSrcOptimal:
		return "TransferSrcOptimal"
	case ImageLayoutTransferDstOptimal:
		return "TransferDstOptimal"
	case ImageLayoutPreinitialized:
		return "Preinitialized"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	}
	return "Unknown"
}

// ImageUsage flags
type ImageUsage uint32

// Image usage bits
const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
	ImageUsageTransientAttachment    ImageUsage = 0x40
	ImageUsageInputAttachment        ImageUsage = 0x80
)

// BufferUsage flags
type BufferUsage uint32

// Buffer usage bits
const (
	BufferUsageTransferSrc BufferUsage = 0x001
	BufferUsageTransferDst BufferUsage = 0x002
	BufferUsageUniform     BufferUsage = 0x010
	BufferUsageStorage     BufferUsage = 0x020
	BufferUsageIndex       BufferUsage = 0x040
	BufferUsageVertex      BufferUsage = 0x080
	BufferUsageIndirect    BufferUsage = 0x100
)

// MemoryProperty flags of a memory type
type MemoryProperty uint32

// Memory property bits
const (
	MemoryPropertyDeviceLocal     MemoryProperty = 0x01
	MemoryPropertyHostVisible     MemoryProperty = 0x02
	MemoryPropertyHostCoherent    MemoryProperty = 0x04
	MemoryPropertyHostCached      MemoryProperty = 0x08
	MemoryPropertyLazilyAllocated MemoryProperty = 0x10
)

// ImageAspect flags
type ImageAspect uint32

// Image aspect bits
const (
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

// Access flags
type Access uint32

// Access bits
const (
	AccessIndirectCommandRead         Access = 0x00001
	AccessIndexRead                   Access = 0x00002
	AccessVertexAttributeRead         Access = 0x00004
	AccessUniformRead                 Access = 0x00008
	AccessInputAttachmentRead         Access = 0x00010
	AccessShaderRead                  Access = 0x00020
	AccessShaderWrite                 Access = 0x00040
	AccessColorAttachmentRead         Access = 0x00080
	AccessColorAttachmentWrite        Access = 0x00100
	AccessDepthStencilAttachmentRead  Access = 0x00200
	AccessDepthStencilAttachmentWrite Access = 0x00400
	AccessTransferRead                Access = 0x00800
	AccessTransferWrite               Access = 0x01000
	AccessHostRead                    Access = 0x02000
	AccessHostWrite                   Access = 0x04000
	AccessMemoryRead                  Access = 0x08000
	AccessMemoryWrite                 Access = 0x10000
)

// PipelineStage flags
type PipelineStage uint32

// Pipeline stage bits
const (
	PipelineStageTopOfPipe             PipelineStage = 0x00001
	PipelineStageDrawIndirect          PipelineStage = 0x00002
	PipelineStageVertexInput           PipelineStage = 0x00004
	PipelineStageVertexShader          PipelineStage = 0x00008
	PipelineStageFragmentShader        PipelineStage = 0x00080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00100
	PipelineStageLateFragmentTests     PipelineStage = 0x00200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00400
	PipelineStageComputeShader         PipelineStage = 0x00800
	PipelineStageTransfer              PipelineStage = 0x01000
	PipelineStageBottomOfPipe          PipelineStage = 0x02000
	PipelineStageHost                  PipelineStage = 0x04000
	PipelineStageAllGraphics           PipelineStage = 0x08000
	PipelineStageAllCommands           PipelineStage = 0x10000
)

// QueueFlags describe queue family capabilities
type QueueFlags uint32

// Queue capability bits
const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

// PhysicalDeviceType classifies a physical device
type PhysicalDeviceType uint32

// Physical device types
const (
	PhysicalDeviceTypeOther      PhysicalDeviceType = 0
	PhysicalDeviceTypeIntegrated PhysicalDeviceType = 1
	PhysicalDeviceTypeDiscrete   PhysicalDeviceType = 2
	PhysicalDeviceTypeVirtual    PhysicalDeviceType = 3
	PhysicalDeviceTypeCPU        PhysicalDeviceType = 4
)

func (t PhysicalDeviceType) String() string {
	switch t {
	case PhysicalDeviceTypeIntegrated:
		return "integrated"
	case PhysicalDeviceTypeDiscrete:
		return "discrete"
	case PhysicalDeviceTypeVirtual:
		return "virtual"
	case PhysicalDeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// PresentMode of a swapchain
type PresentMode uint32

// Present modes
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// CompositeAlpha flags of a surface
type CompositeAlpha uint32

// Composite alpha bits
const (
	CompositeAlphaOpaque         CompositeAlpha = 0x1
	CompositeAlphaPreMultiplied  CompositeAlpha = 0x2
	CompositeAlphaPostMultiplied CompositeAlpha = 0x4
	CompositeAlphaInherit        CompositeAlpha = 0x8
)

// SurfaceTransform flags
type SurfaceTransform uint32

// SurfaceTransformIdentity leaves presented images untouched
const SurfaceTransformIdentity SurfaceTransform = 0x1

// AttachmentLoadOp at the start of a render pass
type AttachmentLoadOp uint32

// Load operations
const (
	AttachmentLoadOpLoad     AttachmentLoadOp = 0
	AttachmentLoadOpClear    AttachmentLoadOp = 1
	AttachmentLoadOpDontCare AttachmentLoadOp = 2
)

// AttachmentStoreOp at the end of a render pass
type AttachmentStoreOp uint32

// Store operations
const (
	AttachmentStoreOpStore    AttachmentStoreOp = 0
	AttachmentStoreOpDontCare AttachmentStoreOp = 1
)

// Dependency flags of a subpass dependency
type Dependency uint32

// DependencyByRegion makes a dependency framebuffer-local
const DependencyByRegion Dependency = 0x1

// SubpassExternal refers to operations outside of a render pass
const SubpassExternal = ^uint32(0)

// ShaderStage flags
type ShaderStage uint32

// Shader stage bits
const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageFragment ShaderStage = 0x10
)

// DescriptorType of a descriptor binding
type DescriptorType uint32

// Descriptor types
const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
)

// Filter for texture lookups
type Filter uint32

// Filters
const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// SamplerAddressMode outside of [0,1]
type SamplerAddressMode uint32

// Address modes
const (
	SamplerAddressModeRepeat         SamplerAddressMode = 0
	SamplerAddressModeMirroredRepeat SamplerAddressMode = 1
	SamplerAddressModeClampToEdge    SamplerAddressMode = 2
)

// IndexType of an index buffer
type IndexType uint32

// Index types
const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// CullMode of the rasterizer
type CullMode uint32

// Cull modes
const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

// FrontFace winding
type FrontFace uint32

// Front face windings
const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

// CompareOp for depth testing
type CompareOp uint32

// Compare operations
const (
	CompareOpLess        CompareOp = 1
	CompareOpLessOrEqual CompareOp = 3
	CompareOpAlways      CompareOp = 7
)

// BlendFactor for color blending
type BlendFactor uint32

// Blend factors
const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

// PrimitiveTopology of input assembly
type PrimitiveTopology uint32

// PrimitiveTopologyTriangleList is the only topology the renderer uses
const PrimitiveTopologyTriangleList PrimitiveTopology = 3
