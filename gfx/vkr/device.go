// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

type memory struct {
	memory vk.DeviceMemory
	size   uint64
}

type swapchain struct {
	swapchain vk.Swapchain
	images    []gfx.Image
}

// Device implements gfx.Device. Vulkan objects are kept in
// per-kind tables and handed out as opaque handles.
type Device struct {
	instance       *Instance
	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	pipelineCache  vk.PipelineCache

	memProperties       vk.PhysicalDeviceMemoryProperties
	nonCoherentAtomSize uint64

	mutex sync.Mutex
	next  uint64

	queues         map[[2]uint32]gfx.Queue
	deviceQueues   map[uint64]vk.Queue
	memories       map[uint64]*memory
	buffers        map[uint64]vk.Buffer
	images         map[uint64]vk.Image
	swapchainOwned map[uint64]bool
	views          map[uint64]vk.ImageView
	samplers       map[uint64]vk.Sampler
	renderPasses   map[uint64]vk.RenderPass
	framebuffers   map[uint64]vk.Framebuffer
	shaderModules  map[uint64]vk.ShaderModule
	setLayouts     map[uint64]vk.DescriptorSetLayout
	layouts        map[uint64]vk.PipelineLayout
	pipelines      map[uint64]vk.Pipeline
	descPools      map[uint64]vk.DescriptorPool
	descSets       map[uint64]vk.DescriptorSet
	cmdPools       map[uint64]vk.CommandPool
	cmdBuffers     map[uint64]vk.CommandBuffer
	semaphores     map[uint64]vk.Semaphore
	fences         map[uint64]vk.Fence
	swapchains     map[uint64]*swapchain
}

func newDevice(instance *Instance, pd vk.PhysicalDevice, logicalDevice vk.Device) (*Device, error) {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(logicalDevice, &pcci, nil, &pipelineCache)); err != nil {
		vk.DestroyDevice(logicalDevice, nil)
		return nil, errors.New("vk.CreatePipelineCache(): " + err.Error())
	}

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memProperties)
	memProperties.Deref()

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	properties.Limits.Deref()

	return &Device{
		instance:            instance,
		physicalDevice:      pd,
		logicalDevice:       logicalDevice,
		pipelineCache:       pipelineCache,
		memProperties:       memProperties,
		nonCoherentAtomSize: uint64(properties.Limits.NonCoherentAtomSize),
		queues:              make(map[[2]uint32]gfx.Queue),
		deviceQueues:        make(map[uint64]vk.Queue),
		memories:            make(map[uint64]*memory),
		buffers:             make(map[uint64]vk.Buffer),
		images:              make(map[uint64]vk.Image),
		swapchainOwned:      make(map[uint64]bool),
		views:               make(map[uint64]vk.ImageView),
		samplers:            make(map[uint64]vk.Sampler),
		renderPasses:        make(map[uint64]vk.RenderPass),
		framebuffers:        make(map[uint64]vk.Framebuffer),
		shaderModules:       make(map[uint64]vk.ShaderModule),
		setLayouts:          make(map[uint64]vk.DescriptorSetLayout),
		layouts:             make(map[uint64]vk.PipelineLayout),
		pipelines:           make(map[uint64]vk.Pipeline),
		descPools:           make(map[uint64]vk.DescriptorPool),
		descSets:            make(map[uint64]vk.DescriptorSet),
		cmdPools:            make(map[uint64]vk.CommandPool),
		cmdBuffers:          make(map[uint64]vk.CommandBuffer),
		semaphores:          make(map[uint64]vk.Semaphore),
		fences:              make(map[uint64]vk.Fence),
		swapchains:          make(map[uint64]*swapchain),
	}, nil
}

func put[V any](d *Device, table map[uint64]V, v V) uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.next++
	table[d.next] = v
	return d.next
}

func get[V any](d *Device, table map[uint64]V, h uint64) V {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return table[h]
}

func take[V any](d *Device, table map[uint64]V, h uint64) (V, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	v, ok := table[h]
	delete(table, h)
	return v, ok
}

// Inner returns the vk.Device
func (d *Device) Inner() interface{} {
	return d.logicalDevice
}

// Queue implements interface
func (d *Device) Queue(family, index uint32) gfx.Queue {
	d.mutex.Lock()
	if q, ok := d.queues[[2]uint32{family, index}]; ok {
		d.mutex.Unlock()
		return q
	}
	d.mutex.Unlock()

	var deviceQueue vk.Queue
	vk.GetDeviceQueue(d.logicalDevice, family, index, &deviceQueue)
	q := gfx.Queue(put(d, d.deviceQueues, deviceQueue))

	d.mutex.Lock()
	d.queues[[2]uint32{family, index}] = q
	d.mutex.Unlock()
	return q
}

// WaitIdle implements interface
func (d *Device) WaitIdle() error {
	return resultError("vk.DeviceWaitIdle()", vk.DeviceWaitIdle(d.logicalDevice))
}

// AllocateMemory implements interface
func (d *Device) AllocateMemory(size uint64, memoryType uint32) (gfx.Memory, error) {
	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}

	var deviceMemory vk.DeviceMemory
	if err := resultError("vk.AllocateMemory()", vk.AllocateMemory(d.logicalDevice, &mai, nil, &deviceMemory)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Memory(put(d, d.memories, &memory{memory: deviceMemory, size: size})), nil
}

// FreeMemory implements interface
func (d *Device) FreeMemory(h gfx.Memory) {
	if m, ok := take(d, d.memories, uint64(h)); ok {
		vk.FreeMemory(d.logicalDevice, m.memory, nil)
	}
}

// MapMemory implements interface
func (d *Device) MapMemory(h gfx.Memory, offset, size uint64) ([]byte, error) {
	m := get(d, d.memories, uint64(h))
	if m == nil {
		return nil, gfx.ErrUnknownHandle
	}
	if offset+size > m.size {
		return nil, fmt.Errorf("vkr: mapping [%d, %d) exceeds allocation of %d bytes", offset, offset+size, m.size)
	}

	var mappedMemory unsafe.Pointer
	if err := resultError("vk.MapMemory()", vk.MapMemory(d.logicalDevice, m.memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &mappedMemory)); err != nil {
		return nil, err
	}
	return *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(mappedMemory),
		Len:  int(size),
		Cap:  int(size),
	})), nil
}

// UnmapMemory implements interface
func (d *Device) UnmapMemory(h gfx.Memory) {
	if m := get(d, d.memories, uint64(h)); m != nil {
		vk.UnmapMemory(d.logicalDevice, m.memory)
	}
}

// FlushMemory implements interface. The range is widened to the
// non-coherent atom size of the device.
func (d *Device) FlushMemory(h gfx.Memory, offset, size uint64) error {
	m := get(d, d.memories, uint64(h))
	if m == nil {
		return gfx.ErrUnknownHandle
	}

	atom := d.nonCoherentAtomSize
	if atom == 0 {
		atom = 1
	}
	start := offset / atom * atom
	end := (offset + size + atom - 1) / atom * atom
	flushSize := vk.DeviceSize(end - start)
	if end >= m.size {
		flushSize = vk.DeviceSize(vk.WholeSize)
	}

	mmr := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: m.memory,
		Offset: vk.DeviceSize(start),
		Size:   flushSize,
	}}
	return resultError("vk.FlushMappedMemoryRanges()", vk.FlushMappedMemoryRanges(d.logicalDevice, 1, mmr))
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer(info gfx.BufferCreateInfo) (gfx.Buffer, gfx.MemoryRequirements, error) {
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := resultError("vk.CreateBuffer()", vk.CreateBuffer(d.logicalDevice, &bci, nil, &buffer)); err != nil {
		return gfx.NullHandle, gfx.MemoryRequirements{}, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logicalDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	return gfx.Buffer(put(d, d.buffers, buffer)), requirements(memoryRequirements), nil
}

func requirements(r vk.MemoryRequirements) gfx.MemoryRequirements {
	return gfx.MemoryRequirements{
		Size:           uint64(r.Size),
		Alignment:      uint64(r.Alignment),
		MemoryTypeBits: r.MemoryTypeBits,
	}
}

// BindBufferMemory implements interface
func (d *Device) BindBufferMemory(buf gfx.Buffer, mem gfx.Memory, offset uint64) error {
	d.mutex.Lock()
	buffer, okBuf := d.buffers[uint64(buf)]
	m, okMem := d.memories[uint64(mem)]
	d.mutex.Unlock()
	if !okBuf || !okMem {
		return gfx.ErrUnknownHandle
	}
	return resultError("vk.BindBufferMemory()", vk.BindBufferMemory(d.logicalDevice, buffer, m.memory, vk.DeviceSize(offset)))
}

// DestroyBuffer implements interface
func (d *Device) DestroyBuffer(h gfx.Buffer) {
	if buffer, ok := take(d, d.buffers, uint64(h)); ok {
		vk.DestroyBuffer(d.logicalDevice, buffer, nil)
	}
}

// CreateImage implements interface
func (d *Device) CreateImage(info gfx.ImageCreateInfo) (gfx.Image, gfx.MemoryRequirements, error) {
	tiling := vk.ImageTilingOptimal
	if info.Linear {
		tiling = vk.ImageTilingLinear
	}
	mipLevels, layers := info.MipLevels, info.Layers
	if mipLevels == 0 {
		mipLevels = 1
	}
	if layers == 0 {
		layers = 1
	}

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        tiling,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if err := resultError("vk.CreateImage()", vk.CreateImage(d.logicalDevice, &ici, nil, &image)); err != nil {
		return gfx.NullHandle, gfx.MemoryRequirements{}, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	return gfx.Image(put(d, d.images, image)), requirements(memoryRequirements), nil
}

// BindImageMemory implements interface
func (d *Device) BindImageMemory(img gfx.Image, mem gfx.Memory, offset uint64) error {
	d.mutex.Lock()
	image, okImg := d.images[uint64(img)]
	m, okMem := d.memories[uint64(mem)]
	d.mutex.Unlock()
	if !okImg || !okMem {
		return gfx.ErrUnknownHandle
	}
	return resultError("vk.BindImageMemory()", vk.BindImageMemory(d.logicalDevice, image, m.memory, vk.DeviceSize(offset)))
}

// DestroyImage implements interface. Swapchain images are owned by their swapchain.
func (d *Device) DestroyImage(h gfx.Image) {
	d.mutex.Lock()
	owned := d.swapchainOwned[uint64(h)]
	d.mutex.Unlock()
	if owned {
		return
	}
	if image, ok := take(d, d.images, uint64(h)); ok {
		vk.DestroyImage(d.logicalDevice, image, nil)
	}
}

// CreateImageView implements interface
func (d *Device) CreateImageView(info gfx.ImageViewCreateInfo) (gfx.ImageView, error) {
	d.mutex.Lock()
	image, ok := d.images[uint64(info.Image)]
	d.mutex.Unlock()
	if !ok {
		return gfx.NullHandle, gfx.ErrUnknownHandle
	}
	viewType := vk.ImageViewType2d
	if info.Range.LayerCount > 1 {
		viewType = vk.ImageViewType2dArray
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(info.Range),
	}

	var view vk.ImageView
	if err := resultError("vk.CreateImageView()", vk.CreateImageView(d.logicalDevice, &ivci, nil, &view)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.ImageView(put(d, d.views, view)), nil
}

// DestroyImageView implements interface
func (d *Device) DestroyImageView(h gfx.ImageView) {
	if view, ok := take(d, d.views, uint64(h)); ok {
		vk.DestroyImageView(d.logicalDevice, view, nil)
	}
}

// CreateSampler implements interface
func (d *Device) CreateSampler(info gfx.SamplerCreateInfo) (gfx.Sampler, error) {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		AddressModeU:            vk.SamplerAddressMode(info.AddressMode),
		AddressModeV:            vk.SamplerAddressMode(info.AddressMode),
		AddressModeW:            vk.SamplerAddressMode(info.AddressMode),
		AnisotropyEnable:        bool32(info.MaxAnisotropy > 1),
		MaxAnisotropy:           info.MaxAnisotropy,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  info.MaxLod,
	}

	var sampler vk.Sampler
	if err := resultError("vk.CreateSampler()", vk.CreateSampler(d.logicalDevice, &sci, nil, &sampler)); err != nil {
		return gfx.NullHandle, err
	}
	return gfx.Sampler(put(d, d.samplers, sampler)), nil
}

// DestroySampler implements interface
func (d *Device) DestroySampler(h gfx.Sampler) {
	if sampler, ok := take(d, d.samplers, uint64(h)); ok {
		vk.DestroySampler(d.logicalDevice, sampler, nil)
	}
}

// FormatSupported implements interface. Only optimal tiling is considered.
func (d *Device) FormatSupported(format gfx.Format, usage gfx.ImageUsage) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, vk.Format(format), &props)
	props.Deref()

	var required vk.FormatFeatureFlags
	if usage&gfx.ImageUsageSampled != 0 {
		required |= vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)
	}
	if usage&gfx.ImageUsageStorage != 0 {
		required |= vk.FormatFeatureFlags(vk.FormatFeatureStorageImageBit)
	}
	if usage&gfx.ImageUsageColorAttachment != 0 {
		required |= vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit)
	}
	if usage&gfx.ImageUsageDepthStencilAttachment != 0 {
		required |= vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	}
	if props.OptimalTilingFeatures == 0 {
		return false
	}
	return props.OptimalTilingFeatures&required == required
}

// Destroy implements interface
func (d *Device) Destroy() {
	vk.DestroyPipelineCache(d.logicalDevice, d.pipelineCache, nil)
	vk.DestroyDevice(d.logicalDevice, nil)
}
