// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfxtest implements gfx in memory, for tests that need a device
// but no GPU. It records commands, keeps host and device views of
// non-coherent memory apart until they are flushed, lets the test decide
// when submissions complete and counts every live object so leaks show up.
package gfxtest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/devblok/umbra/gfx"
)

// Object kinds used by live object accounting
const (
	KindMemory              = "memory"
	KindBuffer              = "buffer"
	KindImage               = "image"
	KindImageView           = "imageView"
	KindSampler             = "sampler"
	KindRenderPass          = "renderPass"
	KindFramebuffer         = "framebuffer"
	KindShaderModule        = "shaderModule"
	KindDescriptorSetLayout = "descriptorSetLayout"
	KindPipelineLayout      = "pipelineLayout"
	KindPipeline            = "pipeline"
	KindDescriptorPool      = "descriptorPool"
	KindDescriptorSet       = "descriptorSet"
	KindCommandPool         = "commandPool"
	KindCommandBuffer       = "commandBuffer"
	KindSemaphore           = "semaphore"
	KindFence               = "fence"
	KindSwapchain           = "swapchain"
)

// Memory type indices of DefaultPhysicalDevice
const (
	MemoryTypeDeviceLocal = iota
	MemoryTypeHostCoherent
	MemoryTypeHostCached
	MemoryTypeDeviceHostCoherent
)

// DefaultSurfaceHandle is the surface reported by instances created with a surface.
const DefaultSurfaceHandle gfx.Surface = 0x5f

// DefaultPhysicalDevice describes a discrete GPU with a single queue family
// capable of everything, including presentation.
func DefaultPhysicalDevice() gfx.PhysicalDeviceInfo {
	return gfx.PhysicalDeviceInfo{
		Name:       "gfxtest discrete",
		Type:       gfx.PhysicalDeviceTypeDiscrete,
		ID:         1,
		VendorID:   0x10de,
		APIVersion: "1.1.0",
		QueueFamilies: []gfx.QueueFamily{{
			Flags:          gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer,
			Count:          4,
			PresentSupport: true,
		}},
		Memory: gfx.MemoryProperties{
			Types: []gfx.MemoryType{
				{Flags: gfx.MemoryPropertyDeviceLocal, Heap: 0},
				{Flags: gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCoherent, Heap: 1},
				{Flags: gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCached, Heap: 1},
				{Flags: gfx.MemoryPropertyDeviceLocal | gfx.MemoryPropertyHostVisible | gfx.MemoryPropertyHostCoherent, Heap: 0},
			},
			Heaps: []gfx.MemoryHeap{
				{Size: 4 << 30, DeviceLocal: true},
				{Size: 8 << 30},
			},
		},
		Extensions: []string{"VK_KHR_swapchain"},
	}
}

// DefaultSurface describes an 800x600 window surface supporting every present mode.
func DefaultSurface() SurfaceConfig {
	return SurfaceConfig{
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gfx.Extent2D{Width: 800, Height: 600},
			MinImageExtent:          gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gfx.Extent2D{Width: 4096, Height: 4096},
			SupportedTransforms:     gfx.SurfaceTransformIdentity,
			CurrentTransform:        gfx.SurfaceTransformIdentity,
			SupportedCompositeAlpha: gfx.CompositeAlphaOpaque | gfx.CompositeAlphaInherit,
			SupportedUsage:          gfx.ImageUsageColorAttachment | gfx.ImageUsageTransferDst,
		},
		Formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
			{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gfx.PresentMode{
			gfx.PresentModeFifo,
			gfx.PresentModeMailbox,
			gfx.PresentModeImmediate,
		},
	}
}

// SurfaceConfig is what the fake surface reports to queries.
type SurfaceConfig struct {
	Capabilities gfx.SurfaceCapabilities
	Formats      []gfx.SurfaceFormat
	PresentModes []gfx.PresentMode
}

// NewInstance creates an instance exposing the given physical devices.
// With no devices, DefaultPhysicalDevice is used.
func NewInstance(devices ...gfx.PhysicalDeviceInfo) *Instance {
	if len(devices) == 0 {
		devices = []gfx.PhysicalDeviceInfo{DefaultPhysicalDevice()}
	}
	surface := DefaultSurface()
	return &Instance{
		devices: devices,
		surface: &surface,
	}
}

// NewHeadlessInstance creates an instance without a presentation surface.
func NewHeadlessInstance(devices ...gfx.PhysicalDeviceInfo) *Instance {
	i := NewInstance(devices...)
	i.surface = nil
	return i
}

// Instance implements gfx.Instance
type Instance struct {
	mutex     sync.Mutex
	devices   []gfx.PhysicalDeviceInfo
	surface   *SurfaceConfig
	created   []*Device
	destroyed bool
}

// PhysicalDevices implements interface
func (i *Instance) PhysicalDevices() []gfx.PhysicalDeviceInfo {
	return i.devices
}

// Surface implements interface
func (i *Instance) Surface() gfx.Surface {
	if i.surface == nil {
		return gfx.NullHandle
	}
	return DefaultSurfaceHandle
}

// SurfaceConfig gives access to the surface reported to devices, nil when headless.
// Changing it affects every device created from the instance.
func (i *Instance) SurfaceConfig() *SurfaceConfig {
	return i.surface
}

// SetSurfaceExtent changes the current extent of the surface, as a window resize would.
func (i *Instance) SetSurfaceExtent(width, height uint32) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.surface.Capabilities.CurrentExtent = gfx.Extent2D{Width: width, Height: height}
}

// CreateDevice implements interface
func (i *Instance) CreateDevice(physical int, info gfx.DeviceCreateInfo) (gfx.Device, error) {
	if physical < 0 || physical >= len(i.devices) {
		return nil, fmt.Errorf("gfxtest: physical device %d does not exist", physical)
	}
	families := i.devices[physical].QueueFamilies
	for _, q := range info.Queues {
		if int(q.Family) >= len(families) {
			return nil, fmt.Errorf("gfxtest: queue family %d does not exist", q.Family)
		}
	}
	d := newDevice(i, i.devices[physical], info)
	i.mutex.Lock()
	i.created = append(i.created, d)
	i.mutex.Unlock()
	return d, nil
}

// Devices returns every device created from the instance
func (i *Instance) Devices() []*Device {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return append([]*Device(nil), i.created...)
}

// Destroyed reports whether Destroy was called
func (i *Instance) Destroyed() bool {
	return i.destroyed
}

// Destroy implements interface
func (i *Instance) Destroy() {
	i.destroyed = true
}

func newDevice(instance *Instance, physical gfx.PhysicalDeviceInfo, info gfx.DeviceCreateInfo) *Device {
	return &Device{
		instance:       instance,
		physical:       physical,
		createInfo:     info,
		autoComplete:   true,
		MemoryTypeBits: 1<<uint(len(physical.Memory.Types)) - 1,
		objects:        make(map[uint64]string),
		memories:       make(map[gfx.Memory]*memory),
		buffers:        make(map[gfx.Buffer]*buffer),
		images:         make(map[gfx.Image]*image),
		views:          make(map[gfx.ImageView]gfx.ImageViewCreateInfo),
		framebuffers:   make(map[gfx.Framebuffer]gfx.FramebufferCreateInfo),
		renderPasses:   make(map[gfx.RenderPass]gfx.RenderPassCreateInfo),
		pools:          make(map[gfx.DescriptorPool]*descriptorPool),
		sets:           make(map[gfx.DescriptorSet]*descriptorSet),
		cmdBuffers:     make(map[gfx.CommandBuffer]*commandBuffer),
		fences:         make(map[gfx.Fence]*fence),
		semaphores:     make(map[gfx.Semaphore]bool),
		swapchains:     make(map[gfx.Swapchain]*swapchain),
		unsupported:    make(map[gfx.Format]bool),
	}
}

// Device implements gfx.Device. It is safe for the test goroutine to complete
// submissions while the code under test waits on fences.
type Device struct {
	mutex sync.Mutex

	instance   *Instance
	physical   gfx.PhysicalDeviceInfo
	createInfo gfx.DeviceCreateInfo

	// MemoryTypeBits is reported in the requirements of every buffer and image.
	MemoryTypeBits uint32

	nextHandle uint64
	objects    map[uint64]string

	memories     map[gfx.Memory]*memory
	buffers      map[gfx.Buffer]*buffer
	images       map[gfx.Image]*image
	views        map[gfx.ImageView]gfx.ImageViewCreateInfo
	framebuffers map[gfx.Framebuffer]gfx.FramebufferCreateInfo
	renderPasses map[gfx.RenderPass]gfx.RenderPassCreateInfo
	pools        map[gfx.DescriptorPool]*descriptorPool
	sets         map[gfx.DescriptorSet]*descriptorSet
	cmdBuffers   map[gfx.CommandBuffer]*commandBuffer
	fences       map[gfx.Fence]*fence
	semaphores   map[gfx.Semaphore]bool
	swapchains   map[gfx.Swapchain]*swapchain
	unsupported  map[gfx.Format]bool

	autoComplete bool
	pending      []*submission
	submissions  []Submission
	presents     []Present

	swapchainsCreated int
	waitIdleCalls     int
	acquireErr        error
	presentErr        error

	violations []string
	destroyed  bool
}

// CreateInfo returns the info the device was created with
func (d *Device) CreateInfo() gfx.DeviceCreateInfo {
	return d.createInfo
}

// SetFormatSupported marks a format as unsupported or supported for every usage.
func (d *Device) SetFormatSupported(format gfx.Format, supported bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if supported {
		delete(d.unsupported, format)
	} else {
		d.unsupported[format] = true
	}
}

// Violations returns usage errors detected so far, the kind of
// things a validation layer would complain about.
func (d *Device) Violations() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]string(nil), d.violations...)
}

// Live returns the number of live objects per kind, kinds with none are omitted.
func (d *Device) Live() map[string]int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	live := make(map[string]int)
	for _, kind := range d.objects {
		live[kind]++
	}
	return live
}

// LiveCount returns the number of live objects of a kind
func (d *Device) LiveCount(kind string) int {
	return d.Live()[kind]
}

// LiveSummary formats live objects for test failure messages
func (d *Device) LiveSummary() string {
	live := d.Live()
	var kinds []string
	for k := range live {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	s := ""
	for _, k := range kinds {
		s += fmt.Sprintf("%s=%d ", k, live[k])
	}
	return s
}

// Destroyed reports whether Destroy was called
func (d *Device) Destroyed() bool {
	return d.destroyed
}

// WaitIdleCalls returns how often WaitIdle was called
func (d *Device) WaitIdleCalls() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.waitIdleCalls
}

func (d *Device) violation(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) newHandle(kind string) uint64 {
	d.nextHandle++
	d.objects[d.nextHandle] = kind
	return d.nextHandle
}

func (d *Device) release(handle uint64, kind string) bool {
	if handle == gfx.NullHandle {
		return false
	}
	if k, ok := d.objects[handle]; !ok || k != kind {
		d.violation("destroy of unknown %s %d", kind, handle)
		return false
	}
	delete(d.objects, handle)
	return true
}

func (d *Device) alive(handle uint64, kind string) bool {
	k, ok := d.objects[handle]
	return ok && k == kind
}

// Queue implements interface
func (d *Device) Queue(family, index uint32) gfx.Queue {
	return gfx.Queue(0x1000 + uint64(family)<<8 + uint64(index))
}

// WaitIdle implements interface
func (d *Device) WaitIdle() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.waitIdleCalls++
	for len(d.pending) > 0 {
		d.completeLocked()
	}
	return nil
}

// Destroy implements interface. Objects still alive are reported as violations.
func (d *Device) Destroy() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.destroyed {
		d.violation("device destroyed twice")
		return
	}
	for h, kind := range d.objects {
		if kind == KindCommandBuffer || kind == KindDescriptorSet {
			continue
		}
		d.violation("%s %d alive at device destruction", kind, h)
	}
	d.destroyed = true
}
