// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/devblok/umbra/gfx"
)

// DefaultFenceTimeout bounds every wait of the CPU on the GPU.
const DefaultFenceTimeout = 2 * time.Second

// ContextConfiguration is used to configure the logical device
type ContextConfiguration struct {
	Features   gfx.DeviceFeatures
	Extensions []string

	// Queues are the capabilities queues are created for.
	// Graphics is always included.
	Queues gfx.QueueFlags

	// FenceTimeout bounds fence waits, DefaultFenceTimeout when zero.
	FenceTimeout time.Duration

	// Strict makes Destroy fail with ErrResourceLeak when
	// resources created through the context are still alive.
	Strict bool
}

// QueueFamilyIndices tells which queue family serves which capability
type QueueFamilyIndices struct {
	Graphics uint32
	Compute  uint32
	Transfer uint32
}

// SelectPhysicalDevice picks the first discrete GPU that has a queue family with
// graphics and present support. Failing that, the first device with such a family.
func SelectPhysicalDevice(candidates []gfx.PhysicalDeviceInfo) (int, error) {
	fallback := -1
	for idx, pd := range candidates {
		if pd.Invalid {
			continue
		}
		if _, ok := graphicsPresentFamily(pd.QueueFamilies); !ok {
			continue
		}
		if pd.Type == gfx.PhysicalDeviceTypeDiscrete {
			return idx, nil
		}
		if fallback < 0 {
			fallback = idx
		}
	}
	if fallback < 0 {
		return -1, ErrNoSuitableDevice
	}
	return fallback, nil
}

func graphicsPresentFamily(families []gfx.QueueFamily) (uint32, bool) {
	idx := slices.IndexFunc(families, func(f gfx.QueueFamily) bool {
		return f.Count > 0 && f.PresentSupport && f.Supports(gfx.QueueGraphics)
	})
	if idx < 0 {
		return 0, false
	}
	return uint32(idx), true
}

// ResolveQueueFamilies chooses the queue families for the capabilities in mask.
// Graphics goes to the first family that can also present. Compute and transfer
// prefer a family other than the graphics one and reuse it otherwise.
// The returned create infos hold each family once.
func ResolveQueueFamilies(families []gfx.QueueFamily, mask gfx.QueueFlags) (QueueFamilyIndices, []gfx.DeviceQueueCreateInfo, error) {
	graphics, ok := graphicsPresentFamily(families)
	if !ok {
		return QueueFamilyIndices{}, nil, ErrNoSuitableDevice
	}

	indices := QueueFamilyIndices{
		Graphics: graphics,
		Compute:  graphics,
		Transfer: graphics,
	}

	var err error
	if mask&gfx.QueueCompute != 0 {
		if indices.Compute, err = separateFamily(families, graphics, gfx.QueueCompute); err != nil {
			return QueueFamilyIndices{}, nil, err
		}
	}
	if mask&gfx.QueueTransfer != 0 {
		if indices.Transfer, err = separateFamily(families, graphics, gfx.QueueTransfer); err != nil {
			return QueueFamilyIndices{}, nil, err
		}
	}

	unique := []uint32{graphics}
	for _, f := range []uint32{indices.Compute, indices.Transfer} {
		if !slices.Contains(unique, f) {
			unique = append(unique, f)
		}
	}

	infos := make([]gfx.DeviceQueueCreateInfo, 0, len(unique))
	for _, f := range unique {
		infos = append(infos, gfx.DeviceQueueCreateInfo{
			Family:     f,
			Count:      1,
			Priorities: []float32{1.0},
		})
	}
	return indices, infos, nil
}

func separateFamily(families []gfx.QueueFamily, graphics uint32, capability gfx.QueueFlags) (uint32, error) {
	for idx, f := range families {
		if uint32(idx) != graphics && f.Count > 0 && f.Supports(capability) {
			return uint32(idx), nil
		}
	}
	// graphics queues can always transfer
	if capability == gfx.QueueTransfer || families[graphics].Supports(capability) {
		return graphics, nil
	}
	return 0, fmt.Errorf("no queue family with capability %#x: %w", capability, ErrNoSuitableDevice)
}

// NewContext creates the logical device on the physical device with the given index,
// fetches its queues and creates the primary command pool.
func NewContext(instance gfx.Instance, physical int, cfg ContextConfiguration) (*Context, error) {
	devices := instance.PhysicalDevices()
	if physical < 0 || physical >= len(devices) {
		return nil, fmt.Errorf("physical device %d: %w", physical, ErrNoSuitableDevice)
	}
	pd := devices[physical]

	families, queueInfos, err := ResolveQueueFamilies(pd.QueueFamilies, cfg.Queues|gfx.QueueGraphics)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pd.Name, err)
	}

	device, err := instance.CreateDevice(physical, gfx.DeviceCreateInfo{
		Queues:     queueInfos,
		Extensions: cfg.Extensions,
		Features:   cfg.Features,
	})
	if err != nil {
		return nil, fmt.Errorf("vk.CreateDevice(): %w", err)
	}

	pool, err := device.CreateCommandPool(families.Graphics, true)
	if err != nil {
		device.Destroy()
		return nil, fmt.Errorf("vk.CreateCommandPool(): %w", err)
	}

	if cfg.FenceTimeout == 0 {
		cfg.FenceTimeout = DefaultFenceTimeout
	}

	log.WithFields(log.Fields{
		"device":   pd.Name,
		"type":     pd.Type,
		"api":      pd.APIVersion,
		"graphics": families.Graphics,
		"compute":  families.Compute,
		"transfer": families.Transfer,
	}).Info("logical device created")

	return &Context{
		Device:        device,
		Physical:      pd,
		Families:      families,
		GraphicsQueue: device.Queue(families.Graphics, 0),
		ComputeQueue:  device.Queue(families.Compute, 0),
		TransferQueue: device.Queue(families.Transfer, 0),
		CommandPool:   pool,
		Surface:       instance.Surface(),
		Allocator:     NewMemoryAllocator(device, pd.Memory),
		configuration: cfg,
		live:          make(map[uint64]string),
	}, nil
}

// Context owns the logical device, its queues and the primary command pool.
// Resources created through it are counted until destroyed.
type Context struct {
	Device   gfx.Device
	Physical gfx.PhysicalDeviceInfo
	Families QueueFamilyIndices

	GraphicsQueue gfx.Queue
	ComputeQueue  gfx.Queue
	TransferQueue gfx.Queue

	CommandPool gfx.CommandPool
	Surface     gfx.Surface
	Allocator   *MemoryAllocator

	configuration ContextConfiguration

	mutex     sync.Mutex
	nextID    uint64
	live      map[uint64]string
	abandoned []abandonedSubmit
	destroyed bool
}

// FenceTimeout is the bound applied to fence waits
func (c *Context) FenceTimeout() time.Duration {
	return c.configuration.FenceTimeout
}

// MemoryType returns the lowest memory type index allowed by typeBits
// whose flags contain props.
func (c *Context) MemoryType(typeBits uint32, props gfx.MemoryProperty) (uint32, error) {
	return c.Allocator.findMemoryType(typeBits, props)
}

// WaitForFences waits for the fences within the configured timeout.
// A timeout means the device is considered lost.
func (c *Context) WaitForFences(fences ...gfx.Fence) error {
	err := c.Device.WaitForFences(fences, c.configuration.FenceTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gfx.ErrTimeout):
		return fmt.Errorf("vk.WaitForFences(): no signal within %s: %w", c.configuration.FenceTimeout, ErrDeviceLost)
	default:
		return fmt.Errorf("vk.WaitForFences(): %w", err)
	}
}

// BeginSingleTimeCommands allocates a command buffer from the primary pool
// and begins it for one submission.
func (c *Context) BeginSingleTimeCommands() (gfx.CommandBuffer, error) {
	cbs, err := c.Device.AllocateCommandBuffers(c.CommandPool, 1)
	if err != nil {
		return gfx.NullHandle, fmt.Errorf("vk.AllocateCommandBuffers(): %w", err)
	}
	if err := c.Device.BeginCommandBuffer(cbs[0], true); err != nil {
		c.Device.FreeCommandBuffers(c.CommandPool, cbs)
		return gfx.NullHandle, fmt.Errorf("vk.BeginCommandBuffer(): %w", err)
	}
	return cbs[0], nil
}

// EndSingleTimeCommands submits the command buffer to the graphics queue,
// waits for it to complete and frees it.
func (c *Context) EndSingleTimeCommands(cb gfx.CommandBuffer) error {
	if err := c.Device.EndCommandBuffer(cb); err != nil {
		c.Device.FreeCommandBuffers(c.CommandPool, []gfx.CommandBuffer{cb})
		return fmt.Errorf("vk.EndCommandBuffer(): %w", err)
	}

	fence, err := c.Device.CreateFence(false)
	if err != nil {
		c.Device.FreeCommandBuffers(c.CommandPool, []gfx.CommandBuffer{cb})
		return fmt.Errorf("vk.CreateFence(): %w", err)
	}

	si := gfx.SubmitInfo{
		CommandBuffers: []gfx.CommandBuffer{cb},
	}
	if err := c.Device.QueueSubmit(c.GraphicsQueue, []gfx.SubmitInfo{si}, fence); err != nil {
		c.Device.DestroyFence(fence)
		c.Device.FreeCommandBuffers(c.CommandPool, []gfx.CommandBuffer{cb})
		return fmt.Errorf("vk.QueueSubmit(): %w", err)
	}

	if err := c.WaitForFences(fence); err != nil {
		// still in flight, released only after the device is idle
		c.abandon(fence, cb)
		return err
	}

	c.Device.DestroyFence(fence)
	c.Device.FreeCommandBuffers(c.CommandPool, []gfx.CommandBuffer{cb})
	return nil
}

type abandonedSubmit struct {
	id    uint64
	fence gfx.Fence
	cb    gfx.CommandBuffer
}

// abandon keeps a timed out submission counted as live until Destroy
func (c *Context) abandon(fence gfx.Fence, cb gfx.CommandBuffer) {
	id := c.track("single time commands")
	log.WithFields(log.Fields{
		"fence":          fence,
		"command buffer": cb,
	}).Warn("single time commands abandoned after fence timeout")

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.abandoned = append(c.abandoned, abandonedSubmit{id: id, fence: fence, cb: cb})
}

func (c *Context) track(kind string) uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.nextID++
	c.live[c.nextID] = kind
	return c.nextID
}

func (c *Context) untrack(id uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.live, id)
}

// LiveResources counts the resources created through the context
// that were not destroyed yet, per kind.
func (c *Context) LiveResources() map[string]int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	live := make(map[string]int)
	for _, kind := range c.live {
		live[kind]++
	}
	return live
}

// Destroy waits for the device to be idle, destroys the command pool and then the device.
// Resources still alive are logged, and reported as ErrResourceLeak in strict mode.
func (c *Context) Destroy() error {
	if c.destroyed {
		return ErrAlreadyDestroyed
	}
	c.destroyed = true

	var err error
	if live := c.LiveResources(); len(live) > 0 {
		log.WithFields(log.Fields{
			"live": live,
		}).Error("resources alive at device destruction")
		if c.configuration.Strict {
			err = fmt.Errorf("%w: %v", ErrResourceLeak, live)
		}
	}

	if waitErr := c.Device.WaitIdle(); waitErr != nil {
		log.WithError(waitErr).Warn("vk.DeviceWaitIdle() failed during teardown")
	}
	for _, a := range c.abandoned {
		c.Device.DestroyFence(a.fence)
		c.Device.FreeCommandBuffers(c.CommandPool, []gfx.CommandBuffer{a.cb})
		c.untrack(a.id)
	}
	c.abandoned = nil
	c.Device.DestroyCommandPool(c.CommandPool)
	c.Device.Destroy()

	log.WithField("device", c.Physical.Name).Info("logical device destroyed")
	return err
}
