// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx on top of Vulkan.
package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

// surfaceHandle is the only surface an Instance hands out
const surfaceHandle gfx.Surface = 1

var (
	_ gfx.Instance = (*Instance)(nil)
	_ gfx.Device   = (*Device)(nil)
)

// InstanceConfiguration configures the Vulkan instance
type InstanceConfiguration struct {
	ApplicationName string
	Extensions      []string
	Layers          []string

	// DebugMode loads the validation layers.
	DebugMode bool
}

// NewInstance creates a Vulkan instance. procAddr is the vkGetInstanceProcAddr
// provided by the windowing library, when nil the system loader is used.
func NewInstance(procAddr unsafe.Pointer, cfg InstanceConfiguration) (*Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_LUNARG_standard_validation")
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.InstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(cfg.ApplicationName),
		PEngineName:        safeString("Umbra"),
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.New("vkr.enumerateDevices(): " + err.Error())
	}

	return &Instance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// Instance implements gfx.Instance
type Instance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return availableDevices, nil
}

// PhysicalDevices implements interface
func (v *Instance) PhysicalDevices() []gfx.PhysicalDeviceInfo {
	pdi := make([]gfx.PhysicalDeviceInfo, len(v.availableDevices))
	for i, pd := range v.availableDevices {
		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, deviceExt)); err != nil {
			pdi[i].Invalid = true
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		pdi[i].Memory = memoryProperties(pd)

		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, queueFamilies)
		for idx := range queueFamilies {
			queueFamilies[idx].Deref()
			family := gfx.QueueFamily{
				Flags: gfx.QueueFlags(queueFamilies[idx].QueueFlags),
				Count: queueFamilies[idx].QueueCount,
			}
			if v.surface != vk.NullSurface {
				var supportsPresent vk.Bool32
				vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(idx), v.surface, &supportsPresent)
				family.PresentSupport = supportsPresent.B()
			}
			pdi[i].QueueFamilies = append(pdi[i].QueueFamilies, family)
		}

		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = int(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = int(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)
		pdi[i].APIVersion = versionString(physicalDeviceProperties.ApiVersion)
		pdi[i].Type = gfx.PhysicalDeviceType(physicalDeviceProperties.DeviceType)
	}
	return pdi
}

func memoryProperties(pd vk.PhysicalDevice) gfx.MemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &props)
	props.Deref()

	var mp gfx.MemoryProperties
	for idx := uint32(0); idx < props.MemoryTypeCount; idx++ {
		props.MemoryTypes[idx].Deref()
		mp.Types = append(mp.Types, gfx.MemoryType{
			Flags: gfx.MemoryProperty(props.MemoryTypes[idx].PropertyFlags),
			Heap:  props.MemoryTypes[idx].HeapIndex,
		})
	}
	for idx := uint32(0); idx < props.MemoryHeapCount; idx++ {
		props.MemoryHeaps[idx].Deref()
		mp.Heaps = append(mp.Heaps, gfx.MemoryHeap{
			Size:        uint64(props.MemoryHeaps[idx].Size),
			DeviceLocal: props.MemoryHeaps[idx].Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}
	return mp
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

// Inner returns the vk.Instance, windowing libraries need it to create surfaces.
func (v *Instance) Inner() interface{} {
	return v.instance
}

// SetSurface sets the window surface created by the windowing library
func (v *Instance) SetSurface(pSurface uintptr) {
	v.surface = vk.SurfaceFromPointer(pSurface)
}

// Surface implements interface
func (v *Instance) Surface() gfx.Surface {
	if v.surface == vk.NullSurface {
		return gfx.NullHandle
	}
	return surfaceHandle
}

// Extensions returns the enabled instance extensions
func (v *Instance) Extensions() []string {
	return v.configuration.Extensions
}

// CreateDevice implements interface
func (v *Instance) CreateDevice(physical int, info gfx.DeviceCreateInfo) (gfx.Device, error) {
	if physical < 0 || physical >= len(v.availableDevices) {
		return nil, fmt.Errorf("vkr: physical device %d does not exist", physical)
	}
	pd := v.availableDevices[physical]

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.Queues))
	for _, q := range info.Queues {
		priorities := q.Priorities
		if len(priorities) == 0 {
			priorities = make([]float32, q.Count)
			for idx := range priorities {
				priorities[idx] = 1
			}
		}
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       q.Count,
			PQueuePriorities: priorities,
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: bool32(info.Features.SamplerAnisotropy),
			FillModeNonSolid:  bool32(info.Features.FillModeNonSolid),
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}
	return newDevice(v, pd, device)
}

// Destroy implements interface
func (v *Instance) Destroy() {
	if v.surface != vk.NullSurface {
		vk.DestroySurface(v.instance, v.surface, nil)
		v.surface = vk.NullSurface
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}
