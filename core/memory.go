// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/umbra/gfx"
)

// Memory defines a usable memory region.
type Memory struct {
	device    gfx.Device
	memory    gfx.Memory
	len       uint64
	typeIndex uint32
	flags     gfx.MemoryProperty
}

// Get returns the memory handle.
func (m *Memory) Get() gfx.Memory {
	return m.memory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint64 {
	return m.len
}

// Flags returns the properties of the memory type the region was allocated from.
func (m *Memory) Flags() gfx.MemoryProperty {
	return m.flags
}

// Coherent tells whether host writes are visible to the device without a flush.
func (m *Memory) Coherent() bool {
	return m.flags&gfx.MemoryPropertyHostCoherent != 0
}

// Release frees the memory.
func (m *Memory) Release() {
	if m.memory != gfx.NullHandle {
		m.device.FreeMemory(m.memory)
		m.memory = gfx.NullHandle
	}
}

// NewMemoryAllocator creates a new memory allocator for the logical device,
// memory properties of the physical device influence allocation.
func NewMemoryAllocator(device gfx.Device, memProperties gfx.MemoryProperties) *MemoryAllocator {
	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        gfx.Device
	memProperties gfx.MemoryProperties
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req gfx.MemoryRequirements, prop gfx.MemoryProperty) (Memory, error) {
	memTypeIdx, err := ma.findMemoryType(req.MemoryTypeBits, prop)
	if err != nil {
		return Memory{}, err
	}

	memory, err := ma.device.AllocateMemory(req.Size, memTypeIdx)
	if err != nil {
		return Memory{}, fmt.Errorf("vk.AllocateMemory(): %w", err)
	}

	return Memory{
		device:    ma.device,
		memory:    memory,
		len:       req.Size,
		typeIndex: memTypeIdx,
		flags:     ma.memProperties.Types[memTypeIdx].Flags,
	}, nil
}

func (ma *MemoryAllocator) findMemoryType(filter uint32, prop gfx.MemoryProperty) (uint32, error) {
	for idx := uint32(0); idx < uint32(len(ma.memProperties.Types)) && idx < 32; idx++ {
		if filter&(1<<idx) != 0 && ma.memProperties.Types[idx].Flags&prop == prop {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("filter %#x, properties %#x: %w", filter, prop, ErrNoMatchingMemoryType)
}
