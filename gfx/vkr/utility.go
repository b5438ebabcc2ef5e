// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	"github.com/devblok/umbra/gfx"
	vk "github.com/devblok/vulkan"
)

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := []string{}
	for _, s := range sgs {
		safe = append(safe, fmt.Sprintf("%s\x00", s))
	}
	return safe
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// sliceUint32 reslices shader bytes into words
func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

// resultError converts a Vulkan result into an error, results that
// callers are expected to react to map onto the gfx errors.
func resultError(call string, result vk.Result) error {
	switch result {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return gfx.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return gfx.ErrOutOfDate
	case vk.Timeout, vk.NotReady:
		return gfx.ErrTimeout
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", call, gfx.ErrDeviceLost)
	case vk.ErrorOutOfDeviceMemory:
		return fmt.Errorf("%s: %w", call, gfx.ErrOutOfDeviceMemory)
	case vk.ErrorOutOfHostMemory:
		return fmt.Errorf("%s: %w", call, gfx.ErrOutOfHostMemory)
	}
	if err := vk.Error(result); err != nil {
		return fmt.Errorf("%s: %s", call, err.Error())
	}
	return nil
}

func extent(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func rect(r gfx.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: extent(r.Extent),
	}
}

func subresourceRange(r gfx.ImageSubresourceRange) vk.ImageSubresourceRange {
	levels, layers := r.LevelCount, r.LayerCount
	if levels == 0 {
		levels = 1
	}
	if layers == 0 {
		layers = 1
	}
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     levels,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     layers,
	}
}
