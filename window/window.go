// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window defines what the engine needs from a native window.
// Backends live in the sdlwindow and glfwwindow packages.
package window

import (
	"errors"
	"unsafe"
)

// ErrUnknownBackend is returned when no backend goes by the configured name
var ErrUnknownBackend = errors.New("unknown window backend")

// Window is a native window that can present Vulkan images
type Window interface {
	// Size is the drawable size in pixels
	Size() (width, height uint32)

	// CloseRequested reports whether the user asked the window to close
	CloseRequested() bool

	// Poll processes pending events, updating Input and the resize state
	Poll()

	// Resized returns the latest size once after the window was resized
	Resized() (width, height uint32, ok bool)

	// Input is the input state owned by this window
	Input() *Input

	// InstanceExtensions are the Vulkan instance extensions the window requires
	InstanceExtensions() []string

	// ProcAddr is vkGetInstanceProcAddr as loaded by the window library
	ProcAddr() unsafe.Pointer

	// CreateSurface creates a VkSurfaceKHR for the given VkInstance
	CreateSurface(instance interface{}) (uintptr, error)

	Destroy()
}

// Configuration of a new window
type Configuration struct {
	Title         string
	Width, Height uint32
	Resizable     bool
}

// ResizeTracker is embedded by backends to implement Resized.
// Resize events are merged until they are read.
type ResizeTracker struct {
	width, height uint32
	pending       bool
}

// Resize records a new size
func (r *ResizeTracker) Resize(width, height uint32) {
	r.width, r.height = width, height
	r.pending = true
}

// Resized implements Window
func (r *ResizeTracker) Resized() (uint32, uint32, bool) {
	if !r.pending {
		return 0, 0, false
	}
	r.pending = false
	return r.width, r.height, true
}
