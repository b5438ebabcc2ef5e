// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package glfwwindow implements window.Window with GLFW
package glfwwindow

import (
	"errors"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/window"
)

var _ window.Window = (*Window)(nil)

// Window is a GLFW window without a client API, presented to with Vulkan
type Window struct {
	window.ResizeTracker

	window *glfw.Window
	input  *window.Input
}

// New initialises GLFW and opens a window. Callbacks write into the
// Input owned by the returned window.
func New(cfg window.Configuration) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.New("glfw.Init(): " + err.Error())
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw.VulkanSupported(): no Vulkan loader found")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if cfg.Resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	gw, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.New("glfw.CreateWindow(): " + err.Error())
	}

	w := &Window{
		window: gw,
		input:  window.NewInput(),
	}
	gw.SetKeyCallback(w.onKey)
	gw.SetMouseButtonCallback(w.onMouseButton)
	gw.SetCursorPosCallback(w.onCursor)
	gw.SetScrollCallback(w.onScroll)
	gw.SetFramebufferSizeCallback(w.onFramebufferSize)
	gw.SetFocusCallback(w.onFocus)

	log.WithFields(log.Fields{
		"title":  cfg.Title,
		"width":  cfg.Width,
		"height": cfg.Height,
	}).Debug("glfw window created")
	return w, nil
}

func (w *Window) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	w.input.SetKey(translateKey(key), action == glfw.Press)
}

func (w *Window) onMouseButton(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	w.input.SetMouseButton(translateButton(button), action == glfw.Press)
}

func (w *Window) onCursor(_ *glfw.Window, x, y float64) {
	w.input.SetMousePosition(float32(x), float32(y))
}

func (w *Window) onScroll(_ *glfw.Window, _, y float64) {
	w.input.AddScroll(float32(y))
}

func (w *Window) onFramebufferSize(_ *glfw.Window, width, height int) {
	w.Resize(uint32(width), uint32(height))
}

func (w *Window) onFocus(_ *glfw.Window, focused bool) {
	if !focused {
		w.input.Reset()
	}
}

// Size implements window.Window
func (w *Window) Size() (uint32, uint32) {
	width, height := w.window.GetFramebufferSize()
	return uint32(width), uint32(height)
}

// CloseRequested implements window.Window
func (w *Window) CloseRequested() bool {
	return w.window.ShouldClose()
}

// Input implements window.Window
func (w *Window) Input() *window.Input {
	return w.input
}

// Poll implements window.Window
func (w *Window) Poll() {
	w.input.BeginFrame()
	glfw.PollEvents()
}

// InstanceExtensions implements window.Window
func (w *Window) InstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

// ProcAddr implements window.Window
func (w *Window) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface implements window.Window
func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.New("glfw.CreateWindowSurface(): " + err.Error())
	}
	return surface, nil
}

// Destroy closes the window and terminates GLFW
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
}

var keys = map[glfw.Key]window.Key{
	glfw.KeyEscape:      window.KeyEscape,
	glfw.KeySpace:       window.KeySpace,
	glfw.KeyEnter:       window.KeyEnter,
	glfw.KeyTab:         window.KeyTab,
	glfw.KeyLeftShift:   window.KeyLeftShift,
	glfw.KeyLeftControl: window.KeyLeftControl,
	glfw.KeyUp:          window.KeyUp,
	glfw.KeyDown:        window.KeyDown,
	glfw.KeyLeft:        window.KeyLeft,
	glfw.KeyRight:       window.KeyRight,
	glfw.KeyA:           window.KeyA,
	glfw.KeyC:           window.KeyC,
	glfw.KeyD:           window.KeyD,
	glfw.KeyE:           window.KeyE,
	glfw.KeyQ:           window.KeyQ,
	glfw.KeyS:           window.KeyS,
	glfw.KeyW:           window.KeyW,
	glfw.KeyF1:          window.KeyF1,
}

func translateKey(k glfw.Key) window.Key {
	return keys[k]
}

func translateButton(b glfw.MouseButton) window.MouseButton {
	switch b {
	case glfw.MouseButtonLeft:
		return window.MouseLeft
	case glfw.MouseButtonMiddle:
		return window.MouseMiddle
	case glfw.MouseButtonRight:
		return window.MouseRight
	}
	return -1
}
