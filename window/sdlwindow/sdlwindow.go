// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sdlwindow implements window.Window with SDL2
package sdlwindow

import (
	"errors"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/umbra/window"
)

var _ window.Window = (*Window)(nil)

// Window is an SDL2 window created with Vulkan support
type Window struct {
	window.ResizeTracker

	window         *sdl.Window
	input          *window.Input
	closeRequested bool
}

// New initialises SDL video and opens a window. Only one window
// may exist at a time as it owns the SDL library.
func New(cfg window.Configuration) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.New("sdl.Init(): " + err.Error())
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.New("sdl.VulkanLoadLibrary(): " + err.Error())
	}

	flags := uint32(sdl.WINDOW_VULKAN)
	if cfg.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}
	w, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		flags)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.New("sdl.CreateWindow(): " + err.Error())
	}

	log.WithFields(log.Fields{
		"title":  cfg.Title,
		"width":  cfg.Width,
		"height": cfg.Height,
	}).Debug("sdl window created")

	return &Window{
		window: w,
		input:  window.NewInput(),
	}, nil
}

// Size implements window.Window
func (w *Window) Size() (uint32, uint32) {
	width, height := w.window.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

// CloseRequested implements window.Window
func (w *Window) CloseRequested() bool {
	return w.closeRequested
}

// Input implements window.Window
func (w *Window) Input() *window.Input {
	return w.input
}

// Poll implements window.Window
func (w *Window) Poll() {
	w.input.BeginFrame()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.QuitEvent:
			w.closeRequested = true
		case *sdl.KeyboardEvent:
			w.input.SetKey(translateKey(et.Keysym.Sym), et.Type == sdl.KEYDOWN)
		case *sdl.MouseButtonEvent:
			w.input.SetMouseButton(translateButton(et.Button), et.Type == sdl.MOUSEBUTTONDOWN)
		case *sdl.MouseMotionEvent:
			w.input.SetMousePosition(float32(et.X), float32(et.Y))
		case *sdl.MouseWheelEvent:
			w.input.AddScroll(float32(et.Y))
		case *sdl.WindowEvent:
			switch et.Event {
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				w.Resize(w.Size())
			case sdl.WINDOWEVENT_MINIMIZED:
				w.Resize(0, 0)
			case sdl.WINDOWEVENT_RESTORED:
				w.Resize(w.Size())
			case sdl.WINDOWEVENT_FOCUS_LOST:
				w.input.Reset()
			case sdl.WINDOWEVENT_CLOSE:
				w.closeRequested = true
			}
		}
	}
}

// InstanceExtensions implements window.Window
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// ProcAddr implements window.Window
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// CreateSurface implements window.Window
func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.window.VulkanCreateSurface(instance)
	if err != nil {
		return 0, errors.New("sdl.VulkanCreateSurface(): " + err.Error())
	}
	return uintptr(surface), nil
}

// Destroy closes the window and shuts SDL down
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	if err := w.window.Destroy(); err != nil {
		log.WithError(err).Warn("sdl window destroy failed")
	}
	w.window = nil
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}

func translateKey(k sdl.Keycode) window.Key {
	switch k {
	case sdl.K_ESCAPE:
		return window.KeyEscape
	case sdl.K_SPACE:
		return window.KeySpace
	case sdl.K_RETURN:
		return window.KeyEnter
	case sdl.K_TAB:
		return window.KeyTab
	case sdl.K_LSHIFT:
		return window.KeyLeftShift
	case sdl.K_LCTRL:
		return window.KeyLeftControl
	case sdl.K_UP:
		return window.KeyUp
	case sdl.K_DOWN:
		return window.KeyDown
	case sdl.K_LEFT:
		return window.KeyLeft
	case sdl.K_RIGHT:
		return window.KeyRight
	case sdl.K_a:
		return window.KeyA
	case sdl.K_c:
		return window.KeyC
	case sdl.K_d:
		return window.KeyD
	case sdl.K_e:
		return window.KeyE
	case sdl.K_q:
		return window.KeyQ
	case sdl.K_s:
		return window.KeyS
	case sdl.K_w:
		return window.KeyW
	case sdl.K_F1:
		return window.KeyF1
	}
	return window.KeyUnknown
}

func translateButton(b uint8) window.MouseButton {
	switch b {
	case sdl.BUTTON_LEFT:
		return window.MouseLeft
	case sdl.BUTTON_MIDDLE:
		return window.MouseMiddle
	case sdl.BUTTON_RIGHT:
		return window.MouseRight
	}
	return -1
}
