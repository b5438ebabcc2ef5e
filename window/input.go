// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package window

import "fmt"

// Key is a backend independent keyboard key
type Key int

// Keys the engine knows about
const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyEnter
	KeyTab
	KeyLeftShift
	KeyLeftControl
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyA
	KeyC
	KeyD
	KeyE
	KeyQ
	KeyS
	KeyW
	KeyF1
	keyCount
)

var keyNames = [...]string{
	KeyUnknown:     "unknown",
	KeyEscape:      "escape",
	KeySpace:       "space",
	KeyEnter:       "enter",
	KeyTab:         "tab",
	KeyLeftShift:   "left shift",
	KeyLeftControl: "left control",
	KeyUp:          "up",
	KeyDown:        "down",
	KeyLeft:        "left",
	KeyRight:       "right",
	KeyA:           "a",
	KeyC:           "c",
	KeyD:           "d",
	KeyE:           "e",
	KeyQ:           "q",
	KeyS:           "s",
	KeyW:           "w",
	KeyF1:          "f1",
}

func (k Key) String() string {
	if k >= 0 && k < keyCount {
		return keyNames[k]
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// MouseButton is a backend independent mouse button
type MouseButton int

// Mouse buttons
const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
	mouseButtonCount
)

// Input is the keyboard and mouse state of one window. The window
// owning it is the only writer, readers see the state as of the last Poll.
type Input struct {
	keys    [keyCount]bool
	buttons [mouseButtonCount]bool

	x, y          float32
	lastX, lastY  float32
	scroll        float32
	positionKnown bool
}

// NewInput creates an input with nothing pressed
func NewInput() *Input {
	return &Input{}
}

// IsKeyDown reports whether a key is held
func (in *Input) IsKeyDown(k Key) bool {
	if k <= KeyUnknown || k >= keyCount {
		return false
	}
	return in.keys[k]
}

// IsMouseButtonDown reports whether a mouse button is held
func (in *Input) IsMouseButtonDown(b MouseButton) bool {
	if b < 0 || b >= mouseButtonCount {
		return false
	}
	return in.buttons[b]
}

// MousePosition is the cursor position in window coordinates
func (in *Input) MousePosition() (x, y float32) {
	return in.x, in.y
}

// MouseDelta is how far the cursor moved since the previous Poll
func (in *Input) MouseDelta() (dx, dy float32) {
	return in.x - in.lastX, in.y - in.lastY
}

// Scroll is the wheel movement since the previous Poll
func (in *Input) Scroll() float32 {
	return in.scroll
}

// BeginFrame is called by the window before it processes events
func (in *Input) BeginFrame() {
	in.lastX, in.lastY = in.x, in.y
	in.scroll = 0
}

// SetKey records a key press or release
func (in *Input) SetKey(k Key, down bool) {
	if k <= KeyUnknown || k >= keyCount {
		return
	}
	in.keys[k] = down
}

// SetMouseButton records a button press or release
func (in *Input) SetMouseButton(b MouseButton, down bool) {
	if b < 0 || b >= mouseButtonCount {
		return
	}
	in.buttons[b] = down
}

// SetMousePosition records the cursor position. The first position
// seen produces no delta.
func (in *Input) SetMousePosition(x, y float32) {
	in.x, in.y = x, y
	if !in.positionKnown {
		in.lastX, in.lastY = x, y
		in.positionKnown = true
	}
}

// AddScroll accumulates wheel movement
func (in *Input) AddScroll(delta float32) {
	in.scroll += delta
}

// Reset releases every key and button, used when the window loses focus
func (in *Input) Reset() {
	in.keys = [keyCount]bool{}
	in.buttons = [mouseButtonCount]bool{}
}
