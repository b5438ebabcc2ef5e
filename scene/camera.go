// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"math"
	"time"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/window"
)

const maxPitch = 89 * math.Pi / 180

// FlyCamera moves a camera freely: WASD to move, E and Q to rise and
// sink, shift to go faster, mouse movement with the right button held
// to look around.
type FlyCamera struct {
	// Speed is in units per second
	Speed float32

	// Sensitivity is in radians per pixel of mouse movement
	Sensitivity float32

	yaw, pitch float32
}

// NewFlyCamera creates a controller starting from the camera's direction
func NewFlyCamera(c *CameraComponent) *FlyCamera {
	f := &FlyCamera{
		Speed:       5,
		Sensitivity: 0.003,
	}
	dir := c.Direction
	if dir.Len() == 0 {
		dir = glm.Vec3{0, 0, -1}
	}
	dir = dir.Normalize()
	f.pitch = float32(math.Asin(float64(dir.Y())))
	f.yaw = float32(math.Atan2(float64(dir.X()), float64(-dir.Z())))
	return f
}

// Forward is the looking direction
func (f *FlyCamera) Forward() glm.Vec3 {
	sy, cy := math.Sincos(float64(f.yaw))
	sp, cp := math.Sincos(float64(f.pitch))
	return glm.Vec3{float32(sy * cp), float32(sp), float32(-cy * cp)}
}

// Update moves the camera according to the input over dt and
// recomputes its matrices
func (f *FlyCamera) Update(c *CameraComponent, in *window.Input, dt time.Duration) {
	if in.IsMouseButtonDown(window.MouseRight) {
		dx, dy := in.MouseDelta()
		f.yaw += dx * f.Sensitivity
		f.pitch = glm.Clamp(f.pitch-dy*f.Sensitivity, -maxPitch, maxPitch)
	}

	forward := f.Forward()
	right := forward.Cross(glm.Vec3{0, 1, 0}).Normalize()
	up := glm.Vec3{0, 1, 0}

	var move glm.Vec3
	if in.IsKeyDown(window.KeyW) {
		move = move.Add(forward)
	}
	if in.IsKeyDown(window.KeyS) {
		move = move.Sub(forward)
	}
	if in.IsKeyDown(window.KeyD) {
		move = move.Add(right)
	}
	if in.IsKeyDown(window.KeyA) {
		move = move.Sub(right)
	}
	if in.IsKeyDown(window.KeyE) {
		move = move.Add(up)
	}
	if in.IsKeyDown(window.KeyQ) {
		move = move.Sub(up)
	}

	if move.Len() > 0 {
		speed := f.Speed * float32(dt.Seconds())
		if in.IsKeyDown(window.KeyLeftShift) {
			speed *= 3
		}
		c.Position = c.Position.Add(move.Normalize().Mul(speed))
	}
	c.Direction = forward
	c.Update()
}
