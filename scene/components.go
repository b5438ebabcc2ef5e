// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/core/renderer"
)

// NoParent marks a root transform
const NoParent = -1

// Light defaults
const (
	DefaultLightFov  = 45
	DefaultLightNear = 0.1
	DefaultLightFar  = 100

	// directional lights cover this half extent around their position
	directionalExtent = 20
)

// Transform places an entity. Parent indexes the transform table,
// World is Model combined with the parent's World by Update.
type Transform struct {
	Position glm.Vec3
	Rotation glm.Quat
	Scale    glm.Vec3
	Parent   int

	Model glm.Mat4
	World glm.Mat4
}

// NewTransform is an unrotated, unscaled root transform at position
func NewTransform(position glm.Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: glm.QuatIdent(),
		Scale:    glm.Vec3{1, 1, 1},
		Parent:   NoParent,
		Model:    glm.Translate3D(position.X(), position.Y(), position.Z()),
		World:    glm.Translate3D(position.X(), position.Y(), position.Z()),
	}
}

// ModelMatrix is translation * rotation * scale
func (t *Transform) ModelMatrix() glm.Mat4 {
	translate := glm.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	scale := glm.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(t.Rotation.Normalize().Mat4()).Mul4(scale)
}

// LightComponent is a light in the scene. Fov is in degrees and
// only used by spot and point lights.
type LightComponent struct {
	Type      renderer.LightType
	Position  glm.Vec3
	Direction glm.Vec3
	Color     glm.Vec4

	Fov, Near, Far float32

	View       glm.Mat4
	Projection glm.Mat4
}

// NewLight creates a white light pointing down with the default perspective
func NewLight(t renderer.LightType, position glm.Vec3) LightComponent {
	l := LightComponent{
		Type:      t,
		Position:  position,
		Direction: glm.Vec3{0, -1, 0},
		Color:     glm.Vec4{1, 1, 1, 1},
		Fov:       DefaultLightFov,
		Near:      DefaultLightNear,
		Far:       DefaultLightFar,
	}
	l.Update()
	return l
}

// Update recomputes the view and projection matrices
func (l *LightComponent) Update() {
	dir := l.Direction
	if dir.Len() == 0 {
		dir = glm.Vec3{0, -1, 0}
	}
	dir = dir.Normalize()
	l.View = glm.LookAtV(l.Position, l.Position.Add(dir), upFor(dir))

	if l.Type == renderer.DirectionalLight {
		l.Projection = glm.Ortho(-directionalExtent, directionalExtent, -directionalExtent, directionalExtent, l.Near, l.Far)
		return
	}
	l.Projection = glm.Perspective(glm.DegToRad(l.Fov), 1, l.Near, l.Far)
}

// Light converts to what the renderer consumes
func (l *LightComponent) Light() renderer.Light {
	return renderer.Light{
		Type:       l.Type,
		Position:   l.Position,
		Direction:  l.Direction,
		Color:      l.Color,
		View:       l.View,
		Projection: l.Projection,
	}
}

// CameraComponent is the point of view. Fov is in degrees.
type CameraComponent struct {
	Position  glm.Vec3
	Direction glm.Vec3

	Fov, Near, Far float32
	Aspect         float32

	View       glm.Mat4
	Projection glm.Mat4
}

// NewCamera creates a camera at position looking at target
func NewCamera(position, target glm.Vec3, aspect float32) CameraComponent {
	c := CameraComponent{
		Position:  position,
		Direction: target.Sub(position),
		Fov:       60,
		Near:      0.1,
		Far:       1000,
		Aspect:    aspect,
	}
	c.Update()
	return c
}

// Update recomputes the view and projection matrices. The projection
// flips Y as Vulkan clip space points down.
func (c *CameraComponent) Update() {
	dir := c.Direction
	if dir.Len() == 0 {
		dir = glm.Vec3{0, 0, -1}
	}
	dir = dir.Normalize()
	c.Direction = dir
	c.View = glm.LookAtV(c.Position, c.Position.Add(dir), upFor(dir))

	aspect := c.Aspect
	if aspect <= 0 || math.IsNaN(float64(aspect)) {
		aspect = 1
	}
	c.Projection = glm.Perspective(glm.DegToRad(c.Fov), aspect, c.Near, c.Far)
	c.Projection.Set(1, 1, -c.Projection.At(1, 1))
}

// Camera converts to what the renderer consumes
func (c *CameraComponent) Camera() renderer.Camera {
	return renderer.Camera{
		Position:   c.Position,
		Direction:  c.Direction,
		View:       c.View,
		Projection: c.Projection,
		Fov:        c.Fov,
		Near:       c.Near,
		Far:        c.Far,
	}
}

// upFor picks an up vector that is not parallel to dir
func upFor(dir glm.Vec3) glm.Vec3 {
	up := glm.Vec3{0, 1, 0}
	if math.Abs(float64(dir.Dot(up))) > 0.999 {
		return glm.Vec3{0, 0, 1}
	}
	return up
}
