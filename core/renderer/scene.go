// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// Camera the scene is viewed from
type Camera struct {
	Position  glm.Vec3
	Direction glm.Vec3

	View       glm.Mat4
	Projection glm.Mat4

	Fov, Near, Far float32
}

// LightType distinguishes lights in the lighting pass
type LightType int

// Light types
const (
	DirectionalLight LightType = iota
	PointLight
	SpotLight
)

func (t LightType) String() string {
	switch t {
	case DirectionalLight:
		return "directional"
	case PointLight:
		return "point"
	case SpotLight:
		return "spot"
	}
	return "unknown"
}

// Light as seen by the lighting pass
type Light struct {
	Type      LightType
	Position  glm.Vec3
	Direction glm.Vec3
	Color     glm.Vec4

	View       glm.Mat4
	Projection glm.Mat4
}

// RenderComponent ties an entity to the resources it is drawn with.
// A zero Texture means the material's texture is used.
type RenderComponent struct {
	Geometry GeometryHandle
	Material MaterialHandle
	Texture  TextureHandle

	Used   bool
	Active bool
}

// SceneView is what the renderer reads from the scene each frame.
// Render component i is drawn with WorldMatrix(i).
type SceneView interface {
	Camera() Camera
	Lights() []Light
	RenderComponents() []RenderComponent
	WorldMatrix(entity int) glm.Mat4
}
