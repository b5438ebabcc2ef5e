// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the number of lights the lighting pass reads
const MaxLights = 8

// CameraUniform is the std140 layout of the camera uniform block
type CameraUniform struct {
	View       glm.Mat4
	Projection glm.Mat4
	Position   glm.Vec4
}

// LightUniform is the std140 layout of one light
type LightUniform struct {
	View       glm.Mat4
	Projection glm.Mat4
	Position   glm.Vec4
	Direction  glm.Vec4
	Color      glm.Vec4
}

// LightsUniform is the std140 layout of the lights uniform block
type LightsUniform struct {
	Count  uint32
	_      [3]uint32
	Lights [MaxLights]LightUniform
}

// MaterialUniform is the std140 layout of the material uniform block
type MaterialUniform struct {
	Color     glm.Vec4
	Roughness float32
	Metallic  float32
	_         [2]float32
}

// Uniform sizes in bytes
const (
	CameraUniformSize   = uint64(unsafe.Sizeof(CameraUniform{}))
	LightsUniformSize   = uint64(unsafe.Sizeof(LightsUniform{}))
	MaterialUniformSize = uint64(unsafe.Sizeof(MaterialUniform{}))
)

func asBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// Bytes returns the uniform as laid out in memory
func (u *CameraUniform) Bytes() []byte { return asBytes(u) }

// Bytes returns the uniform as laid out in memory
func (u *LightsUniform) Bytes() []byte { return asBytes(u) }

// Bytes returns the uniform as laid out in memory
func (u *MaterialUniform) Bytes() []byte { return asBytes(u) }

// NewCameraUniform fills the camera block
func NewCameraUniform(c Camera) CameraUniform {
	return CameraUniform{
		View:       c.View,
		Projection: c.Projection,
		Position:   c.Position.Vec4(1),
	}
}

// NewLightsUniform fills the lights block, lights past MaxLights are ignored
func NewLightsUniform(lights []Light) LightsUniform {
	var u LightsUniform
	for idx, l := range lights {
		if idx == MaxLights {
			break
		}
		u.Lights[idx] = LightUniform{
			View:       l.View,
			Projection: l.Projection,
			Position:   l.Position.Vec4(float32(l.Type)),
			Direction:  l.Direction.Vec4(0),
			Color:      l.Color,
		}
		u.Count++
	}
	return u
}
