// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the CPU side of renderable assets: vertex layout,
// generated and imported geometry and decoded textures.
package model

import (
	"errors"
	"fmt"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/gfx"
)

// Vertex is a model vertex
type Vertex struct {
	Pos      glm.Vec3
	Normal   glm.Vec3
	TexCoord glm.Vec2
	Color    glm.Vec4
	Tangent  glm.Vec4
}

// VertexSize is the stride of Vertex in a vertex buffer
const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

// VertexBindings describes the single interleaved vertex buffer
func VertexBindings() []gfx.VertexBinding {
	return []gfx.VertexBinding{{
		Binding: 0,
		Stride:  VertexSize,
	}}
}

// VertexAttributes describes the vertex layout, locations in field order
func VertexAttributes() []gfx.VertexAttribute {
	return []gfx.VertexAttribute{
		{
			Binding:  0,
			Location: 0,
			Format:   gfx.FormatR32G32B32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   gfx.FormatR32G32B32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Normal)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   gfx.FormatR32G32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
		},
		{
			Binding:  0,
			Location: 3,
			Format:   gfx.FormatR32G32B32A32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Binding:  0,
			Location: 4,
			Format:   gfx.FormatR32G32B32A32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Tangent)),
		},
	}
}

// ErrEmptyGeometry is returned for geometry without triangles
var ErrEmptyGeometry = errors.New("geometry has no triangles")

// Geometry is an indexed triangle list
type Geometry struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Validate checks that the indices form whole triangles within the vertex array
func (g *Geometry) Validate() error {
	if len(g.Vertices) == 0 || len(g.Indices) == 0 {
		return ErrEmptyGeometry
	}
	if len(g.Indices)%3 != 0 {
		return fmt.Errorf("geometry %s: %d indices do not form triangles", g.Name, len(g.Indices))
	}
	for i, idx := range g.Indices {
		if int(idx) >= len(g.Vertices) {
			return fmt.Errorf("geometry %s: index %d at %d out of range of %d vertices", g.Name, idx, i, len(g.Vertices))
		}
	}
	return nil
}

// VertexBytes returns the vertices as laid out in a vertex buffer.
// The slice aliases Vertices.
func (g *Geometry) VertexBytes() []byte {
	if len(g.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Vertices[0])), len(g.Vertices)*int(VertexSize))
}

// IndexBytes returns the indices as laid out in a 32-bit index buffer.
// The slice aliases Indices.
func (g *Geometry) IndexBytes() []byte {
	if len(g.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Indices[0])), len(g.Indices)*4)
}

// ComputeTangents fills the tangents of every vertex from positions and
// texture coordinates. Vertices without a usable UV gradient get +X.
func (g *Geometry) ComputeTangents() {
	accum := make([]glm.Vec3, len(g.Vertices))
	for t := 0; t+2 < len(g.Indices); t += 3 {
		i0, i1, i2 := g.Indices[t], g.Indices[t+1], g.Indices[t+2]
		v0, v1, v2 := g.Vertices[i0], g.Vertices[i1], g.Vertices[i2]

		e1, e2 := v1.Pos.Sub(v0.Pos), v2.Pos.Sub(v0.Pos)
		d1, d2 := v1.TexCoord.Sub(v0.TexCoord), v2.TexCoord.Sub(v0.TexCoord)
		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if det == 0 {
			continue
		}
		tangent := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(1 / det)
		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx] = accum[idx].Add(tangent)
		}
	}
	for i := range g.Vertices {
		t := accum[i]
		if t.Len() == 0 {
			g.Vertices[i].Tangent = glm.Vec4{1, 0, 0, 1}
			continue
		}
		n := g.Vertices[i].Normal
		// Gram-Schmidt against the normal
		t = t.Sub(n.Mul(n.Dot(t)))
		if t.Len() == 0 {
			g.Vertices[i].Tangent = glm.Vec4{1, 0, 0, 1}
			continue
		}
		g.Vertices[i].Tangent = t.Normalize().Vec4(1)
	}
}
