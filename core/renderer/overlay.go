// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
)

// OverlayVertex is a vertex of an overlay draw list, Color is packed RGBA8
type OverlayVertex struct {
	Pos   glm.Vec2
	UV    glm.Vec2
	Color uint32
}

// OverlayVertexSize is the stride of overlay vertices
const OverlayVertexSize = uint32(unsafe.Sizeof(OverlayVertex{}))

// OverlayVertexBindings describes the overlay vertex buffer binding
func OverlayVertexBindings() []gfx.VertexBinding {
	return []gfx.VertexBinding{{Binding: 0, Stride: OverlayVertexSize}}
}

// OverlayVertexAttributes describes the overlay vertex layout
func OverlayVertexAttributes() []gfx.VertexAttribute {
	var v OverlayVertex
	return []gfx.VertexAttribute{
		{Location: 0, Format: gfx.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(v.Pos))},
		{Location: 1, Format: gfx.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
		{Location: 2, Format: gfx.FormatR8G8B8A8Unorm, Offset: uint32(unsafe.Offsetof(v.Color))},
	}
}

// OverlayCommand draws a range of the index list clipped to Scissor.
// A zero Texture draws with the default white texture.
type OverlayCommand struct {
	IndexOffset  uint32
	IndexCount   uint32
	VertexOffset int32
	Scissor      gfx.Rect2D
	Texture      TextureHandle
}

// OverlayDrawData is one frame of overlay geometry in display coordinates
type OverlayDrawData struct {
	Vertices    []OverlayVertex
	Indices     []uint32
	Commands    []OverlayCommand
	DisplaySize glm.Vec2
}

// OverlaySource provides the overlay drawn on top of the lit scene
type OverlaySource interface {
	OverlayDrawData() OverlayDrawData
}

// Empty tells if there is nothing to draw
func (d *OverlayDrawData) Empty() bool {
	return len(d.Commands) == 0 || len(d.Vertices) == 0 || len(d.Indices) == 0
}

// Transform maps display coordinates to clip space as scale and translate
func (d *OverlayDrawData) Transform() [4]float32 {
	if d.DisplaySize.X() == 0 || d.DisplaySize.Y() == 0 {
		return [4]float32{1, 1, 0, 0}
	}
	sx, sy := 2/d.DisplaySize.X(), 2/d.DisplaySize.Y()
	return [4]float32{sx, sy, -1, -1}
}

func (d *OverlayDrawData) vertexBytes() []byte {
	if len(d.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&d.Vertices[0])), len(d.Vertices)*int(OverlayVertexSize))
}

func (d *OverlayDrawData) indexBytes() []byte {
	if len(d.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&d.Indices[0])), len(d.Indices)*4)
}

// overlayBuffers are the host visible vertex and index buffers of one frame slot.
// They grow to fit the largest draw list seen and stay mapped.
type overlayBuffers struct {
	vertices *core.Buffer
	indices  *core.Buffer
	ctx      *core.Context
}

func (o *overlayBuffers) upload(data *OverlayDrawData) error {
	var err error
	if o.vertices, err = o.fit(o.vertices, gfx.BufferUsageVertex, data.vertexBytes()); err != nil {
		return err
	}
	o.indices, err = o.fit(o.indices, gfx.BufferUsageIndex, data.indexBytes())
	return err
}

func (o *overlayBuffers) fit(buf *core.Buffer, usage gfx.BufferUsage, data []byte) (*core.Buffer, error) {
	size := uint64(len(data))
	if buf == nil || buf.Size < size {
		if buf != nil {
			buf.Destroy()
		}
		capacity := uint64(4096)
		for capacity < size {
			capacity *= 2
		}
		var err error
		buf, err = core.NewBuffer(o.ctx, usage,
			gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, capacity, nil)
		if err != nil {
			return nil, err
		}
		if err := buf.Map(0, 0); err != nil {
			buf.Destroy()
			return nil, err
		}
	}
	if err := buf.CopyTo(data, 0); err != nil {
		return buf, err
	}
	return buf, buf.Flush(size, 0)
}

func (o *overlayBuffers) destroy() {
	if o.vertices != nil {
		o.vertices.Destroy()
		o.vertices = nil
	}
	if o.indices != nil {
		o.indices.Destroy()
		o.indices = nil
	}
}
