// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/model"
)

// Handles index registry tables
type (
	GeometryHandle int
	MaterialHandle int
	TextureHandle  int
)

// Defaults created with every registry
const (
	DefaultTexture  TextureHandle  = 0
	DefaultMaterial MaterialHandle = 0
)

// GeometryResource is an uploaded geometry
type GeometryResource struct {
	Name         string
	VertexBuffer *core.Buffer
	IndexBuffer  *core.Buffer
	VertexCount  uint32
	IndexCount   uint32
}

// MaterialInfo describes a material
type MaterialInfo struct {
	Name      string
	Color     glm.Vec4
	Roughness float32
	Metallic  float32

	// Textures are sampled by the geometry pass, the first one is used
	// when a render component does not name a texture.
	Textures []TextureHandle
}

// MaterialResource is a material with its uniform buffer and descriptor set
type MaterialResource struct {
	MaterialInfo
	Uniform *core.Buffer
	Set     gfx.DescriptorSet
}

// TextureResource is an uploaded texture with its descriptor set
type TextureResource struct {
	Image *core.Image
	Set   gfx.DescriptorSet
}

// table hands out indices in order and never reuses them
type table[T any] struct {
	name    string
	entries []*T
}

func (t *table[T]) add(capacity int, entry *T) (int, error) {
	if len(t.entries) >= capacity {
		return -1, fmt.Errorf("%s table of %d: %w", t.name, capacity, ErrRegistryFull)
	}
	t.entries = append(t.entries, entry)
	return len(t.entries) - 1, nil
}

func (t *table[T]) get(idx int) (*T, error) {
	if idx < 0 || idx >= len(t.entries) || t.entries[idx] == nil {
		return nil, fmt.Errorf("%s %d: %w", t.name, idx, ErrInvalidHandle)
	}
	return t.entries[idx], nil
}

func (t *table[T]) remove(idx int) (*T, error) {
	entry, err := t.get(idx)
	if err != nil {
		return nil, err
	}
	t.entries[idx] = nil
	return entry, nil
}

func (t *table[T]) live() int {
	count := 0
	for _, e := range t.entries {
		if e != nil {
			count++
		}
	}
	return count
}

// Registry owns the geometries, materials and textures scenes refer to by handle.
// Destroyed entries are released once no frame in flight can use them.
type Registry struct {
	capacity int

	geometries table[GeometryResource]
	materials  table[MaterialResource]
	textures   table[TextureResource]

	ctx         *core.Context
	descriptors *descriptors
	deletions   *core.DeletionQueue
	frame       func() uint64
}

func newRegistry(ctx *core.Context, d *descriptors, capacity int, deletions *core.DeletionQueue, frame func() uint64) (*Registry, error) {
	r := &Registry{
		capacity:    capacity,
		geometries:  table[GeometryResource]{name: "geometry"},
		materials:   table[MaterialResource]{name: "material"},
		textures:    table[TextureResource]{name: "texture"},
		ctx:         ctx,
		descriptors: d,
		deletions:   deletions,
		frame:       frame,
	}

	white := model.SolidTexture(255, 255, 255, 255)
	if _, err := r.CreateTexture(white.Pixels, white.Width, white.Height); err != nil {
		return nil, fmt.Errorf("default texture: %w", err)
	}
	if _, err := r.CreateMaterial(MaterialInfo{
		Name:      "default",
		Color:     glm.Vec4{1, 1, 1, 1},
		Roughness: 1,
		Textures:  []TextureHandle{DefaultTexture},
	}); err != nil {
		r.destroy()
		return nil, fmt.Errorf("default material: %w", err)
	}
	return r, nil
}

// Capacity is the number of entries each table can ever hold
func (r *Registry) Capacity() int {
	return r.capacity
}

// CreateGeometry uploads a geometry into device local buffers
func (r *Registry) CreateGeometry(g model.Geometry) (GeometryHandle, error) {
	if len(r.geometries.entries) >= r.capacity {
		return -1, fmt.Errorf("geometry table of %d: %w", r.capacity, ErrRegistryFull)
	}
	if err := g.Validate(); err != nil {
		return -1, err
	}

	vertices, err := core.NewStagedBuffer(r.ctx, gfx.BufferUsageVertex, g.VertexBytes())
	if err != nil {
		return -1, err
	}
	indices, err := core.NewStagedBuffer(r.ctx, gfx.BufferUsageIndex, g.IndexBytes())
	if err != nil {
		vertices.Destroy()
		return -1, err
	}

	idx, err := r.geometries.add(r.capacity, &GeometryResource{
		Name:         g.Name,
		VertexBuffer: vertices,
		IndexBuffer:  indices,
		VertexCount:  uint32(len(g.Vertices)),
		IndexCount:   uint32(len(g.Indices)),
	})
	if err != nil {
		indices.Destroy()
		vertices.Destroy()
		return -1, err
	}

	log.WithFields(log.Fields{
		"name":     g.Name,
		"handle":   idx,
		"vertices": len(g.Vertices),
		"indices":  len(g.Indices),
	}).Debug("geometry created")
	return GeometryHandle(idx), nil
}

// CreateMaterial creates the uniform buffer and descriptor set of a material.
// Every texture it names must exist.
func (r *Registry) CreateMaterial(info MaterialInfo) (MaterialHandle, error) {
	if len(r.materials.entries) >= r.capacity {
		return -1, fmt.Errorf("material table of %d: %w", r.capacity, ErrRegistryFull)
	}
	for _, t := range info.Textures {
		if _, err := r.textures.get(int(t)); err != nil {
			return -1, fmt.Errorf("material %s: %w", info.Name, err)
		}
	}
	info.Textures = append([]TextureHandle(nil), info.Textures...)

	u := MaterialUniform{
		Color:     info.Color,
		Roughness: info.Roughness,
		Metallic:  info.Metallic,
	}
	uniform, err := core.NewBuffer(r.ctx, gfx.BufferUsageUniform,
		gfx.MemoryPropertyHostVisible|gfx.MemoryPropertyHostCoherent, MaterialUniformSize, u.Bytes())
	if err != nil {
		return -1, err
	}

	set, err := r.descriptors.allocate(r.descriptors.material)
	if err != nil {
		uniform.Destroy()
		return -1, err
	}
	r.ctx.Device.UpdateDescriptorSet(set, []gfx.DescriptorWrite{writeUniform(0, uniform)})

	idx, err := r.materials.add(r.capacity, &MaterialResource{
		MaterialInfo: info,
		Uniform:      uniform,
		Set:          set,
	})
	if err != nil {
		r.descriptors.free(set)
		uniform.Destroy()
		return -1, err
	}
	return MaterialHandle(idx), nil
}

// CreateTexture uploads RGBA8 pixels into a sampled image
func (r *Registry) CreateTexture(pixels []byte, width, height uint32) (TextureHandle, error) {
	if len(r.textures.entries) >= r.capacity {
		return -1, fmt.Errorf("texture table of %d: %w", r.capacity, ErrRegistryFull)
	}

	img, err := core.NewTexture(r.ctx, pixels, width, height)
	if err != nil {
		return -1, err
	}

	set, err := r.descriptors.allocate(r.descriptors.texture)
	if err != nil {
		img.Destroy()
		return -1, err
	}
	r.ctx.Device.UpdateDescriptorSet(set, []gfx.DescriptorWrite{
		writeSampler(0, img.Sampler, img.View, img.Layout()),
	})

	idx, err := r.textures.add(r.capacity, &TextureResource{Image: img, Set: set})
	if err != nil {
		r.descriptors.free(set)
		img.Destroy()
		return -1, err
	}
	return TextureHandle(idx), nil
}

// Geometry looks up a geometry
func (r *Registry) Geometry(h GeometryHandle) (*GeometryResource, error) {
	return r.geometries.get(int(h))
}

// Material looks up a material
func (r *Registry) Material(h MaterialHandle) (*MaterialResource, error) {
	return r.materials.get(int(h))
}

// Texture looks up a texture
func (r *Registry) Texture(h TextureHandle) (*TextureResource, error) {
	return r.textures.get(int(h))
}

// DestroyGeometry removes a geometry, its buffers are released
// once the frames in flight are done with them.
func (r *Registry) DestroyGeometry(h GeometryHandle) error {
	g, err := r.geometries.remove(int(h))
	if err != nil {
		return err
	}
	r.deletions.Push(r.frame(), gfx.ReleaseFunc(func() {
		g.IndexBuffer.Destroy()
		g.VertexBuffer.Destroy()
	}))
	return nil
}

// DestroyMaterial removes a material, the default material stays
func (r *Registry) DestroyMaterial(h MaterialHandle) error {
	if h == DefaultMaterial {
		return fmt.Errorf("default material: %w", ErrInvalidHandle)
	}
	m, err := r.materials.remove(int(h))
	if err != nil {
		return err
	}
	r.deletions.Push(r.frame(), r.releaseMaterial(m))
	return nil
}

// DestroyTexture removes a texture, the default texture stays.
// Materials still naming it fail to draw.
func (r *Registry) DestroyTexture(h TextureHandle) error {
	if h == DefaultTexture {
		return fmt.Errorf("default texture: %w", ErrInvalidHandle)
	}
	t, err := r.textures.remove(int(h))
	if err != nil {
		return err
	}
	r.deletions.Push(r.frame(), r.releaseTexture(t))
	return nil
}

func (r *Registry) releaseMaterial(m *MaterialResource) gfx.ReleaseFunc {
	return func() {
		r.descriptors.free(m.Set)
		m.Uniform.Destroy()
	}
}

func (r *Registry) releaseTexture(t *TextureResource) gfx.ReleaseFunc {
	return func() {
		r.descriptors.free(t.Set)
		t.Image.Destroy()
	}
}

// textureSet resolves the texture a component is drawn with
func (r *Registry) textureSet(c RenderComponent, m *MaterialResource) (gfx.DescriptorSet, error) {
	h := c.Texture
	if h == DefaultTexture && len(m.Textures) > 0 {
		h = m.Textures[0]
	}
	t, err := r.textures.get(int(h))
	if err != nil {
		return gfx.NullHandle, err
	}
	return t.Set, nil
}

// destroy releases every live entry, the device must be idle
func (r *Registry) destroy() {
	for idx, g := range r.geometries.entries {
		if g != nil {
			g.IndexBuffer.Destroy()
			g.VertexBuffer.Destroy()
			r.geometries.entries[idx] = nil
		}
	}
	for idx, m := range r.materials.entries {
		if m != nil {
			r.releaseMaterial(m).Release()
			r.materials.entries[idx] = nil
		}
	}
	for idx, t := range r.textures.entries {
		if t != nil {
			r.releaseTexture(t).Release()
			r.textures.entries[idx] = nil
		}
	}
}

// Stats counts live entries per table
func (r *Registry) Stats() (geometries, materials, textures int) {
	return r.geometries.live(), r.materials.live(), r.textures.live()
}
