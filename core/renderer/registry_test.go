// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/gfx/gfxtest"
	"github.com/devblok/umbra/model"
)

func TestRegistryDefaults(t *testing.T) {
	c := qt.New(t)
	tr := newTestRenderer(c, core.ContextConfiguration{}, renderer.Configuration{})
	defer tr.close(c)

	reg := tr.Registry()
	c.Assert(reg.Capacity(), qt.Equals, renderer.DefaultRegistryCapacity)
	geometries, materials, textures := reg.Stats()
	c.Assert([]int{geometries, materials, textures}, qt.DeepEquals, []int{0, 1, 1})

	m, err := reg.Material(renderer.DefaultMaterial)
	c.Assert(err, qt.IsNil)
	c.Assert(m.Name, qt.Equals, "default")
	c.Assert(m.Textures, qt.DeepEquals, []renderer.TextureHandle{renderer.DefaultTexture})

	_, err = reg.Texture(renderer.DefaultTexture)
	c.Assert(err, qt.IsNil)

	c.Assert(reg.DestroyMaterial(renderer.DefaultMaterial), qt.ErrorMatches, "default material: invalid resource handle")
	c.Assert(reg.DestroyTexture(renderer.DefaultTexture), qt.ErrorIs, renderer.ErrInvalidHandle)
}

func TestRegistryCapacity(t *testing.T) {
	c := qt.New(t)
	tr := newTestRenderer(c, core.ContextConfiguration{}, renderer.Configuration{RegistryCapacity: 2})
	defer tr.close(c)

	reg := tr.Registry()

	// the defaults take the first texture and material slots
	tex, err := reg.CreateTexture(model.SolidTexture(0, 0, 0, 255).Pixels, 1, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(tex, qt.Equals, renderer.TextureHandle(1))
	_, err = reg.CreateTexture(model.SolidTexture(0, 0, 0, 255).Pixels, 1, 1)
	c.Assert(err, qt.ErrorMatches, "texture table of 2: resource registry is full")
	c.Assert(err, qt.ErrorIs, renderer.ErrRegistryFull)

	mat, err := reg.CreateMaterial(renderer.MaterialInfo{Name: "black", Textures: []renderer.TextureHandle{tex}})
	c.Assert(err, qt.IsNil)
	c.Assert(mat, qt.Equals, renderer.MaterialHandle(1))
	_, err = reg.CreateMaterial(renderer.MaterialInfo{Name: "other"})
	c.Assert(err, qt.ErrorIs, renderer.ErrRegistryFull)

	first, err := reg.CreateGeometry(model.Triangle())
	c.Assert(err, qt.IsNil)
	_, err = reg.CreateGeometry(model.Cube(2))
	c.Assert(err, qt.IsNil)

	// destroyed slots are not handed out again
	c.Assert(reg.DestroyGeometry(first), qt.IsNil)
	_, err = reg.CreateGeometry(model.Triangle())
	c.Assert(err, qt.ErrorIs, renderer.ErrRegistryFull)

	geometries, materials, textures := reg.Stats()
	c.Assert([]int{geometries, materials, textures}, qt.DeepEquals, []int{1, 2, 2})
}

func TestRegistryInvalidHandles(t *testing.T) {
	c := qt.New(t)
	tr := newTestRenderer(c, core.ContextConfiguration{}, renderer.Configuration{})
	defer tr.close(c)

	reg := tr.Registry()
	_, err := reg.Geometry(0)
	c.Assert(err, qt.ErrorMatches, "geometry 0: invalid resource handle")
	_, err = reg.Material(-1)
	c.Assert(err, qt.ErrorIs, renderer.ErrInvalidHandle)
	_, err = reg.Texture(5)
	c.Assert(err, qt.ErrorIs, renderer.ErrInvalidHandle)

	g, err := reg.CreateGeometry(model.Triangle())
	c.Assert(err, qt.IsNil)
	res, err := reg.Geometry(g)
	c.Assert(err, qt.IsNil)
	c.Assert(res.IndexCount, qt.Equals, uint32(3))
	c.Assert(res.VertexCount, qt.Equals, uint32(3))

	c.Assert(reg.DestroyGeometry(g), qt.IsNil)
	c.Assert(reg.DestroyGeometry(g), qt.ErrorIs, renderer.ErrInvalidHandle)
	_, err = reg.Geometry(g)
	c.Assert(err, qt.ErrorIs, renderer.ErrInvalidHandle)

	_, err = reg.CreateGeometry(model.Geometry{Name: "broken", Indices: []uint32{0, 1, 2}})
	c.Assert(err, qt.IsNotNil)

	_, err = reg.CreateMaterial(renderer.MaterialInfo{Name: "missing", Textures: []renderer.TextureHandle{7}})
	c.Assert(err, qt.ErrorMatches, "material missing: texture 7: invalid resource handle")
}

func TestRegistryDestroyedTextureFailsDraw(t *testing.T) {
	c := qt.New(t)
	tr := newTestRenderer(c, core.ContextConfiguration{}, renderer.Configuration{})
	defer tr.close(c)

	reg := tr.Registry()
	cube, err := reg.CreateGeometry(model.Cube(1))
	c.Assert(err, qt.IsNil)
	tex, err := reg.CreateTexture(model.SolidTexture(1, 2, 3, 4).Pixels, 1, 1)
	c.Assert(err, qt.IsNil)
	mat, err := reg.CreateMaterial(renderer.MaterialInfo{Name: "textured", Color: glm.Vec4{1, 1, 1, 1}, Textures: []renderer.TextureHandle{tex}})
	c.Assert(err, qt.IsNil)

	scene := &testScene{components: []renderer.RenderComponent{{Geometry: cube, Material: mat, Used: true, Active: true}}}
	c.Assert(tr.DrawFrame(scene, nil), qt.IsNil)

	c.Assert(reg.DestroyTexture(tex), qt.IsNil)
	c.Assert(tr.DrawFrame(scene, nil), qt.ErrorIs, renderer.ErrInvalidHandle)

	// the default material still draws
	scene.components[0].Material = renderer.DefaultMaterial
	c.Assert(tr.DrawFrame(scene, nil), qt.IsNil)
}

func TestRegistryDeferredRelease(t *testing.T) {
	c := qt.New(t)
	tr := newTestRenderer(c, core.ContextConfiguration{}, renderer.Configuration{FramesInFlight: 2})
	defer tr.close(c)

	reg := tr.Registry()
	base := tr.dev.LiveCount(gfxtest.KindBuffer)
	cube, err := reg.CreateGeometry(model.Cube(1))
	c.Assert(err, qt.IsNil)
	c.Assert(tr.dev.LiveCount(gfxtest.KindBuffer), qt.Equals, base+2)

	scene := &testScene{components: []renderer.RenderComponent{{Geometry: cube, Used: true, Active: true}}}
	c.Assert(tr.DrawFrame(scene, nil), qt.IsNil)

	// frame 1 may still read the buffers
	c.Assert(reg.DestroyGeometry(cube), qt.IsNil)
	c.Assert(tr.dev.LiveCount(gfxtest.KindBuffer), qt.Equals, base+2)

	c.Assert(tr.DrawFrame(nil, nil), qt.IsNil)
	c.Assert(tr.dev.LiveCount(gfxtest.KindBuffer), qt.Equals, base+2)

	// frame 3 reuses the slot of frame 1 and waits for it first
	c.Assert(tr.DrawFrame(nil, nil), qt.IsNil)
	c.Assert(tr.dev.LiveCount(gfxtest.KindBuffer), qt.Equals, base)
}
