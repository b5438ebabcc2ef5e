// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"fmt"
	"image"
	"image/color"

	glm "github.com/go-gl/mathgl/mgl32"
)

var white = glm.Vec4{1, 1, 1, 1}

// Triangle builds a single counter-clockwise triangle facing +Z
func Triangle() Geometry {
	g := Geometry{
		Name: "triangle",
		Vertices: []Vertex{
			{Pos: glm.Vec3{0, 0.5, 0}, Normal: glm.Vec3{0, 0, 1}, TexCoord: glm.Vec2{0.5, 0}, Color: glm.Vec4{1, 0, 0, 1}},
			{Pos: glm.Vec3{-0.5, -0.5, 0}, Normal: glm.Vec3{0, 0, 1}, TexCoord: glm.Vec2{0, 1}, Color: glm.Vec4{0, 1, 0, 1}},
			{Pos: glm.Vec3{0.5, -0.5, 0}, Normal: glm.Vec3{0, 0, 1}, TexCoord: glm.Vec2{1, 1}, Color: glm.Vec4{0, 0, 1, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
	g.ComputeTangents()
	return g
}

// Cube builds an axis aligned cube centered at the origin. Faces don't
// share vertices so each has its own normal and full texture.
func Cube(size float32) Geometry {
	h := size / 2
	faces := []struct {
		normal, u, v glm.Vec3
	}{
		{glm.Vec3{0, 0, 1}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{0, 0, -1}, glm.Vec3{-1, 0, 0}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{-1, 0, 0}, glm.Vec3{0, 0, 1}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{0, 1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}},
		{glm.Vec3{0, -1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, 1}},
	}
	corners := [4]glm.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	g := Geometry{
		Name:     fmt.Sprintf("cube-%g", size),
		Vertices: make([]Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for _, f := range faces {
		base := uint32(len(g.Vertices))
		center := f.normal.Mul(h)
		for _, corner := range corners {
			pos := center.Add(f.u.Mul(corner.X() * h)).Add(f.v.Mul(corner.Y() * h))
			g.Vertices = append(g.Vertices, Vertex{
				Pos:      pos,
				Normal:   f.normal,
				TexCoord: glm.Vec2{(corner.X() + 1) / 2, (1 - corner.Y()) / 2},
				Color:    white,
			})
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	g.ComputeTangents()
	return g
}

// TerrainInfo configures a terrain grid
type TerrainInfo struct {
	// Scale of the terrain: X and Z span the whole grid, Y is the height of a white texel.
	Scale glm.Vec3

	// Heightmap gives one height sample per grid vertex, luminance is the height.
	Heightmap image.Image
}

// Terrain builds a grid of triangles from a heightmap, centered on the
// origin in XZ with normals from the height gradient.
func Terrain(info TerrainInfo) (Geometry, error) {
	if info.Heightmap == nil {
		return Geometry{}, fmt.Errorf("terrain needs a heightmap")
	}
	bounds := info.Heightmap.Bounds()
	w, d := bounds.Dx(), bounds.Dy()
	if w < 2 || d < 2 {
		return Geometry{}, fmt.Errorf("terrain heightmap of %dx%d is smaller than 2x2", w, d)
	}

	height := func(x, z int) float32 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if z < 0 {
			z = 0
		} else if z >= d {
			z = d - 1
		}
		gray := color.Gray16Model.Convert(info.Heightmap.At(bounds.Min.X+x, bounds.Min.Y+z)).(color.Gray16)
		return float32(gray.Y) / 0xffff * info.Scale.Y()
	}

	stepX := info.Scale.X() / float32(w-1)
	stepZ := info.Scale.Z() / float32(d-1)
	originX, originZ := -info.Scale.X()/2, -info.Scale.Z()/2

	g := Geometry{
		Name:     fmt.Sprintf("terrain-%dx%d", w, d),
		Vertices: make([]Vertex, 0, w*d),
		Indices:  make([]uint32, 0, (w-1)*(d-1)*6),
	}
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			dx := (height(x+1, z) - height(x-1, z)) / (2 * stepX)
			dz := (height(x, z+1) - height(x, z-1)) / (2 * stepZ)
			g.Vertices = append(g.Vertices, Vertex{
				Pos:      glm.Vec3{originX + float32(x)*stepX, height(x, z), originZ + float32(z)*stepZ},
				Normal:   glm.Vec3{-dx, 1, -dz}.Normalize(),
				TexCoord: glm.Vec2{float32(x) / float32(w-1), float32(z) / float32(d-1)},
				Color:    white,
			})
		}
	}
	for z := 0; z < d-1; z++ {
		for x := 0; x < w-1; x++ {
			i := uint32(z*w + x)
			next := i + uint32(w)
			g.Indices = append(g.Indices, i, next, i+1, i+1, next, next+1)
		}
	}
	g.ComputeTangents()
	return g, nil
}
