// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/xml"
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/util/collada"
)

// ImportCollada reads the first geometry of a Collada document. Corners
// sharing position, normal and texture coordinate become one vertex.
func ImportCollada(fileContents []byte) (Geometry, error) {
	var colladaModel collada.Collada
	if err := xml.Unmarshal(fileContents, &colladaModel); err != nil {
		return Geometry{}, err
	}
	if len(colladaModel.Geometries) == 0 {
		return Geometry{}, errors.New("collada document has no geometry")
	}

	geometry := colladaModel.Geometries[0]
	mesh := &geometry.Mesh
	positions, err := positionSource(mesh)
	if err != nil {
		return Geometry{}, fmt.Errorf("%s: %w", geometry.ID, err)
	}

	g := Geometry{Name: geometry.Name}
	if g.Name == "" {
		g.Name = geometry.ID
	}

	type corner struct{ pos, normal, uv int }
	seen := make(map[corner]uint32)

	for _, tris := range mesh.Triangles {
		stride := tris.Stride()
		vertexInput, ok := tris.Input(collada.SemanticVertex)
		if !ok {
			return Geometry{}, fmt.Errorf("%s: triangles without %s input", geometry.ID, collada.SemanticVertex)
		}
		normals, normalOffset, err := optionalSource(mesh, &tris, collada.SemanticNormal)
		if err != nil {
			return Geometry{}, err
		}
		uvs, uvOffset, err := optionalSource(mesh, &tris, collada.SemanticTexCoord)
		if err != nil {
			return Geometry{}, err
		}

		if len(tris.Index)%(3*stride) != 0 {
			return Geometry{}, fmt.Errorf("%s: %d indices are not whole triangles of stride %d", geometry.ID, len(tris.Index), stride)
		}
		for idx := 0; idx < len(tris.Index)/stride; idx++ {
			indices := tris.Index[stride*idx : stride*idx+stride]
			key := corner{pos: indices[vertexInput.Offset], normal: -1, uv: -1}
			if normals != nil {
				key.normal = indices[normalOffset]
			}
			if uvs != nil {
				key.uv = indices[uvOffset]
			}
			if i, ok := seen[key]; ok {
				g.Indices = append(g.Indices, i)
				continue
			}

			var vert Vertex
			p, err := positions.Element(key.pos)
			if err != nil {
				return Geometry{}, err
			}
			vert.Pos = glm.Vec3{p[0], p[1], p[2]}
			vert.Color = white
			if normals != nil {
				n, err := normals.Element(key.normal)
				if err != nil {
					return Geometry{}, err
				}
				vert.Normal = glm.Vec3{n[0], n[1], n[2]}
			}
			if uvs != nil {
				t, err := uvs.Element(key.uv)
				if err != nil {
					return Geometry{}, err
				}
				// Collada's V axis points up
				vert.TexCoord = glm.Vec2{t[0], 1 - t[1]}
			}

			i := uint32(len(g.Vertices))
			seen[key] = i
			g.Vertices = append(g.Vertices, vert)
			g.Indices = append(g.Indices, i)
		}
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	g.ComputeTangents()
	return g, nil
}

func positionSource(mesh *collada.Mesh) (*collada.Source, error) {
	for _, in := range mesh.Vertices.Inputs {
		if in.Semantic == collada.SemanticPosition {
			src, err := mesh.FindSource(in.Source)
			if err != nil {
				return nil, err
			}
			if src.Stride() < 3 {
				return nil, fmt.Errorf("position source %s has stride %d", src.ID, src.Stride())
			}
			return src, nil
		}
	}
	return nil, errors.New("source type not found")
}

func optionalSource(mesh *collada.Mesh, tris *collada.Triangles, semantic string) (*collada.Source, uint, error) {
	in, ok := tris.Input(semantic)
	if !ok {
		return nil, 0, nil
	}
	src, err := mesh.FindSource(in.Source)
	if err != nil {
		return nil, 0, err
	}
	want := 3
	if semantic == collada.SemanticTexCoord {
		want = 2
	}
	if src.Stride() < want {
		return nil, 0, fmt.Errorf("%s source %s has stride %d", semantic, src.ID, src.Stride())
	}
	return src, in.Offset, nil
}
