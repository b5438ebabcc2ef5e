// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package collada_test

import (
	"encoding/xml"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/util/collada"
)

func TestTrianglesDecode(t *testing.T) {
	c := qt.New(t)
	data := `
		<triangles material="Material-material" count="12">
		<input semantic="VERTEX" source="#Cube-mesh-vertices" offset="0"/>
		<input semantic="NORMAL" source="#Cube-mesh-normals" offset="1"/>
		<p>0 0 2 0 3 0 7 1 5 1 4 1 4 2 1 2 0 2 5 3 2 3 1 3 2 4 7 4 3 4 0 5 7 5 4 5
		0 6 1 6 2 6 7 7 6 7 5 7 4 8 5 8 1 8 5 9 6 9 2 9 2 10 6 10 7 10 0 11 3 11 7 11</p>
		</triangles>
	`
	var triangles collada.Triangles
	c.Assert(xml.Unmarshal([]byte(data), &triangles), qt.IsNil)

	c.Assert(triangles.Material, qt.Equals, "Material-material")
	c.Assert(triangles.Count, qt.Equals, 12)
	c.Assert(triangles.Inputs, qt.HasLen, 2)
	c.Assert(triangles.Index, qt.HasLen, 12*6)
	c.Assert(triangles.Stride(), qt.Equals, 2)

	normal, ok := triangles.Input(collada.SemanticNormal)
	c.Assert(ok, qt.IsTrue)
	c.Assert(normal.Offset, qt.Equals, uint(1))
	_, ok = triangles.Input(collada.SemanticTexCoord)
	c.Assert(ok, qt.IsFalse)
}

func TestSourceDecode(t *testing.T) {
	c := qt.New(t)
	data := `
		<mesh>
		<source id="Tri-mesh-positions">
			<float_array id="Tri-mesh-positions-array" count="6">0 1 2
			3 4 5</float_array>
			<technique_common>
				<accessor source="#Tri-mesh-positions-array" count="2" stride="3"/>
			</technique_common>
		</source>
		</mesh>
	`
	var mesh collada.Mesh
	c.Assert(xml.Unmarshal([]byte(data), &mesh), qt.IsNil)

	src, err := mesh.FindSource("#Tri-mesh-positions")
	c.Assert(err, qt.IsNil)
	c.Assert(src.Stride(), qt.Equals, 3)
	c.Assert(src.Floats.Count, qt.Equals, 6)

	elem, err := src.Element(1)
	c.Assert(err, qt.IsNil)
	c.Assert(elem, qt.DeepEquals, []float32{3, 4, 5})

	_, err = src.Element(2)
	c.Assert(err, qt.ErrorMatches, "source Tri-mesh-positions has no element 2")

	_, err = mesh.FindSource("#missing")
	c.Assert(err, qt.ErrorMatches, `source "#missing" not found`)
}

func TestFloatsCountMismatch(t *testing.T) {
	c := qt.New(t)
	var floats collada.Floats
	err := xml.Unmarshal([]byte(`<float_array id="f" count="3">1 2</float_array>`), &floats)
	c.Assert(err, qt.ErrorMatches, "float_array f declares 3 values, has 2")
}
