// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
)

func TestFrameGraph(t *testing.T) {
	c := qt.New(t)
	g := newFrameGraph(3)
	display := glm.Vec2{800, 600}

	data := g.OverlayDrawData()
	c.Assert(data.Empty(), qt.IsTrue)

	g.Add(10*time.Millisecond, display)
	g.Add(25*time.Millisecond, display)
	data = g.OverlayDrawData()
	c.Assert(data.Vertices, qt.HasLen, 8)
	c.Assert(data.Indices, qt.HasLen, 12)
	c.Assert(data.Commands, qt.HasLen, 1)
	c.Assert(data.Commands[0].IndexCount, qt.Equals, uint32(12))
	c.Assert(data.DisplaySize, qt.Equals, display)

	// 10ms of a 50ms ceiling is a fifth of the graph
	c.Assert(data.Vertices[0].Pos, qt.Equals, glm.Vec2{10, 578})
	c.Assert(data.Vertices[2].Pos, qt.Equals, glm.Vec2{11, 590})
	c.Assert(data.Vertices[0].Color, qt.Equals, packColor(80, 220, 80, 200))
	c.Assert(data.Vertices[4].Color, qt.Equals, packColor(230, 200, 60, 200))
	c.Assert(data.Indices[6:], qt.DeepEquals, []uint32{4, 5, 6, 4, 6, 7})

	// the oldest sample is dropped once the graph is full
	g.Add(time.Second, display)
	g.Add(100*time.Microsecond, display)
	c.Assert(g.ordered(), qt.DeepEquals, []time.Duration{25 * time.Millisecond, time.Second, 100 * time.Microsecond})

	data = g.OverlayDrawData()
	c.Assert(data.Vertices, qt.HasLen, 12)
	c.Assert(data.Vertices[4].Pos, qt.Equals, glm.Vec2{11, 530})
	c.Assert(data.Vertices[4].Color, qt.Equals, packColor(230, 60, 60, 200))
	c.Assert(data.Vertices[8].Pos, qt.Equals, glm.Vec2{12, 589})
}
