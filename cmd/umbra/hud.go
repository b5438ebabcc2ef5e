// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"time"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/gfx"
)

const (
	graphHeight = 60
	graphMargin = 10

	// frames taking this long fill the graph
	graphCeiling = 50 * time.Millisecond
)

// frameGraph draws recent frame times as bars in the corner of the screen
type frameGraph struct {
	samples []time.Duration
	next    int
	full    bool
	display glm.Vec2
}

func newFrameGraph(size int) *frameGraph {
	return &frameGraph{samples: make([]time.Duration, size)}
}

func (g *frameGraph) Add(frame time.Duration, display glm.Vec2) {
	g.samples[g.next] = frame
	g.next = (g.next + 1) % len(g.samples)
	if g.next == 0 {
		g.full = true
	}
	g.display = display
}

// ordered returns the samples oldest first
func (g *frameGraph) ordered() []time.Duration {
	if !g.full {
		return g.samples[:g.next]
	}
	return append(append([]time.Duration{}, g.samples[g.next:]...), g.samples[:g.next]...)
}

func packColor(r, gr, b, a uint8) uint32 {
	return uint32(r) | uint32(gr)<<8 | uint32(b)<<16 | uint32(a)<<24
}

func barColor(frame time.Duration) uint32 {
	switch {
	case frame <= 17*time.Millisecond:
		return packColor(80, 220, 80, 200)
	case frame <= 34*time.Millisecond:
		return packColor(230, 200, 60, 200)
	}
	return packColor(230, 60, 60, 200)
}

// OverlayDrawData implements renderer.OverlaySource
func (g *frameGraph) OverlayDrawData() renderer.OverlayDrawData {
	samples := g.ordered()
	if len(samples) == 0 {
		return renderer.OverlayDrawData{DisplaySize: g.display}
	}

	data := renderer.OverlayDrawData{
		Vertices:    make([]renderer.OverlayVertex, 0, 4*len(samples)),
		Indices:     make([]uint32, 0, 6*len(samples)),
		DisplaySize: g.display,
	}
	bottom := g.display.Y() - graphMargin
	for i, frame := range samples {
		height := float32(graphHeight) * float32(frame) / float32(graphCeiling)
		if height > graphHeight {
			height = graphHeight
		}
		if height < 1 {
			height = 1
		}
		left := float32(graphMargin + i)
		color := barColor(frame)
		base := uint32(len(data.Vertices))
		data.Vertices = append(data.Vertices,
			renderer.OverlayVertex{Pos: glm.Vec2{left, bottom - height}, Color: color},
			renderer.OverlayVertex{Pos: glm.Vec2{left + 1, bottom - height}, Color: color},
			renderer.OverlayVertex{Pos: glm.Vec2{left + 1, bottom}, Color: color},
			renderer.OverlayVertex{Pos: glm.Vec2{left, bottom}, Color: color},
		)
		data.Indices = append(data.Indices, base, base+1, base+2, base, base+2, base+3)
	}

	data.Commands = []renderer.OverlayCommand{{
		IndexCount: uint32(len(data.Indices)),
		Scissor: gfx.Rect2D{
			Offset: gfx.Offset2D{X: graphMargin, Y: int32(bottom) - graphHeight},
			Extent: gfx.Extent2D{Width: uint32(len(g.samples)), Height: graphHeight},
		},
	}}
	return data
}
