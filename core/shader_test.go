// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packd"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
	"github.com/devblok/umbra/gfx/gfxtest"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func TestParseShaderName(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		file     string
		name     string
		kind     core.ShaderType
		accepted bool
	}{
		{"gbuffer.vert.spv", "gbuffer", core.VertexShaderType, true},
		{"shaders/lighting.frag.spv", "lighting", core.FragmentShaderType, true},
		{"lighting.frag", "", core.UnknownShaderType, false},
		{"lighting.comp.spv", "", core.UnknownShaderType, false},
		{"too.many.frag.spv", "", core.UnknownShaderType, false},
		{".frag.spv", "", core.UnknownShaderType, false},
	}

	for _, test := range tests {
		name, kind, ok := core.ParseShaderName(test.file)
		c.Assert(ok, qt.Equals, test.accepted, qt.Commentf(test.file))
		c.Assert(name, qt.Equals, test.name, qt.Commentf(test.file))
		c.Assert(kind, qt.Equals, test.kind, qt.Commentf(test.file))
	}
}

func TestLoadShaders(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	box := packd.NewMemoryBox()
	c.Assert(box.AddBytes("gbuffer.vert.spv", spirv), qt.IsNil)
	c.Assert(box.AddBytes("gbuffer.frag.spv", spirv), qt.IsNil)
	c.Assert(box.AddBytes("lighting.vert.spv", spirv), qt.IsNil)
	c.Assert(box.AddString("gbuffer.vert", "#version 450"), qt.IsNil)
	c.Assert(box.AddString("README", "compiled shaders"), qt.IsNil)

	set, err := core.LoadShaders(ctx.Device, box)
	c.Assert(err, qt.IsNil)
	c.Assert(set, qt.HasLen, 3)
	c.Assert(dev.LiveCount(gfxtest.KindShaderModule), qt.Equals, 3)

	stages, err := set.Stages("gbuffer")
	c.Assert(err, qt.IsNil)
	c.Assert(stages, qt.HasLen, 2)
	c.Assert(stages[0].Stage, qt.Equals, gfx.ShaderStageVertex)
	c.Assert(stages[1].Stage, qt.Equals, gfx.ShaderStageFragment)
	c.Assert(stages[1].Entry, qt.Equals, "main")

	_, err = set.Stages("lighting")
	c.Assert(err, qt.ErrorMatches, "shader lighting.frag.spv not found")

	set.Destroy()
	c.Assert(set, qt.HasLen, 0)
	c.Assert(dev.LiveCount(gfxtest.KindShaderModule), qt.Equals, 0)
}

func TestLoadShadersRejectsGarbage(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newTestContext(c, core.ContextConfiguration{})
	defer ctx.Destroy()

	box := packd.NewMemoryBox()
	c.Assert(box.AddBytes("a.vert.spv", spirv), qt.IsNil)
	c.Assert(box.AddString("b.frag.spv", "not spirv"), qt.IsNil)

	_, err := core.LoadShaders(ctx.Device, box)
	c.Assert(err, qt.ErrorMatches, "shader b.frag is not SPIR-V")
	c.Assert(dev.LiveCount(gfxtest.KindShaderModule), qt.Equals, 0)
}
