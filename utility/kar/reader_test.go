// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx/gfxtest"
	"github.com/devblok/umbra/utility/kar"
)

var spirv = string([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})

func TestArchiveAsShaderSource(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{
		"shaders/gbuffer.vert.spv":  spirv,
		"shaders/gbuffer.frag.spv":  spirv,
		"shaders/lighting.vert.spv": spirv,
		"textures/brick.png":        "not a shader",
	})
	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	var source core.ShaderSource = ar
	ctx, err := core.NewContext(gfxtest.NewInstance(), 0, core.ContextConfiguration{})
	c.Assert(err, qt.IsNil)
	defer ctx.Destroy()

	set, err := core.LoadShaders(ctx.Device, source)
	c.Assert(err, qt.IsNil)
	defer set.Destroy()
	c.Assert(set, qt.HasLen, 3)

	stages, err := set.Stages("gbuffer")
	c.Assert(err, qt.IsNil)
	c.Assert(stages, qt.HasLen, 2)
}
