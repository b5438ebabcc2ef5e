// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/scene"
	"github.com/devblok/umbra/window"
)

func newScene(capacity int) *scene.Scene {
	return scene.New(capacity, scene.NewCamera(glm.Vec3{0, 0, 5}, glm.Vec3{}, 4.0/3.0))
}

// near compares with an absolute tolerance, components may be zero
func near(a, b glm.Vec3) bool {
	return a.Sub(b).Len() < 1e-5
}

func origin(m glm.Mat4) glm.Vec3 {
	return m.Mul4x1(glm.Vec4{0, 0, 0, 1}).Vec3()
}

func TestHierarchy(t *testing.T) {
	c := qt.New(t)
	s := newScene(4)

	// the child comes before its parent in the table
	child, err := s.AddEntity(scene.NewTransform(glm.Vec3{1, 0, 0}), renderer.RenderComponent{Used: true, Active: true})
	c.Assert(err, qt.IsNil)
	parent, err := s.AddEntity(scene.NewTransform(glm.Vec3{0, 10, 0}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)
	grandparent, err := s.AddEntity(scene.NewTransform(glm.Vec3{0, 0, 100}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)

	c.Assert(s.SetParent(child, parent), qt.IsNil)
	c.Assert(s.SetParent(parent, grandparent), qt.IsNil)

	pt, err := s.Transform(parent)
	c.Assert(err, qt.IsNil)
	pt.Rotation = glm.QuatRotate(glm.DegToRad(90), glm.Vec3{0, 0, 1})

	s.Update()
	c.Assert(near(origin(s.WorldMatrix(int(child))), glm.Vec3{0, 11, 100}), qt.IsTrue,
		qt.Commentf("%v", origin(s.WorldMatrix(int(child)))))
	c.Assert(origin(s.WorldMatrix(int(parent))), qt.Equals, glm.Vec3{0, 10, 100})

	ct, _ := s.Transform(child)
	c.Assert(ct.Model, qt.Equals, glm.Translate3D(1, 0, 0))

	// detached children keep only their own transform
	c.Assert(s.SetParent(child, scene.NoParent), qt.IsNil)
	s.Update()
	c.Assert(origin(s.WorldMatrix(int(child))), qt.Equals, glm.Vec3{1, 0, 0})

	c.Assert(s.WorldMatrix(42), qt.Equals, glm.Ident4())
	c.Assert(s.RenderComponents(), qt.HasLen, 3)
	c.Assert(s.RenderComponents()[child].Active, qt.IsTrue)
}

func TestSetParentErrors(t *testing.T) {
	c := qt.New(t)
	s := newScene(3)

	a, err := s.AddEntity(scene.NewTransform(glm.Vec3{}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)
	b, err := s.AddEntity(scene.NewTransform(glm.Vec3{}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)

	c.Assert(s.SetParent(a, b), qt.IsNil)
	c.Assert(s.SetParent(b, a), qt.ErrorIs, scene.ErrParentCycle)
	c.Assert(s.SetParent(a, a), qt.ErrorIs, scene.ErrParentCycle)
	c.Assert(s.SetParent(a, 7), qt.ErrorMatches, "parent of 0: entity 7: no such entity")
	c.Assert(s.SetParent(-2, a), qt.ErrorIs, scene.ErrNoEntity)

	// a parent given on creation must exist
	orphan := scene.NewTransform(glm.Vec3{})
	orphan.Parent = 5
	_, err = s.AddEntity(orphan, renderer.RenderComponent{})
	c.Assert(err, qt.ErrorIs, scene.ErrNoEntity)
	c.Assert(s.Len(), qt.Equals, 2)

	orphan.Parent = int(b)
	third, err := s.AddEntity(orphan, renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)
	_, err = s.AddEntity(scene.NewTransform(glm.Vec3{}), renderer.RenderComponent{})
	c.Assert(err, qt.ErrorIs, scene.ErrSceneFull)

	tt, err := s.Transform(third)
	c.Assert(err, qt.IsNil)
	c.Assert(tt.Parent, qt.Equals, int(b))
	_, err = s.Render(3)
	c.Assert(err, qt.ErrorIs, scene.ErrNoEntity)
}

func TestUpdateWithParentsWrittenDirectly(t *testing.T) {
	c := qt.New(t)
	s := newScene(3)

	a, err := s.AddEntity(scene.NewTransform(glm.Vec3{1, 0, 0}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)
	b, err := s.AddEntity(scene.NewTransform(glm.Vec3{0, 2, 0}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)
	stray, err := s.AddEntity(scene.NewTransform(glm.Vec3{0, 0, 3}), renderer.RenderComponent{})
	c.Assert(err, qt.IsNil)

	ta, _ := s.Transform(a)
	tb, _ := s.Transform(b)
	ts, _ := s.Transform(stray)
	ta.Parent = int(b)
	tb.Parent = int(a)
	ts.Parent = 99

	// the cycle is cut where it closes, b is resolved first as a's parent
	s.Update()
	c.Assert(origin(s.WorldMatrix(int(b))), qt.Equals, glm.Vec3{0, 2, 0})
	c.Assert(origin(s.WorldMatrix(int(a))), qt.Equals, glm.Vec3{1, 2, 0})
	c.Assert(origin(s.WorldMatrix(int(stray))), qt.Equals, glm.Vec3{0, 0, 3})

	ts.Parent = -5
	s.Update()
	c.Assert(origin(s.WorldMatrix(int(stray))), qt.Equals, glm.Vec3{0, 0, 3})
}

func TestLights(t *testing.T) {
	c := qt.New(t)
	s := newScene(1)

	l := scene.NewLight(renderer.SpotLight, glm.Vec3{0, 5, 0})
	c.Assert(l.Fov, qt.Equals, float32(scene.DefaultLightFov))
	c.Assert(l.Near, qt.Equals, float32(scene.DefaultLightNear))
	c.Assert(l.Far, qt.Equals, float32(scene.DefaultLightFar))
	c.Assert(l.Projection, qt.Equals, glm.Perspective(glm.DegToRad(45), 1, 0.1, 100))

	idx := s.AddLight(l)
	s.AddLight(scene.NewLight(renderer.DirectionalLight, glm.Vec3{0, 10, 0}))
	c.Assert(s.Lights(), qt.HasLen, 0)

	s.Update()
	lights := s.Lights()
	c.Assert(lights, qt.HasLen, 2)
	c.Assert(lights[0].Type, qt.Equals, renderer.SpotLight)
	c.Assert(lights[1].Projection, qt.Equals, glm.Ortho(-20, 20, -20, 20, 0.1, 100))

	// the view looks from the light's position along its direction
	c.Assert(near(origin(lights[0].View.Inv()), glm.Vec3{0, 5, 0}), qt.IsTrue)

	light, err := s.Light(idx)
	c.Assert(err, qt.IsNil)
	light.Color = glm.Vec4{1, 0, 0, 1}
	s.Update()
	c.Assert(s.Lights()[0].Color, qt.Equals, glm.Vec4{1, 0, 0, 1})

	_, err = s.Light(2)
	c.Assert(err, qt.ErrorIs, scene.ErrNoEntity)
}

func TestCamera(t *testing.T) {
	c := qt.New(t)
	s := newScene(1)

	cam := s.Camera()
	c.Assert(cam.Position, qt.Equals, glm.Vec3{0, 0, 5})
	c.Assert(cam.Direction, qt.Equals, glm.Vec3{0, 0, -1})
	c.Assert(cam.View, qt.Equals, glm.LookAtV(glm.Vec3{0, 0, 5}, glm.Vec3{0, 0, 4}, glm.Vec3{0, 1, 0}))

	// Vulkan clip space has Y pointing down
	c.Assert(cam.Projection.At(1, 1) < 0, qt.IsTrue)

	s.SetAspect(1000, 500)
	s.SetAspect(0, 500)
	s.Update()
	c.Assert(s.MainCamera().Aspect, qt.Equals, float32(2))
	expected := glm.Perspective(glm.DegToRad(60), 2, 0.1, 1000)
	c.Assert(s.Camera().Projection.At(0, 0), qt.Equals, expected.At(0, 0))
}

func TestFlyCamera(t *testing.T) {
	c := qt.New(t)
	cam := scene.NewCamera(glm.Vec3{}, glm.Vec3{0, 0, -1}, 1)
	fly := scene.NewFlyCamera(&cam)
	c.Assert(near(fly.Forward(), glm.Vec3{0, 0, -1}), qt.IsTrue)

	in := window.NewInput()
	in.SetKey(window.KeyW, true)
	fly.Update(&cam, in, time.Second)
	c.Assert(near(cam.Position, glm.Vec3{0, 0, -5}), qt.IsTrue, qt.Commentf("%v", cam.Position))

	in.SetKey(window.KeyW, false)
	in.SetKey(window.KeyD, true)
	in.SetKey(window.KeyLeftShift, true)
	fly.Update(&cam, in, 500*time.Millisecond)
	c.Assert(near(cam.Position, glm.Vec3{7.5, 0, -5}), qt.IsTrue, qt.Commentf("%v", cam.Position))

	// looking around needs the right button
	in.Reset()
	in.SetMousePosition(0, 0)
	in.BeginFrame()
	in.SetMousePosition(100, 0)
	fly.Update(&cam, in, 0)
	c.Assert(near(cam.Direction, glm.Vec3{0, 0, -1}), qt.IsTrue)

	in.SetMouseButton(window.MouseRight, true)
	fly.Sensitivity = glm.DegToRad(90) / 100
	fly.Update(&cam, in, 0)
	c.Assert(near(cam.Direction, glm.Vec3{1, 0, 0}), qt.IsTrue, qt.Commentf("%v", cam.Direction))

	// pitch stops short of straight up
	in.BeginFrame()
	in.SetMousePosition(100, -1000)
	fly.Update(&cam, in, 0)
	c.Assert(cam.Direction.Y() < 1, qt.IsTrue)
	c.Assert(cam.Direction.Y() > 0.99, qt.IsTrue)
}
