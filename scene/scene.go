// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene keeps entities as parallel component tables and
// feeds them to the renderer.
package scene

import (
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core/renderer"
)

var _ renderer.SceneView = (*Scene)(nil)

// Scene errors
var (
	ErrSceneFull   = errors.New("scene is full")
	ErrNoEntity    = errors.New("no such entity")
	ErrParentCycle = errors.New("transform would be its own ancestor")
)

// Entity indexes the component tables
type Entity int

// Scene holds a fixed number of entities. Transform i and render
// component i belong to entity i.
type Scene struct {
	capacity int

	transforms []Transform
	renders    []renderer.RenderComponent
	lights     []LightComponent
	camera     CameraComponent

	// scratch for Update
	states []resolveState
	views  []renderer.Light
}

type resolveState uint8

const (
	unresolved resolveState = iota
	resolving
	resolved
)

// New creates an empty scene for up to capacity entities
func New(capacity int, camera CameraComponent) *Scene {
	return &Scene{
		capacity:   capacity,
		transforms: make([]Transform, 0, capacity),
		renders:    make([]renderer.RenderComponent, 0, capacity),
		camera:     camera,
	}
}

// AddEntity appends an entity with its transform and render component
func (s *Scene) AddEntity(t Transform, r renderer.RenderComponent) (Entity, error) {
	if len(s.transforms) >= s.capacity {
		return -1, fmt.Errorf("%d entities: %w", s.capacity, ErrSceneFull)
	}
	e := Entity(len(s.transforms))
	s.transforms = append(s.transforms, t)
	s.renders = append(s.renders, r)
	if t.Parent != NoParent {
		if err := s.SetParent(e, Entity(t.Parent)); err != nil {
			s.transforms = s.transforms[:e]
			s.renders = s.renders[:e]
			return -1, err
		}
	}
	return e, nil
}

// Len is the number of entities
func (s *Scene) Len() int {
	return len(s.transforms)
}

func (s *Scene) check(e Entity) error {
	if e < 0 || int(e) >= len(s.transforms) {
		return fmt.Errorf("entity %d: %w", e, ErrNoEntity)
	}
	return nil
}

// Transform returns the transform of an entity for modification
func (s *Scene) Transform(e Entity) (*Transform, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	return &s.transforms[e], nil
}

// Render returns the render component of an entity for modification
func (s *Scene) Render(e Entity) (*renderer.RenderComponent, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	return &s.renders[e], nil
}

// SetParent attaches e to parent, NoParent detaches it
func (s *Scene) SetParent(e, parent Entity) error {
	if err := s.check(e); err != nil {
		return err
	}
	if parent == NoParent {
		s.transforms[e].Parent = NoParent
		return nil
	}
	if err := s.check(parent); err != nil {
		return fmt.Errorf("parent of %d: %w", e, err)
	}
	for p := int(parent); p != NoParent; p = s.transforms[p].Parent {
		if p == int(e) {
			return fmt.Errorf("parent %d of %d: %w", parent, e, ErrParentCycle)
		}
	}
	s.transforms[e].Parent = int(parent)
	return nil
}

// AddLight adds a light and returns its index
func (s *Scene) AddLight(l LightComponent) int {
	s.lights = append(s.lights, l)
	return len(s.lights) - 1
}

// Light returns a light for modification
func (s *Scene) Light(idx int) (*LightComponent, error) {
	if idx < 0 || idx >= len(s.lights) {
		return nil, fmt.Errorf("light %d: %w", idx, ErrNoEntity)
	}
	return &s.lights[idx], nil
}

// MainCamera returns the camera for modification
func (s *Scene) MainCamera() *CameraComponent {
	return &s.camera
}

// SetAspect updates the camera after the window changed size
func (s *Scene) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.camera.Aspect = float32(width) / float32(height)
}

// Update recomputes model and world matrices, light and camera matrices.
// Parents are resolved before their children whatever their order.
func (s *Scene) Update() {
	if cap(s.states) < len(s.transforms) {
		s.states = make([]resolveState, len(s.transforms))
	}
	s.states = s.states[:len(s.transforms)]
	for idx := range s.states {
		s.states[idx] = unresolved
	}
	for idx := range s.transforms {
		s.resolve(idx)
	}

	s.views = s.views[:0]
	for idx := range s.lights {
		s.lights[idx].Update()
		s.views = append(s.views, s.lights[idx].Light())
	}
	s.camera.Update()
}

// resolve computes the world matrix of idx. A parent written directly into
// a Transform that is out of range or closes a cycle is treated as no parent.
func (s *Scene) resolve(idx int) glm.Mat4 {
	t := &s.transforms[idx]
	if s.states[idx] == resolved {
		return t.World
	}
	s.states[idx] = resolving
	t.Model = t.ModelMatrix()
	t.World = t.Model
	switch p := t.Parent; {
	case p == NoParent:
	case p < 0 || p >= len(s.transforms):
		log.WithFields(log.Fields{"entity": idx, "parent": p}).Warn("Transform parent out of range")
	case s.states[p] == resolving:
		log.WithFields(log.Fields{"entity": idx, "parent": p}).Warn("Transform parent cycle")
	default:
		t.World = s.resolve(p).Mul4(t.Model)
	}
	s.states[idx] = resolved
	return t.World
}

// Camera implements renderer.SceneView
func (s *Scene) Camera() renderer.Camera {
	return s.camera.Camera()
}

// Lights implements renderer.SceneView, as of the last Update
func (s *Scene) Lights() []renderer.Light {
	return s.views
}

// RenderComponents implements renderer.SceneView
func (s *Scene) RenderComponents() []renderer.RenderComponent {
	return s.renders
}

// WorldMatrix implements renderer.SceneView, as of the last Update
func (s *Scene) WorldMatrix(entity int) glm.Mat4 {
	if entity < 0 || entity >= len(s.transforms) {
		return glm.Ident4()
	}
	return s.transforms[entity].World
}
