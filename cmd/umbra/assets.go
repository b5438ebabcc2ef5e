// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"errors"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/model"
	"github.com/devblok/umbra/scene"
	"github.com/devblok/umbra/utility/kar"
)

// Archive entries used by the demo scene
const (
	modelEntry   = "models/suzanne.dae"
	textureEntry = "textures/albedo.png"

	maxTextureSize = 2048
)

// assets reads from a kar archive when one is configured and from
// the shader directory otherwise.
type assets struct {
	archive *kar.File
	box     packr.Box
}

func openAssets(cfg core.AssetConfiguration) (*assets, error) {
	if cfg.Archive == "" {
		return &assets{box: packr.NewBox(cfg.ShaderDirectory)}, nil
	}
	archive, err := kar.OpenFile(cfg.Archive)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"archive": cfg.Archive,
		"author":  archive.Header.Author,
		"files":   len(archive.Header.Index),
	}).Info("Opened asset archive")
	return &assets{archive: archive}, nil
}

func (a *assets) Shaders() core.ShaderSource {
	if a.archive != nil {
		return a.archive
	}
	return a.box
}

// find returns nil data without an error when the entry does not exist
func (a *assets) find(name string) ([]byte, error) {
	if a.archive == nil {
		return nil, nil
	}
	data, err := a.archive.ReadAll(name)
	if errors.Is(err, kar.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (a *assets) Close() error {
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}

func (a *assets) texture() (model.TextureData, error) {
	data, err := a.find(textureEntry)
	if err != nil || data == nil {
		return model.SolidTexture(200, 120, 80, 255), err
	}
	return model.DecodeTexture(bytes.NewReader(data), maxTextureSize)
}

func (a *assets) geometry() (model.Geometry, error) {
	data, err := a.find(modelEntry)
	if err != nil || data == nil {
		return model.Cube(1), err
	}
	return model.ImportCollada(data)
}

// populate uploads the demo resources and builds a scene around them
func populate(registry *renderer.Registry, a *assets, aspect float32) (*scene.Scene, error) {
	pixels, err := a.texture()
	if err != nil {
		return nil, err
	}
	texture, err := registry.CreateTexture(pixels.Pixels, pixels.Width, pixels.Height)
	if err != nil {
		return nil, err
	}
	material, err := registry.CreateMaterial(renderer.MaterialInfo{
		Name:      "albedo",
		Color:     glm.Vec4{1, 1, 1, 1},
		Roughness: 0.6,
		Textures:  []renderer.TextureHandle{texture},
	})
	if err != nil {
		return nil, err
	}

	geometry, err := a.geometry()
	if err != nil {
		return nil, err
	}
	mesh, err := registry.CreateGeometry(geometry)
	if err != nil {
		return nil, err
	}
	floor, err := registry.CreateGeometry(model.Cube(1))
	if err != nil {
		return nil, err
	}

	world := scene.New(8, scene.NewCamera(glm.Vec3{0, 2, 6}, glm.Vec3{}, aspect))

	ground := scene.NewTransform(glm.Vec3{0, -1.5, 0})
	ground.Scale = glm.Vec3{20, 0.2, 20}
	if _, err := world.AddEntity(ground, renderer.RenderComponent{
		Geometry: floor,
		Material: renderer.DefaultMaterial,
		Used:     true,
		Active:   true,
	}); err != nil {
		return nil, err
	}

	pivot, err := world.AddEntity(scene.NewTransform(glm.Vec3{}), renderer.RenderComponent{})
	if err != nil {
		return nil, err
	}
	for i, x := range []float32{-2, 0, 2} {
		t := scene.NewTransform(glm.Vec3{x, 0, 0})
		t.Parent = int(pivot)
		t.Rotation = glm.QuatRotate(float32(i)*glm.DegToRad(30), glm.Vec3{0, 1, 0})
		if _, err := world.AddEntity(t, renderer.RenderComponent{
			Geometry: mesh,
			Material: material,
			Used:     true,
			Active:   true,
		}); err != nil {
			return nil, err
		}
	}

	sun := scene.NewLight(renderer.DirectionalLight, glm.Vec3{0, 10, 5})
	sun.Direction = glm.Vec3{0, -1, -0.5}.Normalize()
	sun.Update()
	world.AddLight(sun)

	lamp := scene.NewLight(renderer.PointLight, glm.Vec3{2, 2, 2})
	lamp.Color = glm.Vec4{1, 0.8, 0.6, 1}
	lamp.Update()
	world.AddLight(lamp)

	world.Update()
	return world, nil
}
