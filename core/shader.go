// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobuffalo/packd"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/gfx"
)

const (
	shaderSuffix = ".spv"
	spirvMagic   = 0x07230203
)

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

func (t ShaderType) String() string {
	switch t {
	case VertexShaderType:
		return "vert"
	case FragmentShaderType:
		return "frag"
	}
	return "unknown"
}

// Stage returns the pipeline stage the shader type runs in
func (t ShaderType) Stage() gfx.ShaderStage {
	switch t {
	case VertexShaderType:
		return gfx.ShaderStageVertex
	case FragmentShaderType:
		return gfx.ShaderStageFragment
	}
	return 0
}

// ShaderSource is where compiled shaders are read from, a packr box,
// a kar archive or an in memory box in tests.
type ShaderSource interface {
	packd.Finder
	packd.Lister
}

// ParseShaderName splits a compiled shader file name.
// It is important that the file name does not contain more than two dots,
// the first is always the name of the shader, second is type, and the third one
// ensures that the shader is compiled (only compiled shaders have an .spv extension).
func ParseShaderName(filename string) (string, ShaderType, bool) {
	filename = path.Base(filename)
	if !strings.HasSuffix(filename, shaderSuffix) {
		return "", UnknownShaderType, false
	}

	nodes := strings.Split(strings.TrimSuffix(filename, shaderSuffix), ".")
	if len(nodes) != 2 || nodes[0] == "" {
		return "", UnknownShaderType, false
	}

	switch nodes[1] {
	case "vert":
		return nodes[0], VertexShaderType, true
	case "frag":
		return nodes[0], FragmentShaderType, true
	}
	return "", UnknownShaderType, false
}

// Shader is a shader module created from compiled SPIR-V
type Shader struct {
	Name   string
	Type   ShaderType
	Module gfx.ShaderModule

	device gfx.Device
}

// Stage describes the shader as a pipeline stage
func (s *Shader) Stage() gfx.ShaderStageInfo {
	return gfx.ShaderStageInfo{
		Stage:  s.Type.Stage(),
		Module: s.Module,
		Entry:  "main",
	}
}

// Destroy destroys the shader module
func (s *Shader) Destroy() {
	s.device.DestroyShaderModule(s.Module)
}

// NewShader creates a shader module from compiled SPIR-V
func NewShader(device gfx.Device, name string, shaderType ShaderType, code []byte) (*Shader, error) {
	if len(code) < 4 || len(code)%4 != 0 || SliceUint32(code)[0] != spirvMagic {
		return nil, fmt.Errorf("shader %s.%s is not SPIR-V", name, shaderType)
	}

	module, err := device.CreateShaderModule(code)
	if err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(%s.%s): %w", name, shaderType, err)
	}

	return &Shader{
		Name:   name,
		Type:   shaderType,
		Module: module,
		device: device,
	}, nil
}

// ShaderSet holds shaders by name and type
type ShaderSet map[string]*Shader

func shaderKey(name string, t ShaderType) string {
	return name + "." + t.String()
}

// LoadShaders creates a module for every compiled shader the source lists.
// Files that are not compiled shaders are skipped.
func LoadShaders(device gfx.Device, source ShaderSource) (ShaderSet, error) {
	set := make(ShaderSet)
	for _, file := range source.List() {
		name, shaderType, ok := ParseShaderName(file)
		if !ok {
			continue
		}

		code, err := source.Find(file)
		if err != nil {
			set.Destroy()
			return nil, fmt.Errorf("shader %s: %w", file, err)
		}

		shader, err := NewShader(device, name, shaderType, code)
		if err != nil {
			set.Destroy()
			return nil, err
		}
		set[shaderKey(name, shaderType)] = shader
	}

	log.WithField("count", len(set)).Debug("shaders loaded")
	return set, nil
}

// Get returns the shader with the given name and type
func (s ShaderSet) Get(name string, t ShaderType) (*Shader, error) {
	shader, ok := s[shaderKey(name, t)]
	if !ok {
		return nil, fmt.Errorf("shader %s.%s%s not found", name, t, shaderSuffix)
	}
	return shader, nil
}

// Stages returns the vertex and fragment stage of a shader program
func (s ShaderSet) Stages(name string) ([]gfx.ShaderStageInfo, error) {
	vert, err := s.Get(name, VertexShaderType)
	if err != nil {
		return nil, err
	}
	frag, err := s.Get(name, FragmentShaderType)
	if err != nil {
		return nil, err
	}
	return []gfx.ShaderStageInfo{vert.Stage(), frag.Stage()}, nil
}

// Destroy destroys every shader in the set
func (s ShaderSet) Destroy() {
	for key, shader := range s {
		shader.Destroy()
		delete(s, key)
	}
}
