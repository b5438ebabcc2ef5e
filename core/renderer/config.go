// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	"github.com/devblok/umbra/core"
)

// Renderer limits
const (
	DefaultFramesInFlight   = 2
	MaxFramesInFlight       = 3
	DefaultRegistryCapacity = 128
)

// Configuration describes the renderer configuration
type Configuration struct {
	ScreenWidth  uint32
	ScreenHeight uint32
	VSync        bool

	// FramesInFlight is how many frames the CPU may record ahead of the GPU.
	FramesInFlight int

	// RegistryCapacity is the number of entries of each registry table.
	RegistryCapacity int

	// Shaders must contain gbuffer, lighting and overlay vertex and fragment shaders.
	Shaders core.ShaderSource
}

// NewConfiguration takes the renderer part of the application configuration
func NewConfiguration(cfg core.RendererConfiguration, shaders core.ShaderSource) Configuration {
	return Configuration{
		ScreenWidth:      cfg.ScreenWidth,
		ScreenHeight:     cfg.ScreenHeight,
		VSync:            cfg.VSync,
		FramesInFlight:   cfg.FramesInFlight,
		RegistryCapacity: cfg.RegistryCapacity,
		Shaders:          shaders,
	}
}

func (c *Configuration) validate() error {
	if c.FramesInFlight == 0 {
		c.FramesInFlight = DefaultFramesInFlight
	}
	if c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("frames in flight %d is not between 1 and %d", c.FramesInFlight, MaxFramesInFlight)
	}
	if c.RegistryCapacity == 0 {
		c.RegistryCapacity = DefaultRegistryCapacity
	}
	if c.RegistryCapacity < 1 {
		return fmt.Errorf("registry capacity %d must be positive", c.RegistryCapacity)
	}
	if c.Shaders == nil {
		return fmt.Errorf("no shader source")
	}
	return nil
}
