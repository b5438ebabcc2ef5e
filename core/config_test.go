// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)
	// exported but empty variables fall back to the defaults
	for _, key := range []string{
		"UMBRA_WIDTH", "UMBRA_HEIGHT", "UMBRA_VSYNC", "UMBRA_FRAMES_IN_FLIGHT", "UMBRA_STRICT", "UMBRA_DEBUG",
		"UMBRA_FPS", "UMBRA_WINDOW", "UMBRA_SHADERS", "UMBRA_ASSETS", "UMBRA_LOG_LEVEL",
	} {
		c.Setenv(key, "")
	}

	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, core.DefaultConfiguration())
	c.Assert(cfg.Renderer.FramesInFlight, qt.Equals, 2)
	c.Assert(cfg.Renderer.RegistryCapacity, qt.Equals, 128)
}

func TestLoadConfigurationOverrides(t *testing.T) {
	c := qt.New(t)
	c.Setenv("UMBRA_WIDTH", "1280")
	c.Setenv("UMBRA_VSYNC", "false")
	c.Setenv("UMBRA_FRAMES_IN_FLIGHT", "3")
	c.Setenv("UMBRA_WINDOW", "glfw")
	c.Setenv("UMBRA_LOG_LEVEL", "debug")

	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1280))
	c.Assert(cfg.Renderer.VSync, qt.IsFalse)
	c.Assert(cfg.Renderer.FramesInFlight, qt.Equals, 3)
	c.Assert(cfg.Window.Backend, qt.Equals, "glfw")
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
	c.Assert(cfg.Log.Apply(), qt.IsNil)
}

func TestLoadConfigurationEnvFile(t *testing.T) {
	c := qt.New(t)
	os.Unsetenv("UMBRA_HEIGHT")
	c.Cleanup(func() { os.Unsetenv("UMBRA_HEIGHT") })

	path := filepath.Join(c.TempDir(), "umbra.env")
	c.Assert(os.WriteFile(path, []byte("UMBRA_HEIGHT=720\n"), 0644), qt.IsNil)

	cfg, err := core.LoadConfiguration(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(720))

	_, err = core.LoadConfiguration(filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.IsNil)
}

func TestLoadConfigurationErrors(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		key, value, err string
	}{
		{"UMBRA_WIDTH", "wide", "UMBRA_WIDTH: .*"},
		{"UMBRA_VSYNC", "sometimes", "UMBRA_VSYNC: .*"},
		{"UMBRA_FRAMES_IN_FLIGHT", "4", "UMBRA_FRAMES_IN_FLIGHT: 4 is not between 1 and 3"},
		{"UMBRA_WINDOW", "x11", `UMBRA_WINDOW: unknown backend "x11"`},
		{"UMBRA_LOG_LEVEL", "loud", "UMBRA_LOG_LEVEL: .*"},
	}

	for _, test := range tests {
		c.Run(test.key, func(c *qt.C) {
			c.Setenv(test.key, test.value)
			_, err := core.LoadConfiguration("")
			c.Assert(err, qt.ErrorMatches, test.err)
		})
	}
}
