// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Instance InstanceConfiguration
	Renderer RendererConfiguration
	Window   WindowConfiguration
	Assets   AssetConfiguration
	Log      LogConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between event polls in milliseconds
	EventPollDelay int
}

// InstanceConfiguration is used to configure the graphics instance
type InstanceConfiguration struct {
	ApplicationName string
	DebugMode       bool
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	DeviceExtensions []string

	ScreenWidth  uint32
	ScreenHeight uint32
	VSync        bool

	// FramesInFlight is the number of frames the CPU may record
	// ahead of the GPU, between 1 and 3.
	FramesInFlight int

	// RegistryCapacity is the number of geometries, materials
	// and textures the resource registry can hold.
	RegistryCapacity int

	FenceTimeout time.Duration

	// Strict turns leaked resources into an error at teardown
	Strict bool
}

// WindowConfiguration is used to configure the window
type WindowConfiguration struct {
	Title string

	// Backend is either "sdl" or "glfw"
	Backend string
}

// AssetConfiguration tells where assets are loaded from
type AssetConfiguration struct {
	// ShaderDirectory is used when no archive is set
	ShaderDirectory string

	// Archive is a kar archive holding compiled shaders and models
	Archive string
}

// LogConfiguration is used to configure logging
type LogConfiguration struct {
	Level string
}

// Apply sets up the standard logger
func (c LogConfiguration) Apply() error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// DefaultConfiguration is the configuration used when nothing overrides it
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 144,
			EventPollDelay:  10,
		},
		Instance: InstanceConfiguration{
			ApplicationName: "Umbra",
		},
		Renderer: RendererConfiguration{
			DeviceExtensions: []string{
				"VK_KHR_swapchain",
			},
			ScreenWidth:      800,
			ScreenHeight:     600,
			VSync:            true,
			FramesInFlight:   2,
			RegistryCapacity: 128,
			FenceTimeout:     DefaultFenceTimeout,
		},
		Window: WindowConfiguration{
			Title:   "Umbra",
			Backend: "sdl",
		},
		Assets: AssetConfiguration{
			ShaderDirectory: "./shaders",
		},
		Log: LogConfiguration{
			Level: "info",
		},
	}
}

// LoadConfiguration reads UMBRA_* variables over the defaults. When envFile
// is not empty and exists it is loaded into the environment first.
func LoadConfiguration(envFile string) (Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Configuration{}, fmt.Errorf("godotenv.Load(%s): %w", envFile, err)
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration()

	var err error
	if cfg.Renderer.ScreenWidth, err = envUint32("UMBRA_WIDTH", cfg.Renderer.ScreenWidth); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32("UMBRA_HEIGHT", cfg.Renderer.ScreenHeight); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.VSync, err = envBool("UMBRA_VSYNC", cfg.Renderer.VSync); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.FramesInFlight, err = envInt("UMBRA_FRAMES_IN_FLIGHT", cfg.Renderer.FramesInFlight); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.FramesInFlight < 1 || cfg.Renderer.FramesInFlight > 3 {
		return Configuration{}, fmt.Errorf("UMBRA_FRAMES_IN_FLIGHT: %d is not between 1 and 3", cfg.Renderer.FramesInFlight)
	}
	if cfg.Renderer.Strict, err = envBool("UMBRA_STRICT", cfg.Renderer.Strict); err != nil {
		return Configuration{}, err
	}
	if cfg.Instance.DebugMode, err = envBool("UMBRA_DEBUG", cfg.Instance.DebugMode); err != nil {
		return Configuration{}, err
	}
	if cfg.Time.FramesPerSecond, err = envInt("UMBRA_FPS", cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}

	cfg.Window.Backend = envString("UMBRA_WINDOW", cfg.Window.Backend)
	switch cfg.Window.Backend {
	case "sdl", "glfw":
	default:
		return Configuration{}, fmt.Errorf("UMBRA_WINDOW: unknown backend %q", cfg.Window.Backend)
	}

	cfg.Assets.ShaderDirectory = envString("UMBRA_SHADERS", cfg.Assets.ShaderDirectory)
	cfg.Assets.Archive = envString("UMBRA_ASSETS", cfg.Assets.Archive)
	cfg.Log.Level = envString("UMBRA_LOG_LEVEL", cfg.Log.Level)
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return Configuration{}, fmt.Errorf("UMBRA_LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// envString treats a variable that is set but empty as unset
func envString(key, value string) string {
	if s := envy.Get(key, ""); s != "" {
		return s
	}
	return value
}

func envInt(key string, value int) (int, error) {
	s := envy.Get(key, "")
	if s == "" {
		return value, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envUint32(key string, value uint32) (uint32, error) {
	s := envy.Get(key, "")
	if s == "" {
		return value, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(v), nil
}

func envBool(key string, value bool) (bool, error) {
	s := envy.Get(key, "")
	if s == "" {
		return value, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
