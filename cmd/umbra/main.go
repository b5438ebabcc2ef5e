// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/core/renderer"
	"github.com/devblok/umbra/gfx/vkr"
	"github.com/devblok/umbra/scene"
	"github.com/devblok/umbra/window"
	"github.com/devblok/umbra/window/glfwwindow"
	"github.com/devblok/umbra/window/sdlwindow"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	envFile      = flag.String("env", ".env", "Environment file with UMBRA_* settings")
)

func newWindow(cfg core.Configuration) (window.Window, error) {
	wcfg := window.Configuration{
		Title:     cfg.Window.Title,
		Width:     cfg.Renderer.ScreenWidth,
		Height:    cfg.Renderer.ScreenHeight,
		Resizable: true,
	}
	switch cfg.Window.Backend {
	case "sdl":
		return sdlwindow.New(wcfg)
	case "glfw":
		return glfwwindow.New(wcfg)
	}
	return nil, window.ErrUnknownBackend
}

func main() {
	flag.Parse()

	configuration, err := core.LoadConfiguration(*envFile)
	if err != nil {
		log.WithError(err).Fatal("Loading configuration")
	}
	if *debug {
		configuration.Instance.DebugMode = true
	}
	if err := configuration.Log.Apply(); err != nil {
		log.WithError(err).Fatal("Configuring log")
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	if err := run(configuration); err != nil {
		log.WithError(err).Error("Exiting")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
	}
}

func run(configuration core.Configuration) error {
	win, err := newWindow(configuration)
	if err != nil {
		return err
	}
	defer win.Destroy()

	instance, err := vkr.NewInstance(win.ProcAddr(), vkr.InstanceConfiguration{
		ApplicationName: configuration.Instance.ApplicationName,
		Extensions:      win.InstanceExtensions(),
		DebugMode:       configuration.Instance.DebugMode,
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surface, err := win.CreateSurface(instance.Inner())
	if err != nil {
		return err
	}
	instance.SetSurface(surface)

	physical, err := core.SelectPhysicalDevice(instance.PhysicalDevices())
	if err != nil {
		return err
	}
	log.WithField("device", instance.PhysicalDevices()[physical].Name).Info("Selected physical device")

	ctx, err := core.NewContext(instance, physical, core.ContextConfiguration{
		Extensions:   configuration.Renderer.DeviceExtensions,
		FenceTimeout: configuration.Renderer.FenceTimeout,
		Strict:       configuration.Renderer.Strict,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := ctx.Destroy(); err != nil {
			log.WithError(err).Error("Destroying context")
		}
	}()

	assets, err := openAssets(configuration.Assets)
	if err != nil {
		return err
	}
	defer assets.Close()

	width, height := win.Size()
	rendererConfig := renderer.NewConfiguration(configuration.Renderer, assets.Shaders())
	rendererConfig.ScreenWidth, rendererConfig.ScreenHeight = width, height
	r, err := renderer.New(ctx, rendererConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Destroy(); err != nil {
			log.WithError(err).Error("Destroying renderer")
		}
	}()

	world, err := populate(r.Registry(), assets, float32(width)/float32(height))
	if err != nil {
		return err
	}
	fly := scene.NewFlyCamera(world.MainCamera())
	hud := newFrameGraph(128)

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	input := win.Input()
MainLoop:
	for {
		select {
		case <-timeService.EventTicker().C:
			input.BeginFrame()
			win.Poll()
			if win.CloseRequested() || input.IsKeyDown(window.KeyEscape) {
				break MainLoop
			}
			if w, h, ok := win.Resized(); ok {
				r.Resize(w, h)
				world.SetAspect(w, h)
			}
		case <-timeService.FpsTicker().C:
			delta := timeService.Tick()
			fly.Update(world.MainCamera(), input, delta)
			world.Update()

			w, h := win.Size()
			hud.Add(delta, glm.Vec2{float32(w), float32(h)})
			if err := r.DrawFrame(world, hud); err != nil {
				return err
			}
		}
	}

	stats := r.Stats()
	log.WithFields(log.Fields{
		"frames":      stats.Frames,
		"dropped":     stats.Dropped,
		"recreations": stats.Recreations,
		"elapsed":     timeService.Elapsed(),
	}).Info("Event loop exited")
	return nil
}
