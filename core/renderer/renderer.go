// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx"
)

// Stats count what happened to frames since the renderer was created
type Stats struct {
	// Frames is the number of frames handed to presentation
	Frames uint64

	// Dropped is the number of frames abandoned for swapchain recreation
	Dropped uint64

	// Recreations is the number of times the swapchain was rebuilt
	Recreations uint64
}

// Renderer draws scenes with a deferred pipeline: a geometry pass fills
// the G-buffer, a lighting pass composites it into the swapchain image and
// an overlay pass draws on top before the image is presented.
type Renderer struct {
	config Configuration
	ctx    *core.Context

	shaders     core.ShaderSet
	swapchain   *Swapchain
	descriptors *descriptors
	ring        *frameRing
	registry    *Registry
	deletions   core.DeletionQueue

	// recreated with the swapchain
	gbuffer    *Framebuffer
	gbufferSet gfx.DescriptorSet
	present    *presentPasses
	pipelines  *pipelines

	width, height uint32
	needsRecreate bool

	frame     uint64
	stats     Stats
	destroyed bool
}

// New creates a renderer presenting to the surface of the context
func New(ctx *core.Context, config Configuration) (*Renderer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	r := &Renderer{
		config: config,
		ctx:    ctx,
		width:  config.ScreenWidth,
		height: config.ScreenHeight,
	}

	if err := r.init(); err != nil {
		r.teardown()
		return nil, err
	}

	log.WithFields(log.Fields{
		"width":          r.swapchain.Extent.Width,
		"height":         r.swapchain.Extent.Height,
		"framesInFlight": config.FramesInFlight,
		"capacity":       config.RegistryCapacity,
	}).Info("renderer created")
	return r, nil
}

func (r *Renderer) init() error {
	var err error
	if r.shaders, err = core.LoadShaders(r.ctx.Device, r.config.Shaders); err != nil {
		return err
	}

	r.swapchain = NewSwapchain(r.ctx)
	if err := r.swapchain.InitSurface(r.ctx.Surface); err != nil {
		return err
	}
	if err := r.swapchain.Create(r.width, r.height, r.config.VSync); err != nil {
		return err
	}

	if r.descriptors, err = newDescriptors(r.ctx.Device, r.config.FramesInFlight, r.config.RegistryCapacity); err != nil {
		return err
	}
	if r.gbufferSet, err = r.descriptors.allocate(r.descriptors.gbuffer); err != nil {
		return err
	}
	if r.ring, err = newFrameRing(r.ctx, r.config.FramesInFlight, r.descriptors); err != nil {
		return err
	}
	if err := r.createTargets(); err != nil {
		return err
	}

	r.registry, err = newRegistry(r.ctx, r.descriptors, r.config.RegistryCapacity, &r.deletions, func() uint64 {
		return r.frame
	})
	return err
}

// createTargets builds everything sized after the swapchain
func (r *Renderer) createTargets() error {
	extent := r.swapchain.Extent

	var err error
	if r.gbuffer, err = NewGBuffer(r.ctx, extent.Width, extent.Height); err != nil {
		return err
	}
	if r.present, err = newPresentPasses(r.ctx, r.swapchain); err != nil {
		return err
	}
	if r.pipelines, err = newPipelines(r.ctx.Device, r.shaders, r.descriptors, r.gbuffer, r.present); err != nil {
		return err
	}

	layout := gfx.ImageLayoutShaderReadOnlyOptimal
	sampler := r.gbuffer.Sampler
	r.ctx.Device.UpdateDescriptorSet(r.gbufferSet, []gfx.DescriptorWrite{
		writeSampler(0, sampler, r.gbuffer.Attachments[GBufferPosition].Image.View, layout),
		writeSampler(1, sampler, r.gbuffer.Attachments[GBufferNormal].Image.View, layout),
		writeSampler(2, sampler, r.gbuffer.Attachments[GBufferAlbedo].Image.View, layout),
	})
	return nil
}

func (r *Renderer) destroyTargets() {
	if r.pipelines != nil {
		r.pipelines.destroy()
		r.pipelines = nil
	}
	if r.present != nil {
		r.present.destroy()
		r.present = nil
	}
	if r.gbuffer != nil {
		r.gbuffer.Destroy()
		r.gbuffer = nil
	}
}

// recreate rebuilds the swapchain and what depends on it. It reports
// false when the surface has no area, the frame is dropped then and
// recreation is tried again on the next one.
func (r *Renderer) recreate() (bool, error) {
	if _, err := r.swapchain.SurfaceExtent(r.width, r.height); err != nil {
		if errors.Is(err, ErrSurfaceHidden) {
			return false, nil
		}
		return false, err
	}

	if err := r.ctx.Device.WaitIdle(); err != nil {
		return false, fmt.Errorf("vk.DeviceWaitIdle(): %w", err)
	}

	r.destroyTargets()
	if err := r.swapchain.Create(r.width, r.height, r.config.VSync); err != nil {
		return false, err
	}
	if err := r.createTargets(); err != nil {
		return false, err
	}

	r.needsRecreate = false
	r.stats.Recreations++
	log.WithFields(log.Fields{
		"width":       r.swapchain.Extent.Width,
		"height":      r.swapchain.Extent.Height,
		"recreations": r.stats.Recreations,
	}).Debug("render targets recreated")
	return true, nil
}

// Resize records a new window size, render targets are rebuilt
// once at the start of the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.width, r.height = width, height
	r.needsRecreate = true
	r.swapchain.Invalidate()
}

// Swapchain returns the swapchain manager
func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

// GBuffer returns the geometry pass targets
func (r *Renderer) GBuffer() *Framebuffer {
	return r.gbuffer
}

// Registry returns the resource registry
func (r *Renderer) Registry() *Registry {
	return r.registry
}

// Stats returns the frame counters
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Frame returns the number of frames submitted
func (r *Renderer) Frame() uint64 {
	return r.frame
}

type drawItem struct {
	geometry    *GeometryResource
	materialSet gfx.DescriptorSet
	textureSet  gfx.DescriptorSet
	world       glm.Mat4
}

// resolve looks up every active component's resources
func (r *Renderer) resolve(view SceneView) ([]drawItem, error) {
	if view == nil {
		return nil, nil
	}
	var draws []drawItem
	for idx, c := range view.RenderComponents() {
		if !c.Used || !c.Active {
			continue
		}
		g, err := r.registry.Geometry(c.Geometry)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", idx, err)
		}
		m, err := r.registry.Material(c.Material)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", idx, err)
		}
		set, err := r.registry.textureSet(c, m)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", idx, err)
		}
		draws = append(draws, drawItem{
			geometry:    g,
			materialSet: m.Set,
			textureSet:  set,
			world:       view.WorldMatrix(idx),
		})
	}
	return draws, nil
}

func (r *Renderer) resolveOverlay(data *OverlayDrawData) ([]gfx.DescriptorSet, error) {
	if data.Empty() {
		return nil, nil
	}
	sets := make([]gfx.DescriptorSet, 0, len(data.Commands))
	for idx, cmd := range data.Commands {
		t, err := r.registry.Texture(cmd.Texture)
		if err != nil {
			return nil, fmt.Errorf("overlay command %d: %w", idx, err)
		}
		sets = append(sets, t.Set)
	}
	return sets, nil
}

// DrawFrame renders and presents one frame. A frame is dropped, without
// error, when the swapchain had to be recreated before anything was
// acquired. Errors other than invalid handles are fatal to the renderer.
func (r *Renderer) DrawFrame(view SceneView, overlay OverlaySource) error {
	if r.destroyed {
		return core.ErrAlreadyDestroyed
	}

	if r.needsRecreate || r.swapchain.State() == SwapchainInvalidated {
		recreated, err := r.recreate()
		if err != nil {
			return err
		}
		if !recreated {
			r.stats.Dropped++
			return nil
		}
	}

	slot := r.ring.slot()
	if err := r.ctx.WaitForFences(slot.fence); err != nil {
		return err
	}
	r.deletions.Collect(slot.frame)

	draws, err := r.resolve(view)
	if err != nil {
		return err
	}
	var overlayData OverlayDrawData
	if overlay != nil {
		overlayData = overlay.OverlayDrawData()
	}
	overlaySets, err := r.resolveOverlay(&overlayData)
	if err != nil {
		return err
	}

	index, err := r.swapchain.AcquireNextImage(slot.imageAcquired, r.ctx.FenceTimeout())
	switch {
	case err == nil:
	case errors.Is(err, gfx.ErrOutOfDate):
		r.needsRecreate = true
		r.stats.Dropped++
		_, err := r.recreate()
		return err
	case errors.Is(err, gfx.ErrSuboptimal):
		r.needsRecreate = true
	default:
		return err
	}

	if err := r.ctx.Device.ResetFences([]gfx.Fence{slot.fence}); err != nil {
		return fmt.Errorf("vk.ResetFences(): %w", err)
	}
	r.frame++
	slot.frame = r.frame

	if err := r.writeUniforms(slot, view); err != nil {
		return err
	}
	if len(overlaySets) > 0 {
		if err := slot.overlay.upload(&overlayData); err != nil {
			return err
		}
	}
	if err := r.record(slot, index, draws, &overlayData, overlaySets); err != nil {
		return err
	}

	if err := r.ctx.Device.QueueSubmit(r.ctx.GraphicsQueue, []gfx.SubmitInfo{{
		WaitSemaphores:   []gfx.Semaphore{slot.imageAcquired},
		WaitStages:       []gfx.PipelineStage{gfx.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []gfx.CommandBuffer{slot.cmd},
		SignalSemaphores: []gfx.Semaphore{slot.renderFinished},
	}}, slot.fence); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %w", err)
	}

	err = r.swapchain.QueuePresent(r.ctx.GraphicsQueue, index, slot.renderFinished)
	switch {
	case err == nil:
		r.stats.Frames++
	case errors.Is(err, gfx.ErrSuboptimal):
		r.stats.Frames++
		r.needsRecreate = true
	case errors.Is(err, gfx.ErrOutOfDate):
		r.stats.Dropped++
		r.needsRecreate = true
	default:
		return err
	}

	r.ring.advance()
	return nil
}

func (r *Renderer) writeUniforms(slot *frameSlot, view SceneView) error {
	camera := CameraUniform{View: glm.Ident4(), Projection: glm.Ident4()}
	var lights LightsUniform
	if view != nil {
		camera = NewCameraUniform(view.Camera())
		lights = NewLightsUniform(view.Lights())
	}

	if err := slot.camera.CopyTo(camera.Bytes(), 0); err != nil {
		return err
	}
	if err := slot.camera.Flush(CameraUniformSize, 0); err != nil {
		return err
	}
	if err := slot.lights.CopyTo(lights.Bytes(), 0); err != nil {
		return err
	}
	return slot.lights.Flush(LightsUniformSize, 0)
}

func fullViewport(extent gfx.Extent2D) (gfx.Viewport, gfx.Rect2D) {
	return gfx.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MaxDepth: 1,
		}, gfx.Rect2D{
			Extent: extent,
		}
}

// clipRect intersects a scissor with the render area
func clipRect(rect gfx.Rect2D, extent gfx.Extent2D) gfx.Rect2D {
	x0, y0 := max(rect.Offset.X, 0), max(rect.Offset.Y, 0)
	x1 := min(int64(rect.Offset.X)+int64(rect.Extent.Width), int64(extent.Width))
	y1 := min(int64(rect.Offset.Y)+int64(rect.Extent.Height), int64(extent.Height))
	if x1 <= int64(x0) || y1 <= int64(y0) {
		return gfx.Rect2D{}
	}
	return gfx.Rect2D{
		Offset: gfx.Offset2D{X: x0, Y: y0},
		Extent: gfx.Extent2D{Width: uint32(x1 - int64(x0)), Height: uint32(y1 - int64(y0))},
	}
}

func (r *Renderer) record(slot *frameSlot, index uint32, draws []drawItem, overlay *OverlayDrawData, overlaySets []gfx.DescriptorSet) error {
	device := r.ctx.Device
	cmd := slot.cmd
	extent := r.swapchain.Extent
	viewport, scissor := fullViewport(extent)

	if err := device.ResetCommandBuffer(cmd); err != nil {
		return fmt.Errorf("vk.ResetCommandBuffer(): %w", err)
	}
	if err := device.BeginCommandBuffer(cmd, true); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %w", err)
	}

	// Geometry pass
	device.CmdBeginRenderPass(cmd, gfx.RenderPassBeginInfo{
		RenderPass:  r.gbuffer.RenderPass,
		Framebuffer: r.gbuffer.Framebuffer,
		Area:        scissor,
		ClearValues: r.gbuffer.ClearValues(),
	})
	device.CmdBindPipeline(cmd, r.pipelines.geometry)
	device.CmdSetViewport(cmd, viewport)
	device.CmdSetScissor(cmd, scissor)
	device.CmdBindDescriptorSets(cmd, r.descriptors.geometryLayout, setCamera, []gfx.DescriptorSet{slot.cameraSet})
	for _, d := range draws {
		device.CmdBindDescriptorSets(cmd, r.descriptors.geometryLayout, setMaterial, []gfx.DescriptorSet{d.materialSet, d.textureSet})
		device.CmdBindVertexBuffers(cmd, 0, []gfx.Buffer{d.geometry.VertexBuffer.Handle}, []uint64{0})
		device.CmdBindIndexBuffer(cmd, d.geometry.IndexBuffer.Handle, 0, gfx.IndexTypeUint32)
		world := d.world
		device.CmdPushConstants(cmd, r.descriptors.geometryLayout, gfx.ShaderStageVertex, 0, asBytes(&world))
		device.CmdDrawIndexed(cmd, d.geometry.IndexCount, 1, 0, 0, 0)
	}
	device.CmdEndRenderPass(cmd)
	r.gbuffer.PassEnded()

	// Lighting pass
	device.CmdBeginRenderPass(cmd, gfx.RenderPassBeginInfo{
		RenderPass:  r.present.lighting,
		Framebuffer: r.present.framebuffers[index],
		Area:        scissor,
		ClearValues: []gfx.ClearValue{gfx.ClearColor(0, 0, 0, 1)},
	})
	device.CmdBindPipeline(cmd, r.pipelines.lighting)
	device.CmdSetViewport(cmd, viewport)
	device.CmdSetScissor(cmd, scissor)
	device.CmdBindDescriptorSets(cmd, r.descriptors.lightingLayout, 0, []gfx.DescriptorSet{slot.cameraSet, r.gbufferSet})
	device.CmdDraw(cmd, 3, 1, 0, 0)
	device.CmdEndRenderPass(cmd)

	// Overlay pass, recorded even when empty as it moves the image to presentation
	device.CmdBeginRenderPass(cmd, gfx.RenderPassBeginInfo{
		RenderPass:  r.present.overlay,
		Framebuffer: r.present.framebuffers[index],
		Area:        scissor,
	})
	if len(overlaySets) > 0 {
		device.CmdBindPipeline(cmd, r.pipelines.overlay)
		device.CmdSetViewport(cmd, viewport)
		device.CmdBindVertexBuffers(cmd, 0, []gfx.Buffer{slot.overlay.vertices.Handle}, []uint64{0})
		device.CmdBindIndexBuffer(cmd, slot.overlay.indices.Handle, 0, gfx.IndexTypeUint32)
		transform := overlay.Transform()
		device.CmdPushConstants(cmd, r.descriptors.overlayLayout, gfx.ShaderStageVertex, 0, asBytes(&transform))
		for idx, c := range overlay.Commands {
			clip := clipRect(c.Scissor, extent)
			if clip.Extent.Width == 0 || clip.Extent.Height == 0 || c.IndexCount == 0 {
				continue
			}
			device.CmdSetScissor(cmd, clip)
			device.CmdBindDescriptorSets(cmd, r.descriptors.overlayLayout, 0, []gfx.DescriptorSet{overlaySets[idx]})
			device.CmdDrawIndexed(cmd, c.IndexCount, 1, c.IndexOffset, c.VertexOffset, 0)
		}
	}
	device.CmdEndRenderPass(cmd)

	if err := device.EndCommandBuffer(cmd); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %w", err)
	}
	return nil
}

// Destroy waits for the device to idle and destroys everything
// in reverse order of creation.
func (r *Renderer) Destroy() error {
	if r.destroyed {
		return core.ErrAlreadyDestroyed
	}
	if err := r.ctx.Device.WaitIdle(); err != nil {
		log.WithError(err).Warn("vk.DeviceWaitIdle() failed during renderer teardown")
	}
	r.teardown()
	log.WithFields(log.Fields{
		"frames":      r.stats.Frames,
		"dropped":     r.stats.Dropped,
		"recreations": r.stats.Recreations,
	}).Info("renderer destroyed")
	return nil
}

// teardown destroys whatever was created so far
func (r *Renderer) teardown() {
	r.destroyed = true
	if r.registry != nil {
		r.registry.destroy()
	}
	r.deletions.Flush()
	r.destroyTargets()
	if r.ring != nil {
		r.ring.destroy()
	}
	if r.descriptors != nil {
		r.descriptors.destroy()
	}
	if r.swapchain != nil && r.swapchain.State() != SwapchainDestroyed {
		r.swapchain.Destroy()
	}
	if r.shaders != nil {
		r.shaders.Destroy()
	}
}
