// Package app implements the desktop viewer: it runs a tracking session and
// draws the point cloud and detected planes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/config"
	"github.com/Faultbox/arcloud/internal/engine/camera"
	"github.com/Faultbox/arcloud/internal/engine/debug"
	"github.com/Faultbox/arcloud/internal/engine/input"
	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/engine/renderer"
	"github.com/Faultbox/arcloud/internal/engine/scene"
	"github.com/Faultbox/arcloud/internal/engine/window"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/logger"
	"github.com/Faultbox/arcloud/internal/session"
	"github.com/Faultbox/arcloud/internal/tracking"
	"github.com/Faultbox/arcloud/pkg/math"
)

const (
	title        = "arcloud"
	storeTimeout = 5 * time.Second
)

// App is the viewer instance.
type App struct {
	cfg     *config.Config
	running bool
	log     *zap.Logger

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *debug.ScreenshotCapture

	source  tracking.Source
	node    *scene.PointCloudNode
	session *session.Session
	sinks   []experiment.Sink

	screenshotPending bool
}

// New creates the window, renderer and tracking session.
// Experiments are stored in every sink when the app closes.
func New(cfg *config.Config, sinks ...experiment.Sink) (*App, error) {
	spec, err := cfg.PointCloud.MaterialSpec()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		log:   logger.Named("app"),
		sinks: sinks,
	}
	a.log.Info("initializing viewer",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
		zap.String("coloring", cfg.PointCloud.Coloring),
	)

	// Create window (this also creates OpenGL context)
	a.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Create renderer (AFTER window, since OpenGL context must exist)
	width, height := a.window.GetSize()
	a.renderer, err = renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		VSync:      cfg.Graphics.VSync,
		ShowPlanes: cfg.Graphics.ShowPlanes,
		ShowBounds: cfg.Graphics.ShowBounds,
	})
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	a.input = input.New()
	a.camera = camera.NewOrbitCamera()
	a.shots = debug.NewScreenshotCapture(cfg.Graphics.ScreenshotDir, title)

	a.source = tracking.NewSynthetic(cfg.Source.Synthetic())
	builder := pointcloud.NewBuilder()
	builder.SetEnabled(cfg.PointCloud.Enabled)
	a.node = scene.NewPointCloudNode(builder, a.renderer)
	if err := a.node.Activate(context.Background(), a.renderer, spec); err != nil {
		a.Close()
		return nil, err
	}
	a.session = session.New(a.source, a.node, experiment.NewCollector(experiment.New(time.Now())))

	a.log.Info("viewer initialized")
	return a, nil
}

// Run starts the main loop. The loop is paced by the tracking source.
func (a *App) Run(ctx context.Context) error {
	a.running = true

	frameCount := 0
	fpsTimer := time.Now()

	var frameBudget time.Duration
	if a.cfg.Graphics.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(a.cfg.Graphics.FPSLimit)
	}

	a.log.Info("starting main loop")

	for a.running {
		if ctx.Err() != nil {
			break
		}
		frameStart := time.Now()

		// 1. Process input
		if a.input.Update() {
			// Quit event received
			break
		}
		a.handleInput()

		// 2. Advance the tracking session
		if err := a.step(ctx); err != nil {
			return err
		}

		// 3. Render
		a.render()

		if a.screenshotPending {
			a.screenshotPending = false
			a.takeScreenshot()
		}

		// 4. Present (swap buffers)
		a.window.SwapBuffers()

		// FPS counter
		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			a.log.Debug("fps", zap.Int("count", frameCount))
			if a.cfg.Graphics.ShowFPS {
				a.window.SetTitle(fmt.Sprintf("%s - %d fps", title, frameCount))
			}
			frameCount = 0
			fpsTimer = time.Now()
		}

		if frameBudget > 0 {
			if elapsed := time.Since(frameStart); elapsed < frameBudget {
				time.Sleep(frameBudget - elapsed)
			}
		}
	}

	a.running = false
	return nil
}

func (a *App) handleInput() {
	for _, event := range a.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			a.renderer.Resize(event.Width, event.Height)
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				a.running = false
			case sdl.SCANCODE_P:
				b := a.node.Builder()
				b.SetEnabled(!b.Enabled())
				a.log.Info("point cloud toggled", zap.Bool("enabled", b.Enabled()))
			case sdl.SCANCODE_B:
				a.renderer.SetShowBounds(!a.renderer.ShowBounds())
			case sdl.SCANCODE_F:
				a.fitCamera()
			case sdl.SCANCODE_F12:
				a.screenshotPending = true
			}
		}
	}

	if dx, dy := a.input.Drag(); dx != 0 || dy != 0 {
		a.camera.HandleDrag(float32(dx), float32(dy))
	}
	if wheel := a.input.Wheel(); wheel != 0 {
		a.camera.HandleZoom(float32(wheel))
	}
}

func (a *App) step(ctx context.Context) error {
	_, err := a.session.Step(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrMeshUpdate):
		a.log.Warn("point cloud not updated", zap.Error(err))
		return nil
	case errors.Is(err, tracking.ErrClosed), errors.Is(err, context.Canceled):
		a.running = false
		return nil
	default:
		return fmt.Errorf("session step: %w", err)
	}
}

func (a *App) render() {
	view := a.camera.ViewMatrix()

	a.renderer.Begin()
	if a.node.Builder().Enabled() {
		if r := a.node.Renderable(); r != nil {
			a.renderer.DrawMesh(view, r)
			a.renderer.DrawBounds(view, r)
		}
	}
	a.renderer.DrawPlanes(view, a.session.Planes())
	a.renderer.End()
}

// fitCamera frames the last mesh the builder produced.
func (a *App) fitCamera() {
	m, ok := a.node.Renderable().(*renderer.GPUMesh)
	if !ok {
		return
	}
	b := m.Bounds()
	a.camera.FitToBounds(math.Vec3From(b.Min), math.Vec3From(b.Max))
}

func (a *App) takeScreenshot() {
	pixels, w, h := a.renderer.ReadPixels()
	path, err := a.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		a.log.Error("screenshot failed", zap.Error(err))
		return
	}
	a.log.Info("screenshot saved", zap.String("path", path))
}

// Close stores the experiment and releases all resources.
func (a *App) Close() {
	a.log.Info("closing viewer")

	if a.node != nil {
		a.node.Deactivate()
	}
	if a.session != nil {
		a.storeExperiment()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}

func (a *App) storeExperiment() {
	exp := a.session.Experiment()
	if exp == nil || len(exp.Records) == 0 {
		a.log.Info("no experiment records to store")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	for _, sink := range a.sinks {
		if err := sink.Store(ctx, exp); err != nil {
			a.log.Error("failed to store experiment", zap.String("id", exp.ID), zap.Error(err))
		}
	}
}
