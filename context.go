package dieseltri

import (
	"github.com/pkg/errors"
)

// Context is an initialized renderer: device, static resources, the
// current swapchain generation and the frame scheduler.
type Context struct {
	config   *Config
	window   Window
	platform Platform

	device    *LogicalDeviceContext
	static    StaticResources
	manager   *SwapchainManager
	scheduler *Scheduler
}

// Initialize selects a device, opens it, loads the shaders and vertex
// buffer and builds the first swapchain. Every error returned is fatal.
// On error everything created so far is released, p included.
func Initialize(cfg *Config, win Window, p Platform) (_ *Context, err error) {
	if err := cfg.Validate(); err != nil {
		p.Destroy()
		return nil, err
	}
	ctx := &Context{config: cfg, window: win, platform: p}
	defer func() {
		if err != nil {
			ctx.Destroy()
		}
	}()

	candidate, assignment, err := SelectDevice(p, cfg.DeviceExtensions)
	if err != nil {
		return nil, err
	}
	var layers []string
	if cfg.Debug {
		layers = cfg.ValidationLayers
	}
	if ctx.device, err = OpenDevice(p, candidate, assignment, cfg.DeviceExtensions, layers); err != nil {
		return nil, err
	}
	dev := ctx.device.Device

	vert, err := LoadShaderCode(cfg.VertexShader)
	if err != nil {
		return nil, err
	}
	frag, err := LoadShaderCode(cfg.FragmentShader)
	if err != nil {
		return nil, err
	}
	if ctx.static.Shaders, err = dev.CreateShaders(vert, frag); err != nil {
		return nil, errors.Wrap(err, "create shader modules")
	}
	if ctx.static.Vertices, err = dev.CreateVertexBuffer(TriangleVertices()); err != nil {
		return nil, errors.Wrap(err, "create vertex buffer")
	}

	swapCfg := cfg.swapchainConfig()
	if w, h := win.FramebufferSize(); w > 0 && h > 0 {
		swapCfg.Width, swapCfg.Height = uint32(w), uint32(h)
	}
	ctx.manager = NewSwapchainManager(ctx.device, swapCfg, ctx.static)
	state, err := ctx.manager.Create(nil)
	if err != nil {
		return nil, errors.Wrap(err, "initial swapchain")
	}
	ctx.scheduler = NewScheduler(ctx.device, ctx.manager, state, cfg.framePolicy())
	return ctx, nil
}

// Scheduler returns the frame scheduler.
func (ctx *Context) Scheduler() *Scheduler {
	return ctx.scheduler
}

// RunFrameLoop draws frames until the window is closed, or escape is
// pressed when EscapeQuits is set. Rebuild failures are retried up to
// MaxRebuildRetries times in a row; any other error ends the loop and is
// fatal. The device is idle when RunFrameLoop returns.
func (ctx *Context) RunFrameLoop() error {
	defer func() {
		if err := ctx.scheduler.Wait(); err != nil {
			Logger().Warn("waiting for last frame", "err", err)
		}
		if err := ctx.device.Device.WaitIdle(); err != nil {
			Logger().Warn("device wait idle", "err", err)
		}
	}()

	failures := 0
	for {
		var events []Event
		if ctx.scheduler.Suspended() {
			events = ctx.window.WaitEvents()
		} else {
			events = ctx.window.PollEvents()
		}
		if ctx.handleEvents(events) {
			Logger().Info("frame loop stopped", "frames", ctx.scheduler.Stats().Submitted)
			return nil
		}

		err := ctx.scheduler.DrawFrame()
		var rebuildErr *SwapchainCreationError
		switch {
		case err == nil:
			failures = 0
		case errors.As(err, &rebuildErr):
			failures++
			Logger().Warn("swapchain rebuild failed", "attempt", failures, "err", err)
			if failures >= ctx.config.MaxRebuildRetries {
				return errors.Wrapf(err, "swapchain rebuild failed %d times", failures)
			}
		default:
			return err
		}
	}
}

// handleEvents applies window events and reports whether to stop.
func (ctx *Context) handleEvents(events []Event) (stop bool) {
	for _, ev := range events {
		switch ev.Kind {
		case EventClose:
			stop = true
		case EventKey:
			if ev.Key == KeyEscape && ctx.config.EscapeQuits {
				stop = true
			}
		case EventResize:
			if ev.Width < 0 || ev.Height < 0 {
				continue
			}
			Logger().Debug("window resized", "width", ev.Width, "height", ev.Height)
			ctx.scheduler.NotifyResize(uint32(ev.Width), uint32(ev.Height))
		}
	}
	return stop
}

// Destroy releases everything in reverse creation order. It is safe on a
// partially initialized context.
func (ctx *Context) Destroy() {
	if ctx == nil {
		return
	}
	if ctx.scheduler != nil {
		ctx.scheduler.Destroy()
		ctx.scheduler = nil
	}
	ctx.static.Destroy()
	if ctx.device != nil {
		ctx.device.Destroy()
		ctx.device = nil
	}
	if ctx.platform != nil {
		ctx.platform.Destroy()
		ctx.platform = nil
	}
}
