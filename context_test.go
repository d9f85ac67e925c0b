package dieseltri

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Debug = false
	writeShaders(t, cfg)
	return cfg
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	p := newFakePlatform(capableGPU("gpu"))
	ctx, err := Initialize(cfg, &fakeWindow{}, p)
	require.NoError(t, err)

	s := ctx.Scheduler()
	require.NotNil(t, s)
	assert.True(t, s.Swapchain().Consistent())
	assert.Equal(t, uint64(1), s.Swapchain().Generation)
	require.Len(t, p.created, 1)
	assert.Empty(t, p.created[0].Layers)
	assert.Equal(t, cfg.DeviceExtensions, p.created[0].Extensions)

	ctx.Destroy()
	assert.Zero(t, p.device.live)
	assert.Zero(t, p.device.doubleFree)
	assert.True(t, p.device.destroyed)
	assert.Equal(t, 1, p.destroyed)

	ctx.Destroy()
	assert.Equal(t, 1, p.destroyed)
}

func TestInitializeDebugLayers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Debug = true
	p := newFakePlatform(capableGPU("gpu"))
	ctx, err := Initialize(cfg, &fakeWindow{}, p)
	require.NoError(t, err)
	defer ctx.Destroy()
	assert.Equal(t, cfg.ValidationLayers, p.created[0].Layers)
}

func TestInitializeUsesFramebufferSize(t *testing.T) {
	cfg := testConfig(t)
	gpu := capableGPU("gpu")
	gpu.support = surfaceSupport(vk.MaxUint32, vk.MaxUint32,
		[]vk.SurfaceFormat{bgraSRGB}, []vk.PresentMode{vk.PresentModeFifo})
	p := newFakePlatform(gpu)

	ctx, err := Initialize(cfg, &fakeWindow{width: 1600, height: 1200}, p)
	require.NoError(t, err)
	defer ctx.Destroy()
	assert.Equal(t, vk.Extent2D{Width: 1600, Height: 1200}, ctx.Scheduler().Swapchain().Extent)
}

func TestInitializeFailures(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Width = 0
		p := newFakePlatform(capableGPU("gpu"))
		_, err := Initialize(cfg, &fakeWindow{}, p)
		require.Error(t, err)
		assert.Equal(t, 1, p.destroyed)
	})

	t.Run("no suitable device", func(t *testing.T) {
		gpu := capableGPU("gpu")
		gpu.extensions = nil
		p := newFakePlatform(gpu)
		_, err := Initialize(testConfig(t), &fakeWindow{}, p)
		assert.ErrorIs(t, err, ErrNoSuitableDevice)
		assert.Equal(t, 1, p.destroyed)
	})

	t.Run("device creation", func(t *testing.T) {
		p := newFakePlatform(capableGPU("gpu"))
		p.createErr = errors.New("initialization failed")
		_, err := Initialize(testConfig(t), &fakeWindow{}, p)
		var devErr *DeviceCreationError
		assert.ErrorAs(t, err, &devErr)
		assert.Equal(t, 1, p.destroyed)
	})

	t.Run("missing shader", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.FragmentShader = filepath.Join(t.TempDir(), "missing.spv")
		p := newFakePlatform(capableGPU("gpu"))
		_, err := Initialize(cfg, &fakeWindow{}, p)
		require.Error(t, err)
		assert.True(t, p.device.destroyed)
		assert.Equal(t, 1, p.destroyed)
	})

	t.Run("initial swapchain", func(t *testing.T) {
		p := newFakePlatform(capableGPU("gpu"))
		p.device = newFakeDevice(p.gpus[0].support)
		p.device.fail["framebuffer"] = -1
		_, err := Initialize(testConfig(t), &fakeWindow{}, p)
		var scErr *SwapchainCreationError
		require.ErrorAs(t, err, &scErr)
		assert.True(t, scErr.Initial)
		assert.Zero(t, p.device.live)
		assert.True(t, p.device.destroyed)
	})
}

func newTestRenderer(t *testing.T, win *fakeWindow, cfg *Config) (*Context, *fakeDevice) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	p := newFakePlatform(capableGPU("gpu"))
	p.device = newFakeDevice(p.gpus[0].support)
	ctx, err := Initialize(cfg, win, p)
	require.NoError(t, err)
	t.Cleanup(ctx.Destroy)
	return ctx, p.device
}

func TestRunFrameLoopClose(t *testing.T) {
	win := &fakeWindow{batches: [][]Event{nil, nil, nil}}
	ctx, dev := newTestRenderer(t, win, nil)

	require.NoError(t, ctx.RunFrameLoop())
	assert.Equal(t, uint64(3), ctx.Scheduler().Stats().Submitted)
	assert.Equal(t, 4, win.polls)
	assert.Zero(t, win.waits)
	assert.Equal(t, "wait idle", dev.calls[len(dev.calls)-1])
	assert.True(t, dev.tokens[2].done)
}

func TestRunFrameLoopEscape(t *testing.T) {
	escape := []Event{{Kind: EventKey, Key: KeyEscape}}
	other := []Event{{Kind: EventKey, Key: Key(65)}}

	win := &fakeWindow{batches: [][]Event{other, escape}}
	ctx, _ := newTestRenderer(t, win, nil)
	require.NoError(t, ctx.RunFrameLoop())
	assert.Equal(t, uint64(1), ctx.Scheduler().Stats().Submitted)

	cfg := testConfig(t)
	cfg.EscapeQuits = false
	win = &fakeWindow{batches: [][]Event{escape, escape}}
	ctx, _ = newTestRenderer(t, win, cfg)
	require.NoError(t, ctx.RunFrameLoop())
	assert.Equal(t, uint64(2), ctx.Scheduler().Stats().Submitted)
}

func TestRunFrameLoopResize(t *testing.T) {
	win := &fakeWindow{batches: [][]Event{
		nil,
		{{Kind: EventResize, Width: 1024, Height: 768}},
		nil,
	}}
	ctx, dev := newTestRenderer(t, win, nil)
	win.onPoll = func(n int) {
		if n == 1 {
			dev.support.Capabilities.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
		}
	}

	require.NoError(t, ctx.RunFrameLoop())
	s := ctx.Scheduler()
	assert.Equal(t, uint64(1), s.Stats().Rebuilds)
	assert.Equal(t, uint64(3), s.Stats().Submitted)
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, s.Swapchain().Extent)
}

func TestRunFrameLoopMinimized(t *testing.T) {
	win := &fakeWindow{batches: [][]Event{
		{{Kind: EventResize, Width: 0, Height: 0}},
		nil,
		nil,
		{{Kind: EventResize, Width: 800, Height: 600}},
		nil,
	}}
	ctx, dev := newTestRenderer(t, win, nil)
	win.onPoll = func(n int) {
		switch n {
		case 0:
			dev.support.Capabilities.CurrentExtent = vk.Extent2D{}
		case 3:
			dev.support.Capabilities.CurrentExtent = vk.Extent2D{Width: 800, Height: 600}
		}
	}

	require.NoError(t, ctx.RunFrameLoop())
	s := ctx.Scheduler()
	assert.Equal(t, 3, win.waits, "the loop blocks on events while minimized")
	assert.Equal(t, uint64(1), s.Stats().Suspensions)
	assert.Equal(t, uint64(2), s.Stats().Submitted)
	assert.False(t, s.Suspended())
}

func TestRunFrameLoopRebuildRetries(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRebuildRetries = 3
	resize := []Event{{Kind: EventResize, Width: 800, Height: 600}}

	t.Run("recovers", func(t *testing.T) {
		win := &fakeWindow{batches: [][]Event{resize, nil, nil, nil}}
		ctx, dev := newTestRenderer(t, win, cfg)
		dev.fail["pipeline"] = 2
		require.NoError(t, ctx.RunFrameLoop())
		assert.Equal(t, uint64(1), ctx.Scheduler().Stats().Rebuilds)
		assert.Equal(t, uint64(2), ctx.Scheduler().Stats().Submitted)
	})

	t.Run("gives up", func(t *testing.T) {
		win := &fakeWindow{batches: [][]Event{resize, nil, nil, nil, nil}}
		ctx, dev := newTestRenderer(t, win, cfg)
		dev.fail["pipeline"] = -1
		err := ctx.RunFrameLoop()
		var scErr *SwapchainCreationError
		require.ErrorAs(t, err, &scErr)
		assert.Contains(t, err.Error(), "failed 3 times")
		assert.Equal(t, 3, win.polls)
	})
}

func TestRunFrameLoopFatalAcquire(t *testing.T) {
	win := &fakeWindow{batches: [][]Event{nil, nil}}
	ctx, dev := newTestRenderer(t, win, nil)
	lost := errors.New("device lost")
	dev.acquires = []fakeAcquire{{}, {err: lost}}

	err := ctx.RunFrameLoop()
	assert.ErrorIs(t, err, lost)
	assert.Equal(t, uint64(1), ctx.Scheduler().Stats().Submitted)
}

func TestContextDestroyNil(t *testing.T) {
	var ctx *Context
	ctx.Destroy()
}
