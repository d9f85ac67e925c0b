package dieseltri

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainConfig holds the swapchain inputs that come from configuration.
type SwapchainConfig struct {
	// Width and Height are used when the surface lets the swapchain pick
	// its extent.
	Width, Height uint32
	ClearColor    [4]float32
}

// StaticResources outlive every swapchain generation.
type StaticResources struct {
	Shaders  Shaders
	Vertices VertexBuffer
}

// Destroy releases the resources.
func (r *StaticResources) Destroy() {
	if r.Vertices != nil {
		r.Vertices.Destroy()
		r.Vertices = nil
	}
	if r.Shaders != nil {
		r.Shaders.Destroy()
		r.Shaders = nil
	}
}

// SwapchainState is one generation of the image chain and everything that
// depends on its format and extent. It is replaced as a whole, never
// patched.
type SwapchainState struct {
	Generation    uint64
	Swapchain     Swapchain
	SurfaceFormat vk.SurfaceFormat
	PresentMode   vk.PresentMode
	Extent        vk.Extent2D
	RenderPass    RenderPass
	Pipeline      Pipeline
	Framebuffers  []Framebuffer
	Commands      []CommandBuffer
}

// ImageCount returns the number of images in the chain.
func (s *SwapchainState) ImageCount() int {
	if s == nil || s.Swapchain == nil {
		return 0
	}
	return s.Swapchain.ImageCount()
}

// Consistent reports whether the render pass, pipeline, framebuffers and
// command buffers all belong to the chain's format, extent and image count.
func (s *SwapchainState) Consistent() bool {
	if s == nil || s.Swapchain == nil || s.RenderPass == nil || s.Pipeline == nil {
		return false
	}
	format := s.SurfaceFormat.Format
	if s.Swapchain.Format() != format || s.RenderPass.Format() != format || s.Pipeline.Format() != format {
		return false
	}
	if s.Swapchain.Extent() != s.Extent || s.Pipeline.Extent() != s.Extent {
		return false
	}
	n := s.Swapchain.ImageCount()
	if len(s.Framebuffers) != n || len(s.Commands) != n {
		return false
	}
	for i, fb := range s.Framebuffers {
		if fb.Extent() != s.Extent || fb.Image() != i || s.Commands[i].Image() != i {
			return false
		}
	}
	return true
}

// Destroy tears the generation down in reverse creation order. It accepts
// partially built states.
func (s *SwapchainState) Destroy() {
	if s == nil {
		return
	}
	for _, cmd := range s.Commands {
		cmd.Destroy()
	}
	s.Commands = nil
	for _, fb := range s.Framebuffers {
		fb.Destroy()
	}
	s.Framebuffers = nil
	if s.Pipeline != nil {
		s.Pipeline.Destroy()
		s.Pipeline = nil
	}
	if s.RenderPass != nil {
		s.RenderPass.Destroy()
		s.RenderPass = nil
	}
	if s.Swapchain != nil {
		s.Swapchain.Destroy()
		s.Swapchain = nil
	}
}

// SwapchainManager builds swapchain generations for one logical device.
type SwapchainManager struct {
	dev        *LogicalDeviceContext
	config     SwapchainConfig
	static     StaticResources
	generation uint64
}

func NewSwapchainManager(dev *LogicalDeviceContext, cfg SwapchainConfig, res StaticResources) *SwapchainManager {
	return &SwapchainManager{
		dev:    dev,
		config: cfg,
		static: res,
	}
}

// Resize updates the extent used when the surface does not dictate one.
func (m *SwapchainManager) Resize(width, height uint32) {
	m.config.Width = width
	m.config.Height = height
}

// Generation returns the generation of the last successful Create.
func (m *SwapchainManager) Generation() uint64 {
	return m.generation
}

// Create builds a new generation. When old is given its chain is handed to
// the platform for recycling, and old is destroyed once the new generation
// is complete. On failure old is left untouched, partially built objects
// are released, and the error is a *SwapchainCreationError, or
// ErrSurfaceZeroExtent while the surface has no area.
func (m *SwapchainManager) Create(old *SwapchainState) (*SwapchainState, error) {
	initial := old == nil
	fail := func(stage string, err error) error {
		return &SwapchainCreationError{Stage: stage, Initial: initial, Err: err}
	}

	dev := m.dev.Device
	support, err := dev.SurfaceSupport()
	if err != nil {
		return nil, fail("query surface", err)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fail("query surface", errors.New("surface reports no formats or present modes"))
	}
	caps := &support.Capabilities

	info := &SwapchainCreateInfo{
		Format:         ChooseSurfaceFormat(support.Formats),
		PresentMode:    ChoosePresentMode(support.PresentModes),
		Extent:         ChooseExtent(caps, m.config.Width, m.config.Height),
		ImageCount:     ChooseImageCount(caps),
		PreTransform:   choosePreTransform(caps),
		CompositeAlpha: chooseCompositeAlpha(caps),
		Sharing:        SharingFor(m.dev.Assignment),
	}
	if zeroExtent(info.Extent) {
		return nil, errors.WithStack(ErrSurfaceZeroExtent)
	}

	var hint Swapchain
	if old != nil {
		hint = old.Swapchain
	}
	state := &SwapchainState{
		SurfaceFormat: info.Format,
		PresentMode:   info.PresentMode,
	}
	if err := m.build(state, info, hint); err != nil {
		state.Destroy()
		var stageErr *SwapchainCreationError
		if errors.As(err, &stageErr) {
			stageErr.Initial = initial
			return nil, stageErr
		}
		return nil, fail("build", err)
	}

	m.generation++
	state.Generation = m.generation
	if old != nil {
		if err := dev.WaitIdle(); err != nil {
			Logger().Warn("wait idle before retiring swapchain", "err", err)
		}
		old.Destroy()
	}
	Logger().Info("swapchain built",
		"generation", state.Generation,
		"width", state.Extent.Width,
		"height", state.Extent.Height,
		"format", state.SurfaceFormat.Format,
		"present_mode", state.PresentMode,
		"images", state.ImageCount())
	return state, nil
}

func (m *SwapchainManager) build(state *SwapchainState, info *SwapchainCreateInfo, hint Swapchain) error {
	dev := m.dev.Device
	stage := func(name string, err error) error {
		return &SwapchainCreationError{Stage: name, Err: err}
	}

	sc, err := dev.CreateSwapchain(info, hint)
	if err != nil {
		return stage("swapchain", err)
	}
	state.Swapchain = sc
	state.Extent = sc.Extent()

	if state.RenderPass, err = dev.CreateRenderPass(info.Format.Format); err != nil {
		return stage("render pass", err)
	}
	if state.Pipeline, err = dev.CreatePipeline(state.RenderPass, m.static.Shaders, state.Extent); err != nil {
		return stage("pipeline", err)
	}

	n := sc.ImageCount()
	state.Framebuffers = make([]Framebuffer, 0, n)
	state.Commands = make([]CommandBuffer, 0, n)
	for i := 0; i < n; i++ {
		fb, err := dev.CreateFramebuffer(state.RenderPass, sc, i)
		if err != nil {
			return stage("framebuffer", errors.Wrapf(err, "image %d", i))
		}
		state.Framebuffers = append(state.Framebuffers, fb)

		cmd, err := dev.RecordDraw(&DrawInfo{
			RenderPass:  state.RenderPass,
			Pipeline:    state.Pipeline,
			Framebuffer: fb,
			Vertices:    m.static.Vertices,
			ClearColor:  m.config.ClearColor,
		})
		if err != nil {
			return stage("command buffer", errors.Wrapf(err, "image %d", i))
		}
		state.Commands = append(state.Commands, cmd)
	}
	return nil
}
