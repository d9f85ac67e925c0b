package dieseltri

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andewx/dieseltri/internal/optional"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

var (
	bgraSRGB   = vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	rgbaLinear = vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
)

func surfaceSupport(width, height uint32, formats []vk.SurfaceFormat, modes []vk.PresentMode) *SurfaceSupport {
	return &SurfaceSupport{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           vk.Extent2D{Width: width, Height: height},
			MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
			SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		},
		Formats:      formats,
		PresentModes: modes,
	}
}

func defaultSupport() *SurfaceSupport {
	return surfaceSupport(800, 600, []vk.SurfaceFormat{bgraSRGB, rgbaLinear}, []vk.PresentMode{vk.PresentModeFifo})
}

// fakeGPU describes one physical device of a fakePlatform.
type fakeGPU struct {
	name       string
	flags      []vk.QueueFlagBits
	present    []bool
	extensions []string
	support    *SurfaceSupport
	supportErr error
	presentErr error
	extErr     error
}

type fakePlatform struct {
	gpus       []fakeGPU
	candidates []*PhysicalDeviceCandidate

	// surfaceQueries records (device index, family) per SurfaceSupported call.
	surfaceQueries [][2]int
	enumerations   int
	devicesErr     error

	device    *fakeDevice
	createErr error
	created   []DeviceCreateInfo
	destroyed int
}

func newFakePlatform(gpus ...fakeGPU) *fakePlatform {
	p := &fakePlatform{gpus: gpus}
	for i, g := range gpus {
		c := &PhysicalDeviceCandidate{Index: i, Name: g.name}
		for j, f := range g.flags {
			c.Families = append(c.Families, QueueFamily{Index: uint32(j), Flags: vk.QueueFlags(f), Count: 1})
		}
		p.candidates = append(p.candidates, c)
	}
	return p
}

func capableGPU(name string) fakeGPU {
	return fakeGPU{
		name:       name,
		flags:      []vk.QueueFlagBits{vk.QueueGraphicsBit | vk.QueueComputeBit},
		present:    []bool{true},
		extensions: []string{vk.KhrSwapchainExtensionName},
		support:    defaultSupport(),
	}
}

func (p *fakePlatform) Devices() ([]*PhysicalDeviceCandidate, error) {
	p.enumerations++
	if p.devicesErr != nil {
		return nil, p.devicesErr
	}
	return p.candidates, nil
}

func (p *fakePlatform) SurfaceSupported(c *PhysicalDeviceCandidate, family uint32) (bool, error) {
	p.surfaceQueries = append(p.surfaceQueries, [2]int{c.Index, int(family)})
	g := p.gpus[c.Index]
	if g.presentErr != nil {
		return false, g.presentErr
	}
	if int(family) >= len(g.present) {
		return false, nil
	}
	return g.present[family], nil
}

func (p *fakePlatform) DeviceExtensions(c *PhysicalDeviceCandidate) ([]string, error) {
	g := p.gpus[c.Index]
	if g.extErr != nil {
		return nil, g.extErr
	}
	return g.extensions, nil
}

func (p *fakePlatform) SurfaceSupport(c *PhysicalDeviceCandidate) (*SurfaceSupport, error) {
	g := p.gpus[c.Index]
	if g.supportErr != nil {
		return nil, g.supportErr
	}
	if g.support == nil {
		return &SurfaceSupport{}, nil
	}
	return g.support, nil
}

func (p *fakePlatform) CreateDevice(c *PhysicalDeviceCandidate, info DeviceCreateInfo) (Device, error) {
	p.created = append(p.created, info)
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.device == nil {
		p.device = newFakeDevice(p.gpus[c.Index].support)
	}
	p.device.families = info.QueueFamilies
	return p.device, nil
}

func (p *fakePlatform) Destroy() { p.destroyed++ }

type fakeQueue struct{ family uint32 }

func (q *fakeQueue) Family() uint32 { return q.family }

type fakeAcquire struct {
	err        error
	suboptimal bool
}

// fakeDevice scripts the driver. It counts live objects, records every
// call in order and hands out tokens that only finish when waited on or
// marked done by the test.
type fakeDevice struct {
	support    *SurfaceSupport
	supportErr error
	families   []uint32
	queueErr   error

	calls      []string
	live       int
	doubleFree int
	fail       map[string]int

	swapchainInfos []*SwapchainCreateInfo
	swapchainHints []Swapchain

	acquires          []fakeAcquire
	submitErrs        []error
	presentSuboptimal bool
	nextImage         int
	submissions       []*FrameSubmission

	tokens    []*fakeToken
	consumed  int
	waitIdles int
	destroyed bool
}

func newFakeDevice(support *SurfaceSupport) *fakeDevice {
	if support == nil {
		support = defaultSupport()
	}
	return &fakeDevice{
		support:  support,
		families: []uint32{0},
		fail:     map[string]int{},
	}
}

func (d *fakeDevice) log(call string) { d.calls = append(d.calls, call) }

// failing consumes one scripted failure for kind.
func (d *fakeDevice) failing(kind string) error {
	if n := d.fail[kind]; n != 0 {
		if n > 0 {
			d.fail[kind] = n - 1
		}
		return errors.Errorf("%s failed", kind)
	}
	return nil
}

type fakeResource struct {
	dev       *fakeDevice
	kind      string
	destroyed bool
}

func (d *fakeDevice) newResource(kind string) fakeResource {
	d.live++
	d.log("create " + kind)
	return fakeResource{dev: d, kind: kind}
}

func (r *fakeResource) Destroy() {
	if r.destroyed {
		r.dev.doubleFree++
		return
	}
	r.destroyed = true
	r.dev.live--
	r.dev.log("destroy " + r.kind)
}

type fakeSwapchain struct {
	fakeResource
	images int
	extent vk.Extent2D
	format vk.Format
}

func (s *fakeSwapchain) ImageCount() int     { return s.images }
func (s *fakeSwapchain) Extent() vk.Extent2D { return s.extent }
func (s *fakeSwapchain) Format() vk.Format   { return s.format }

type fakeRenderPass struct {
	fakeResource
	format vk.Format
}

func (r *fakeRenderPass) Format() vk.Format { return r.format }

type fakePipeline struct {
	fakeResource
	extent vk.Extent2D
	format vk.Format
}

func (p *fakePipeline) Extent() vk.Extent2D { return p.extent }
func (p *fakePipeline) Format() vk.Format   { return p.format }

type fakeFramebuffer struct {
	fakeResource
	extent vk.Extent2D
	image  int
}

func (f *fakeFramebuffer) Extent() vk.Extent2D { return f.extent }
func (f *fakeFramebuffer) Image() int          { return f.image }

type fakeCommandBuffer struct {
	fakeResource
	image int
	draw  DrawInfo
}

func (c *fakeCommandBuffer) Image() int { return c.image }

type fakeShaders struct{ fakeResource }

type fakeVertices struct {
	fakeResource
	count uint32
}

func (v *fakeVertices) VertexCount() uint32 { return v.count }

type fakeToken struct {
	id       int
	done     bool
	cleaned  bool
	consumed bool
}

func (t *fakeToken) Done() bool { return t.done }

func (t *fakeToken) CleanupFinished() {
	if t.done {
		t.cleaned = true
	}
}

func (t *fakeToken) Wait() error {
	t.done = true
	return nil
}

func (d *fakeDevice) Queue(family uint32) (Queue, error) {
	if d.queueErr != nil {
		return nil, d.queueErr
	}
	for _, f := range d.families {
		if f == family {
			return &fakeQueue{family: family}, nil
		}
	}
	return nil, errors.Errorf("family %d not opened", family)
}

func (d *fakeDevice) SurfaceSupport() (*SurfaceSupport, error) {
	d.log("query surface")
	if d.supportErr != nil {
		return nil, d.supportErr
	}
	return d.support, nil
}

func (d *fakeDevice) CreateSwapchain(info *SwapchainCreateInfo, old Swapchain) (Swapchain, error) {
	if err := d.failing("swapchain"); err != nil {
		return nil, err
	}
	d.swapchainInfos = append(d.swapchainInfos, info)
	d.swapchainHints = append(d.swapchainHints, old)
	return &fakeSwapchain{
		fakeResource: d.newResource("swapchain"),
		images:       int(info.ImageCount),
		extent:       info.Extent,
		format:       info.Format.Format,
	}, nil
}

func (d *fakeDevice) CreateRenderPass(format vk.Format) (RenderPass, error) {
	if err := d.failing("render pass"); err != nil {
		return nil, err
	}
	return &fakeRenderPass{fakeResource: d.newResource("render pass"), format: format}, nil
}

func (d *fakeDevice) CreatePipeline(rp RenderPass, shaders Shaders, extent vk.Extent2D) (Pipeline, error) {
	if err := d.failing("pipeline"); err != nil {
		return nil, err
	}
	return &fakePipeline{fakeResource: d.newResource("pipeline"), extent: extent, format: rp.Format()}, nil
}

func (d *fakeDevice) CreateFramebuffer(rp RenderPass, sc Swapchain, image int) (Framebuffer, error) {
	if err := d.failing("framebuffer"); err != nil {
		return nil, err
	}
	return &fakeFramebuffer{fakeResource: d.newResource("framebuffer"), extent: sc.Extent(), image: image}, nil
}

func (d *fakeDevice) RecordDraw(info *DrawInfo) (CommandBuffer, error) {
	if err := d.failing("command buffer"); err != nil {
		return nil, err
	}
	return &fakeCommandBuffer{
		fakeResource: d.newResource("command buffer"),
		image:        info.Framebuffer.Image(),
		draw:         *info,
	}, nil
}

func (d *fakeDevice) CreateShaders(vert, frag []byte) (Shaders, error) {
	if err := d.failing("shaders"); err != nil {
		return nil, err
	}
	return &fakeShaders{d.newResource("shaders")}, nil
}

func (d *fakeDevice) CreateVertexBuffer(vertices []Vertex) (VertexBuffer, error) {
	if err := d.failing("vertices"); err != nil {
		return nil, err
	}
	return &fakeVertices{fakeResource: d.newResource("vertices"), count: uint32(len(vertices))}, nil
}

func (d *fakeDevice) AcquireNextImage(sc Swapchain, timeout time.Duration) (*Acquisition, error) {
	d.log("acquire")
	var suboptimal bool
	if len(d.acquires) > 0 {
		a := d.acquires[0]
		d.acquires = d.acquires[1:]
		if a.err != nil {
			return nil, a.err
		}
		suboptimal = a.suboptimal
	}
	image := d.nextImage % sc.ImageCount()
	d.nextImage++
	return &Acquisition{Swapchain: sc, Image: image, Suboptimal: suboptimal}, nil
}

func (d *fakeDevice) SubmitPresent(s *FrameSubmission) (*Presentation, error) {
	d.log("submit")
	if t, ok := s.Wait.(*fakeToken); ok {
		t.consumed = true
		t.done = true
		d.consumed++
	}
	d.submissions = append(d.submissions, s)
	if len(d.submitErrs) > 0 {
		err := d.submitErrs[0]
		d.submitErrs = d.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	t := &fakeToken{id: len(d.tokens)}
	d.tokens = append(d.tokens, t)
	return &Presentation{Token: t, Suboptimal: d.presentSuboptimal}, nil
}

// inFlight counts tokens handed out and not yet consumed by a submission.
func (d *fakeDevice) inFlight() int {
	return len(d.tokens) - d.consumed
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdles++
	d.log("wait idle")
	return nil
}

func (d *fakeDevice) Destroy() {
	d.destroyed = true
	d.log("destroy device")
}

// count returns how many times call appears in calls.
func count(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func singleFamily() QueueFamilyAssignment {
	return QueueFamilyAssignment{Graphics: optional.Of[uint32](0), Present: optional.Of[uint32](0)}
}

func newTestDeviceContext(dev *fakeDevice, a QueueFamilyAssignment) *LogicalDeviceContext {
	graphics := &fakeQueue{family: a.Graphics.Get()}
	var present Queue = graphics
	if a.Distinct() {
		present = &fakeQueue{family: a.Present.Get()}
	}
	return &LogicalDeviceContext{
		Device:     dev,
		Candidate:  &PhysicalDeviceCandidate{Name: "fake"},
		Assignment: a,
		Graphics:   graphics,
		Present:    present,
	}
}

func newTestManager(t *testing.T, dev *fakeDevice) *SwapchainManager {
	t.Helper()
	shaders, err := dev.CreateShaders(nil, nil)
	require.NoError(t, err)
	vertices, err := dev.CreateVertexBuffer(TriangleVertices())
	require.NoError(t, err)
	return NewSwapchainManager(newTestDeviceContext(dev, singleFamily()), SwapchainConfig{
		Width:      800,
		Height:     600,
		ClearColor: [4]float32{0, 0, 0, 1},
	}, StaticResources{Shaders: shaders, Vertices: vertices})
}

func newTestScheduler(t *testing.T, dev *fakeDevice, policy FramePolicy) *Scheduler {
	t.Helper()
	m := newTestManager(t, dev)
	state, err := m.Create(nil)
	require.NoError(t, err)
	return NewScheduler(m.dev, m, state, policy)
}

// spirv returns a minimal blob that passes the header checks.
func spirv() []byte {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)
	return code
}

func writeShaders(t *testing.T, cfg *Config) {
	t.Helper()
	dir := t.TempDir()
	cfg.VertexShader = filepath.Join(dir, "vert.spv")
	cfg.FragmentShader = filepath.Join(dir, "frag.spv")
	require.NoError(t, os.WriteFile(cfg.VertexShader, spirv(), 0o600))
	require.NoError(t, os.WriteFile(cfg.FragmentShader, spirv(), 0o600))
}

// fakeWindow replays event batches, one per poll, and reports a close
// once the script runs out. onPoll sees the zero based poll number before
// the batch is handed out.
type fakeWindow struct {
	batches       [][]Event
	polls, waits  int
	width, height int
	onPoll        func(n int)
}

func (w *fakeWindow) next() []Event {
	if w.onPoll != nil {
		w.onPoll(w.polls + w.waits - 1)
	}
	if len(w.batches) == 0 {
		return []Event{{Kind: EventClose}}
	}
	b := w.batches[0]
	w.batches = w.batches[1:]
	return b
}

func (w *fakeWindow) PollEvents() []Event {
	w.polls++
	return w.next()
}

func (w *fakeWindow) WaitEvents() []Event {
	w.waits++
	return w.next()
}

func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }

func (w *fakeWindow) RequiredInstanceExtensions() []string { return nil }

func (w *fakeWindow) CreateSurface(vk.Instance) (vk.Surface, error) { return vk.NullSurface, nil }
