package dieseltri

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// Platform is the GPU instance bound to one presentation surface.
type Platform interface {
	// Devices lists the physical devices with their queue family tables.
	// The list is enumerated once and cached.
	Devices() ([]*PhysicalDeviceCandidate, error)
	// SurfaceSupported reports whether family of c can present to the surface.
	SurfaceSupported(c *PhysicalDeviceCandidate, family uint32) (bool, error)
	// DeviceExtensions lists the device level extensions c supports.
	DeviceExtensions(c *PhysicalDeviceCandidate) ([]string, error)
	// SurfaceSupport queries the surface capabilities, formats and present modes for c.
	SurfaceSupport(c *PhysicalDeviceCandidate) (*SurfaceSupport, error)
	// CreateDevice opens a logical device on c.
	CreateDevice(c *PhysicalDeviceCandidate, info DeviceCreateInfo) (Device, error)
	// Destroy releases the surface, debug callback and instance.
	Destroy()
}

// Device is an opened logical device. Every GPU object of the renderer is
// created from it and must be destroyed before it.
type Device interface {
	// Queue returns queue 0 of family.
	Queue(family uint32) (Queue, error)
	// SurfaceSupport re-queries the surface for the opened physical device.
	SurfaceSupport() (*SurfaceSupport, error)
	// CreateSwapchain builds a chain, retiring old when it is non-nil.
	CreateSwapchain(info *SwapchainCreateInfo, old Swapchain) (Swapchain, error)
	// CreateRenderPass builds the single colour attachment pass for format.
	CreateRenderPass(format vk.Format) (RenderPass, error)
	// CreatePipeline builds the fixed triangle pipeline for rp covering extent.
	CreatePipeline(rp RenderPass, shaders Shaders, extent vk.Extent2D) (Pipeline, error)
	// CreateFramebuffer wraps swapchain image of sc for rp.
	CreateFramebuffer(rp RenderPass, sc Swapchain, image int) (Framebuffer, error)
	// RecordDraw records a reusable command buffer drawing the triangle.
	RecordDraw(info *DrawInfo) (CommandBuffer, error)
	// CreateShaders loads the vertex and fragment SPIR-V modules.
	CreateShaders(vert, frag []byte) (Shaders, error)
	// CreateVertexBuffer uploads vertices to host visible memory.
	CreateVertexBuffer(vertices []Vertex) (VertexBuffer, error)
	// AcquireNextImage acquires a presentable image of sc. A zero timeout
	// waits forever. Staleness is reported as ErrOutOfDate and expiry as
	// ErrAcquireTimeout.
	AcquireNextImage(sc Swapchain, timeout time.Duration) (*Acquisition, error)
	// SubmitPresent runs the command buffer and presents the acquired image.
	// It always consumes s.Wait. On error no work of s is left pending.
	SubmitPresent(s *FrameSubmission) (*Presentation, error)
	// WaitIdle blocks until the device has no pending work.
	WaitIdle() error
	// Destroy releases the device and everything it still owns.
	Destroy()
}

// DeviceCreateInfo lists what a logical device is opened with. One queue
// is requested per family.
type DeviceCreateInfo struct {
	QueueFamilies []uint32
	Extensions    []string
	Layers        []string
}

// SurfaceSupport is the answer of a surface query.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// SharingInfo is the image sharing mode of a swapchain.
type SharingInfo struct {
	Mode     vk.SharingMode
	Families []uint32
}

// SwapchainCreateInfo is what the swapchain manager settled on for one
// generation.
type SwapchainCreateInfo struct {
	Format         vk.SurfaceFormat
	PresentMode    vk.PresentMode
	Extent         vk.Extent2D
	ImageCount     uint32
	PreTransform   vk.SurfaceTransformFlagBits
	CompositeAlpha vk.CompositeAlphaFlagBits
	Sharing        SharingInfo
}

// DrawInfo describes the single draw recorded into a command buffer.
type DrawInfo struct {
	RenderPass  RenderPass
	Pipeline    Pipeline
	Framebuffer Framebuffer
	Vertices    VertexBuffer
	ClearColor  [4]float32
}

type Queue interface {
	Family() uint32
}

type Swapchain interface {
	ImageCount() int
	Extent() vk.Extent2D
	Format() vk.Format
	Destroy()
}

type RenderPass interface {
	Format() vk.Format
	Destroy()
}

type Pipeline interface {
	Extent() vk.Extent2D
	Format() vk.Format
	Destroy()
}

type Framebuffer interface {
	Extent() vk.Extent2D
	Image() int
	Destroy()
}

type CommandBuffer interface {
	Image() int
	Destroy()
}

type Shaders interface {
	Destroy()
}

type VertexBuffer interface {
	VertexCount() uint32
	Destroy()
}

// CompletionToken stands for GPU work submitted for one frame.
type CompletionToken interface {
	// Done polls the work without blocking.
	Done() bool
	// CleanupFinished releases bookkeeping of finished work without blocking.
	CleanupFinished()
	// Wait blocks until the work has finished.
	Wait() error
}

// Acquisition is an image index handed out by the presentation engine.
type Acquisition struct {
	Swapchain  Swapchain
	Image      int
	Suboptimal bool

	ready vk.Semaphore
}

// FrameSubmission is the work of one frame: wait for the previous frame
// and the acquired image, run Commands, present.
type FrameSubmission struct {
	Graphics Queue
	Present  Queue
	Wait     CompletionToken
	Acquired *Acquisition
	Commands CommandBuffer
}

// Presentation is the result of a successful SubmitPresent.
type Presentation struct {
	Token      CompletionToken
	Suboptimal bool
}

// completedToken is a token for work that has already finished.
type completedToken struct{}

func (completedToken) Done() bool       { return true }
func (completedToken) CleanupFinished() {}
func (completedToken) Wait() error      { return nil }

// CompletedToken returns a token that is always done.
func CompletedToken() CompletionToken {
	return completedToken{}
}
