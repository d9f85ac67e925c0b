package dieseltri

import (
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type vkQueue struct {
	family uint32
	handle vk.Queue
}

func (q *vkQueue) Family() uint32 { return q.family }

type vkDevice struct {
	handle  vk.Device
	gpu     vk.PhysicalDevice
	surface vk.Surface
	memory  vk.PhysicalDeviceMemoryProperties

	families map[uint32]bool
	queues   map[uint32]*vkQueue
	commands *commandPool
	sync     *syncPool
}

// newVkDevice wraps an opened device. The command pool is created on the
// first family, which is the graphics family.
func newVkDevice(handle vk.Device, c *PhysicalDeviceCandidate, surface vk.Surface, families []uint32) (*vkDevice, error) {
	d := &vkDevice{
		handle:   handle,
		gpu:      c.Handle,
		surface:  surface,
		families: make(map[uint32]bool, len(families)),
		queues:   make(map[uint32]*vkQueue, len(families)),
		sync:     newSyncPool(handle),
	}
	for _, f := range families {
		d.families[f] = true
	}
	vk.GetPhysicalDeviceMemoryProperties(c.Handle, &d.memory)
	d.memory.Deref()

	if len(families) == 0 {
		vk.DestroyDevice(handle, nil)
		return nil, errors.New("device opened without queue families")
	}
	var err error
	if d.commands, err = newCommandPool(handle, families[0]); err != nil {
		vk.DestroyDevice(handle, nil)
		return nil, err
	}
	return d, nil
}

func (d *vkDevice) Queue(family uint32) (Queue, error) {
	if q, ok := d.queues[family]; ok {
		return q, nil
	}
	if !d.families[family] {
		return nil, errors.Errorf("queue family %d was not opened", family)
	}
	q := &vkQueue{family: family}
	vk.GetDeviceQueue(d.handle, family, 0, &q.handle)
	if q.handle == nil {
		return nil, errors.Errorf("no queue in family %d", family)
	}
	d.queues[family] = q
	return q, nil
}

func (d *vkDevice) SurfaceSupport() (*SurfaceSupport, error) {
	return querySurfaceSupport(d.gpu, d.surface)
}

func (d *vkDevice) AcquireNextImage(sc Swapchain, timeout time.Duration) (*Acquisition, error) {
	chain, ok := sc.(*vkSwapchain)
	if !ok {
		return nil, errors.Errorf("foreign swapchain %T", sc)
	}
	ready, err := d.sync.semaphore()
	if err != nil {
		return nil, err
	}
	wait := uint64(vk.MaxUint64)
	if timeout > 0 {
		wait = uint64(timeout.Nanoseconds())
	}
	var index uint32
	ret := vk.AcquireNextImage(d.handle, chain.handle, wait, ready, vk.NullFence, &index)
	if err := resultError(ret); err != nil {
		// Nothing was signaled, the semaphore can be handed out again.
		d.sync.release(vk.NullFence, ready)
		return nil, err
	}
	return &Acquisition{
		Swapchain:  sc,
		Image:      int(index),
		Suboptimal: ret == vk.Suboptimal,
		ready:      ready,
	}, nil
}

// SubmitPresent joins the previous frame on the CPU before submitting, so
// at most one frame is executing and the per-image command buffers are
// never pending when they are resubmitted.
func (d *vkDevice) SubmitPresent(s *FrameSubmission) (*Presentation, error) {
	if s.Wait != nil {
		if err := s.Wait.Wait(); err != nil {
			Logger().Warn("previous frame", "err", err)
		}
		s.Wait.CleanupFinished()
	}

	graphics, ok := s.Graphics.(*vkQueue)
	if !ok {
		return nil, errors.Errorf("foreign queue %T", s.Graphics)
	}
	present, ok := s.Present.(*vkQueue)
	if !ok {
		return nil, errors.Errorf("foreign queue %T", s.Present)
	}
	cmd, ok := s.Commands.(*vkCommandBuffer)
	if !ok {
		return nil, errors.Errorf("foreign command buffer %T", s.Commands)
	}
	chain, ok := s.Acquired.Swapchain.(*vkSwapchain)
	if !ok {
		return nil, d.abandon(s.Acquired, errors.Errorf("foreign swapchain %T", s.Acquired.Swapchain))
	}
	if s.Acquired.Image < 0 || s.Acquired.Image >= len(chain.rendered) {
		return nil, d.abandon(s.Acquired, errors.Errorf("image %d outside swapchain", s.Acquired.Image))
	}
	done := chain.rendered[s.Acquired.Image]

	fence, err := d.sync.fence()
	if err != nil {
		return nil, d.abandon(s.Acquired, err)
	}

	ret := vk.QueueSubmit(graphics.handle, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{s.Acquired.ready},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{done},
	}}, fence)
	if err := NewError(ret); err != nil {
		d.sync.release(fence)
		return nil, d.abandon(s.Acquired, errors.Wrap(err, "queue submit"))
	}

	token := &vkToken{
		pool:       d.sync,
		fence:      fence,
		semaphores: []vk.Semaphore{s.Acquired.ready},
	}
	ret = vk.QueuePresent(present.handle, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{done},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{chain.handle},
		PImageIndices:      []uint32{uint32(s.Acquired.Image)},
	})
	if err := resultError(ret); err != nil {
		// The submission still runs; join it so the caller can treat the
		// frame as complete.
		if werr := token.Wait(); werr != nil {
			Logger().Warn("joining failed frame", "err", werr)
		}
		if werr := NewError(vk.QueueWaitIdle(present.handle)); werr != nil {
			Logger().Warn("present queue wait idle", "err", werr)
		}
		token.CleanupFinished()
		return nil, errors.Wrap(err, "queue present")
	}
	return &Presentation{Token: token, Suboptimal: ret == vk.Suboptimal}, nil
}

// abandon handles an acquired image that will not be submitted. Its
// semaphore has a signal pending, so it is only reclaimed after the
// device goes idle. The image itself stays acquired until the swapchain
// is recreated, which the scheduler does after every dropped frame.
func (d *vkDevice) abandon(acq *Acquisition, err error) error {
	if werr := d.WaitIdle(); werr != nil {
		Logger().Warn("wait idle", "err", werr)
	}
	d.sync.forget(acq.ready)
	vk.DestroySemaphore(d.handle, acq.ready, nil)
	acq.ready = vk.NullSemaphore
	return err
}

func (d *vkDevice) WaitIdle() error {
	return errors.Wrap(NewError(vk.DeviceWaitIdle(d.handle)), "device wait idle")
}

func (d *vkDevice) Destroy() {
	if d.handle == nil {
		return
	}
	vk.DeviceWaitIdle(d.handle)
	d.sync.Destroy()
	d.commands.Destroy()
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
}
