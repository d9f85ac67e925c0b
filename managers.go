package dieseltri

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// syncPool hands out fences and acquire semaphores and recycles them once
// the work that used them has finished. It owns every object it created
// and destroys them all on Destroy. Semaphores waited on by a present are
// owned by the swapchain image they belong to and never enter the pool.
// Not thread-safe.
type syncPool struct {
	device     vk.Device
	fences     []vk.Fence
	semaphores []vk.Semaphore
	freeFences []vk.Fence
	freeSems   []vk.Semaphore
}

func newSyncPool(device vk.Device) *syncPool {
	return &syncPool{device: device}
}

// fence returns an unsignaled fence.
func (p *syncPool) fence() (vk.Fence, error) {
	if n := len(p.freeFences); n > 0 {
		f := p.freeFences[n-1]
		p.freeFences = p.freeFences[:n-1]
		return f, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(p.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if err := NewError(ret); err != nil {
		return vk.NullFence, errors.Wrap(err, "create fence")
	}
	p.fences = append(p.fences, fence)
	return fence, nil
}

// semaphore returns an unsignaled semaphore with no pending operation.
func (p *syncPool) semaphore() (vk.Semaphore, error) {
	if n := len(p.freeSems); n > 0 {
		s := p.freeSems[n-1]
		p.freeSems = p.freeSems[:n-1]
		return s, nil
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(p.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := NewError(ret); err != nil {
		return vk.NullSemaphore, errors.Wrap(err, "create semaphore")
	}
	p.semaphores = append(p.semaphores, sem)
	return sem, nil
}

// release returns objects whose work has finished. The fence is reset.
// Semaphores the pool did not create are ignored.
func (p *syncPool) release(fence vk.Fence, sems ...vk.Semaphore) {
	if fence != vk.NullFence {
		if err := NewError(vk.ResetFences(p.device, 1, []vk.Fence{fence})); err != nil {
			Logger().Warn("reset fence", "err", err)
		} else {
			p.freeFences = append(p.freeFences, fence)
		}
	}
	for _, s := range sems {
		if s != vk.NullSemaphore && p.owns(s) {
			p.freeSems = append(p.freeSems, s)
		}
	}
}

func (p *syncPool) owns(sem vk.Semaphore) bool {
	for _, s := range p.semaphores {
		if s == sem {
			return true
		}
	}
	return false
}

// forget drops sem from the pool without recycling it.
func (p *syncPool) forget(sem vk.Semaphore) {
	for i, s := range p.semaphores {
		if s == sem {
			p.semaphores = append(p.semaphores[:i], p.semaphores[i+1:]...)
			return
		}
	}
}

// Destroy releases every object the pool created. The device must be idle.
func (p *syncPool) Destroy() {
	for _, f := range p.fences {
		vk.DestroyFence(p.device, f, nil)
	}
	for _, s := range p.semaphores {
		vk.DestroySemaphore(p.device, s, nil)
	}
	p.fences, p.freeFences = nil, nil
	p.semaphores, p.freeSems = nil, nil
}

// vkToken tracks one frame submission by its fence. The acquire semaphore
// goes back to the pool together with the fence.
type vkToken struct {
	pool       *syncPool
	fence      vk.Fence
	semaphores []vk.Semaphore
	released   bool
}

func (t *vkToken) Done() bool {
	if t.released {
		return true
	}
	return vk.GetFenceStatus(t.pool.device, t.fence) == vk.Success
}

func (t *vkToken) CleanupFinished() {
	if t.released || !t.Done() {
		return
	}
	t.pool.release(t.fence, t.semaphores...)
	t.released = true
}

func (t *vkToken) Wait() error {
	if t.released {
		return nil
	}
	ret := vk.WaitForFences(t.pool.device, 1, []vk.Fence{t.fence}, vk.True, vk.MaxUint64)
	return errors.Wrap(NewError(ret), "wait for frame fence")
}
