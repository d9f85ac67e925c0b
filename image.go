package dieseltri

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type vkSwapchain struct {
	device vk.Device
	handle vk.Swapchain
	format vk.Format
	extent vk.Extent2D
	images []vk.Image
	views  []vk.ImageView

	// rendered holds one render finished semaphore per image. The present
	// of an image waits on it, and it is signaled again only after the
	// same image has been acquired anew.
	rendered []vk.Semaphore
}

func (s *vkSwapchain) ImageCount() int     { return len(s.images) }
func (s *vkSwapchain) Extent() vk.Extent2D { return s.extent }
func (s *vkSwapchain) Format() vk.Format   { return s.format }

func (s *vkSwapchain) Destroy() {
	for _, sem := range s.rendered {
		vk.DestroySemaphore(s.device, sem, nil)
	}
	s.rendered = nil
	for _, view := range s.views {
		vk.DestroyImageView(s.device, view, nil)
	}
	s.views = nil
	s.images = nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
}

func (d *vkDevice) CreateSwapchain(info *SwapchainCreateInfo, old Swapchain) (Swapchain, error) {
	oldHandle := vk.NullSwapchain
	if prev, ok := old.(*vkSwapchain); ok && prev != nil {
		oldHandle = prev.handle
	}

	s := &vkSwapchain{
		device: d.handle,
		format: info.Format.Format,
		extent: info.Extent,
	}
	ret := vk.CreateSwapchain(d.handle, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               d.surface,
		MinImageCount:         info.ImageCount,
		ImageFormat:           info.Format.Format,
		ImageColorSpace:       info.Format.ColorSpace,
		ImageExtent:           info.Extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      info.Sharing.Mode,
		QueueFamilyIndexCount: uint32(len(info.Sharing.Families)),
		PQueueFamilyIndices:   info.Sharing.Families,
		PreTransform:          info.PreTransform,
		CompositeAlpha:        info.CompositeAlpha,
		PresentMode:           info.PresentMode,
		Clipped:               vk.True,
		OldSwapchain:          oldHandle,
	}, nil, &s.handle)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	var count uint32
	if err := NewError(vk.GetSwapchainImages(d.handle, s.handle, &count, nil)); err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "swapchain images")
	}
	s.images = make([]vk.Image, count)
	if err := NewError(vk.GetSwapchainImages(d.handle, s.handle, &count, s.images)); err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "swapchain images")
	}

	s.views = make([]vk.ImageView, 0, count)
	for i, image := range s.images {
		var view vk.ImageView
		ret := vk.CreateImageView(d.handle, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   s.format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleR,
				G: vk.ComponentSwizzleG,
				B: vk.ComponentSwizzleB,
				A: vk.ComponentSwizzleA,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if err := NewError(ret); err != nil {
			s.Destroy()
			return nil, errors.Wrapf(err, "image view %d", i)
		}
		s.views = append(s.views, view)
	}

	s.rendered = make([]vk.Semaphore, 0, count)
	for i := range s.images {
		var sem vk.Semaphore
		ret := vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sem)
		if err := NewError(ret); err != nil {
			s.Destroy()
			return nil, errors.Wrapf(err, "render finished semaphore %d", i)
		}
		s.rendered = append(s.rendered, sem)
	}
	return s, nil
}

type vkFramebuffer struct {
	device vk.Device
	handle vk.Framebuffer
	extent vk.Extent2D
	image  int
}

func (f *vkFramebuffer) Extent() vk.Extent2D { return f.extent }
func (f *vkFramebuffer) Image() int          { return f.image }

func (f *vkFramebuffer) Destroy() {
	if f.handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(f.device, f.handle, nil)
		f.handle = vk.NullFramebuffer
	}
}

func (d *vkDevice) CreateFramebuffer(rp RenderPass, sc Swapchain, image int) (Framebuffer, error) {
	pass, ok := rp.(*vkRenderPass)
	if !ok {
		return nil, errors.Errorf("foreign render pass %T", rp)
	}
	chain, ok := sc.(*vkSwapchain)
	if !ok {
		return nil, errors.Errorf("foreign swapchain %T", sc)
	}
	if image < 0 || image >= len(chain.views) {
		return nil, errors.Errorf("image %d outside swapchain of %d images", image, len(chain.views))
	}

	fb := &vkFramebuffer{device: d.handle, extent: chain.extent, image: image}
	ret := vk.CreateFramebuffer(d.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.handle,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{chain.views[image]},
		Width:           chain.extent.Width,
		Height:          chain.extent.Height,
		Layers:          1,
	}, nil, &fb.handle)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create framebuffer")
	}
	return fb, nil
}
