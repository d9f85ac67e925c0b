package dieseltri

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type commandPool struct {
	device vk.Device
	handle vk.CommandPool
}

func newCommandPool(device vk.Device, family uint32) (*commandPool, error) {
	p := &commandPool{device: device}
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}, nil, &p.handle)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	return p, nil
}

func (p *commandPool) allocate() (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(p.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "allocate command buffer")
	}
	return buffers[0], nil
}

func (p *commandPool) free(cmd vk.CommandBuffer) {
	vk.FreeCommandBuffers(p.device, p.handle, 1, []vk.CommandBuffer{cmd})
}

func (p *commandPool) Destroy() {
	if p == nil || p.handle == vk.NullCommandPool {
		return
	}
	vk.DestroyCommandPool(p.device, p.handle, nil)
	p.handle = vk.NullCommandPool
}

// vkCommandBuffer is a command buffer recorded once for one swapchain image
// and resubmitted every time that image is acquired.
type vkCommandBuffer struct {
	pool   *commandPool
	handle vk.CommandBuffer
	image  int
}

func (c *vkCommandBuffer) Image() int { return c.image }

func (c *vkCommandBuffer) Destroy() {
	if c.handle != nil {
		c.pool.free(c.handle)
		c.handle = nil
	}
}

func (d *vkDevice) RecordDraw(info *DrawInfo) (CommandBuffer, error) {
	rp, ok := info.RenderPass.(*vkRenderPass)
	if !ok {
		return nil, errors.Errorf("foreign render pass %T", info.RenderPass)
	}
	pipeline, ok := info.Pipeline.(*vkPipeline)
	if !ok {
		return nil, errors.Errorf("foreign pipeline %T", info.Pipeline)
	}
	fb, ok := info.Framebuffer.(*vkFramebuffer)
	if !ok {
		return nil, errors.Errorf("foreign framebuffer %T", info.Framebuffer)
	}
	vb, ok := info.Vertices.(*vkVertexBuffer)
	if !ok {
		return nil, errors.Errorf("foreign vertex buffer %T", info.Vertices)
	}

	handle, err := d.commands.allocate()
	if err != nil {
		return nil, err
	}
	cmd := &vkCommandBuffer{pool: d.commands, handle: handle, image: fb.image}

	ret := vk.BeginCommandBuffer(handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	if err := NewError(ret); err != nil {
		cmd.Destroy()
		return nil, errors.Wrap(err, "begin command buffer")
	}
	clearValues := []vk.ClearValue{
		vk.NewClearValue(info.ClearColor[:]),
	}
	vk.CmdBeginRenderPass(handle, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.handle,
		Framebuffer: fb.handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: fb.extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
	vk.CmdBindPipeline(handle, vk.PipelineBindPointGraphics, pipeline.handle)
	vk.CmdBindVertexBuffers(handle, 0, 1, []vk.Buffer{vb.buffer}, []vk.DeviceSize{0})
	vk.CmdDraw(handle, vb.count, 1, 0, 0)
	vk.CmdEndRenderPass(handle)

	if err := NewError(vk.EndCommandBuffer(handle)); err != nil {
		cmd.Destroy()
		return nil, errors.Wrap(err, "end command buffer")
	}
	return cmd, nil
}
