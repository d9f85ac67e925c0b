package dieseltri

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type vkRenderPass struct {
	device vk.Device
	handle vk.RenderPass
	format vk.Format
}

func (r *vkRenderPass) Format() vk.Format { return r.format }

func (r *vkRenderPass) Destroy() {
	if r.handle != vk.NullRenderPass {
		vk.DestroyRenderPass(r.device, r.handle, nil)
		r.handle = vk.NullRenderPass
	}
}

// CreateRenderPass builds a one subpass pass over a single colour
// attachment that is cleared, stored and left ready for presentation.
func (d *vkDevice) CreateRenderPass(format vk.Format) (RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}
	colorRefs := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}}
	// The layout transition waits for the image acquired semaphore, which
	// is waited on at the colour attachment output stage.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.MaxUint32,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}}

	r := &vkRenderPass{device: d.handle, format: format}
	ret := vk.CreateRenderPass(d.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &r.handle)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	return r, nil
}
