package dieseltri

import (
	vk "github.com/vulkan-go/vulkan"
)

var preferredSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// ChooseSurfaceFormat picks BGRA8 sRGB with the sRGB non-linear colour
// space when offered, and the first format otherwise. A lone undefined
// entry means the surface takes any format.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 0 {
		return preferredSurfaceFormat
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return preferredSurfaceFormat
	}
	for _, f := range formats {
		if f.Format == preferredSurfaceFormat.Format && f.ColorSpace == preferredSurfaceFormat.ColorSpace {
			return f
		}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox, then immediate, then FIFO.
func ChoosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, mode := range modes {
			if mode == want {
				return want
			}
		}
	}
	// FIFO is the one mode every surface supports.
	return vk.PresentModeFifo
}

// ChooseExtent returns the surface's current extent, or width x height
// clamped into the supported range when the surface lets the swapchain
// decide.
func ChooseExtent(caps *vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image above the minimum. A maximum of 0
// means unbounded.
func ChooseImageCount(caps *vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// SharingFor returns concurrent sharing across both families when the
// queue roles are split, exclusive access otherwise.
func SharingFor(a QueueFamilyAssignment) SharingInfo {
	if a.Distinct() {
		return SharingInfo{
			Mode:     vk.SharingModeConcurrent,
			Families: []uint32{a.Graphics.Get(), a.Present.Get()},
		}
	}
	return SharingInfo{Mode: vk.SharingModeExclusive}
}

// choosePreTransform keeps the identity transform when supported.
func choosePreTransform(caps *vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

// chooseCompositeAlpha returns the first supported mode, opaque first.
// One of them is always supported.
func chooseCompositeAlpha(caps *vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func zeroExtent(e vk.Extent2D) bool {
	return e.Width == 0 || e.Height == 0
}
