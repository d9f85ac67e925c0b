package dieseltri

import (
	"github.com/andewx/dieseltri/internal/optional"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamily is one row of a device's queue family table.
type QueueFamily struct {
	Index uint32
	Flags vk.QueueFlags
	Count uint32
}

// Has reports whether the family carries every bit of flags.
func (f QueueFamily) Has(flags vk.QueueFlagBits) bool {
	return f.Flags&vk.QueueFlags(flags) == vk.QueueFlags(flags)
}

// PhysicalDeviceCandidate is a GPU adapter and its queue family table.
type PhysicalDeviceCandidate struct {
	Index    int
	Name     string
	Handle   vk.PhysicalDevice
	Families []QueueFamily
}

// QueueFamilyAssignment is the graphics and present family pair of a device.
type QueueFamilyAssignment struct {
	Graphics optional.Optional[uint32]
	Present  optional.Optional[uint32]
}

// Complete reports whether both roles are assigned.
func (a QueueFamilyAssignment) Complete() bool {
	return a.Graphics.HasValue() && a.Present.HasValue()
}

// Distinct reports whether the roles live in different families.
func (a QueueFamilyAssignment) Distinct() bool {
	return a.Complete() && a.Graphics.Get() != a.Present.Get()
}

// Families returns the de-duplicated family indices to open, graphics first.
func (a QueueFamilyAssignment) Families() []uint32 {
	var families []uint32
	if g, ok := a.Graphics.Lookup(); ok {
		families = append(families, g)
	}
	if p, ok := a.Present.Lookup(); ok && (len(families) == 0 || families[0] != p) {
		families = append(families, p)
	}
	return families
}

// ResolveQueueFamilies scans the families of c in index order. The first
// graphics capable family takes the graphics role and the first family
// that can present to the surface takes the present role. The surface is
// queried at most once per family and the scan stops as soon as both
// roles are filled.
func ResolveQueueFamilies(p Platform, c *PhysicalDeviceCandidate) (QueueFamilyAssignment, error) {
	var a QueueFamilyAssignment
	for _, family := range c.Families {
		if !a.Graphics.HasValue() && family.Has(vk.QueueGraphicsBit) {
			a.Graphics.Set(family.Index)
		}
		if !a.Present.HasValue() {
			ok, err := p.SurfaceSupported(c, family.Index)
			if err != nil {
				return a, errors.Wrapf(err, "surface support of family %d", family.Index)
			}
			if ok {
				a.Present.Set(family.Index)
			}
		}
		if a.Complete() {
			break
		}
	}
	return a, nil
}
