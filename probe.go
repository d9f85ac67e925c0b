package dieseltri

import (
	"github.com/pkg/errors"
)

// IsSuitable reports whether c can drive the renderer: both queue roles
// resolved, every required device extension present and at least one
// surface format and present mode.
func IsSuitable(p Platform, c *PhysicalDeviceCandidate, required []string) (bool, QueueFamilyAssignment, error) {
	a, err := ResolveQueueFamilies(p, c)
	if err != nil {
		return false, a, err
	}
	if !a.Complete() {
		Logger().Debug("queue families incomplete", "device", c.Name,
			"graphics", a.Graphics.HasValue(), "present", a.Present.HasValue())
		return false, a, nil
	}

	actual, err := p.DeviceExtensions(c)
	if err != nil {
		return false, a, errors.Wrap(err, "device extensions")
	}
	if ok, missing := NewExtensionSet(nil, required, actual).HasRequired(); !ok {
		Logger().Debug("device extensions missing", "device", c.Name, "missing", missing)
		return false, a, nil
	}

	support, err := p.SurfaceSupport(c)
	if err != nil {
		return false, a, errors.Wrap(err, "surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		Logger().Debug("surface unsupported", "device", c.Name,
			"formats", len(support.Formats), "present_modes", len(support.PresentModes))
		return false, a, nil
	}
	return true, a, nil
}

// SelectDevice returns the first suitable device in enumeration order.
// Devices that fail to answer a query are skipped.
func SelectDevice(p Platform, required []string) (*PhysicalDeviceCandidate, QueueFamilyAssignment, error) {
	candidates, err := p.Devices()
	if err != nil {
		return nil, QueueFamilyAssignment{}, errors.Wrap(err, "enumerate devices")
	}
	for _, c := range candidates {
		ok, a, err := IsSuitable(p, c, required)
		if err != nil {
			Logger().Warn("skipping device", "device", c.Name, "err", err)
			continue
		}
		if ok {
			Logger().Info("device selected", "device", c.Name, "index", c.Index,
				"graphics_family", a.Graphics.Get(), "present_family", a.Present.Get())
			return c, a, nil
		}
	}
	return nil, QueueFamilyAssignment{}, errors.WithStack(ErrNoSuitableDevice)
}
