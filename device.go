package dieseltri

import (
	"github.com/pkg/errors"
)

// LogicalDeviceContext owns the opened device and its two queue handles.
// Present is the same queue as Graphics when both roles share a family.
type LogicalDeviceContext struct {
	Device     Device
	Candidate  *PhysicalDeviceCandidate
	Assignment QueueFamilyAssignment
	Graphics   Queue
	Present    Queue
}

// OpenDevice opens a logical device on c with one queue in each family of
// a. Any failure is returned as a *DeviceCreationError.
func OpenDevice(p Platform, c *PhysicalDeviceCandidate, a QueueFamilyAssignment, extensions, layers []string) (*LogicalDeviceContext, error) {
	if !a.Complete() {
		return nil, &DeviceCreationError{Device: c.Name, Err: errors.New("incomplete queue family assignment")}
	}
	dev, err := p.CreateDevice(c, DeviceCreateInfo{
		QueueFamilies: a.Families(),
		Extensions:    extensions,
		Layers:        layers,
	})
	if err != nil {
		return nil, &DeviceCreationError{Device: c.Name, Err: err}
	}

	ctx := &LogicalDeviceContext{
		Device:     dev,
		Candidate:  c,
		Assignment: a,
	}
	ctx.Graphics, err = dev.Queue(a.Graphics.Get())
	if err != nil {
		dev.Destroy()
		return nil, &DeviceCreationError{Device: c.Name, Err: errors.Wrap(err, "graphics queue")}
	}
	if a.Distinct() {
		ctx.Present, err = dev.Queue(a.Present.Get())
		if err != nil {
			dev.Destroy()
			return nil, &DeviceCreationError{Device: c.Name, Err: errors.Wrap(err, "present queue")}
		}
	} else {
		ctx.Present = ctx.Graphics
	}
	Logger().Info("logical device opened", "device", c.Name,
		"families", a.Families(), "separate_present", a.Distinct())
	return ctx, nil
}

// Destroy waits for the device to go idle and releases it.
func (ctx *LogicalDeviceContext) Destroy() {
	if ctx == nil || ctx.Device == nil {
		return
	}
	if err := ctx.Device.WaitIdle(); err != nil {
		Logger().Warn("device wait idle", "err", err)
	}
	ctx.Device.Destroy()
	ctx.Device = nil
}
