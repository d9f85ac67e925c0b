package dieseltri

import vk "github.com/vulkan-go/vulkan"

// EventKind identifies a window event.
type EventKind uint32

const (
	EventClose EventKind = iota + 1
	EventResize
	EventKey
)

// Key is a key code as reported by the window.
type Key int

// KeyEscape matches the escape key code of the windowing library.
const KeyEscape Key = 256

// Event is a window event. Width and Height are set for EventResize and
// Key for EventKey presses.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
	Key    Key
}

// Window is the presentation window the renderer draws into.
type Window interface {
	// PollEvents returns the events queued since the last call without blocking.
	PollEvents() []Event
	// WaitEvents blocks until at least one event is available.
	WaitEvents() []Event
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (int, int)
	// RequiredInstanceExtensions lists the instance extensions needed for
	// CreateSurface.
	RequiredInstanceExtensions() []string
	// CreateSurface creates the presentation surface on instance.
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}
