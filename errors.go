package dieseltri

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	// ErrNoSuitableDevice is returned when no physical device can render
	// and present to the window surface.
	ErrNoSuitableDevice = errors.New("no suitable GPU device for graphics and presentation")

	// ErrOutOfDate reports that the surface no longer matches the swapchain.
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrAcquireTimeout reports that no swapchain image became available
	// within the configured acquire timeout.
	ErrAcquireTimeout = errors.New("swapchain image acquire timed out")

	// ErrSurfaceZeroExtent reports a surface with no area, as seen while a
	// window is minimized. A swapchain cannot be built for it.
	ErrSurfaceZeroExtent = errors.New("surface has zero extent")
)

// DeviceCreationError is returned when the logical device or its queues
// could not be opened.
type DeviceCreationError struct {
	Device string
	Err    error
}

func (e *DeviceCreationError) Error() string {
	return fmt.Sprintf("creating logical device on %q: %v", e.Device, e.Err)
}

func (e *DeviceCreationError) Unwrap() error { return e.Err }
func (e *DeviceCreationError) Cause() error  { return e.Err }

// SwapchainCreationError is returned when building a swapchain generation
// failed at Stage. Initial is set for the first generation, which callers
// treat as fatal.
type SwapchainCreationError struct {
	Stage   string
	Initial bool
	Err     error
}

func (e *SwapchainCreationError) Error() string {
	if e.Initial {
		return fmt.Sprintf("creating swapchain (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("recreating swapchain (%s): %v", e.Stage, e.Err)
}

func (e *SwapchainCreationError) Unwrap() error { return e.Err }
func (e *SwapchainCreationError) Cause() error  { return e.Err }

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a failed vk.Result into an error carrying a stack
// trace. It returns nil for vk.Success.
func NewError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	return errors.Wrapf(vk.Error(ret), "vulkan error (%d)", ret)
}

// resultError is NewError for the acquire and present paths, mapping the
// results the frame scheduler recovers from onto sentinel errors.
func resultError(ret vk.Result) error {
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return errors.WithStack(ErrOutOfDate)
	case vk.Timeout, vk.NotReady:
		return errors.WithStack(ErrAcquireTimeout)
	default:
		return NewError(ret)
	}
}

// IsStale reports whether err means the swapchain has to be rebuilt.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}

// IsRecoverable reports whether the frame loop can continue after err.
func IsRecoverable(err error) bool {
	return err == nil ||
		errors.Is(err, ErrOutOfDate) ||
		errors.Is(err, ErrAcquireTimeout) ||
		errors.Is(err, ErrSurfaceZeroExtent)
}

// IsFatal is the complement of IsRecoverable.
func IsFatal(err error) bool {
	return !IsRecoverable(err)
}

// Fatal logs err and terminates the process. Finalizers run first.
func Fatal(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	Logger().Error("fatal", "err", fmt.Sprintf("%+v", err))
	fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
	os.Exit(1)
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		*err = errors.Errorf("%+v", v)
	}
}
