// Package display opens the glfw window the renderer presents to.
package display

import (
	"github.com/andewx/dieseltri"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Window is a glfw window without a client API, ready for a Vulkan
// surface. glfw requires every call to come from the main thread.
type Window struct {
	window *glfw.Window
	events []dieseltri.Event
}

// Open initializes glfw, points the Vulkan loader at it and creates a
// resizable window.
func Open(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw: vulkan loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{window: window}
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.push(dieseltri.Event{Kind: dieseltri.EventResize, Width: width, Height: height})
	})
	window.SetCloseCallback(func(_ *glfw.Window) {
		w.push(dieseltri.Event{Kind: dieseltri.EventClose})
	})
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press {
			w.push(dieseltri.Event{Kind: dieseltri.EventKey, Key: dieseltri.Key(key)})
		}
	})
	return w, nil
}

func (w *Window) push(ev dieseltri.Event) {
	w.events = append(w.events, ev)
}

func (w *Window) drain() []dieseltri.Event {
	events := w.events
	w.events = nil
	return events
}

func (w *Window) PollEvents() []dieseltri.Event {
	glfw.PollEvents()
	return w.drain()
}

func (w *Window) WaitEvents() []dieseltri.Event {
	glfw.WaitEvents()
	return w.drain()
}

func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "glfw surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// Close destroys the window and terminates glfw.
func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	glfw.Terminate()
}
