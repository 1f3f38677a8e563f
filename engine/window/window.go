package window

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotInitialized is returned by operations on a window whose platform window was
// never created or has already been closed.
var ErrNotInitialized = errors.New("window is not initialized")

// MouseButton identifies the button of a drag gesture.
type MouseButton int

const (
	// MouseButtonLeft drags orbit the camera.
	MouseButtonLeft MouseButton = iota

	// MouseButtonRight drags pan the camera.
	MouseButtonRight

	// MouseButtonMiddle drags pan the camera.
	MouseButtonMiddle
)

// Window is the on-screen surface a splat viewer renders into, together with the
// input events that drive its camera.
type Window interface {
	// SetUpdateCallback sets the function called once per event loop iteration, after
	// pending events were dispatched.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for vertical scroll events.
	//
	// Parameters:
	//   - callback: function receiving the scroll delta (positive scrolls up)
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key events. Repeats report pressed.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common/key_codes.go) and whether it is held
	SetKeyCallback(callback func(keyCode uint32, pressed bool))

	// SetDragCallback sets the callback for cursor motion while a mouse button is held.
	//
	// Parameters:
	//   - callback: function receiving the held button and the cursor delta in pixels
	SetDragCallback(callback func(button MouseButton, dx, dy float32))

	// SurfaceDescriptor returns the platform surface descriptor for creating a WebGPU
	// surface, or nil if the window is not initialized.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// FramebufferSize returns the current framebuffer size in pixels. On high-DPI
	// displays it differs from the window size in screen coordinates.
	FramebufferSize() (int, int)

	// IsRunning reports whether the window is open and has not been asked to close.
	IsRunning() bool

	// RequestClose asks the event loop to stop after the current iteration.
	RequestClose()

	// ProcessMessages runs the event loop on the calling goroutine until the window
	// closes. The update callback is called once per iteration.
	ProcessMessages()

	// Close destroys the platform window.
	//
	// Returns:
	//   - error: ErrNotInitialized if the window was already closed
	Close() error
}

// splatWindow is the implementation of the Window interface.
type splatWindow struct {
	title string

	width, height int

	minWidth, minHeight int
	maxWidth, maxHeight int

	resizable bool

	// platform holds the GLFW state. Nil until created and after Close.
	platform *glfwWindow

	onUpdate func()
	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(keyCode uint32, pressed bool)
	onDrag   func(button MouseButton, dx, dy float32)
}

var _ Window = &splatWindow{}

// NewWindow creates and shows a window. Defaults are an 800x600 resizable window
// titled "oxy-splat" with no size limits.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &splatWindow{
		title:     "oxy-splat",
		width:     800,
		height:    600,
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *splatWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *splatWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *splatWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *splatWindow) SetKeyCallback(callback func(keyCode uint32, pressed bool)) {
	w.onKey = callback
}

func (w *splatWindow) SetDragCallback(callback func(button MouseButton, dx, dy float32)) {
	w.onDrag = callback
}

func (w *splatWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *splatWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *splatWindow) IsRunning() bool {
	return w.platform != nil && w.platform.running()
}

func (w *splatWindow) RequestClose() {
	if w.platform != nil {
		w.platform.requestClose()
	}
}

func (w *splatWindow) ProcessMessages() {
	for w.IsRunning() {
		w.platform.pollEvents()
		if !w.IsRunning() {
			return
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
}

func (w *splatWindow) Close() error {
	if w.platform == nil {
		return ErrNotInitialized
	}
	w.platform.destroy()
	w.platform = nil
	return nil
}

// resized records a framebuffer size and forwards it. Zero sizes (minimized) are
// recorded but not forwarded.
func (w *splatWindow) resized(width, height int) {
	w.width, w.height = width, height
	if width > 0 && height > 0 && w.onResize != nil {
		w.onResize(width, height)
	}
}
