package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW state of a splatWindow.
type glfwWindow struct {
	window *glfw.Window

	closing bool

	// dragging is the held button; lastX and lastY track the cursor for drag deltas.
	dragging     *MouseButton
	lastX, lastY float64
}

var glfwButtons = map[glfw.MouseButton]MouseButton{
	glfw.MouseButtonLeft:   MouseButtonLeft,
	glfw.MouseButtonRight:  MouseButtonRight,
	glfw.MouseButtonMiddle: MouseButtonMiddle,
}

// limit maps an unset (zero) size bound to glfw.DontCare.
func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// newPlatformWindow creates the GLFW window without a client API, since WebGPU
// brings its own, and wires the input callbacks into w. The calling goroutine is
// locked to its OS thread because GLFW must be driven from the thread that
// initialized it.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *splatWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if w.resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(limit(w.minWidth), limit(w.minHeight), limit(w.maxWidth), limit(w.maxHeight))

	gw := &glfwWindow{window: win}
	w.platform = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.requestClose()
			return
		}
		if w.onKey != nil && key != glfw.KeyUnknown {
			w.onKey(uint32(key), action != glfw.Release)
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		b, ok := glfwButtons[button]
		if !ok {
			return
		}
		switch action {
		case glfw.Press:
			if gw.dragging == nil {
				gw.dragging = &b
				gw.lastX, gw.lastY = win.GetCursorPos()
			}
		case glfw.Release:
			if gw.dragging != nil && *gw.dragging == b {
				gw.dragging = nil
			}
		}
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if gw.dragging == nil {
			return
		}
		dx, dy := x-gw.lastX, y-gw.lastY
		gw.lastX, gw.lastY = x, y
		if w.onDrag != nil {
			w.onDrag(*gw.dragging, float32(dx), float32(dy))
		}
	})

	// The framebuffer callback reports pixels, which is what the surface is configured in.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	return nil
}

// surfaceDescriptor builds the platform surface descriptor through the wgpuglfw
// bridge (Windows, X11, Wayland and Metal).
func (gw *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func (gw *glfwWindow) running() bool {
	return !gw.closing && !gw.window.ShouldClose()
}

func (gw *glfwWindow) requestClose() {
	gw.closing = true
	gw.window.SetShouldClose(true)
}

func (gw *glfwWindow) pollEvents() {
	glfw.PollEvents()
}

func (gw *glfwWindow) destroy() {
	gw.requestClose()
	gw.window.Destroy()
	glfw.Terminate()
}
