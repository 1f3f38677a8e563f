package common

// Virtual key codes used by the viewer's orbit controls.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87  // W key (ASCII)
	KeyA     = 65  // A key (ASCII)
	KeyS     = 83  // S key (ASCII)
	KeyD     = 68  // D key (ASCII)
	KeyQ     = 81  // Q key (ASCII)
	KeyE     = 69  // E key (ASCII)
	KeyR     = 82  // R key (ASCII), resets the orbit
	KeyEsc   = 256 // Escape key (GLFW)
	KeyUp    = 265 // Up arrow (GLFW)
	KeyDown  = 264 // Down arrow (GLFW)
	KeyLeft  = 263 // Left arrow (GLFW)
	KeyRight = 262 // Right arrow (GLFW)

	Key1 = 49 // 1 key (ASCII), cpu sorting
	Key2 = 50 // 2 key (ASCII), gpu sorting
	Key3 = 51 // 3 key (ASCII), gpu sorting with indirect draw
)
