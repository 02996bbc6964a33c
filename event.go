package xpanel

// Event is a window system notification delivered to the core.
type Event interface {
	// Target returns the window the event is about.
	Target() Window
}

// PropertyEvent reports a changed or deleted window property.
type PropertyEvent struct {
	Window  Window
	Name    string
	Deleted bool
}

// ConfigureEvent reports a new window geometry.
type ConfigureEvent struct {
	Window   Window
	Geometry Rect
}

// DestroyEvent reports a destroyed window.
type DestroyEvent struct {
	Window Window
}

// UnmapEvent reports an unmapped window.
type UnmapEvent struct {
	Window Window
}

// ReparentEvent reports a window moved under a new parent.
type ReparentEvent struct {
	Window Window
	Parent Window
}

// ClientMessageEvent is a 32-bit client message.
type ClientMessageEvent struct {
	Window Window
	Type   string
	Data   [5]uint32
}

// ResizeRequestEvent reports a size request of a window whose resizes are
// redirected to this process.
type ResizeRequestEvent struct {
	Window Window
	Width  int
	Height int
}

// SelectionClearEvent reports that this process lost a selection.
type SelectionClearEvent struct {
	Owner     Window
	Selection string
}

// DamageEvent reports that a watched window redrew its contents.
type DamageEvent struct {
	Drawable Window
	Damage   Damage
}

func (e PropertyEvent) Target() Window       { return e.Window }
func (e ConfigureEvent) Target() Window      { return e.Window }
func (e DestroyEvent) Target() Window        { return e.Window }
func (e UnmapEvent) Target() Window          { return e.Window }
func (e ReparentEvent) Target() Window       { return e.Window }
func (e ClientMessageEvent) Target() Window  { return e.Window }
func (e ResizeRequestEvent) Target() Window  { return e.Window }
func (e SelectionClearEvent) Target() Window { return e.Owner }
func (e DamageEvent) Target() Window         { return e.Drawable }
