package xpanel

import (
	"image"
	"image/color"
	"image/draw"
	"time"
)

// Window is an identifier of a window owned by the window system.
type Window uint32

// None is the null window.
const None Window = 0

// Damage is an identifier of a damage object tracking a window's contents.
type Damage uint32

// AllDesktops is the desktop index of windows that are shown on every
// desktop.
const AllDesktops = -1

// Window state atoms.
const (
	WMStateHidden           = "_NET_WM_STATE_HIDDEN"
	WMStateDemandsAttention = "_NET_WM_STATE_DEMANDS_ATTENTION"
	WMStateSkipTaskbar      = "_NET_WM_STATE_SKIP_TASKBAR"
	WMStateMaximizedVert    = "_NET_WM_STATE_MAXIMIZED_VERT"
	WMStateMaximizedHorz    = "_NET_WM_STATE_MAXIMIZED_HORZ"
	WMStateShaded           = "_NET_WM_STATE_SHADED"
)

// Window type atoms.
const (
	TypeDock    = "_NET_WM_WINDOW_TYPE_DOCK"
	TypeDesktop = "_NET_WM_WINDOW_TYPE_DESKTOP"
	TypeToolbar = "_NET_WM_WINDOW_TYPE_TOOLBAR"
	TypeMenu    = "_NET_WM_WINDOW_TYPE_MENU"
	TypeSplash  = "_NET_WM_WINDOW_TYPE_SPLASH"
	TypeNormal  = "_NET_WM_WINDOW_TYPE_NORMAL"
)

// Property names the core reacts to.
const (
	PropVisibleName    = "_NET_WM_VISIBLE_NAME"
	PropName           = "_NET_WM_NAME"
	PropLegacyName     = "WM_NAME"
	PropIcon           = "_NET_WM_ICON"
	PropHints          = "WM_HINTS"
	PropState          = "_NET_WM_STATE"
	PropDesktop        = "_NET_WM_DESKTOP"
	PropWindowType     = "_NET_WM_WINDOW_TYPE"
	PropTransientFor   = "WM_TRANSIENT_FOR"
	PropCurrentDesktop = "_NET_CURRENT_DESKTOP"
	PropNumDesktops    = "_NET_NUMBER_OF_DESKTOPS"
	PropClientList     = "_NET_CLIENT_LIST"
	PropActiveWindow   = "_NET_ACTIVE_WINDOW"
	PropXEmbedInfo     = "_XEMBED_INFO"
)

// Rect is a rectangle in root window coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether the point lies inside r, edges included.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Center returns the center point of r.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Inspector provides read access shared by the task and tray transports.
type Inspector interface {
	// Root returns the root window.
	Root() Window

	// WindowGeometry returns the geometry of win in root coordinates.
	WindowGeometry(win Window) (Rect, error)

	// TextProperty returns a text property of win, such as _NET_WM_NAME.
	TextProperty(win Window, name string) (string, error)

	// Capture returns the current pixel contents of win.
	Capture(win Window) (image.Image, error)
}

// WindowSystem is the EWMH/ICCCM capability the task registry consumes.
type WindowSystem interface {
	Inspector

	WindowState(win Window) ([]string, error)
	WindowTypes(win Window) ([]string, error)
	TransientFor(win Window) (Window, error)

	// WindowDesktop returns the desktop of win or AllDesktops.
	WindowDesktop(win Window) (int, error)

	// WindowClass returns the class part of WM_CLASS.
	WindowClass(win Window) (string, error)

	// IconData returns the raw cardinals of _NET_WM_ICON.
	IconData(win Window) ([]uint32, error)

	// IconPixmap returns the legacy WM_HINTS icon pixmap.
	IconPixmap(win Window) (image.Image, error)

	ActiveWindow() (Window, error)
	CurrentDesktop() (int, error)
	NumDesktops() (int, error)
	ClientList() ([]Window, error)
	Monitors() ([]Rect, error)

	// WatchWindow selects structure and property notifications on win.
	WatchWindow(win Window) error

	SetIconGeometry(win Window, r Rect) error
	DeleteIconGeometry(win Window) error

	Activate(win Window) error
	Close(win Window) error
	Iconify(win Window) error
	ToggleShade(win Window) error
	ToggleMaximized(win Window) error
	MoveToDesktop(win Window, desktop int) error
}

// TrayConn is the system tray and XEmbed capability the systray engine
// consumes.
type TrayConn interface {
	Inspector

	// AcquireSelection claims the tray manager selection. It reports false
	// when another process owns it.
	AcquireSelection() (bool, error)

	// ReleaseSelection gives the tray manager selection up.
	ReleaseSelection() error

	// WindowPID returns _NET_WM_PID of win.
	WindowPID(win Window) (int, error)

	// WindowDepth returns the color depth of win.
	WindowDepth(win Window) (int, error)

	// WatchTrayIcon selects structure, property and resize-redirect
	// notifications on win.
	WatchTrayIcon(win Window) error

	// CreateEmbedder creates a window owned by this process that hosts an
	// icon.
	CreateEmbedder(r Rect) (Window, error)

	Reparent(win, parent Window, x, y int) error
	SendEmbeddedNotify(win, parent Window, version uint32) error

	// XEmbedInfo returns the _XEMBED_INFO property of win. The ok result is
	// false when the property is not set.
	XEmbedInfo(win Window) (version, flags uint32, ok bool, err error)

	Map(win Window) error
	Unmap(win Window) error
	MoveResize(win Window, r Rect) error
	DestroyWindow(win Window) error

	CreateDamage(win Window) (Damage, error)
	DestroyDamage(d Damage) error

	// LegacyTrayWindows returns windows docked with the
	// _KDE_NET_WM_SYSTEM_TRAY_WINDOW_FOR convention.
	LegacyTrayWindows() ([]Window, error)
}

// Element is an object placed on the panel and painted by the renderer.
type Element interface {
	// Visible reports whether the element takes part in layout.
	Visible() bool

	// ContentColor returns the dominant color of the element content.
	ContentColor() color.RGBA

	// Draw paints the element content into at.
	Draw(dst draw.Image, at image.Rectangle)
}

// Renderer is the layout and paint collaborator.
type Renderer interface {
	ScheduleRedraw(e Element)

	// ResetBackground re-instantiates the background of e for its current
	// state.
	ResetBackground(e Element)

	ResizeTaskbar(tb *Taskbar)
	ResizePanel(p *Panel)
	ResizeSystray()
	PanelRedraw()

	// Geometry returns the on-screen geometry of e.
	Geometry(e Element) Rect

	// ShowPanel shows an auto-hidden panel.
	ShowPanel(p *Panel)
}

// Tooltip is the tooltip collaborator.
type Tooltip interface {
	// Current returns the element the tooltip is shown for, or nil.
	Current() Element
	Hide()
	Refresh(e Element)
}

// Timers is the timer subsystem. Callbacks run on the event loop thread.
// Calling the returned function cancels the timer.
type Timers interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (cancel func())
	Every(delay, period time.Duration, fn func()) (cancel func())
}
