package xpanel

import (
	"image"
	"image/color"
	"image/draw"
	"time"
)

// TaskState is the display state of a task.
type TaskState int

const (
	// StateUndefined is the state of a replica that was never rendered.
	StateUndefined TaskState = iota
	StateNormal
	StateIconified
	StateActive
	StateUrgent

	stateCount
)

func (s TaskState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateIconified:
		return "iconified"
	case StateActive:
		return "active"
	case StateUrgent:
		return "urgent"
	default:
		return "undefined"
	}
}

// MouseState is the pointer interaction state of a task.
type MouseState int

const (
	MouseNormal MouseState = iota
	MouseOver
	MousePressed
)

// windowData holds the title and images of a window. It is owned by the
// registry entry and shared by every replica of the window.
type windowData struct {
	title       string
	application string

	icons      [stateCount]image.Image
	hoverIcons [stateCount]image.Image
	pressIcons [stateCount]image.Image

	color      color.RGBA
	hoverColor color.RGBA
	pressColor color.RGBA

	// Number of times the data was released.
	releases int
}

func (d *windowData) releaseIcons() {
	for k := range d.icons {
		d.icons[k] = nil
		d.hoverIcons[k] = nil
		d.pressIcons[k] = nil
	}
}

func (d *windowData) release() {
	d.releaseIcons()
	d.title = ""
	d.application = ""
	d.releases++
}

// Task is one replica of a tracked window, placed on the taskbar of one
// desktop of one panel.
type Task struct {
	Window Window

	// Desktop of the window, or AllDesktops.
	Desktop int

	// Monitor the window is on.
	Monitor int

	State      TaskState
	MouseState MouseState

	// OnScreen reports whether the replica takes part in layout.
	OnScreen bool

	// Geometry of the window in root coordinates.
	WinGeometry Rect

	urgentTick     int
	lastActivation time.Time
	thumbnailAt    time.Time
	thumbnail      image.Image

	taskbar *Taskbar
	data    *windowData
	core    *Core
}

// Title returns the window title shared by all replicas.
func (t *Task) Title() string {
	return t.data.title
}

// Application returns the class of the window.
func (t *Task) Application() string {
	return t.data.application
}

// Taskbar returns the taskbar holding the replica.
func (t *Task) Taskbar() *Taskbar {
	return t.taskbar
}

// Panel returns the panel holding the replica.
func (t *Task) Panel() *Panel {
	return t.taskbar.panel
}

// Icon returns the icon for the current state and mouse state.
func (t *Task) Icon() image.Image {
	state := t.State
	if state == StateUndefined {
		state = StateNormal
	}
	if t.core.cfg.MouseEffects.Enabled {
		switch t.MouseState {
		case MouseOver:
			return t.data.hoverIcons[state]
		case MousePressed:
			return t.data.pressIcons[state]
		}
	}
	return t.data.icons[state]
}

func (t *Task) Visible() bool {
	return t.OnScreen
}

func (t *Task) ContentColor() color.RGBA {
	if t.core.cfg.MouseEffects.Enabled {
		switch t.MouseState {
		case MouseOver:
			return t.data.hoverColor
		case MousePressed:
			return t.data.pressColor
		}
	}
	return t.data.color
}

// Draw paints the task icon, vertically centered at the left of at.
func (t *Task) Draw(dst draw.Image, at image.Rectangle) {
	icon := t.Icon()
	if icon == nil {
		return
	}

	b := icon.Bounds()
	y := at.Min.Y + (at.Dy()-b.Dy())/2
	r := image.Rect(at.Min.X, y, at.Min.X+b.Dx(), y+b.Dy()).Intersect(at)
	draw.Draw(dst, r, icon, b.Min, draw.Over)
}

// TooltipText returns the tooltip text of the task.
func (t *Task) TooltipText() string {
	return t.data.title
}

// TooltipImage returns the window thumbnail, capturing one if none is cached.
func (t *Task) TooltipImage() image.Image {
	if !t.core.cfg.Task.Thumbnails {
		return nil
	}
	if t.thumbnail == nil {
		t.core.refreshThumbnail(t)
	}
	return t.thumbnail
}

// Tick returns the number of blink ticks since the task became urgent.
func (t *Task) Tick() int {
	return t.urgentTick
}

// LastActivation returns the time the window last became active.
func (t *Task) LastActivation() time.Time {
	return t.lastActivation
}
