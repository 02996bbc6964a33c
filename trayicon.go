package xpanel

import (
	"image"
	"image/color"
	"image/draw"
	"time"
)

// TrayIcon is a window of another client embedded into the tray with the
// XEmbed protocol.
type TrayIcon struct {
	// Window created by the application.
	Window Window

	// Embedder window created by the tray to host Window.
	Parent Window

	// Geometry of the icon. Position is relative to the panel, size is the
	// committed icon size.
	Geometry Rect

	// Depth of the icon window. Icons with an alpha channel have depth 32.
	Depth int

	Reparented bool
	Embedded   bool

	// Mapped mirrors the mapped flag of _XEMBED_INFO.
	Mapped bool

	// PID of the owning process, or zero.
	PID int

	// Chrono is incremented for each new icon and orders icons by creation.
	Chrono int

	// Name of the icon window.
	Name string

	// Geometry of the window when it was docked.
	docked Rect

	// Off-screen copy of the icon, present only when compositing.
	image  *image.NRGBA
	damage Damage

	lastRender  time.Time
	fastRenders int
	renderDelay time.Duration
	renderStop  func()

	// Bad size requests since badSizeSince.
	badSizes     int
	badSizeSince time.Time

	pending    Rect
	resizeStop func()
}

func (icon *TrayIcon) Visible() bool {
	return icon.Embedded && icon.Mapped
}

func (icon *TrayIcon) ContentColor() color.RGBA {
	if icon.image == nil {
		return color.RGBA{}
	}
	return MeanColor(icon.image)
}

// Draw paints the composited copy of the icon centered in at. Icons that are
// not composited paint themselves through their embedder window.
func (icon *TrayIcon) Draw(dst draw.Image, at image.Rectangle) {
	if icon.image == nil {
		return
	}

	b := icon.image.Bounds()
	x := at.Min.X + (at.Dx()-b.Dx())/2
	y := at.Min.Y + (at.Dy()-b.Dy())/2
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy()).Intersect(at)
	draw.Draw(dst, r, icon.image, b.Min, draw.Over)
}

// Image returns the composited copy of the icon, or nil.
func (icon *TrayIcon) Image() image.Image {
	if icon.image == nil {
		return nil
	}
	return icon.image
}

func (icon *TrayIcon) stopTimers() {
	if icon.renderStop != nil {
		icon.renderStop()
		icon.renderStop = nil
	}
	if icon.resizeStop != nil {
		icon.resizeStop()
		icon.resizeStop = nil
	}
}
