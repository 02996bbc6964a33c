package x11

import (
	"fmt"
	"image"

	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/xgraphics"
	"github.com/jezek/xgbutil/xprop"

	"github.com/shelepuginivan/xpanel"
)

// _NET_WM_DESKTOP value of windows shown on every desktop.
const allDesktops = 0xFFFFFFFF

func (c *Conn) Root() xpanel.Window {
	return xpanel.Window(c.xu.RootWin())
}

func (c *Conn) WindowGeometry(win xpanel.Window) (xpanel.Rect, error) {
	xc := c.xu.Conn()

	geom, err := xproto.GetGeometry(xc, xproto.Drawable(win)).Reply()
	if err != nil {
		return xpanel.Rect{}, wrapError(win, err)
	}

	abs, err := xproto.TranslateCoordinates(xc, xproto.Window(win), c.xu.RootWin(), 0, 0).Reply()
	if err != nil {
		return xpanel.Rect{}, wrapError(win, err)
	}

	return xpanel.Rect{
		X:      int(abs.DstX),
		Y:      int(abs.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

func (c *Conn) TextProperty(win xpanel.Window, name string) (string, error) {
	reply, err := c.property(win, name)
	if err != nil || reply == nil {
		return "", err
	}
	if reply.Format != 8 {
		return "", fmt.Errorf("window %d: %s has format %d", win, name, reply.Format)
	}
	return xprop.PropValStr(reply, nil)
}

func (c *Conn) Capture(win xpanel.Window) (image.Image, error) {
	img, err := xgraphics.NewDrawable(c.xu, xproto.Drawable(win))
	if err != nil {
		return nil, wrapError(win, err)
	}
	return img, nil
}

func (c *Conn) WindowState(win xpanel.Window) ([]string, error) {
	return c.atomsProperty(win, xpanel.PropState)
}

func (c *Conn) WindowTypes(win xpanel.Window) ([]string, error) {
	return c.atomsProperty(win, xpanel.PropWindowType)
}

func (c *Conn) atomsProperty(win xpanel.Window, name string) ([]string, error) {
	reply, err := c.property(win, name)
	if err != nil || reply == nil {
		return nil, err
	}
	return xprop.PropValAtoms(c.xu, reply, nil)
}

func (c *Conn) TransientFor(win xpanel.Window) (xpanel.Window, error) {
	reply, err := c.property(win, xpanel.PropTransientFor)
	if err != nil || reply == nil {
		return xpanel.None, err
	}

	owner, err := xprop.PropValWindow(reply, nil)
	if err != nil {
		return xpanel.None, err
	}
	return xpanel.Window(owner), nil
}

func (c *Conn) WindowDesktop(win xpanel.Window) (int, error) {
	reply, err := c.property(win, xpanel.PropDesktop)
	if err != nil || reply == nil {
		return 0, err
	}

	desktop, err := xprop.PropValNum(reply, nil)
	if err != nil {
		return 0, err
	}
	return fromDesktop(desktop), nil
}

func (c *Conn) WindowClass(win xpanel.Window) (string, error) {
	reply, err := c.property(win, "WM_CLASS")
	if err != nil || reply == nil {
		return "", err
	}

	class, err := icccm.WmClassGet(c.xu, xproto.Window(win))
	if err != nil {
		return "", wrapError(win, err)
	}
	return class.Class, nil
}

func (c *Conn) IconData(win xpanel.Window) ([]uint32, error) {
	reply, err := c.property(win, xpanel.PropIcon)
	if err != nil || reply == nil {
		return nil, err
	}

	nums, err := xprop.PropValNums(reply, nil)
	if err != nil {
		return nil, err
	}
	return toUint32(nums), nil
}

func (c *Conn) IconPixmap(win xpanel.Window) (image.Image, error) {
	reply, err := c.property(win, xpanel.PropHints)
	if err != nil || reply == nil {
		return nil, err
	}

	hints, err := icccm.WmHintsGet(c.xu, xproto.Window(win))
	if err != nil {
		return nil, wrapError(win, err)
	}
	if hints.Flags&icccm.HintIconPixmap == 0 || hints.IconPixmap == 0 {
		return nil, nil
	}

	mask := hints.IconMask
	if hints.Flags&icccm.HintIconMask == 0 {
		mask = 0
	}

	img, err := xgraphics.NewIcccmIcon(c.xu, hints.IconPixmap, mask)
	if err != nil {
		return nil, fmt.Errorf("window %d: failed to read icon pixmap: %w", win, err)
	}
	return img, nil
}

func (c *Conn) ActiveWindow() (xpanel.Window, error) {
	reply, err := c.property(c.Root(), xpanel.PropActiveWindow)
	if err != nil || reply == nil {
		return xpanel.None, err
	}

	win, err := xprop.PropValWindow(reply, nil)
	if err != nil {
		return xpanel.None, err
	}
	return xpanel.Window(win), nil
}

func (c *Conn) CurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.xu)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

func (c *Conn) NumDesktops() (int, error) {
	n, err := ewmh.NumberOfDesktopsGet(c.xu)
	if err != nil {
		return 0, fmt.Errorf("failed to get number of desktops: %w", err)
	}
	return int(n), nil
}

func (c *Conn) ClientList() ([]xpanel.Window, error) {
	reply, err := c.property(c.Root(), xpanel.PropClientList)
	if err != nil || reply == nil {
		return nil, err
	}

	nums, err := xprop.PropValNums(reply, nil)
	if err != nil {
		return nil, err
	}

	wins := make([]xpanel.Window, len(nums))
	for i, n := range nums {
		wins[i] = xpanel.Window(n)
	}
	return wins, nil
}

// Monitors returns the Xinerama screens, or the whole root window when
// Xinerama is not active.
func (c *Conn) Monitors() ([]xpanel.Rect, error) {
	screen := c.xu.Screen()
	fallback := []xpanel.Rect{{
		Width:  int(screen.WidthInPixels),
		Height: int(screen.HeightInPixels),
	}}

	if !c.xinerama {
		return fallback, nil
	}

	reply, err := xinerama.QueryScreens(c.xu.Conn()).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query Xinerama screens: %w", err)
	}
	if len(reply.ScreenInfo) == 0 {
		return fallback, nil
	}

	monitors := make([]xpanel.Rect, len(reply.ScreenInfo))
	for i, info := range reply.ScreenInfo {
		monitors[i] = xpanel.Rect{
			X:      int(info.XOrg),
			Y:      int(info.YOrg),
			Width:  int(info.Width),
			Height: int(info.Height),
		}
	}
	return monitors, nil
}

func (c *Conn) WatchWindow(win xpanel.Window) error {
	return c.selectInput(win, xproto.EventMaskPropertyChange|xproto.EventMaskStructureNotify)
}

func (c *Conn) selectInput(win xpanel.Window, mask uint32) error {
	err := xproto.ChangeWindowAttributesChecked(c.xu.Conn(), xproto.Window(win),
		xproto.CwEventMask, []uint32{mask}).Check()
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) SetIconGeometry(win xpanel.Window, r xpanel.Rect) error {
	err := ewmh.WmIconGeometrySet(c.xu, xproto.Window(win), &ewmh.WmIconGeometry{
		X:      r.X,
		Y:      r.Y,
		Width:  uint(r.Width),
		Height: uint(r.Height),
	})
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) DeleteIconGeometry(win xpanel.Window) error {
	atom, err := c.atom("_NET_WM_ICON_GEOMETRY")
	if err != nil {
		return err
	}
	if err := xproto.DeletePropertyChecked(c.xu.Conn(), xproto.Window(win), atom).Check(); err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) Activate(win xpanel.Window) error {
	return wrapRequest(win, "activate", ewmh.ActiveWindowReq(c.xu, xproto.Window(win)))
}

func (c *Conn) Close(win xpanel.Window) error {
	return wrapRequest(win, "close", ewmh.CloseWindow(c.xu, xproto.Window(win)))
}

func (c *Conn) Iconify(win xpanel.Window) error {
	err := ewmh.ClientEvent(c.xu, xproto.Window(win), "WM_CHANGE_STATE", icccm.StateIconic)
	return wrapRequest(win, "iconify", err)
}

func (c *Conn) ToggleShade(win xpanel.Window) error {
	err := ewmh.WmStateReq(c.xu, xproto.Window(win), ewmh.StateToggle, xpanel.WMStateShaded)
	return wrapRequest(win, "shade", err)
}

func (c *Conn) ToggleMaximized(win xpanel.Window) error {
	err := ewmh.WmStateReqExtra(c.xu, xproto.Window(win), ewmh.StateToggle,
		xpanel.WMStateMaximizedVert, xpanel.WMStateMaximizedHorz, 2)
	return wrapRequest(win, "maximize", err)
}

func (c *Conn) MoveToDesktop(win xpanel.Window, desktop int) error {
	err := ewmh.WmDesktopReq(c.xu, xproto.Window(win), toDesktop(desktop))
	return wrapRequest(win, "move", err)
}

func wrapRequest(win xpanel.Window, action string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to %s window %d: %w", action, win, err)
	}
	return nil
}

// fromDesktop converts a _NET_WM_DESKTOP value to a desktop index.
func fromDesktop(desktop uint) int {
	if uint32(desktop) == allDesktops {
		return xpanel.AllDesktops
	}
	return int(desktop)
}

// toDesktop converts a desktop index to a _NET_WM_DESKTOP value.
func toDesktop(desktop int) uint {
	if desktop == xpanel.AllDesktops {
		return allDesktops
	}
	return uint(desktop)
}
