// Package x11 implements the window system interfaces of xpanel on top of an
// X server connection.
package x11

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/composite"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xprop"
	log "github.com/sirupsen/logrus"

	"github.com/shelepuginivan/xpanel"
)

// Conn is a connection to the X server. It implements
// [xpanel.WindowSystem] and [xpanel.TrayConn].
//
// Requests are safe to issue from any goroutine, but the panel issues them
// from the event loop only.
type Conn struct {
	xu     *xgbutil.XUtil
	screen int

	xinerama bool
	damage   bool

	// Window owning the tray selection, or zero.
	trayOwner xproto.Window
}

var (
	_ xpanel.WindowSystem = (*Conn)(nil)
	_ xpanel.TrayConn     = (*Conn)(nil)
)

// Dial connects to display. An empty display uses $DISPLAY.
//
// Missing extensions are not fatal: without Xinerama the whole screen is
// one monitor, and without DAMAGE tray icons are never composited.
func Dial(display string) (*Conn, error) {
	xc, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	xu, err := xgbutil.NewConnXgb(xc)
	if err != nil {
		xc.Close()
		return nil, fmt.Errorf("failed to set up X connection: %w", err)
	}

	c := &Conn{
		xu:     xu,
		screen: xc.DefaultScreen,
	}

	if err := xinerama.Init(xc); err != nil {
		log.Debug("Xinerama unavailable: ", err)
	} else {
		c.xinerama = true
	}

	c.damage = c.initDamage()

	if err := c.WatchWindow(xpanel.Window(xu.RootWin())); err != nil {
		xc.Close()
		return nil, fmt.Errorf("failed to watch root window: %w", err)
	}

	return c, nil
}

func (c *Conn) initDamage() bool {
	xc := c.xu.Conn()

	if err := xfixes.Init(xc); err != nil {
		log.Debug("XFIXES unavailable: ", err)
		return false
	}
	if _, err := xfixes.QueryVersion(xc, 2, 0).Reply(); err != nil {
		log.Debug("XFIXES version query failed: ", err)
		return false
	}

	if err := damage.Init(xc); err != nil {
		log.Debug("DAMAGE unavailable: ", err)
		return false
	}
	if _, err := damage.QueryVersion(xc, 1, 1).Reply(); err != nil {
		log.Debug("DAMAGE version query failed: ", err)
		return false
	}

	if err := composite.Init(xc); err != nil {
		log.Debug("Composite unavailable: ", err)
		return false
	}

	return true
}

// Composited reports whether tray icons can be tracked with DAMAGE.
func (c *Conn) Composited() bool {
	return c.damage
}

// Disconnect closes the connection. A running [Conn.Run] returns.
func (c *Conn) Disconnect() {
	c.xu.Conn().Close()
}

// Run reads events until the connection is closed with [Conn.Disconnect],
// and hands each translated event to post. Events the panel does not consume
// are dropped.
func (c *Conn) Run(post func(xpanel.Event)) {
	for {
		ev, xerr := c.xu.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			log.Debug("X connection closed")
			return
		}

		if xerr != nil {
			log.Debug("X error: ", xerr)
			continue
		}

		if e := c.translate(ev); e != nil {
			post(e)
		}
	}
}

// translate converts an X event into a panel event, or returns nil.
func (c *Conn) translate(ev xgb.Event) xpanel.Event {
	switch e := ev.(type) {
	case xproto.PropertyNotifyEvent:
		return xpanel.PropertyEvent{
			Window:  xpanel.Window(e.Window),
			Name:    c.atomName(e.Atom),
			Deleted: e.State == xproto.PropertyDelete,
		}

	case xproto.ConfigureNotifyEvent:
		geometry, err := c.WindowGeometry(xpanel.Window(e.Window))
		if err != nil {
			geometry = xpanel.Rect{
				X:      int(e.X),
				Y:      int(e.Y),
				Width:  int(e.Width),
				Height: int(e.Height),
			}
		}
		return xpanel.ConfigureEvent{Window: xpanel.Window(e.Window), Geometry: geometry}

	case xproto.DestroyNotifyEvent:
		return xpanel.DestroyEvent{Window: xpanel.Window(e.Window)}

	case xproto.UnmapNotifyEvent:
		return xpanel.UnmapEvent{Window: xpanel.Window(e.Window)}

	case xproto.ReparentNotifyEvent:
		return xpanel.ReparentEvent{
			Window: xpanel.Window(e.Window),
			Parent: xpanel.Window(e.Parent),
		}

	case xproto.ClientMessageEvent:
		if e.Format != 32 {
			return nil
		}
		msg := xpanel.ClientMessageEvent{
			Window: xpanel.Window(e.Window),
			Type:   c.atomName(e.Type),
		}
		copy(msg.Data[:], e.Data.Data32)
		return msg

	case xproto.ResizeRequestEvent:
		return xpanel.ResizeRequestEvent{
			Window: xpanel.Window(e.Window),
			Width:  int(e.Width),
			Height: int(e.Height),
		}

	case xproto.SelectionClearEvent:
		return xpanel.SelectionClearEvent{
			Owner:     xpanel.Window(e.Owner),
			Selection: c.atomName(e.Selection),
		}

	case damage.NotifyEvent:
		damage.Subtract(c.xu.Conn(), e.Damage, xfixes.Region(0), xfixes.Region(0))
		return xpanel.DamageEvent{
			Drawable: xpanel.Window(e.Drawable),
			Damage:   xpanel.Damage(e.Damage),
		}
	}

	return nil
}

func (c *Conn) atom(name string) (xproto.Atom, error) {
	atom, err := xprop.Atm(c.xu, name)
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	return atom, nil
}

func (c *Conn) atomName(atom xproto.Atom) string {
	name, err := xprop.AtomName(c.xu, atom)
	if err != nil {
		log.Debug("Unknown atom ", atom, ": ", err)
		return ""
	}
	return name
}

// property returns a property of win, or nil if it is not set.
func (c *Conn) property(win xpanel.Window, name string) (*xproto.GetPropertyReply, error) {
	atom, err := c.atom(name)
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(c.xu.Conn(), false, xproto.Window(win), atom,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, wrapError(win, err)
	}
	if reply.Format == 0 {
		return nil, nil
	}

	return reply, nil
}

// wrapError marks errors about vanished windows with
// [xpanel.ErrWindowGone].
func wrapError(win xpanel.Window, err error) error {
	var (
		windowErr   xproto.WindowError
		drawableErr xproto.DrawableError
	)
	if errors.As(err, &windowErr) || errors.As(err, &drawableErr) {
		return fmt.Errorf("window %d: %w: %w", win, xpanel.ErrWindowGone, err)
	}
	return fmt.Errorf("window %d: %w", win, err)
}

func toUint32(nums []uint) []uint32 {
	out := make([]uint32, len(nums))
	for i, n := range nums {
		out[i] = uint32(n)
	}
	return out
}

// configureValues returns the value list of a ConfigureWindow request that
// moves and resizes to r.
func configureValues(r xpanel.Rect) (uint16, []uint32) {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY |
		xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)

	return mask, []uint32{
		uint32(int32(r.X)),
		uint32(int32(r.Y)),
		uint32(max(r.Width, 1)),
		uint32(max(r.Height, 1)),
	}
}
