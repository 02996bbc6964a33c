package x11

import (
	"fmt"
	"strconv"

	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil/xevent"
	"github.com/jezek/xgbutil/xprop"
	log "github.com/sirupsen/logrus"

	"github.com/shelepuginivan/xpanel"
)

const (
	trayOrientationHorz = 0

	xembedEmbeddedNotify = 0
)

func (c *Conn) selectionName() string {
	return xpanel.SystemTraySelection + strconv.Itoa(c.screen)
}

// AcquireSelection creates the tray owner window, claims the tray selection
// for it and announces the new manager to clients.
func (c *Conn) AcquireSelection() (bool, error) {
	xc := c.xu.Conn()

	selection, err := c.atom(c.selectionName())
	if err != nil {
		return false, err
	}

	current, err := xproto.GetSelectionOwner(xc, selection).Reply()
	if err != nil {
		return false, fmt.Errorf("failed to get selection owner: %w", err)
	}
	if current.Owner != xproto.WindowNone && current.Owner != c.trayOwner {
		log.WithField("owner", current.Owner).Debug("Tray selection is owned")
		return false, nil
	}

	if c.trayOwner == 0 {
		owner, err := c.createWindow(xpanel.Rect{X: -1, Y: -1, Width: 1, Height: 1},
			xproto.WindowClassInputOnly, xproto.EventMaskPropertyChange)
		if err != nil {
			return false, fmt.Errorf("failed to create tray owner window: %w", err)
		}
		c.trayOwner = owner
	}

	err = xprop.ChangeProp32(c.xu, c.trayOwner, "_NET_SYSTEM_TRAY_ORIENTATION", "CARDINAL",
		trayOrientationHorz)
	if err != nil {
		log.Warn("Failed to set tray orientation: ", err)
	}

	err = xproto.SetSelectionOwnerChecked(xc, c.trayOwner, selection, xproto.TimeCurrentTime).Check()
	if err != nil {
		return false, fmt.Errorf("failed to set selection owner: %w", err)
	}

	// The server may have refused the request silently.
	current, err = xproto.GetSelectionOwner(xc, selection).Reply()
	if err != nil {
		return false, fmt.Errorf("failed to get selection owner: %w", err)
	}
	if current.Owner != c.trayOwner {
		return false, nil
	}

	if err := c.broadcastManager(selection); err != nil {
		log.Warn("Failed to announce tray manager: ", err)
	}

	return true, nil
}

// broadcastManager sends the MANAGER client message, so that running
// applications dock their icons.
func (c *Conn) broadcastManager(selection xproto.Atom) error {
	manager, err := c.atom("MANAGER")
	if err != nil {
		return err
	}

	ev, err := xevent.NewClientMessage(32, c.xu.RootWin(), manager,
		int(xproto.TimeCurrentTime), int(selection), int(c.trayOwner))
	if err != nil {
		return err
	}

	return xevent.SendRootEvent(c.xu, ev, xproto.EventMaskStructureNotify)
}

func (c *Conn) ReleaseSelection() error {
	if c.trayOwner == 0 {
		return nil
	}

	selection, err := c.atom(c.selectionName())
	if err != nil {
		return err
	}

	xc := c.xu.Conn()
	current, err := xproto.GetSelectionOwner(xc, selection).Reply()
	if err == nil && current.Owner == c.trayOwner {
		err = xproto.SetSelectionOwnerChecked(xc, xproto.WindowNone, selection, xproto.TimeCurrentTime).Check()
		if err != nil {
			return fmt.Errorf("failed to release selection: %w", err)
		}
	}

	owner := c.trayOwner
	c.trayOwner = 0
	return c.DestroyWindow(xpanel.Window(owner))
}

func (c *Conn) WindowPID(win xpanel.Window) (int, error) {
	reply, err := c.property(win, "_NET_WM_PID")
	if err != nil || reply == nil {
		return 0, err
	}

	pid, err := xprop.PropValNum(reply, nil)
	if err != nil {
		return 0, err
	}
	return int(pid), nil
}

func (c *Conn) WindowDepth(win xpanel.Window) (int, error) {
	geom, err := xproto.GetGeometry(c.xu.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return 0, wrapError(win, err)
	}
	return int(geom.Depth), nil
}

// WatchTrayIcon redirects resizes of win to this process and adds it to the
// save set, so that the icon survives if the tray crashes.
func (c *Conn) WatchTrayIcon(win xpanel.Window) error {
	mask := uint32(xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange |
		xproto.EventMaskResizeRedirect)
	if err := c.selectInput(win, mask); err != nil {
		return err
	}

	err := xproto.ChangeSaveSetChecked(c.xu.Conn(), xproto.SetModeInsert, xproto.Window(win)).Check()
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) CreateEmbedder(r xpanel.Rect) (xpanel.Window, error) {
	mask := uint32(xproto.EventMaskStructureNotify | xproto.EventMaskSubstructureNotify |
		xproto.EventMaskPropertyChange)

	win, err := c.createWindow(r, xproto.WindowClassInputOutput, mask)
	if err != nil {
		return xpanel.None, fmt.Errorf("failed to create embedder: %w", err)
	}
	return xpanel.Window(win), nil
}

// createWindow creates an override-redirect child of the root window.
func (c *Conn) createWindow(r xpanel.Rect, class uint16, events uint32) (xproto.Window, error) {
	xc := c.xu.Conn()

	wid, err := xproto.NewWindowId(xc)
	if err != nil {
		return 0, err
	}

	var (
		mask   uint32
		values []uint32
	)
	if class == xproto.WindowClassInputOutput {
		mask |= xproto.CwBackPixmap
		values = append(values, xproto.BackPixmapParentRelative)
	}
	mask |= xproto.CwOverrideRedirect | xproto.CwEventMask
	values = append(values, 1, events)

	err = xproto.CreateWindowChecked(xc, xproto.WindowClassCopyFromParent, wid, c.xu.RootWin(),
		int16(r.X), int16(r.Y), uint16(max(r.Width, 1)), uint16(max(r.Height, 1)), 0,
		class, xproto.WindowClassCopyFromParent, mask, values).Check()
	if err != nil {
		return 0, err
	}

	return wid, nil
}

func (c *Conn) Reparent(win, parent xpanel.Window, x, y int) error {
	err := xproto.ReparentWindowChecked(c.xu.Conn(), xproto.Window(win), xproto.Window(parent),
		int16(x), int16(y)).Check()
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

// SendEmbeddedNotify sends XEMBED_EMBEDDED_NOTIFY to win.
func (c *Conn) SendEmbeddedNotify(win, parent xpanel.Window, version uint32) error {
	xembed, err := c.atom("_XEMBED")
	if err != nil {
		return err
	}

	ev, err := xevent.NewClientMessage(32, xproto.Window(win), xembed,
		int(xproto.TimeCurrentTime), xembedEmbeddedNotify, 0, int(parent), int(version))
	if err != nil {
		return err
	}

	err = xproto.SendEventChecked(c.xu.Conn(), false, xproto.Window(win),
		xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) XEmbedInfo(win xpanel.Window) (version, flags uint32, ok bool, err error) {
	reply, err := c.property(win, xpanel.PropXEmbedInfo)
	if err != nil || reply == nil {
		return 0, 0, false, err
	}

	nums, err := xprop.PropValNums(reply, nil)
	if err != nil {
		return 0, 0, false, err
	}
	if len(nums) < 2 {
		return 0, 0, false, fmt.Errorf("window %d: short %s", win, xpanel.PropXEmbedInfo)
	}

	return uint32(nums[0]), uint32(nums[1]), true, nil
}

func (c *Conn) Map(win xpanel.Window) error {
	if err := xproto.MapWindowChecked(c.xu.Conn(), xproto.Window(win)).Check(); err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) Unmap(win xpanel.Window) error {
	if err := xproto.UnmapWindowChecked(c.xu.Conn(), xproto.Window(win)).Check(); err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) MoveResize(win xpanel.Window, r xpanel.Rect) error {
	mask, values := configureValues(r)
	err := xproto.ConfigureWindowChecked(c.xu.Conn(), xproto.Window(win), mask, values).Check()
	if err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) DestroyWindow(win xpanel.Window) error {
	if err := xproto.DestroyWindowChecked(c.xu.Conn(), xproto.Window(win)).Check(); err != nil {
		return wrapError(win, err)
	}
	return nil
}

func (c *Conn) CreateDamage(win xpanel.Window) (xpanel.Damage, error) {
	if !c.damage {
		return 0, fmt.Errorf("DAMAGE extension is not available")
	}

	xc := c.xu.Conn()
	id, err := damage.NewDamageId(xc)
	if err != nil {
		return 0, err
	}

	err = damage.CreateChecked(xc, id, xproto.Drawable(win), damage.ReportLevelNonEmpty).Check()
	if err != nil {
		return 0, wrapError(win, err)
	}
	return xpanel.Damage(id), nil
}

func (c *Conn) DestroyDamage(d xpanel.Damage) error {
	if !c.damage {
		return nil
	}
	return damage.DestroyChecked(c.xu.Conn(), damage.Damage(d)).Check()
}

// LegacyTrayWindows returns the children of the root window that carry
// _KDE_NET_WM_SYSTEM_TRAY_WINDOW_FOR.
func (c *Conn) LegacyTrayWindows() ([]xpanel.Window, error) {
	tree, err := xproto.QueryTree(c.xu.Conn(), c.xu.RootWin()).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}

	var wins []xpanel.Window
	for _, child := range tree.Children {
		reply, err := c.property(xpanel.Window(child), "_KDE_NET_WM_SYSTEM_TRAY_WINDOW_FOR")
		if err != nil {
			log.Debug("Failed to read legacy tray property: ", err)
			continue
		}
		if reply != nil {
			wins = append(wins, xpanel.Window(child))
		}
	}

	return wins, nil
}
