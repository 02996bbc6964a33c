package xpanel

import (
	"slices"

	log "github.com/sirupsen/logrus"
)

// HandleEvent updates the tracked windows from a window system event.
func (c *Core) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case PropertyEvent:
		if e.Window == c.ws.Root() {
			c.handleRootProperty(e.Name)
			return
		}
		c.handleWindowProperty(e.Window, e.Name)

	case ConfigureEvent:
		c.UpdateGeometry(e.Window, e.Geometry)

	case DestroyEvent:
		c.RemoveTask(e.Window)
	}
}

func (c *Core) handleRootProperty(name string) {
	switch name {
	case PropCurrentDesktop:
		desktop, err := c.ws.CurrentDesktop()
		if err != nil {
			log.Warn("Failed to get current desktop: ", err)
			return
		}
		c.SetCurrentDesktop(desktop)

	case PropNumDesktops:
		desktops, err := c.ws.NumDesktops()
		if err != nil {
			log.Warn("Failed to get number of desktops: ", err)
			return
		}
		if err := c.SetNumDesktops(desktops); err != nil {
			log.Warn("Failed to rebuild taskbars: ", err)
		}

	case PropClientList:
		if err := c.SyncClientList(); err != nil {
			log.Warn("Failed to sync client list: ", err)
		}

	case PropActiveWindow:
		c.ResetActiveTask()
		c.render.PanelRedraw()
	}
}

func (c *Core) handleWindowProperty(win Window, name string) {
	if _, tracked := c.tasks[win]; !tracked {
		// A listed window may become trackable, e.g. when it drops
		// skip-taskbar.
		if name == PropState || name == PropWindowType {
			if _, listed := slices.BinarySearch(c.clientList, win); listed {
				c.AddTask(win)
			}
		}
		return
	}

	switch name {
	case PropVisibleName, PropName, PropLegacyName:
		c.UpdateTitle(win)

	case PropIcon, PropHints:
		c.UpdateIcon(win)

	case PropState:
		c.updateWindowState(win)

	case PropDesktop:
		c.UpdateDesktop(win)

	case PropWindowType, PropTransientFor:
		if !c.IsTrackable(win) {
			c.RemoveTask(win)
		}
	}
}

// updateWindowState reacts to a _NET_WM_STATE change of a tracked window.
func (c *Core) updateWindowState(win Window) {
	states, err := c.ws.WindowState(win)
	if err != nil {
		log.Debug("Window vanished [", win, "]: ", err)
		c.RemoveTask(win)
		return
	}

	if slices.Contains(states, WMStateSkipTaskbar) {
		c.RemoveTask(win)
		return
	}

	first := c.Task(win)
	urgent := slices.Contains(states, WMStateDemandsAttention)

	if urgent {
		c.AddUrgent(first)
	} else if slices.Contains(c.urgent, first) {
		c.DelUrgent(first)
	}

	if c.active != nil && c.active.Window == win {
		return
	}
	if urgent && first.State == StateUrgent {
		return
	}

	natural := StateNormal
	if slices.Contains(states, WMStateHidden) {
		natural = StateIconified
	}
	c.SetTaskState(first, natural)
}
