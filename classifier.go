package xpanel

import (
	"slices"

	log "github.com/sirupsen/logrus"
)

// Maximum length of a WM_TRANSIENT_FOR chain that is followed.
const maxTransientHops = 16

var untrackedTypes = []string{
	TypeDock,
	TypeDesktop,
	TypeToolbar,
	TypeMenu,
	TypeSplash,
}

// IsTrackable reports whether win should get a task.
//
// Windows with neither _NET_WM_WINDOW_TYPE nor WM_TRANSIENT_FOR are top-level
// windows and are tracked.
func (c *Core) IsTrackable(win Window) bool {
	if win == None || c.ownWindows[win] {
		return false
	}

	states, err := c.ws.WindowState(win)
	if err != nil {
		log.Debug("Window state unavailable [", win, "]: ", err)
		return false
	}
	if slices.Contains(states, WMStateSkipTaskbar) {
		return false
	}

	if c.transientOwner(win) != None {
		return false
	}

	types, err := c.ws.WindowTypes(win)
	if err != nil {
		log.Debug("Window type unavailable [", win, "]: ", err)
		return false
	}
	for _, t := range types {
		if slices.Contains(untrackedTypes, t) {
			return false
		}
	}

	return true
}

// transientOwner follows the transient chain of win and returns the first
// tracked window on it, or None.
func (c *Core) transientOwner(win Window) Window {
	seen := map[Window]bool{win: true}
	for hop := 0; hop < maxTransientHops; hop++ {
		next, err := c.ws.TransientFor(win)
		if err != nil || next == None || seen[next] {
			return None
		}
		if _, tracked := c.tasks[next]; tracked {
			return next
		}
		seen[next] = true
		win = next
	}
	return None
}

// transientRoot follows the transient chain of win to its last window.
func (c *Core) transientRoot(win Window) Window {
	seen := map[Window]bool{win: true}
	for hop := 0; hop < maxTransientHops; hop++ {
		next, err := c.ws.TransientFor(win)
		if err != nil || next == None || seen[next] {
			break
		}
		seen[next] = true
		win = next
	}
	return win
}
