package xpanel

import (
	"slices"

	log "github.com/sirupsen/logrus"
)

// SetTaskState applies state to every replica of the window of t and
// recomputes their visibility.
//
// Undefined and out-of-range states are ignored. Applying the state a window
// already has, with unchanged desktops, monitors and options, schedules no
// redraw.
func (c *Core) SetTaskState(t *Task, state TaskState) {
	if t == nil || state <= StateUndefined || state >= stateCount {
		return
	}

	entry, tracked := c.tasks[t.Window]
	if !tracked {
		return
	}

	if state == StateActive && t.State != StateActive {
		now := c.timers.Now()
		for _, r := range entry.replicas {
			r.lastActivation = now
		}
		if c.cfg.Taskbar.Sort == SortLRU || c.cfg.Taskbar.Sort == SortMRU {
			c.sortTaskbarsFor(t.Window)
		}
	}

	changed := false
	for _, r := range entry.replicas {
		if r.State != state {
			r.State = state
			c.render.ResetBackground(r)
			c.render.ScheduleRedraw(r)
			changed = true

			if state == StateActive && slices.Contains(c.urgent, r) {
				c.DelUrgent(r)
			}
		}

		if c.updateVisibility(r) {
			changed = true
		}
	}

	if t.thumbnail == nil {
		c.refreshThumbnail(t)
	}
	if state == StateActive {
		c.startActiveThumbnailTimer()
	}

	if changed {
		c.render.PanelRedraw()
	}
}

// updateVisibility recomputes whether r is on screen. It reports whether the
// visibility changed.
func (c *Core) updateVisibility(r *Task) bool {
	opts := c.cfg.Taskbar
	tb := r.taskbar
	hide := false

	if r.Desktop == AllDesktops && tb.Desktop != c.currentDesktop {
		hide = !opts.AlwaysShowAllDesktopTasks
	}
	if opts.HideInactiveTasks && r.State != StateActive {
		hide = true
	}
	if opts.HideDifferentDesktop && tb.Desktop != c.currentDesktop {
		hide = true
	}
	if (opts.HideDifferentMonitor || len(c.panels) > 1) && c.monitorOf(r) != tb.panel.Monitor {
		hide = true
	}

	if r.OnScreen == !hide {
		return false
	}

	r.OnScreen = !hide
	c.render.ScheduleRedraw(r)
	c.render.ResizeTaskbar(tb)
	c.render.ResizePanel(tb.panel)

	return true
}

// monitorOf returns the monitor the window of r is currently on.
func (c *Core) monitorOf(r *Task) int {
	if len(c.panels) <= 1 {
		return 0
	}
	return c.windowMonitor(r.WinGeometry)
}

// naturalState returns Iconified for minimized windows and Normal otherwise.
func (c *Core) naturalState(win Window) TaskState {
	states, err := c.ws.WindowState(win)
	if err == nil && slices.Contains(states, WMStateHidden) {
		return StateIconified
	}
	return StateNormal
}

// ResetActiveTask follows _NET_ACTIVE_WINDOW. An active transient window
// activates the task of its owner.
func (c *Core) ResetActiveTask() {
	if c.active != nil {
		prev := c.active
		c.active = nil
		c.SetTaskState(prev, c.naturalState(prev.Window))
	}

	win, err := c.ws.ActiveWindow()
	if err != nil || win == None {
		return
	}

	if _, tracked := c.tasks[win]; !tracked {
		win = c.transientRoot(win)
	}

	t := c.Task(win)
	if t == nil {
		return
	}

	c.active = t
	c.SetTaskState(t, StateActive)
}

// SetCurrentDesktop switches the current desktop and recomputes the
// visibility of taskbars and tasks.
func (c *Core) SetCurrentDesktop(desktop int) {
	desktop = clamp(desktop, 0, c.numDesktops-1)
	if desktop == c.currentDesktop {
		return
	}

	log.Debug("Switch desktop [", c.currentDesktop, " -> ", desktop, "]")
	c.currentDesktop = desktop

	c.UpdateTaskbarsVisibility()
	for _, win := range c.Windows() {
		for _, r := range c.tasks[win].replicas {
			c.updateVisibility(r)
		}
	}

	c.render.PanelRedraw()
}

// SetNumDesktops rebuilds the taskbars for a new number of desktops and
// tracks the client list again.
func (c *Core) SetNumDesktops(desktops int) error {
	if desktops < 1 || desktops == c.numDesktops {
		return nil
	}

	c.InitPanels(c.monitors, desktops)
	if err := c.SyncClientList(); err != nil {
		return err
	}

	c.ResetActiveTask()
	c.UpdateTaskbarsVisibility()

	return nil
}

// SetMonitors rebuilds the panels for a new monitor layout and tracks the
// client list again.
func (c *Core) SetMonitors(monitors []Rect) error {
	if slices.Equal(monitors, c.monitors) {
		return nil
	}

	c.InitPanels(monitors, c.numDesktops)
	if err := c.SyncClientList(); err != nil {
		return err
	}

	c.ResetActiveTask()
	c.UpdateTaskbarsVisibility()

	return nil
}

// UpdateTaskbarsVisibility shows the taskbar of the current desktop only in
// single desktop mode. In multi desktop mode with hide-if-empty, taskbars
// without visible tasks are hidden, except the current one.
func (c *Core) UpdateTaskbarsVisibility() {
	for _, p := range c.panels {
		for _, tb := range p.taskbars {
			onScreen := true
			switch {
			case c.cfg.Taskbar.Mode == SingleDesktop:
				onScreen = tb.Desktop == c.currentDesktop
			case c.cfg.Taskbar.HideIfEmpty:
				onScreen = tb.Desktop == c.currentDesktop || len(tb.VisibleTasks()) > 0
			}

			if tb.OnScreen != onScreen {
				tb.OnScreen = onScreen
				c.render.ResizeTaskbar(tb)
				c.render.ResizePanel(p)
			}
		}
	}
}

// NextTask returns the task after t among the visible tasks of its taskbar,
// wrapping around.
func (c *Core) NextTask(t *Task) *Task {
	siblings := c.siblings(t)
	idx := slices.Index(siblings, t)
	if idx < 0 {
		return nil
	}
	return siblings[(idx+1)%len(siblings)]
}

// PrevTask returns the task before t among the visible tasks of its taskbar,
// wrapping around.
func (c *Core) PrevTask(t *Task) *Task {
	siblings := c.siblings(t)
	idx := slices.Index(siblings, t)
	if idx < 0 {
		return nil
	}
	return siblings[(idx-1+len(siblings))%len(siblings)]
}

func (c *Core) siblings(t *Task) []*Task {
	if t == nil || t.taskbar == nil {
		return nil
	}

	var siblings []*Task
	for _, s := range t.taskbar.tasks {
		if s.OnScreen || s == t {
			siblings = append(siblings, s)
		}
	}
	return siblings
}

// findActiveTask returns the replica of the active window on the taskbar of
// t, or t itself.
func (c *Core) findActiveTask(t *Task) *Task {
	if c.active == nil {
		return t
	}
	for _, s := range t.taskbar.tasks {
		if s.Window == c.active.Window {
			return s
		}
	}
	return t
}
