package xpanel

import (
	"fmt"
	"image"
	"slices"

	log "github.com/sirupsen/logrus"
)

var titleProperties = []string{PropVisibleName, PropName, PropLegacyName}

// AddTask starts tracking win. It creates one replica per desktop the
// window is shown on, on the panel of the window monitor.
//
// AddTask returns the first replica, or nil when win is already tracked, is
// not trackable or vanished.
func (c *Core) AddTask(win Window) *Task {
	if _, tracked := c.tasks[win]; tracked {
		return nil
	}
	if !c.IsTrackable(win) {
		return nil
	}

	if err := c.ws.WatchWindow(win); err != nil {
		log.Debug("Failed to watch window [", win, "]: ", err)
		return nil
	}

	geometry, err := c.ws.WindowGeometry(win)
	if err != nil {
		log.Debug("Window geometry unavailable [", win, "]: ", err)
		return nil
	}

	monitor := 0
	if len(c.panels) > 1 {
		monitor = c.windowMonitor(geometry)
		if monitor >= len(c.panels) {
			monitor = 0
		}
	}

	desktop, err := c.ws.WindowDesktop(win)
	if err != nil {
		desktop = 0
	}
	if desktop != AllDesktops {
		desktop = clamp(desktop, 0, c.numDesktops-1)
	}

	states, _ := c.ws.WindowState(win)
	initial := StateNormal
	if slices.Contains(states, WMStateHidden) {
		initial = StateIconified
	}

	data := &windowData{title: c.fetchTitle(win)}
	data.application, err = c.ws.WindowClass(win)
	if err != nil || data.application == "" {
		data.application = "Untitled"
	}
	c.loadIcon(data, win)

	entry := &taskEntry{data: data}
	panel := c.panels[monitor]
	for _, tb := range panel.taskbars {
		if desktop != AllDesktops && desktop != tb.Desktop {
			continue
		}

		t := &Task{
			Window:      win,
			Desktop:     desktop,
			Monitor:     monitor,
			State:       StateUndefined,
			OnScreen:    true,
			WinGeometry: geometry,
			data:        data,
			core:        c,
		}
		if desktop == AllDesktops && tb.Desktop != c.currentDesktop {
			t.OnScreen = c.cfg.Taskbar.AlwaysShowAllDesktopTasks
		}

		tb.add(t)
		entry.replicas = append(entry.replicas, t)
	}

	if len(entry.replicas) == 0 {
		return nil
	}

	c.tasks[win] = entry
	first := entry.replicas[0]

	log.WithFields(log.Fields{
		"window":   win,
		"title":    data.title,
		"desktop":  desktop,
		"monitor":  monitor,
		"replicas": len(entry.replicas),
	}).Debug("Add task")

	c.SetTaskState(first, initial)
	c.sortTaskbarsFor(win)

	for _, t := range entry.replicas {
		c.render.ResizeTaskbar(t.taskbar)
	}
	if c.cfg.Taskbar.Mode == MultiDesktop {
		c.render.ResizePanel(panel)
	}

	if slices.Contains(states, WMStateDemandsAttention) {
		c.AddUrgent(first)
	}

	if c.cfg.Taskbar.HideIfEmpty {
		c.UpdateTaskbarsVisibility()
	}

	c.onTaskAdded(first)

	return first
}

// RemoveTask stops tracking win and drops every replica. The shared title
// and icons are released once.
func (c *Core) RemoveTask(win Window) {
	entry, tracked := c.tasks[win]
	if !tracked {
		return
	}

	first := entry.replicas[0]
	c.onTaskRemoved(first)

	log.WithFields(log.Fields{
		"window": win,
		"title":  entry.data.title,
	}).Debug("Remove task")

	panel := first.Panel()
	for _, t := range entry.replicas {
		if c.active == t {
			c.active = nil
		}
		if c.drag == t {
			c.drag = nil
		}
		if slices.Contains(c.urgent, t) {
			c.DelUrgent(t)
		}
		if c.tooltip.Current() == Element(t) {
			c.tooltip.Hide()
		}

		t.taskbar.remove(t)
		c.render.ResizeTaskbar(t.taskbar)
	}

	if c.cfg.Taskbar.Mode == MultiDesktop {
		c.render.ResizePanel(panel)
	}

	entry.data.release()
	delete(c.tasks, win)

	if c.cfg.Taskbar.HideIfEmpty {
		c.UpdateTaskbarsVisibility()
	}

	c.render.PanelRedraw()
}

// UpdateTitle re-reads the title of win. It reports whether the title
// changed.
func (c *Core) UpdateTitle(win Window) bool {
	entry, tracked := c.tasks[win]
	if !tracked {
		return false
	}

	title := c.fetchTitle(win)
	if title == entry.data.title {
		return false
	}
	entry.data.title = title

	for _, t := range entry.replicas {
		c.render.ScheduleRedraw(t)
		if c.tooltip.Current() == Element(t) {
			c.tooltip.Refresh(t)
		}
	}

	if c.cfg.Taskbar.Sort == SortTitle || c.cfg.Taskbar.Sort == SortApplication {
		c.sortTaskbarsFor(win)
	}

	return true
}

// UpdateIcon re-reads the icon of win and rebuilds the state variants.
func (c *Core) UpdateIcon(win Window) {
	entry, tracked := c.tasks[win]
	if !tracked {
		return
	}

	c.loadIcon(entry.data, win)
	for _, t := range entry.replicas {
		c.render.ScheduleRedraw(t)
	}
}

// SyncClientList diffs _NET_CLIENT_LIST against the tracked windows.
// Vanished windows are removed. Every listed window that is not tracked yet
// is offered to [Core.AddTask] again, so windows rejected earlier after a
// failed read are retried.
func (c *Core) SyncClientList() error {
	list, err := c.ws.ClientList()
	if err != nil {
		return fmt.Errorf("failed to get client list: %w", err)
	}

	list = slices.Clone(list)
	slices.Sort(list)
	list = slices.Compact(list)

	for _, win := range c.Windows() {
		if _, found := slices.BinarySearch(list, win); !found {
			c.RemoveTask(win)
		}
	}

	for _, win := range list {
		if _, tracked := c.tasks[win]; tracked {
			continue
		}
		c.AddTask(win)
	}

	c.clientList = list
	c.render.PanelRedraw()

	return nil
}

// UpdateDesktop re-creates the replicas of win after its desktop changed.
func (c *Core) UpdateDesktop(win Window) {
	if _, tracked := c.tasks[win]; !tracked {
		return
	}

	c.RemoveTask(win)
	c.AddTask(win)
	c.ResetActiveTask()
	c.render.PanelRedraw()
}

// UpdateGeometry records a new geometry of win. A window that moved to
// another monitor is re-created on the panel of that monitor.
func (c *Core) UpdateGeometry(win Window, geometry Rect) {
	entry, tracked := c.tasks[win]
	if !tracked {
		return
	}

	for _, t := range entry.replicas {
		t.WinGeometry = geometry
	}

	if len(c.panels) > 1 {
		monitor := c.windowMonitor(geometry)
		if monitor < len(c.panels) && monitor != entry.replicas[0].Monitor {
			log.Debug("Window changed monitor [", win, "]: ", monitor)
			c.UpdateDesktop(win)
			return
		}
	}

	if c.cfg.Taskbar.Sort == SortCenter {
		c.sortTaskbarsFor(win)
	}
}

// PublishIconGeometry writes _NET_WM_ICON_GEOMETRY of the window of t after
// a layout pass. It is deleted while t is hidden.
func (c *Core) PublishIconGeometry(t *Task) {
	var err error
	if t.OnScreen {
		err = c.ws.SetIconGeometry(t.Window, c.render.Geometry(t))
	} else {
		err = c.ws.DeleteIconGeometry(t.Window)
	}
	if err != nil {
		log.Debug("Failed to publish icon geometry [", t.Window, "]: ", err)
	}
}

func (c *Core) fetchTitle(win Window) string {
	for _, prop := range titleProperties {
		title, err := c.ws.TextProperty(win, prop)
		if err == nil && title != "" {
			return title
		}
	}
	return "Untitled"
}

// windowIcon returns the best _NET_WM_ICON image of win, its WM_HINTS icon
// pixmap, or the default icon.
func (c *Core) windowIcon(win Window) image.Image {
	data, err := c.ws.IconData(win)
	if err == nil && len(data) > 0 {
		icons, err := NewIconsFromCardinals(data)
		if err == nil {
			return BestIcon(icons, c.cfg.Task.IconSize).Image()
		}
		log.Debug("Ignoring icon of window [", win, "]: ", err)
	}

	if img, err := c.ws.IconPixmap(win); err == nil && img != nil {
		return img
	}

	return c.defaultIcon
}

func (c *Core) loadIcon(data *windowData, win Window) {
	img := c.windowIcon(win)

	data.color = MeanColor(img)
	data.hoverColor = data.color
	data.pressColor = data.color
	if c.cfg.MouseEffects.Enabled {
		data.hoverColor = adjustRGBA(data.color, c.cfg.MouseEffects.Hover)
		data.pressColor = adjustRGBA(data.color, c.cfg.MouseEffects.Pressed)
	}

	data.releaseIcons()
	if !c.cfg.Task.Icon {
		return
	}

	base := ScaleImage(img, c.cfg.Task.IconSize)
	for k := range data.icons {
		data.icons[k] = AdjustImage(base, c.cfg.Task.States.For(TaskState(k)))
		if c.cfg.MouseEffects.Enabled {
			data.hoverIcons[k] = AdjustImage(data.icons[k], c.cfg.MouseEffects.Hover)
			data.pressIcons[k] = AdjustImage(data.icons[k], c.cfg.MouseEffects.Pressed)
		}
	}
}

// sortTaskbarsFor re-sorts every taskbar holding a replica of win.
func (c *Core) sortTaskbarsFor(win Window) {
	entry, tracked := c.tasks[win]
	if !tracked || c.cfg.Taskbar.Sort == SortNone {
		return
	}

	for _, t := range entry.replicas {
		if t.taskbar.sort(c.cfg.Taskbar.Sort) {
			c.render.ResizeTaskbar(t.taskbar)
		}
	}
}
