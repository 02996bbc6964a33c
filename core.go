package xpanel

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrWindowGone is returned when a window vanished between two requests.
var ErrWindowGone = errors.New("window is gone")

// Delay of the second thumbnail capture of an activated window. Windows often
// redraw slowly after gaining focus.
const activeThumbnailDelay = 500 * time.Millisecond

// Minimum time between two thumbnail captures of a task.
const thumbnailInterval = 100 * time.Millisecond

type taskEntry struct {
	replicas []*Task
	data     *windowData
}

// TaskInfo is a snapshot of one tracked window.
type TaskInfo struct {
	Window  uint32
	Title   string
	State   string
	Desktop int32
}

// Core tracks the top-level windows of other clients and keeps their task
// replicas on the panels consistent.
//
// Core is not safe for concurrent use. All methods must be called from the
// event loop goroutine.
type Core struct {
	cfg     *Config
	ws      WindowSystem
	render  Renderer
	tooltip Tooltip
	timers  Timers

	panels   []*Panel
	monitors []Rect
	tasks    map[Window]*taskEntry

	active *Task
	drag   *Task

	urgent     []*Task
	urgentStop func()
	thumbStop  func()

	currentDesktop int
	numDesktops    int
	clientList     []Window

	ownWindows  map[Window]bool
	defaultIcon image.Image

	onTaskAdded   func(*Task)
	onTaskRemoved func(*Task)
}

// NewCore returns a new [Core]. Call [Core.Init] to load the window system
// state.
func NewCore(cfg *Config, ws WindowSystem, render Renderer, tooltip Tooltip, timers Timers) *Core {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Core{
		cfg:           cfg,
		ws:            ws,
		render:        render,
		tooltip:       tooltip,
		timers:        timers,
		tasks:         make(map[Window]*taskEntry),
		ownWindows:    make(map[Window]bool),
		defaultIcon:   DefaultIcon(cfg.Task.IconSize),
		numDesktops:   1,
		onTaskAdded:   func(*Task) {},
		onTaskRemoved: func(*Task) {},
	}
}

// Init queries desktops and monitors, creates the panels and tracks the
// windows of the client list.
func (c *Core) Init() error {
	desktops, err := c.ws.NumDesktops()
	if err != nil {
		return fmt.Errorf("init: failed to get number of desktops: %w", err)
	}

	current, err := c.ws.CurrentDesktop()
	if err != nil {
		return fmt.Errorf("init: failed to get current desktop: %w", err)
	}

	monitors, err := c.ws.Monitors()
	if err != nil {
		return fmt.Errorf("init: failed to get monitors: %w", err)
	}

	c.currentDesktop = current
	c.InitPanels(monitors, desktops)

	if err := c.SyncClientList(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	c.ResetActiveTask()
	c.UpdateTaskbarsVisibility()

	return nil
}

// InitPanels creates one panel per monitor with one taskbar per desktop.
// Tracked windows are dropped; call [Core.SyncClientList] to track them
// again.
func (c *Core) InitPanels(monitors []Rect, desktops int) {
	for _, win := range c.Windows() {
		c.RemoveTask(win)
	}

	if len(monitors) == 0 {
		monitors = []Rect{{}}
	}
	if desktops < 1 {
		desktops = 1
	}

	c.monitors = slices.Clone(monitors)
	c.numDesktops = desktops
	c.currentDesktop = clamp(c.currentDesktop, 0, desktops-1)
	c.panels = c.panels[:0]
	for i, m := range monitors {
		c.panels = append(c.panels, newPanel(i, m, desktops))
	}
	c.clientList = nil
}

// ApplyConfig replaces the configuration and re-tracks every window so that
// icons, visibility and ordering follow the new settings.
func (c *Core) ApplyConfig(cfg *Config) {
	c.cfg = cfg
	c.defaultIcon = DefaultIcon(cfg.Task.IconSize)

	// Listed windows that are not tracked stay listed, so that they are
	// picked up once they become trackable.
	listed := c.clientList
	windows := c.Windows()
	for _, win := range windows {
		c.RemoveTask(win)
	}
	for _, win := range windows {
		c.AddTask(win)
	}
	c.clientList = listed

	c.ResetActiveTask()
	c.UpdateTaskbarsVisibility()
	c.render.PanelRedraw()
}

// Config returns the current configuration.
func (c *Core) Config() *Config {
	return c.cfg
}

// Panels returns the panels, indexed by monitor.
func (c *Core) Panels() []*Panel {
	return c.panels
}

// AddOwnWindow marks win as a window of this process. Own windows are never
// tracked.
func (c *Core) AddOwnWindow(win Window) {
	c.ownWindows[win] = true
}

// Tasks returns the replicas of win, or nil if win is not tracked.
func (c *Core) Tasks(win Window) []*Task {
	entry, ok := c.tasks[win]
	if !ok {
		return nil
	}
	return slices.Clone(entry.replicas)
}

// Task returns the first replica of win, or nil.
func (c *Core) Task(win Window) *Task {
	entry, ok := c.tasks[win]
	if !ok || len(entry.replicas) == 0 {
		return nil
	}
	return entry.replicas[0]
}

// Windows returns the tracked windows in ascending order.
func (c *Core) Windows() []Window {
	windows := make([]Window, 0, len(c.tasks))
	for win := range c.tasks {
		windows = append(windows, win)
	}
	slices.Sort(windows)
	return windows
}

// Active returns the replica of the active window, or nil.
func (c *Core) Active() *Task {
	return c.active
}

// SetDrag records the task being dragged, or nil.
func (c *Core) SetDrag(t *Task) {
	c.drag = t
}

// Drag returns the task being dragged, or nil.
func (c *Core) Drag() *Task {
	return c.drag
}

// CurrentDesktop returns the current desktop.
func (c *Core) CurrentDesktop() int {
	return c.currentDesktop
}

// NumDesktops returns the number of desktops.
func (c *Core) NumDesktops() int {
	return c.numDesktops
}

// OnTaskAdded sets callback that runs whenever a new window is tracked.
func (c *Core) OnTaskAdded(callback func(*Task)) {
	c.onTaskAdded = callback
}

// OnTaskRemoved sets callback that runs whenever a window stops being
// tracked. The task title is still readable when the callback runs.
func (c *Core) OnTaskRemoved(callback func(*Task)) {
	c.onTaskRemoved = callback
}

// Snapshot returns one row per tracked window.
func (c *Core) Snapshot() []TaskInfo {
	var rows []TaskInfo
	for _, win := range c.Windows() {
		t := c.Task(win)
		rows = append(rows, TaskInfo{
			Window:  uint32(win),
			Title:   t.Title(),
			State:   t.State.String(),
			Desktop: int32(t.Desktop),
		})
	}
	return rows
}

// windowMonitor returns the monitor containing the top-left corner of r.
// On an edge shared by two monitors, the monitor to the right and bottom of
// the corner wins.
func (c *Core) windowMonitor(r Rect) int {
	best := -1
	matchRight, matchBottom := false, false

	for i, m := range c.monitors {
		if !m.Contains(r.X, r.Y) {
			continue
		}

		right := r.X < m.X+m.Width
		bottom := r.Y < m.Y+m.Height
		if best < 0 || (!matchRight && right) || (!matchBottom && bottom) {
			best = i
			matchRight, matchBottom = right, bottom
		}
	}

	if best < 0 {
		return 0
	}
	return best
}

// refreshThumbnail captures the window contents of t.
func (c *Core) refreshThumbnail(t *Task) {
	if !c.cfg.Task.Thumbnails || t.State == StateIconified {
		return
	}

	now := c.timers.Now()
	if !t.thumbnailAt.IsZero() && now.Sub(t.thumbnailAt) < thumbnailInterval {
		return
	}

	img, err := c.ws.Capture(t.Window)
	if err != nil {
		log.WithFields(log.Fields{
			"window": t.Window,
			"error":  err,
		}).Debug("Failed to capture thumbnail")
		return
	}

	t.thumbnail = ScaleToWidth(img, c.cfg.Task.ThumbnailWidth)
	t.thumbnailAt = now

	if c.tooltip.Current() == Element(t) {
		c.tooltip.Refresh(t)
	}
}

// startActiveThumbnailTimer schedules a second capture of the active window.
func (c *Core) startActiveThumbnailTimer() {
	if !c.cfg.Task.Thumbnails {
		return
	}
	if c.thumbStop != nil {
		c.thumbStop()
	}

	c.thumbStop = c.timers.AfterFunc(activeThumbnailDelay, func() {
		c.thumbStop = nil
		if c.active != nil {
			c.refreshThumbnail(c.active)
		}
	})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
