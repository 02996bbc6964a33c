package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/shelepuginivan/xpanel"
)

const (
	taskWidth    = 140
	panelPadding = 2
)

// renderer lays the panels out without painting them. Each panel is a strip
// along the top edge of its monitor. The layout is redone once per loop
// iteration when something changed, then icon geometries and the exported
// state are published.
type renderer struct {
	cfg      *xpanel.Config
	core     *xpanel.Core
	tray     *xpanel.Systray
	exporter *xpanel.Exporter
	tooltip  *tooltip

	dirty    bool
	geometry map[xpanel.Element]xpanel.Rect
}

func newRenderer(cfg *xpanel.Config) *renderer {
	return &renderer{
		cfg:      cfg,
		tooltip:  &tooltip{},
		dirty:    true,
		geometry: make(map[xpanel.Element]xpanel.Rect),
	}
}

func (r *renderer) ScheduleRedraw(e xpanel.Element)  { r.dirty = true }
func (r *renderer) ResetBackground(e xpanel.Element) { r.dirty = true }
func (r *renderer) ResizeTaskbar(tb *xpanel.Taskbar) { r.dirty = true }
func (r *renderer) ResizePanel(p *xpanel.Panel)      { r.dirty = true }
func (r *renderer) ResizeSystray()                   { r.dirty = true }
func (r *renderer) PanelRedraw()                     { r.dirty = true }

func (r *renderer) Geometry(e xpanel.Element) xpanel.Rect {
	return r.geometry[e]
}

func (r *renderer) ShowPanel(p *xpanel.Panel) {
	if p.Hidden {
		log.Debug("Showing panel ", p.Monitor)
	}
	p.Hidden = false
	r.dirty = true
}

func (r *renderer) panelHeight() int {
	return max(r.cfg.Task.IconSize, r.cfg.Systray.IconSize) + 2*panelPadding
}

// flush runs the pending layout pass.
func (r *renderer) flush() {
	if !r.dirty || r.core == nil {
		return
	}
	r.dirty = false

	clear(r.geometry)
	for _, p := range r.core.Panels() {
		r.layoutPanel(p)
	}
	r.layoutTray()

	for _, win := range r.core.Windows() {
		for _, t := range r.core.Tasks(win) {
			r.core.PublishIconGeometry(t)
		}
	}

	r.exporter.SetTasks(r.core.Snapshot())
	r.exporter.SetTrayIcons(r.tray.Icons())
}

func (r *renderer) layoutPanel(p *xpanel.Panel) {
	height := r.panelHeight()
	x := p.Geometry.X + panelPadding

	for _, tb := range p.Taskbars() {
		if !tb.OnScreen {
			continue
		}
		if r.cfg.Taskbar.Mode == xpanel.SingleDesktop && tb.Desktop != r.core.CurrentDesktop() {
			continue
		}

		for _, t := range tb.VisibleTasks() {
			r.geometry[t] = xpanel.Rect{
				X:      x,
				Y:      p.Geometry.Y + panelPadding,
				Width:  taskWidth,
				Height: height - 2*panelPadding,
			}
			x += taskWidth + panelPadding
		}
	}
}

// layoutTray places the visible icons at the right end of the first panel.
func (r *renderer) layoutTray() {
	panels := r.core.Panels()
	if len(panels) == 0 || !r.tray.Running() {
		return
	}

	p := panels[0]
	size := r.cfg.Systray.IconSize
	x := p.Geometry.X + p.Geometry.Width - panelPadding

	icons := r.tray.VisibleIcons()
	for i := len(icons) - 1; i >= 0; i-- {
		x -= size
		cell := xpanel.Rect{X: x, Y: p.Geometry.Y + panelPadding, Width: size, Height: size}
		r.geometry[icons[i]] = cell
		r.tray.Place(icons[i], cell)
		x -= panelPadding
	}
}

// tooltip tracks the element a tooltip would be shown for.
type tooltip struct {
	current xpanel.Element
}

func (tt *tooltip) Current() xpanel.Element {
	return tt.current
}

func (tt *tooltip) Hide() {
	tt.current = nil
}

func (tt *tooltip) Refresh(e xpanel.Element) {
	tt.current = e
	if t, ok := e.(*xpanel.Task); ok {
		log.WithField("window", t.Window).Debug("Tooltip: ", t.TooltipText())
	}
}
