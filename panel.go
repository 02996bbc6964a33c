package xpanel

import (
	"cmp"
	"slices"
	"strings"
)

// Panel is the panel instance of one monitor. It holds one taskbar per
// desktop.
type Panel struct {
	Monitor  int
	Geometry Rect

	// Hidden reports whether the panel is auto-hidden.
	Hidden bool

	taskbars []*Taskbar
}

func newPanel(monitor int, geometry Rect, desktops int) *Panel {
	p := &Panel{Monitor: monitor, Geometry: geometry}
	for d := 0; d < desktops; d++ {
		p.taskbars = append(p.taskbars, &Taskbar{Desktop: d, OnScreen: true, panel: p})
	}
	return p
}

// Taskbars returns the taskbars of the panel, indexed by desktop.
func (p *Panel) Taskbars() []*Taskbar {
	return p.taskbars
}

// Taskbar returns the taskbar of desktop, or nil.
func (p *Panel) Taskbar(desktop int) *Taskbar {
	if desktop < 0 || desktop >= len(p.taskbars) {
		return nil
	}
	return p.taskbars[desktop]
}

// Taskbar is the container of the task replicas of one desktop.
type Taskbar struct {
	Desktop  int
	OnScreen bool

	panel *Panel
	tasks []*Task
}

// Panel returns the panel holding the taskbar.
func (tb *Taskbar) Panel() *Panel {
	return tb.panel
}

// Tasks returns the tasks of the taskbar in display order.
func (tb *Taskbar) Tasks() []*Task {
	return slices.Clone(tb.tasks)
}

// VisibleTasks returns the tasks that are on screen.
func (tb *Taskbar) VisibleTasks() []*Task {
	var visible []*Task
	for _, t := range tb.tasks {
		if t.OnScreen {
			visible = append(visible, t)
		}
	}
	return visible
}

func (tb *Taskbar) add(t *Task) {
	t.taskbar = tb
	tb.tasks = append(tb.tasks, t)
}

func (tb *Taskbar) remove(t *Task) {
	tb.tasks = slices.DeleteFunc(tb.tasks, func(other *Task) bool {
		return other == t
	})
}

// sort orders the tasks by method. Tasks that compare equal keep their
// relative order.
func (tb *Taskbar) sort(method SortMethod) bool {
	compare := taskComparator(method)
	if compare == nil {
		return false
	}

	before := slices.Clone(tb.tasks)
	slices.SortStableFunc(tb.tasks, compare)

	return !slices.Equal(before, tb.tasks)
}

func taskComparator(method SortMethod) func(a, b *Task) int {
	switch method {
	case SortTitle:
		return func(a, b *Task) int {
			return compareFold(a.Title(), b.Title())
		}
	case SortApplication:
		return func(a, b *Task) int {
			if c := compareFold(a.Application(), b.Application()); c != 0 {
				return c
			}
			return compareFold(a.Title(), b.Title())
		}
	case SortCenter:
		return func(a, b *Task) int {
			ax, ay := a.WinGeometry.Center()
			bx, by := b.WinGeometry.Center()
			if c := cmp.Compare(ax, bx); c != 0 {
				return c
			}
			return cmp.Compare(ay, by)
		}
	case SortLRU:
		return func(a, b *Task) int {
			return a.lastActivation.Compare(b.lastActivation)
		}
	case SortMRU:
		return func(a, b *Task) int {
			return b.lastActivation.Compare(a.lastActivation)
		}
	default:
		return nil
	}
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
