package xpanel

import (
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	urgentDelay  = 10 * time.Millisecond
	urgentPeriod = time.Second
)

// AddUrgent makes the window of t blink. The first replica of the window
// stands for all of them. Active windows never blink.
func (c *Core) AddUrgent(t *Task) {
	if t == nil {
		return
	}

	// Some clients set the urgency hint while they are active.
	if c.active != nil && c.active.Window == t.Window {
		return
	}

	first := c.Task(t.Window)
	if first == nil {
		return
	}

	first.urgentTick = 0
	if slices.Contains(c.urgent, first) {
		return
	}

	c.urgent = slices.Insert(c.urgent, 0, first)
	log.Debug("Task is urgent [", first.Title(), "]")

	if c.urgentStop == nil {
		c.urgentStop = c.timers.Every(urgentDelay, urgentPeriod, c.blinkUrgent)
	}

	if p := first.Panel(); p.Hidden {
		c.render.ShowPanel(p)
	}
}

// DelUrgent stops the blinking of t. The blink timer stops with the last
// urgent task.
func (c *Core) DelUrgent(t *Task) {
	idx := slices.Index(c.urgent, t)
	if idx < 0 {
		return
	}

	c.urgent = slices.Delete(c.urgent, idx, idx+1)
	if len(c.urgent) == 0 && c.urgentStop != nil {
		c.urgentStop()
		c.urgentStop = nil
	}
}

// Urgent returns the urgent tasks, most recent first.
func (c *Core) Urgent() []*Task {
	return slices.Clone(c.urgent)
}

// IsBlinking reports whether the blink timer runs.
func (c *Core) IsBlinking() bool {
	return c.urgentStop != nil
}

// blinkUrgent toggles every urgent task between Urgent and its natural state
// until it used up its blink ticks.
func (c *Core) blinkUrgent() {
	for _, t := range slices.Clone(c.urgent) {
		if !slices.Contains(c.urgent, t) {
			continue
		}
		if t.urgentTick > c.cfg.Taskbar.UrgentBlinks {
			continue
		}

		t.urgentTick++
		if t.urgentTick%2 == 1 {
			c.SetTaskState(t, StateUrgent)
		} else {
			c.SetTaskState(t, c.naturalState(t.Window))
		}
	}

	c.render.PanelRedraw()
}
