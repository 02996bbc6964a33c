package xpanel

import (
	"fmt"
)

// MouseAction is an action bound to a pointer button on a task.
type MouseAction string

const (
	ActionNone            MouseAction = "none"
	ActionClose           MouseAction = "close"
	ActionToggle          MouseAction = "toggle"
	ActionIconify         MouseAction = "iconify"
	ActionToggleIconify   MouseAction = "toggle_iconify"
	ActionShade           MouseAction = "shade"
	ActionMaximizeRestore MouseAction = "maximize_restore"
	ActionDesktopLeft     MouseAction = "desktop_left"
	ActionDesktopRight    MouseAction = "desktop_right"
	ActionNextTask        MouseAction = "next_task"
	ActionPrevTask        MouseAction = "prev_task"
)

func (a MouseAction) valid() bool {
	switch a {
	case "", ActionNone, ActionClose, ActionToggle, ActionIconify, ActionToggleIconify,
		ActionShade, ActionMaximizeRestore, ActionDesktopLeft, ActionDesktopRight,
		ActionNextTask, ActionPrevTask:
		return true
	}
	return false
}

// Pointer buttons, numbered as in X11.
const (
	ButtonLeft       = 1
	ButtonMiddle     = 2
	ButtonRight      = 3
	ButtonScrollUp   = 4
	ButtonScrollDown = 5
)

// HandleClick runs the action bound to button.
func (c *Core) HandleClick(t *Task, button int) error {
	bindings := c.cfg.Mouse

	switch button {
	case ButtonLeft:
		return c.HandleMouseAction(t, bindings.Left)
	case ButtonMiddle:
		return c.HandleMouseAction(t, bindings.Middle)
	case ButtonRight:
		return c.HandleMouseAction(t, bindings.Right)
	case ButtonScrollUp:
		return c.HandleMouseAction(t, bindings.ScrollUp)
	case ButtonScrollDown:
		return c.HandleMouseAction(t, bindings.ScrollDown)
	default:
		return nil
	}
}

// HandleMouseAction sends the window manager the request for action on the
// window of t.
func (c *Core) HandleMouseAction(t *Task, action MouseAction) error {
	if t == nil {
		return nil
	}

	win := t.Window
	var err error

	switch action {
	case "", ActionNone:
		return nil
	case ActionClose:
		err = c.ws.Close(win)
	case ActionToggle:
		err = c.ws.Activate(win)
	case ActionIconify:
		err = c.ws.Iconify(win)
	case ActionToggleIconify:
		if c.active != nil && c.active.Window == win {
			err = c.ws.Iconify(win)
		} else {
			err = c.ws.Activate(win)
		}
	case ActionShade:
		err = c.ws.ToggleShade(win)
	case ActionMaximizeRestore:
		err = c.ws.ToggleMaximized(win)
	case ActionDesktopLeft, ActionDesktopRight:
		err = c.moveToAdjacentDesktop(t, action == ActionDesktopRight)
	case ActionNextTask, ActionPrevTask:
		var next *Task
		if action == ActionNextTask {
			next = c.NextTask(c.findActiveTask(t))
		} else {
			next = c.PrevTask(c.findActiveTask(t))
		}
		if next != nil {
			err = c.ws.Activate(next.Window)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if err != nil {
		return fmt.Errorf("%s window %d: %w", action, win, err)
	}

	return nil
}

// moveToAdjacentDesktop moves the window of t one desktop to the left or
// right. Windows on all desktops and windows at the first or last desktop
// are not moved.
func (c *Core) moveToAdjacentDesktop(t *Task, right bool) error {
	if t.Desktop == AllDesktops {
		return nil
	}

	desktop := t.Desktop - 1
	if right {
		desktop = t.Desktop + 1
	}
	if desktop < 0 || desktop >= c.numDesktops {
		return nil
	}

	if err := c.ws.MoveToDesktop(t.Window, desktop); err != nil {
		return err
	}
	if desktop == c.currentDesktop {
		return c.ws.Activate(t.Window)
	}

	return nil
}
