package xpanel

import (
	"fmt"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	ExporterInterface = "io.github.shelepuginivan.xpanel"
	ExporterPath      = "/io/github/shelepuginivan/xpanel"
)

// Exporter publishes the tracked tasks and tray icons on the session bus.
//
// The panel updates the exporter from the event loop, while D-Bus method
// calls are served on the goroutines of the connection.
type Exporter struct {
	listening bool
	closed    bool
	conn      *dbus.Conn
	mu        sync.Mutex

	tasks         []TaskInfo
	trayIcons     []uint32
	isTrayManager bool
}

// NewExporter returns a new [Exporter].
func NewExporter(conn *dbus.Conn) *Exporter {
	return &Exporter{
		conn:      conn,
		tasks:     []TaskInfo{},
		trayIcons: []uint32{},
	}
}

// Listen requests the exporter name on D-Bus and exports its object.
//
// If Listen is called after [Exporter.Close], an error is returned.
func (e *Exporter) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("listen: exporter is closed")
	}

	reply, err := e.conn.RequestName(ExporterInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", ExporterInterface, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", ExporterInterface)
	}

	if err := e.conn.Export(e, ExporterPath, ExporterInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", ExporterInterface, err)
	}

	e.listening = true
	e.exportProperties()

	return nil
}

// Close releases the exporter name. Exporter cannot be reused after Close
// was called.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if !e.listening {
		return nil
	}
	e.listening = false

	if err := e.conn.Export(nil, ExporterPath, ExporterInterface); err != nil {
		return err
	}

	_, err := e.conn.ReleaseName(ExporterInterface)
	return err
}

// ListTrayIcons returns the windows of the embedded tray icons in display
// order.
func (e *Exporter) ListTrayIcons() ([]uint32, *dbus.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.trayIcons), nil
}

// ListTasks returns the tracked windows.
func (e *Exporter) ListTasks() ([]TaskInfo, *dbus.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.tasks), nil
}

// SetTasks replaces the published tasks. Properties are re-exported only
// when the rows changed.
func (e *Exporter) SetTasks(tasks []TaskInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tasks == nil {
		tasks = []TaskInfo{}
	}
	if slices.Equal(e.tasks, tasks) {
		return
	}

	e.tasks = slices.Clone(tasks)
	e.exportProperties()
}

// SetTrayIcons replaces the published tray icons.
func (e *Exporter) SetTrayIcons(icons []*TrayIcon) {
	e.mu.Lock()
	defer e.mu.Unlock()

	windows := make([]uint32, len(icons))
	for i, icon := range icons {
		windows[i] = uint32(icon.Window)
	}
	if slices.Equal(e.trayIcons, windows) {
		return
	}

	e.trayIcons = windows
	e.exportProperties()
}

// SetTrayManager publishes whether this process is the tray manager.
func (e *Exporter) SetTrayManager(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isTrayManager == running {
		return
	}

	e.isTrayManager = running
	e.exportProperties()
}

// TaskAdded emits the TaskAdded signal.
func (e *Exporter) TaskAdded(t *Task) {
	e.emit("TaskAdded", uint32(t.Window), t.Title())
}

// TaskRemoved emits the TaskRemoved signal.
func (e *Exporter) TaskRemoved(t *Task) {
	e.emit("TaskRemoved", uint32(t.Window))
}

// TrayIconAdded emits the TrayIconAdded signal.
func (e *Exporter) TrayIconAdded(icon *TrayIcon) {
	e.emit("TrayIconAdded", uint32(icon.Window), icon.Name)
}

// TrayIconRemoved emits the TrayIconRemoved signal.
func (e *Exporter) TrayIconRemoved(icon *TrayIcon) {
	e.emit("TrayIconRemoved", uint32(icon.Window))
}

func (e *Exporter) emit(member string, values ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.listening {
		return
	}

	e.conn.Emit(ExporterPath, ExporterInterface+"."+member, values...)
}

func (e *Exporter) exportProperties() {
	if !e.listening {
		return
	}

	prop.Export(e.conn, ExporterPath, prop.Map{
		ExporterInterface: map[string]*prop.Prop{
			"Tasks": {
				Value:    e.tasks,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"TrayIcons": {
				Value:    e.trayIcons,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"IsTrayManager": {
				Value:    e.isTrayManager,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	})
}
