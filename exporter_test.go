package xpanel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterPublishesTasks(t *testing.T) {
	e := NewExporter(nil)

	tasks, err := e.ListTasks()
	require.Nil(t, err)
	assert.Empty(t, tasks)

	rows := []TaskInfo{{Window: 10, Title: "editor", State: "active", Desktop: 1}}
	e.SetTasks(rows)
	rows[0].Title = "changed"

	tasks, err = e.ListTasks()
	require.Nil(t, err)
	assert.Equal(t, "editor", tasks[0].Title)

	e.SetTasks(nil)
	tasks, _ = e.ListTasks()
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestExporterPublishesTrayIcons(t *testing.T) {
	e := NewExporter(nil)

	e.SetTrayIcons([]*TrayIcon{{Window: 52}, {Window: 50}})
	e.SetTrayManager(true)

	icons, err := e.ListTrayIcons()
	require.Nil(t, err)
	assert.Equal(t, []uint32{52, 50}, icons)
}

func TestExporterSignalsWithoutBus(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	e := NewExporter(nil)

	f.core.OnTaskAdded(e.TaskAdded)
	f.core.OnTaskRemoved(e.TaskRemoved)

	assert.NotPanics(t, func() {
		f.core.AddTask(10)
		f.core.RemoveTask(10)
		e.TrayIconAdded(&TrayIcon{Window: 50})
		e.TrayIconRemoved(&TrayIcon{Window: 50})
	})
}

func TestExporterClose(t *testing.T) {
	e := NewExporter(nil)

	require.NoError(t, e.Close())
	assert.ErrorContains(t, e.Listen(), "closed")
}
