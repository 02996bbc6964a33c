package xpanel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTaskStateIsIdempotent(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	task := f.core.AddTask(10)

	redraws := f.render.totalRedraws()
	backgrounds := f.render.backgrounds[task]

	f.core.SetTaskState(task, StateNormal)
	f.core.SetTaskState(task, StateNormal)

	assert.Equal(t, redraws, f.render.totalRedraws())
	assert.Equal(t, backgrounds, f.render.backgrounds[task])
}

func TestSetTaskStateIgnoresInvalidStates(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	task := f.core.AddTask(10)

	f.core.SetTaskState(task, StateUndefined)
	f.core.SetTaskState(task, TaskState(42))
	f.core.SetTaskState(nil, StateActive)

	assert.Equal(t, StateNormal, task.State)
}

func TestSetTaskStateAppliesToEveryReplica(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Mode = MultiDesktop
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, AllDesktops)
	f.core.AddTask(10)

	replicas := f.core.Tasks(10)
	f.core.SetTaskState(replicas[2], StateIconified)

	for _, r := range replicas {
		assert.Equal(t, StateIconified, r.State)
		assert.Equal(t, 2, f.render.backgrounds[r])
	}
}

func TestHideInactiveTasks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.HideInactiveTasks = true
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 0)
	f.core.AddTask(10)
	f.core.AddTask(11)

	f.ws.active = 11
	f.core.ResetActiveTask()

	assert.False(t, f.core.Task(10).OnScreen)
	assert.True(t, f.core.Task(11).OnScreen)

	f.ws.active = 10
	f.core.ResetActiveTask()

	assert.True(t, f.core.Task(10).OnScreen)
	assert.False(t, f.core.Task(11).OnScreen)
	assert.Equal(t, StateNormal, f.core.Task(11).State)
}

func TestHideDifferentDesktop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Mode = MultiDesktop
	cfg.Taskbar.HideDifferentDesktop = true
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 1)
	f.core.AddTask(10)
	f.core.AddTask(11)

	assert.True(t, f.core.Task(10).OnScreen)
	assert.False(t, f.core.Task(11).OnScreen)

	f.core.SetCurrentDesktop(1)

	assert.False(t, f.core.Task(10).OnScreen)
	assert.True(t, f.core.Task(11).OnScreen)
}

func TestAllDesktopsReplicasFollowCurrentDesktop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Mode = MultiDesktop
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, AllDesktops)
	f.core.AddTask(10)

	f.core.SetCurrentDesktop(2)

	for d, r := range f.core.Tasks(10) {
		assert.Equal(t, d == 2, r.OnScreen, "desktop %d", d)
	}
}

func TestSetCurrentDesktop(t *testing.T) {
	f := newCoreFixture(t, nil)

	redraws := f.render.panelRedraws
	f.core.SetCurrentDesktop(0)
	assert.Equal(t, redraws, f.render.panelRedraws)

	f.core.SetCurrentDesktop(2)
	assert.Equal(t, 2, f.core.CurrentDesktop())
	assert.Equal(t, redraws+1, f.render.panelRedraws)

	for d, tb := range f.core.Panels()[0].Taskbars() {
		assert.Equal(t, d == 2, tb.OnScreen, "desktop %d", d)
	}

	f.core.SetCurrentDesktop(99)
	assert.Equal(t, 3, f.core.CurrentDesktop())
}

func TestUpdateTaskbarsVisibilityHidesEmptyTaskbars(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Mode = MultiDesktop
	cfg.Taskbar.HideIfEmpty = true
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.core.AddTask(10)

	taskbars := f.core.Panels()[0].Taskbars()
	assert.True(t, taskbars[0].OnScreen)
	assert.False(t, taskbars[1].OnScreen)
	assert.False(t, taskbars[2].OnScreen)

	f.ws.addWindow(11, 2)
	f.core.AddTask(11)
	assert.True(t, taskbars[2].OnScreen)

	f.core.RemoveTask(11)
	assert.False(t, taskbars[2].OnScreen)
}

func TestSetNumDesktops(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 3)
	require.NoError(t, f.core.SyncClientList())

	f.ws.desktops = 2
	require.NoError(t, f.core.SetNumDesktops(2))

	assert.Len(t, f.core.Panels()[0].Taskbars(), 2)
	require.NotNil(t, f.core.Task(10))
	assert.Equal(t, 1, f.core.Task(10).Desktop)
}

func TestSetMonitors(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0).geometry = Rect{X: 2000, Y: 10, Width: 100, Height: 100}
	require.NoError(t, f.core.SyncClientList())
	require.Equal(t, 0, f.core.Task(10).Monitor)

	f.ws.monitors = []Rect{
		{Width: 1920, Height: 1080},
		{X: 1920, Width: 1920, Height: 1080},
	}
	require.NoError(t, f.core.SetMonitors(f.ws.monitors))

	assert.Len(t, f.core.Panels(), 2)
	assert.Equal(t, 1, f.core.Task(10).Monitor)
}

func TestSortMostRecentlyUsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Sort = SortMRU
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 0)
	f.core.AddTask(10)
	f.core.AddTask(11)

	f.ws.active = 11
	f.core.ResetActiveTask()
	f.clock.Advance(time.Second)
	f.ws.active = 10
	f.core.ResetActiveTask()

	tasks := f.core.Panels()[0].Taskbar(0).Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, Window(10), tasks[0].Window)
	assert.Equal(t, Window(11), tasks[1].Window)
	assert.True(t, tasks[0].LastActivation().After(tasks[1].LastActivation()))
}

func TestSortLeastRecentlyUsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Sort = SortLRU
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 0)
	f.core.AddTask(10)
	f.core.AddTask(11)

	f.ws.active = 10
	f.core.ResetActiveTask()
	f.clock.Advance(time.Second)
	f.ws.active = 11
	f.core.ResetActiveTask()

	tasks := f.core.Panels()[0].Taskbar(0).Tasks()
	assert.Equal(t, Window(10), tasks[0].Window)
	assert.Equal(t, Window(11), tasks[1].Window)
}

func TestSortByTitle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Sort = SortTitle
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0).titles[PropName] = "zsh"
	f.ws.addWindow(11, 0).titles[PropName] = "Browser"
	f.core.AddTask(10)
	f.core.AddTask(11)

	tasks := f.core.Panels()[0].Taskbar(0).Tasks()
	assert.Equal(t, "Browser", tasks[0].Title())

	f.ws.windows[11].titles[PropName] = "zzz"
	f.core.UpdateTitle(11)

	tasks = f.core.Panels()[0].Taskbar(0).Tasks()
	assert.Equal(t, "zsh", tasks[0].Title())
}

func TestSortByApplication(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taskbar.Sort = SortApplication
	f := newCoreFixture(t, cfg)

	w := f.ws.addWindow(10, 0)
	w.class, w.titles[PropName] = "XTerm", "b"
	w = f.ws.addWindow(11, 0)
	w.class, w.titles[PropName] = "firefox", "z"
	w = f.ws.addWindow(12, 0)
	w.class, w.titles[PropName] = "XTerm", "a"

	for win := Window(10); win < 13; win++ {
		f.core.AddTask(win)
	}

	var order []Window
	for _, task := range f.core.Panels()[0].Taskbar(0).Tasks() {
		order = append(order, task.Window)
	}
	assert.Equal(t, []Window{11, 12, 10}, order)
}

func TestNextPrevTaskWrapAround(t *testing.T) {
	f := newCoreFixture(t, nil)
	for win := Window(10); win < 13; win++ {
		f.ws.addWindow(win, 0)
		f.core.AddTask(win)
	}

	first, middle, last := f.core.Task(10), f.core.Task(11), f.core.Task(12)

	assert.Same(t, middle, f.core.NextTask(first))
	assert.Same(t, first, f.core.NextTask(last))
	assert.Same(t, last, f.core.PrevTask(first))

	middle.OnScreen = false
	assert.Same(t, last, f.core.NextTask(first))
	assert.Nil(t, f.core.NextTask(nil))
}

func TestResetActiveTaskFollowsTransientOwner(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(20, 0).transientFor = 10
	require.NoError(t, f.core.SyncClientList())
	require.Nil(t, f.core.Task(20))

	f.ws.active = 20
	f.core.ResetActiveTask()

	require.NotNil(t, f.core.Active())
	assert.Equal(t, Window(10), f.core.Active().Window)
	assert.Equal(t, StateActive, f.core.Task(10).State)

	f.ws.windows[10].states = []string{WMStateHidden}
	f.ws.active = None
	f.core.ResetActiveTask()

	assert.Nil(t, f.core.Active())
	assert.Equal(t, StateIconified, f.core.Task(10).State)
}

func TestIsTrackable(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 0).types = []string{TypeDock}
	f.ws.addWindow(12, 0).states = []string{WMStateSkipTaskbar}
	f.ws.addWindow(13, 0).transientFor = 10
	f.ws.addWindow(14, 0).transientFor = 99
	f.ws.addWindow(15, 0).types = []string{TypeNormal}
	f.ws.addWindow(16, 0)
	f.core.AddOwnWindow(16)
	f.core.AddTask(10)

	assert.True(t, f.core.IsTrackable(10))
	assert.False(t, f.core.IsTrackable(11))
	assert.False(t, f.core.IsTrackable(12))
	assert.False(t, f.core.IsTrackable(13))
	assert.True(t, f.core.IsTrackable(14))
	assert.True(t, f.core.IsTrackable(15))
	assert.False(t, f.core.IsTrackable(16))
	assert.False(t, f.core.IsTrackable(None))
	assert.False(t, f.core.IsTrackable(404))
}

func TestTransientCycleTerminates(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0).transientFor = 11
	f.ws.addWindow(11, 0).transientFor = 10

	assert.True(t, f.core.IsTrackable(10))
	assert.Equal(t, Window(11), f.core.transientRoot(10))
}

func TestWindowMonitorPrefersRightAndBottom(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.core.InitPanels([]Rect{
		{Width: 1920, Height: 1080},
		{X: 1920, Width: 1920, Height: 1080},
		{Y: 1080, Width: 1920, Height: 1080},
	}, 1)

	assert.Equal(t, 0, f.core.windowMonitor(Rect{X: 10, Y: 10}))
	assert.Equal(t, 1, f.core.windowMonitor(Rect{X: 1920, Y: 10}))
	assert.Equal(t, 2, f.core.windowMonitor(Rect{X: 10, Y: 1080}))
	assert.Equal(t, 0, f.core.windowMonitor(Rect{X: -50, Y: -50}))
}

func TestThumbnails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Task.Thumbnails = true
	f := newCoreFixture(t, cfg)
	f.ws.addWindow(10, 0)
	f.ws.addWindow(11, 0).states = []string{WMStateHidden}

	task := f.core.AddTask(10)
	f.core.AddTask(11)
	assert.Equal(t, 1, f.ws.captures)

	img := task.TooltipImage()
	require.NotNil(t, img)
	assert.Equal(t, cfg.Task.ThumbnailWidth, img.Bounds().Dx())
	assert.Equal(t, 1, f.ws.captures)

	f.ws.active = 10
	f.core.ResetActiveTask()
	f.core.refreshThumbnail(task)
	assert.Equal(t, 1, f.ws.captures)

	f.advance(activeThumbnailDelay)
	assert.Equal(t, 2, f.ws.captures)

	assert.Nil(t, f.core.Task(11).TooltipImage())
}

func TestThumbnailsDisabled(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.ws.addWindow(10, 0)
	task := f.core.AddTask(10)

	assert.Nil(t, task.TooltipImage())
	assert.Zero(t, f.ws.captures)
}
