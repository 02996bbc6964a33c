package xpanel

import (
	"fmt"
	"image"
	"image/color"
	"slices"
	"testing"
	"time"

	"github.com/shelepuginivan/xpanel/loop"
)

type fakeWindow struct {
	geometry     Rect
	states       []string
	types        []string
	transientFor Window
	desktop      int
	class        string
	titles       map[string]string
	icon         []uint32
	pid          int
	depth        int

	// _XEMBED_INFO, nil when unset.
	xembed *[2]uint32
}

type fakeWS struct {
	root     Window
	windows  map[Window]*fakeWindow
	active   Window
	current  int
	desktops int
	clients  []Window
	monitors []Rect

	watched      []Window
	captures     int
	iconGeometry map[Window]Rect
	requests     []string
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		root:         1,
		windows:      make(map[Window]*fakeWindow),
		desktops:     4,
		monitors:     []Rect{{Width: 1920, Height: 1080}},
		iconGeometry: make(map[Window]Rect),
	}
}

// addWindow creates a listed top-level window titled after its id.
func (ws *fakeWS) addWindow(win Window, desktop int) *fakeWindow {
	w := &fakeWindow{
		geometry: Rect{X: 100, Y: 100, Width: 400, Height: 300},
		desktop:  desktop,
		class:    "App",
		titles:   map[string]string{PropName: fmt.Sprintf("window %d", win)},
	}
	ws.windows[win] = w
	ws.clients = append(ws.clients, win)
	return w
}

func (ws *fakeWS) window(win Window) (*fakeWindow, error) {
	w, ok := ws.windows[win]
	if !ok {
		return nil, fmt.Errorf("window %d: %w", win, ErrWindowGone)
	}
	return w, nil
}

func (ws *fakeWS) Root() Window { return ws.root }

func (ws *fakeWS) WindowGeometry(win Window) (Rect, error) {
	w, err := ws.window(win)
	if err != nil {
		return Rect{}, err
	}
	return w.geometry, nil
}

func (ws *fakeWS) TextProperty(win Window, name string) (string, error) {
	w, err := ws.window(win)
	if err != nil {
		return "", err
	}
	return w.titles[name], nil
}

func (ws *fakeWS) Capture(win Window) (image.Image, error) {
	if _, err := ws.window(win); err != nil {
		return nil, err
	}
	ws.captures++
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	return img, nil
}

func (ws *fakeWS) WindowState(win Window) ([]string, error) {
	w, err := ws.window(win)
	if err != nil {
		return nil, err
	}
	return w.states, nil
}

func (ws *fakeWS) WindowTypes(win Window) ([]string, error) {
	w, err := ws.window(win)
	if err != nil {
		return nil, err
	}
	return w.types, nil
}

func (ws *fakeWS) TransientFor(win Window) (Window, error) {
	w, err := ws.window(win)
	if err != nil {
		return None, err
	}
	return w.transientFor, nil
}

func (ws *fakeWS) WindowDesktop(win Window) (int, error) {
	w, err := ws.window(win)
	if err != nil {
		return 0, err
	}
	return w.desktop, nil
}

func (ws *fakeWS) WindowClass(win Window) (string, error) {
	w, err := ws.window(win)
	if err != nil {
		return "", err
	}
	return w.class, nil
}

func (ws *fakeWS) IconData(win Window) ([]uint32, error) {
	w, err := ws.window(win)
	if err != nil {
		return nil, err
	}
	return w.icon, nil
}

func (ws *fakeWS) IconPixmap(win Window) (image.Image, error) {
	return nil, fmt.Errorf("no icon pixmap")
}

func (ws *fakeWS) ActiveWindow() (Window, error)  { return ws.active, nil }
func (ws *fakeWS) CurrentDesktop() (int, error)   { return ws.current, nil }
func (ws *fakeWS) NumDesktops() (int, error)      { return ws.desktops, nil }
func (ws *fakeWS) ClientList() ([]Window, error)  { return slices.Clone(ws.clients), nil }
func (ws *fakeWS) Monitors() ([]Rect, error)      { return ws.monitors, nil }
func (ws *fakeWS) WatchWindow(win Window) error   { ws.watched = append(ws.watched, win); return nil }
func (ws *fakeWS) DeleteIconGeometry(win Window) error {
	delete(ws.iconGeometry, win)
	return nil
}

func (ws *fakeWS) SetIconGeometry(win Window, r Rect) error {
	ws.iconGeometry[win] = r
	return nil
}

func (ws *fakeWS) request(name string, win Window, args ...any) error {
	if _, err := ws.window(win); err != nil {
		return err
	}
	ws.requests = append(ws.requests, fmt.Sprint(append([]any{name, win}, args...)...))
	return nil
}

func (ws *fakeWS) Activate(win Window) error        { return ws.request("activate ", win) }
func (ws *fakeWS) Close(win Window) error           { return ws.request("close ", win) }
func (ws *fakeWS) Iconify(win Window) error         { return ws.request("iconify ", win) }
func (ws *fakeWS) ToggleShade(win Window) error     { return ws.request("shade ", win) }
func (ws *fakeWS) ToggleMaximized(win Window) error { return ws.request("maximize ", win) }
func (ws *fakeWS) MoveToDesktop(win Window, desktop int) error {
	return ws.request("desktop ", win, " ", desktop)
}

// fakeTray is a tray transport backed by a fakeWS.
type fakeTray struct {
	*fakeWS

	ownedByOther bool
	acquired     int
	released     int
	releaseErr   error

	nextWindow Window
	embedders  []Window
	parents    map[Window]Window
	mapped     map[Window]bool
	notified   []Window
	destroyed  []Window
	resized    map[Window]Rect

	damages        map[Damage]Window
	nextDamage     Damage
	damagesDropped int

	legacy        []Window
	failReparent  map[Window]bool
	failEmbedders bool
}

func newFakeTray() *fakeTray {
	return &fakeTray{
		fakeWS:       newFakeWS(),
		nextWindow:   1000,
		parents:      make(map[Window]Window),
		mapped:       make(map[Window]bool),
		resized:      make(map[Window]Rect),
		damages:      make(map[Damage]Window),
		failReparent: make(map[Window]bool),
	}
}

// addIconWindow creates a tray icon window of another client.
func (tr *fakeTray) addIconWindow(win Window, name string) *fakeWindow {
	w := &fakeWindow{
		geometry: Rect{Width: 22, Height: 22},
		titles:   map[string]string{PropName: name},
		depth:    24,
	}
	tr.windows[win] = w
	return w
}

func (tr *fakeTray) AcquireSelection() (bool, error) {
	if tr.ownedByOther {
		return false, nil
	}
	tr.acquired++
	return true, nil
}

func (tr *fakeTray) ReleaseSelection() error {
	if tr.releaseErr != nil {
		return tr.releaseErr
	}
	tr.released++
	return nil
}

func (tr *fakeTray) WindowPID(win Window) (int, error) {
	w, err := tr.window(win)
	if err != nil {
		return 0, err
	}
	return w.pid, nil
}

func (tr *fakeTray) WindowDepth(win Window) (int, error) {
	w, err := tr.window(win)
	if err != nil {
		return 0, err
	}
	return w.depth, nil
}

func (tr *fakeTray) WatchTrayIcon(win Window) error {
	_, err := tr.window(win)
	return err
}

func (tr *fakeTray) CreateEmbedder(r Rect) (Window, error) {
	if tr.failEmbedders {
		return None, fmt.Errorf("out of ids")
	}
	tr.nextWindow++
	win := tr.nextWindow
	tr.windows[win] = &fakeWindow{geometry: r}
	tr.embedders = append(tr.embedders, win)
	return win, nil
}

func (tr *fakeTray) Reparent(win, parent Window, x, y int) error {
	if tr.failReparent[win] {
		return fmt.Errorf("reparent %d: %w", win, ErrWindowGone)
	}
	if _, err := tr.window(win); err != nil {
		return err
	}
	tr.parents[win] = parent
	return nil
}

func (tr *fakeTray) SendEmbeddedNotify(win, parent Window, version uint32) error {
	if _, err := tr.window(win); err != nil {
		return err
	}
	tr.notified = append(tr.notified, win)
	return nil
}

func (tr *fakeTray) XEmbedInfo(win Window) (uint32, uint32, bool, error) {
	w, err := tr.window(win)
	if err != nil {
		return 0, 0, false, err
	}
	if w.xembed == nil {
		return 0, 0, false, nil
	}
	return w.xembed[0], w.xembed[1], true, nil
}

func (tr *fakeTray) Map(win Window) error {
	tr.mapped[win] = true
	return nil
}

func (tr *fakeTray) Unmap(win Window) error {
	tr.mapped[win] = false
	return nil
}

func (tr *fakeTray) MoveResize(win Window, r Rect) error {
	tr.resized[win] = r
	return nil
}

func (tr *fakeTray) DestroyWindow(win Window) error {
	tr.destroyed = append(tr.destroyed, win)
	delete(tr.windows, win)
	return nil
}

func (tr *fakeTray) CreateDamage(win Window) (Damage, error) {
	tr.nextDamage++
	tr.damages[tr.nextDamage] = win
	return tr.nextDamage, nil
}

func (tr *fakeTray) DestroyDamage(d Damage) error {
	delete(tr.damages, d)
	tr.damagesDropped++
	return nil
}

func (tr *fakeTray) LegacyTrayWindows() ([]Window, error) {
	return tr.legacy, nil
}

type fakeRenderer struct {
	redraws        map[Element]int
	backgrounds    map[Element]int
	panelRedraws   int
	taskbarResizes int
	panelResizes   int
	systrayResizes int
	shown          []*Panel
	geometry       Rect
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		redraws:     make(map[Element]int),
		backgrounds: make(map[Element]int),
		geometry:    Rect{X: 10, Y: 1050, Width: 150, Height: 30},
	}
}

func (r *fakeRenderer) ScheduleRedraw(e Element)  { r.redraws[e]++ }
func (r *fakeRenderer) ResetBackground(e Element) { r.backgrounds[e]++ }
func (r *fakeRenderer) ResizeTaskbar(*Taskbar)    { r.taskbarResizes++ }
func (r *fakeRenderer) ResizePanel(*Panel)        { r.panelResizes++ }
func (r *fakeRenderer) ResizeSystray()            { r.systrayResizes++ }
func (r *fakeRenderer) PanelRedraw()              { r.panelRedraws++ }
func (r *fakeRenderer) Geometry(Element) Rect     { return r.geometry }
func (r *fakeRenderer) ShowPanel(p *Panel)        { r.shown = append(r.shown, p) }

// totalRedraws returns the number of redraw signals of any kind.
func (r *fakeRenderer) totalRedraws() int {
	total := r.panelRedraws
	for _, n := range r.redraws {
		total += n
	}
	return total
}

type fakeTooltip struct {
	current   Element
	hidden    int
	refreshed int
}

func (t *fakeTooltip) Current() Element { return t.current }

func (t *fakeTooltip) Hide() {
	t.current = nil
	t.hidden++
}

func (t *fakeTooltip) Refresh(Element) { t.refreshed++ }

type coreFixture struct {
	core    *Core
	ws      *fakeWS
	render  *fakeRenderer
	tooltip *fakeTooltip
	sched   *loop.Scheduler
	clock   *loop.ManualClock
}

func newCoreFixture(t *testing.T, cfg *Config) *coreFixture {
	t.Helper()

	if cfg == nil {
		cfg = DefaultConfig()
	}

	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f := &coreFixture{
		ws:      newFakeWS(),
		render:  newFakeRenderer(),
		tooltip: &fakeTooltip{},
		sched:   loop.NewScheduler(clock.Now),
		clock:   clock,
	}
	f.core = NewCore(cfg, f.ws, f.render, f.tooltip, f.sched)
	f.core.InitPanels(f.ws.monitors, f.ws.desktops)

	return f
}

// advance moves the clock and runs the timers that became due.
func (f *coreFixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.sched.RunDue()
}

type trayFixture struct {
	tray   *Systray
	conn   *fakeTray
	render *fakeRenderer
	sched  *loop.Scheduler
	clock  *loop.ManualClock
}

func newTrayFixture(t *testing.T, cfg *Config) *trayFixture {
	t.Helper()

	if cfg == nil {
		cfg = DefaultConfig()
	}

	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f := &trayFixture{
		conn:   newFakeTray(),
		render: newFakeRenderer(),
		sched:  loop.NewScheduler(clock.Now),
		clock:  clock,
	}
	f.tray = NewSystray(cfg, f.conn, f.render, f.sched)

	return f
}

func (f *trayFixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.sched.RunDue()
}

func dockRequest(win Window) ClientMessageEvent {
	return ClientMessageEvent{
		Type: SystemTrayOpcode,
		Data: [5]uint32{0, systemTrayRequestDock, uint32(win)},
	}
}
