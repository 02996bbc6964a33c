package xpanel

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Tray protocol constants.
const (
	SystemTrayOpcode    = "_NET_SYSTEM_TRAY_OPCODE"
	SystemTraySelection = "_NET_SYSTEM_TRAY_S"

	systemTrayRequestDock   = 0
	systemTrayBeginMessage  = 1
	systemTrayCancelMessage = 2

	xembedVersion = 0
	xembedMapped  = 1 << 0
)

const (
	// More bad size requests than maxBadSizes within badSizeWindow drop the
	// icon.
	maxBadSizes   = 5
	badSizeWindow = time.Second

	resizeDebounce = 100 * time.Millisecond

	// Renders closer than fastRenderInterval count as fast. After
	// maxFastRenders fast renders the render delay doubles up to
	// maxRenderDelay.
	fastRenderInterval = 50 * time.Millisecond
	maxFastRenders     = 5
	maxRenderDelay     = time.Second

	legacyScanPeriod = 2 * time.Second
)

var (
	ErrSelectionOwned = errors.New("tray selection is owned by another manager")
	ErrNotRunning     = errors.New("tray manager is not running")
)

// Systray is the system tray manager. It owns the tray selection, embeds the
// icons that request docking and keeps them sorted.
//
// Systray is not safe for concurrent use. All methods must be called from
// the event loop goroutine.
type Systray struct {
	cfg    *Config
	conn   TrayConn
	render Renderer
	timers Timers

	running bool
	icons   []*TrayIcon
	chrono  int
	pid     int

	nameFilter *regexp.Regexp
	scanStop   func()

	onIconAdded      func(*TrayIcon)
	onIconRemoved    func(*TrayIcon)
	onManagerChanged func(bool)
}

// NewSystray returns a new [Systray]. Call [Systray.Start] to become the tray
// manager.
func NewSystray(cfg *Config, conn TrayConn, render Renderer, timers Timers) *Systray {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Systray{
		conn:             conn,
		render:           render,
		timers:           timers,
		pid:              os.Getpid(),
		onIconAdded:      func(*TrayIcon) {},
		onIconRemoved:    func(*TrayIcon) {},
		onManagerChanged: func(bool) {},
	}
	s.ApplyConfig(cfg)

	return s
}

// ApplyConfig replaces the configuration and re-sorts the icons.
func (s *Systray) ApplyConfig(cfg *Config) {
	s.cfg = cfg
	s.nameFilter = nil
	if cfg.Systray.NameFilter != "" {
		filter, err := regexp.Compile(cfg.Systray.NameFilter)
		if err != nil {
			log.Warn("Ignoring systray name filter: ", err)
		} else {
			s.nameFilter = filter
		}
	}

	s.sort()
	if s.running {
		s.render.ResizeSystray()
	}
}

// Start claims the tray selection and starts accepting dock requests.
//
// If another manager owns the selection, an error wrapping
// [ErrSelectionOwned] is returned.
func (s *Systray) Start() error {
	if s.running {
		return nil
	}

	ok, err := s.conn.AcquireSelection()
	if err != nil {
		return fmt.Errorf("start: failed to acquire tray selection: %w", err)
	}
	if !ok {
		return fmt.Errorf("start: %w", ErrSelectionOwned)
	}

	s.running = true
	s.scanStop = s.timers.Every(0, legacyScanPeriod, s.ScanLegacy)

	log.Info("Acquired system tray selection")
	s.onManagerChanged(true)

	return nil
}

// Stop unembeds every icon and releases the tray selection, so that another
// manager can take over. If the release fails, the tray keeps running
// without icons and clients may dock again.
func (s *Systray) Stop() error {
	if !s.running {
		return fmt.Errorf("stop: %w", ErrNotRunning)
	}

	s.teardown()

	if err := s.conn.ReleaseSelection(); err != nil {
		// The selection is still ours, keep accepting dock requests.
		log.Warn("Tray selection is still held: ", err)
		s.running = true
		s.scanStop = s.timers.Every(0, legacyScanPeriod, s.ScanLegacy)
		s.onManagerChanged(true)
		return fmt.Errorf("stop: failed to release tray selection: %w", err)
	}

	log.Info("Released system tray selection")

	return nil
}

// Running reports whether this process is the tray manager.
func (s *Systray) Running() bool {
	return s.running
}

// Icons returns the embedded icons in display order.
func (s *Systray) Icons() []*TrayIcon {
	return slices.Clone(s.icons)
}

// VisibleIcons returns the icons that take part in layout.
func (s *Systray) VisibleIcons() []*TrayIcon {
	var visible []*TrayIcon
	for _, icon := range s.icons {
		if icon.Visible() {
			visible = append(visible, icon)
		}
	}
	return visible
}

// Icon returns the icon of win, or nil.
func (s *Systray) Icon(win Window) *TrayIcon {
	for _, icon := range s.icons {
		if icon.Window == win {
			return icon
		}
	}
	return nil
}

// OnIconAdded sets callback that runs whenever an icon was embedded.
func (s *Systray) OnIconAdded(callback func(*TrayIcon)) {
	s.onIconAdded = callback
}

// OnIconRemoved sets callback that runs whenever an icon was removed.
func (s *Systray) OnIconRemoved(callback func(*TrayIcon)) {
	s.onIconRemoved = callback
}

// OnManagerChanged sets callback that runs whenever this process becomes or
// stops being the tray manager.
func (s *Systray) OnManagerChanged(callback func(bool)) {
	s.onManagerChanged = callback
}

// HandleEvent processes a window system event. It reports whether the event
// concerned the tray.
func (s *Systray) HandleEvent(ev Event) bool {
	switch e := ev.(type) {
	case ClientMessageEvent:
		if e.Type != SystemTrayOpcode {
			return false
		}
		s.HandleSystrayEvent(e)
		return true

	case SelectionClearEvent:
		if !strings.HasPrefix(e.Selection, SystemTraySelection) {
			return false
		}
		s.selectionLost()
		return true
	}

	icon := s.Icon(ev.Target())
	if icon == nil {
		return false
	}

	switch e := ev.(type) {
	case ResizeRequestEvent:
		s.resizeRequest(icon, e.Width, e.Height)
	case ConfigureEvent:
		s.reconfigure(icon, e.Geometry)
	case PropertyEvent:
		if e.Name != PropXEmbedInfo {
			return false
		}
		s.propertyNotify(icon)
	case DestroyEvent:
		log.Debug("Tray icon destroyed [", icon.Name, "]")
		s.RemoveIcon(icon)
	case ReparentEvent:
		if e.Parent == icon.Parent {
			return true
		}
		log.Debug("Tray icon left its embedder [", icon.Name, "]")
		s.RemoveIcon(icon)
	case DamageEvent:
		s.scheduleRender(icon)
	default:
		return false
	}

	return true
}

// HandleSystrayEvent processes a _NET_SYSTEM_TRAY_OPCODE message.
func (s *Systray) HandleSystrayEvent(e ClientMessageEvent) {
	switch e.Data[1] {
	case systemTrayRequestDock:
		if !s.running {
			log.Debug("Refusing dock request, not the tray manager")
			return
		}
		s.AddIcon(Window(e.Data[2]))
	case systemTrayBeginMessage, systemTrayCancelMessage:
		// Balloon messages are not shown.
	default:
		log.Debug("Unknown systray opcode: ", e.Data[1])
	}
}

// AddIcon docks win. It is a no-op if win is already docked, belongs to this
// process or matches the name filter. It reports whether the icon was
// embedded.
func (s *Systray) AddIcon(win Window) bool {
	icon := s.trackIcon(win)
	if icon == nil {
		return false
	}

	if !s.ReparentIcon(icon) {
		return false
	}
	if !s.EmbedIcon(icon) {
		return false
	}

	log.WithFields(log.Fields{
		"window": win,
		"name":   icon.Name,
		"pid":    icon.PID,
		"chrono": icon.Chrono,
	}).Debug("Add tray icon")

	s.onIconAdded(icon)
	s.render.ResizeSystray()

	return true
}

// trackIcon registers a newly docked window. The returned icon is neither
// reparented nor embedded.
func (s *Systray) trackIcon(win Window) *TrayIcon {
	if !s.running || win == None || s.Icon(win) != nil {
		return nil
	}

	pid, _ := s.conn.WindowPID(win)
	if pid != 0 && pid == s.pid {
		return nil
	}

	name := s.iconName(win)
	if s.nameFilter != nil && s.nameFilter.MatchString(name) {
		log.Debug("Tray icon filtered by name [", name, "]")
		return nil
	}

	geometry, err := s.conn.WindowGeometry(win)
	if err != nil {
		log.Debug("Tray icon vanished before docking [", win, "]: ", err)
		return nil
	}

	depth, err := s.conn.WindowDepth(win)
	if err != nil {
		log.Debug("Tray icon depth unavailable [", win, "]: ", err)
	}

	if err := s.conn.WatchTrayIcon(win); err != nil {
		log.Debug("Failed to watch tray icon [", win, "]: ", err)
		return nil
	}

	s.chrono++
	size := s.cfg.Systray.IconSize
	icon := &TrayIcon{
		Window:   win,
		PID:      pid,
		Chrono:   s.chrono,
		Name:     name,
		Depth:    depth,
		Geometry: Rect{Width: size, Height: size},
		docked:   geometry,
	}

	s.icons = append(s.icons, icon)
	s.sort()

	return icon
}

// ReparentIcon creates the embedder of icon and moves the icon window into
// it. An icon whose window vanished is removed.
func (s *Systray) ReparentIcon(icon *TrayIcon) bool {
	size := s.cfg.Systray.IconSize
	cell := Rect{Width: size, Height: size}

	parent, err := s.conn.CreateEmbedder(cell)
	if err != nil {
		log.Warn("Failed to create tray embedder: ", err)
		s.RemoveIcon(icon)
		return false
	}
	icon.Parent = parent

	if err := s.conn.Reparent(icon.Window, parent, 0, 0); err != nil {
		log.Debug("Failed to reparent tray icon [", icon.Name, "]: ", err)
		s.RemoveIcon(icon)
		return false
	}

	if err := s.conn.MoveResize(icon.Window, cell); err != nil {
		log.Debug("Failed to resize tray icon [", icon.Name, "]: ", err)
	}

	icon.Reparented = true

	return true
}

// EmbedIcon completes the XEmbed handshake. The icon is mapped unless its
// _XEMBED_INFO asks otherwise.
func (s *Systray) EmbedIcon(icon *TrayIcon) bool {
	if !icon.Reparented {
		return false
	}

	version, flags, ok, err := s.conn.XEmbedInfo(icon.Window)
	if err != nil {
		log.Debug("Failed to read _XEMBED_INFO [", icon.Name, "]: ", err)
		s.RemoveIcon(icon)
		return false
	}
	if !ok {
		version, flags = xembedVersion, xembedMapped
	}

	if err := s.conn.SendEmbeddedNotify(icon.Window, icon.Parent, min(version, xembedVersion)); err != nil {
		log.Debug("Failed to notify tray icon [", icon.Name, "]: ", err)
		s.RemoveIcon(icon)
		return false
	}

	icon.Embedded = true

	if flags&xembedMapped != 0 {
		s.mapIcon(icon)
	}

	if s.cfg.Systray.Composited {
		damage, err := s.conn.CreateDamage(icon.Window)
		if err != nil {
			log.Debug("Failed to watch tray icon damage [", icon.Name, "]: ", err)
		} else {
			icon.damage = damage
		}
		s.scheduleRender(icon)
	}

	return true
}

// RemoveIcon drops icon and destroys its embedder.
func (s *Systray) RemoveIcon(icon *TrayIcon) {
	idx := slices.Index(s.icons, icon)
	if idx < 0 {
		return
	}
	s.icons = slices.Delete(s.icons, idx, idx+1)

	icon.stopTimers()
	icon.image = nil

	if icon.damage != 0 {
		if err := s.conn.DestroyDamage(icon.damage); err != nil {
			log.Debug("Failed to destroy damage [", icon.Name, "]: ", err)
		}
		icon.damage = 0
	}

	if icon.Parent != None {
		if err := s.conn.DestroyWindow(icon.Parent); err != nil {
			log.Debug("Failed to destroy tray embedder [", icon.Name, "]: ", err)
		}
		icon.Parent = None
	}

	icon.Embedded = false
	icon.Mapped = false

	log.Debug("Remove tray icon [", icon.Name, "]")

	s.onIconRemoved(icon)
	s.render.ResizeSystray()
}

// Place moves the embedder of icon to r, relative to the panel.
func (s *Systray) Place(icon *TrayIcon, r Rect) {
	icon.Geometry.X, icon.Geometry.Y = r.X, r.Y
	if icon.Parent == None {
		return
	}
	if err := s.conn.MoveResize(icon.Parent, r); err != nil {
		log.Debug("Failed to move tray embedder [", icon.Name, "]: ", err)
	}
}

// ScanLegacy docks windows that use _KDE_NET_WM_SYSTEM_TRAY_WINDOW_FOR
// instead of a dock request.
func (s *Systray) ScanLegacy() {
	if !s.running {
		return
	}

	wins, err := s.conn.LegacyTrayWindows()
	if err != nil {
		log.Debug("Failed to scan legacy tray icons: ", err)
		return
	}

	for _, win := range wins {
		if s.Icon(win) == nil {
			s.AddIcon(win)
		}
	}
}

// RefreshIcons renders every composited icon.
func (s *Systray) RefreshIcons() {
	if !s.cfg.Systray.Composited {
		return
	}
	for _, icon := range slices.Clone(s.icons) {
		if icon.Visible() {
			s.RenderIcon(icon)
		}
	}
}

// RenderIcon updates the off-screen copy of icon.
func (s *Systray) RenderIcon(icon *TrayIcon) {
	if !icon.Embedded || !slices.Contains(s.icons, icon) {
		return
	}

	now := s.timers.Now()
	if !icon.lastRender.IsZero() && now.Sub(icon.lastRender) < fastRenderInterval+icon.renderDelay {
		icon.fastRenders++
		if icon.fastRenders > maxFastRenders {
			icon.renderDelay = min(max(2*icon.renderDelay, fastRenderInterval), maxRenderDelay)
		}
	} else {
		icon.fastRenders = 0
		icon.renderDelay = 0
	}
	icon.lastRender = now

	img, err := s.conn.Capture(icon.Window)
	if err != nil {
		log.Debug("Failed to capture tray icon [", icon.Name, "]: ", err)
		return
	}

	icon.image = AdjustImage(img, s.cfg.Systray.Adjust)
	s.render.ScheduleRedraw(icon)
}

func (s *Systray) scheduleRender(icon *TrayIcon) {
	if !s.cfg.Systray.Composited || icon.renderStop != nil {
		return
	}

	icon.renderStop = s.timers.AfterFunc(icon.renderDelay, func() {
		icon.renderStop = nil
		s.RenderIcon(icon)
	})
}

// resizeRequest handles a size request of icon. Icons that keep asking for
// a size other than the cell size are dropped.
func (s *Systray) resizeRequest(icon *TrayIcon, width, height int) {
	size := s.cfg.Systray.IconSize

	if width != size || height != size {
		now := s.timers.Now()
		if now.Sub(icon.badSizeSince) > badSizeWindow {
			icon.badSizes = 0
			icon.badSizeSince = now
		}
		icon.badSizes++

		if icon.badSizes > maxBadSizes {
			log.Warn("Dropping tray icon that keeps resizing [", icon.Name, "]")
			s.RemoveIcon(icon)
			return
		}
	}

	s.scheduleResize(icon, width, height)
}

// reconfigure handles a geometry reported by icon.
func (s *Systray) reconfigure(icon *TrayIcon, geometry Rect) {
	if geometry.Width == icon.Geometry.Width && geometry.Height == icon.Geometry.Height {
		return
	}
	s.scheduleResize(icon, geometry.Width, geometry.Height)
}

func (s *Systray) scheduleResize(icon *TrayIcon, width, height int) {
	size := s.cfg.Systray.IconSize
	icon.pending = Rect{
		Width:  clamp(width, 1, size),
		Height: clamp(height, 1, size),
	}

	if icon.resizeStop != nil {
		icon.resizeStop()
	}
	icon.resizeStop = s.timers.AfterFunc(resizeDebounce, func() {
		icon.resizeStop = nil
		s.commitSize(icon)
	})
}

// commitSize applies the pending size of icon, centered in its cell.
func (s *Systray) commitSize(icon *TrayIcon) {
	if !slices.Contains(s.icons, icon) {
		return
	}

	w, h := icon.pending.Width, icon.pending.Height
	if w == icon.Geometry.Width && h == icon.Geometry.Height {
		return
	}

	size := s.cfg.Systray.IconSize
	cell := Rect{X: (size - w) / 2, Y: (size - h) / 2, Width: w, Height: h}
	if err := s.conn.MoveResize(icon.Window, cell); err != nil {
		log.Debug("Failed to resize tray icon [", icon.Name, "]: ", err)
	}

	icon.Geometry.Width, icon.Geometry.Height = w, h
	s.render.ResizeSystray()
}

// propertyNotify mirrors the mapped flag of _XEMBED_INFO.
func (s *Systray) propertyNotify(icon *TrayIcon) {
	_, flags, ok, err := s.conn.XEmbedInfo(icon.Window)
	if err != nil || !ok {
		return
	}

	mapped := flags&xembedMapped != 0
	switch {
	case mapped && !icon.Mapped:
		s.mapIcon(icon)
	case !mapped && icon.Mapped:
		s.unmapIcon(icon)
	default:
		return
	}

	s.render.ResizeSystray()
}

func (s *Systray) mapIcon(icon *TrayIcon) {
	if err := s.conn.Map(icon.Window); err != nil {
		log.Debug("Failed to map tray icon [", icon.Name, "]: ", err)
		return
	}
	if err := s.conn.Map(icon.Parent); err != nil {
		log.Debug("Failed to map tray embedder [", icon.Name, "]: ", err)
	}
	icon.Mapped = true
}

func (s *Systray) unmapIcon(icon *TrayIcon) {
	if err := s.conn.Unmap(icon.Parent); err != nil {
		log.Debug("Failed to unmap tray embedder [", icon.Name, "]: ", err)
	}
	icon.Mapped = false
}

// unembed hands the icon window back to the root window.
func (s *Systray) unembed(icon *TrayIcon) {
	if !icon.Reparented {
		return
	}
	if err := s.conn.Unmap(icon.Window); err != nil {
		log.Debug("Failed to unmap tray icon [", icon.Name, "]: ", err)
	}
	if err := s.conn.Reparent(icon.Window, s.conn.Root(), 0, 0); err != nil {
		log.Debug("Failed to unembed tray icon [", icon.Name, "]: ", err)
	}
	icon.Reparented = false
}

// selectionLost tears the tray down after another manager took the
// selection.
func (s *Systray) selectionLost() {
	if !s.running {
		return
	}
	log.Warn("System tray selection taken by another manager")
	s.teardown()
}

func (s *Systray) teardown() {
	s.running = false
	if s.scanStop != nil {
		s.scanStop()
		s.scanStop = nil
	}

	for _, icon := range slices.Clone(s.icons) {
		s.unembed(icon)
		s.RemoveIcon(icon)
	}

	s.render.ResizeSystray()
	s.onManagerChanged(false)
}

func (s *Systray) iconName(win Window) string {
	for _, prop := range []string{PropName, PropLegacyName} {
		name, err := s.conn.TextProperty(win, prop)
		if err == nil && name != "" {
			return name
		}
	}
	return ""
}

// sort orders the icons by the configured policy. Chrono breaks ties.
func (s *Systray) sort() {
	policy := s.cfg.Systray.Sort

	slices.SortStableFunc(s.icons, func(a, b *TrayIcon) int {
		switch policy {
		case TraySortDescending:
			return cmp.Compare(b.Chrono, a.Chrono)
		case TraySortLeftRight:
			if c := cmp.Compare(a.docked.X, b.docked.X); c != 0 {
				return c
			}
			return cmp.Compare(a.Chrono, b.Chrono)
		case TraySortRightLeft:
			if c := cmp.Compare(b.docked.X, a.docked.X); c != 0 {
				return c
			}
			return cmp.Compare(a.Chrono, b.Chrono)
		default:
			return cmp.Compare(a.Chrono, b.Chrono)
		}
	})
}
