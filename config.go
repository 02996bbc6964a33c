package xpanel

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// TaskbarMode controls how per-desktop taskbars are laid out.
type TaskbarMode string

const (
	// SingleDesktop shows the taskbar of the current desktop only.
	SingleDesktop TaskbarMode = "single_desktop"

	// MultiDesktop shows the taskbars of all desktops side by side.
	MultiDesktop TaskbarMode = "multi_desktop"
)

// SortMethod orders tasks inside a taskbar.
type SortMethod string

const (
	SortNone        SortMethod = "none"
	SortTitle       SortMethod = "title"
	SortApplication SortMethod = "application"
	SortCenter      SortMethod = "center"
	SortLRU         SortMethod = "lru"
	SortMRU         SortMethod = "mru"
)

// TraySort orders the tray icons.
type TraySort string

const (
	TraySortAscending  TraySort = "ascending"
	TraySortDescending TraySort = "descending"
	TraySortLeftRight  TraySort = "left2right"
	TraySortRightLeft  TraySort = "right2left"
)

var (
	ErrInvalidMode     = errors.New("invalid taskbar mode")
	ErrInvalidSort     = errors.New("invalid sort method")
	ErrInvalidTraySort = errors.New("invalid systray sort method")
	ErrInvalidAction   = errors.New("invalid mouse action")
)

// Adjust is a color adjustment in percent. Alpha 100 with zero saturation
// and brightness leaves colors untouched.
type Adjust struct {
	Alpha      int `yaml:"alpha"`
	Saturation int `yaml:"saturation"`
	Brightness int `yaml:"brightness"`
}

// Identity reports whether the adjustment is a no-op.
func (a Adjust) Identity() bool {
	return a.Alpha == 100 && a.Saturation == 0 && a.Brightness == 0
}

// StateStyles holds one adjustment per displayed task state.
type StateStyles struct {
	Normal    Adjust `yaml:"normal"`
	Iconified Adjust `yaml:"iconified"`
	Active    Adjust `yaml:"active"`
	Urgent    Adjust `yaml:"urgent"`
}

// For returns the adjustment for state.
func (s StateStyles) For(state TaskState) Adjust {
	switch state {
	case StateIconified:
		return s.Iconified
	case StateActive:
		return s.Active
	case StateUrgent:
		return s.Urgent
	default:
		return s.Normal
	}
}

type TaskbarConfig struct {
	Mode                      TaskbarMode `yaml:"mode"`
	Sort                      SortMethod  `yaml:"sort"`
	HideInactiveTasks         bool        `yaml:"hide_inactive_tasks"`
	HideDifferentDesktop      bool        `yaml:"hide_different_desktop"`
	HideDifferentMonitor      bool        `yaml:"hide_different_monitor"`
	AlwaysShowAllDesktopTasks bool        `yaml:"always_show_all_desktop_tasks"`
	HideIfEmpty               bool        `yaml:"hide_if_empty"`

	// Number of blink ticks an urgent task toggles before it settles.
	UrgentBlinks int `yaml:"urgent_blinks"`
}

type TaskConfig struct {
	Icon           bool        `yaml:"icon"`
	Text           bool        `yaml:"text"`
	Tooltip        bool        `yaml:"tooltip"`
	ContentTint    bool        `yaml:"content_tint"`
	IconSize       int         `yaml:"icon_size"`
	Thumbnails     bool        `yaml:"thumbnails"`
	ThumbnailWidth int         `yaml:"thumbnail_width"`
	States         StateStyles `yaml:"states"`
}

type MouseEffects struct {
	Enabled bool   `yaml:"enabled"`
	Hover   Adjust `yaml:"hover"`
	Pressed Adjust `yaml:"pressed"`
}

// MouseBindings maps pointer buttons on a task to actions.
type MouseBindings struct {
	Left       MouseAction `yaml:"left"`
	Middle     MouseAction `yaml:"middle"`
	Right      MouseAction `yaml:"right"`
	ScrollUp   MouseAction `yaml:"scroll_up"`
	ScrollDown MouseAction `yaml:"scroll_down"`
}

type SystrayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Sort    TraySort `yaml:"sort"`

	// Size of the square cell each icon is forced into.
	IconSize int `yaml:"icon_size"`

	// Icons whose name matches this regular expression are not embedded.
	NameFilter string `yaml:"name_filter"`

	// Composited keeps an off-screen copy of every icon, updated on damage.
	Composited bool   `yaml:"composited"`
	Adjust     Adjust `yaml:"adjust"`
}

type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the panel configuration.
type Config struct {
	LogLevel     string        `yaml:"log_level"`
	Taskbar      TaskbarConfig `yaml:"taskbar"`
	Task         TaskConfig    `yaml:"task"`
	MouseEffects MouseEffects  `yaml:"mouse_effects"`
	Mouse        MouseBindings `yaml:"mouse"`
	Systray      SystrayConfig `yaml:"systray"`
	DBus         DBusConfig    `yaml:"dbus"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	identity := Adjust{Alpha: 100}

	return &Config{
		LogLevel: "info",
		Taskbar: TaskbarConfig{
			Mode:         SingleDesktop,
			Sort:         SortNone,
			UrgentBlinks: 14,
		},
		Task: TaskConfig{
			Icon:           true,
			Text:           true,
			Tooltip:        true,
			IconSize:       22,
			ThumbnailWidth: 210,
			States: StateStyles{
				Normal:    identity,
				Iconified: Adjust{Alpha: 50, Saturation: -100},
				Active:    identity,
				Urgent:    identity,
			},
		},
		MouseEffects: MouseEffects{
			Hover:   Adjust{Alpha: 100, Brightness: 10},
			Pressed: Adjust{Alpha: 100, Brightness: -10},
		},
		Mouse: MouseBindings{
			Left:       ActionToggleIconify,
			Middle:     ActionNone,
			Right:      ActionClose,
			ScrollUp:   ActionToggle,
			ScrollDown: ActionIconify,
		},
		Systray: SystrayConfig{
			Enabled:  true,
			Sort:     TraySortAscending,
			IconSize: 22,
			Adjust:   identity,
		},
		DBus: DBusConfig{Enabled: true},
	}
}

// LoadConfig reads a YAML configuration. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enumeration values and bad filters.
func (cfg *Config) Validate() error {
	switch cfg.Taskbar.Mode {
	case SingleDesktop, MultiDesktop:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Taskbar.Mode)
	}

	switch cfg.Taskbar.Sort {
	case SortNone, SortTitle, SortApplication, SortCenter, SortLRU, SortMRU:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSort, cfg.Taskbar.Sort)
	}

	switch cfg.Systray.Sort {
	case TraySortAscending, TraySortDescending, TraySortLeftRight, TraySortRightLeft:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTraySort, cfg.Systray.Sort)
	}

	for _, action := range []MouseAction{
		cfg.Mouse.Left,
		cfg.Mouse.Middle,
		cfg.Mouse.Right,
		cfg.Mouse.ScrollUp,
		cfg.Mouse.ScrollDown,
	} {
		if !action.valid() {
			return fmt.Errorf("%w: %q", ErrInvalidAction, action)
		}
	}

	if cfg.Systray.NameFilter != "" {
		if _, err := regexp.Compile(cfg.Systray.NameFilter); err != nil {
			return fmt.Errorf("invalid systray name filter: %w", err)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Taskbar.Mode == "" {
		cfg.Taskbar.Mode = SingleDesktop
	}
	if cfg.Taskbar.Sort == "" {
		cfg.Taskbar.Sort = SortNone
	}
	if cfg.Systray.Sort == "" {
		cfg.Systray.Sort = TraySortAscending
	}
	if cfg.Task.IconSize <= 0 {
		cfg.Task.IconSize = 22
	}
	if cfg.Task.ThumbnailWidth <= 0 {
		cfg.Task.ThumbnailWidth = 210
	}
	if cfg.Systray.IconSize <= 0 {
		cfg.Systray.IconSize = 22
	}
	if cfg.Taskbar.UrgentBlinks < 0 {
		cfg.Taskbar.UrgentBlinks = 0
	}
}
