// Package xpanel is the core of an X11 panel. It tracks the top-level
// windows of other clients as tasks, following the [EWMH] conventions, and
// hosts their tray icons with the [XEmbed] based system tray protocol.
// Drawing is left to a renderer; this package decides which objects exist,
// what state they are in and when they must be redrawn.
//
// # Usage
//
// The panel consists of [Core], [Systray] and optionally [Exporter]:
//   - [Core] keeps one [Task] per desktop slot of each tracked window. All
//     replicas of a window share its title and icons and change state
//     together.
//   - [Systray] owns the tray manager selection and embeds the icons that
//     request docking. Only one tray manager may run on a screen at a time.
//   - [Exporter] publishes tasks and tray icons on the session bus.
//
// Window system access is abstracted by [WindowSystem] and [TrayConn]; the
// x11 subpackage implements both. Core and Systray are not safe for
// concurrent use: feed them events and run their timers from a single
// goroutine, such as the one of the loop subpackage.
//
// [EWMH]: https://specifications.freedesktop.org/wm-spec/latest/
// [XEmbed]: https://specifications.freedesktop.org/xembed-spec/latest/
package xpanel
