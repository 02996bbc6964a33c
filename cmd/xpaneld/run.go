package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"

	"github.com/shelepuginivan/xpanel"
	"github.com/shelepuginivan/xpanel/loop"
	"github.com/shelepuginivan/xpanel/x11"
)

// daemon holds the components driven by the event loop.
type daemon struct {
	opts options

	conn     *x11.Conn
	loop     *loop.Loop
	core     *xpanel.Core
	tray     *xpanel.Systray
	exporter *xpanel.Exporter
	render   *renderer
}

func run(ctx context.Context, opts options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	conn, err := x11.Dial(opts.display)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	gateCompositing(cfg, conn.Composited())

	d := newDaemon(opts, cfg, conn)
	defer d.exporter.Close()

	if err := d.core.Init(); err != nil {
		return err
	}
	d.applyTrayEnabled(cfg)

	if opts.config != "" {
		go func() {
			err := watchConfig(ctx, opts.config, func() {
				d.loop.Post(d.reload)
			})
			if err != nil {
				log.Warn("Config reload disabled: ", err)
			}
		}()
	}

	go conn.Run(func(ev xpanel.Event) {
		d.loop.Post(func() { d.dispatch(ev) })
	})

	err = d.loop.Run(ctx)

	if d.tray.Running() {
		if err := d.tray.Stop(); err != nil {
			log.Warn("Failed to stop system tray: ", err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newDaemon(opts options, cfg *xpanel.Config, conn *x11.Conn) *daemon {
	sched := loop.NewScheduler(time.Now)

	d := &daemon{
		opts: opts,
		conn: conn,
		loop: loop.New(sched),
	}

	d.render = newRenderer(cfg)
	d.core = xpanel.NewCore(cfg, conn, d.render, d.render.tooltip, sched)
	d.tray = xpanel.NewSystray(cfg, conn, d.render, sched)
	d.render.core = d.core
	d.render.tray = d.tray

	if cfg.DBus.Enabled {
		d.exporter = newExporter()
	} else {
		d.exporter = xpanel.NewExporter(nil)
	}
	d.render.exporter = d.exporter

	d.core.OnTaskAdded(d.exporter.TaskAdded)
	d.core.OnTaskRemoved(d.exporter.TaskRemoved)

	d.tray.OnIconAdded(func(icon *xpanel.TrayIcon) {
		d.core.AddOwnWindow(icon.Parent)
		d.exporter.TrayIconAdded(icon)
	})
	d.tray.OnIconRemoved(d.exporter.TrayIconRemoved)
	d.tray.OnManagerChanged(d.exporter.SetTrayManager)

	d.loop.OnIdle(d.render.flush)

	return d
}

// newExporter connects to the session bus. The daemon runs without an
// exporter when the bus is unavailable.
func newExporter() *xpanel.Exporter {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Warn("Session bus unavailable: ", err)
		return xpanel.NewExporter(nil)
	}

	exporter := xpanel.NewExporter(conn)
	if err := exporter.Listen(); err != nil {
		log.Warn("Failed to publish panel state: ", err)
	}
	return exporter
}

// dispatch routes ev to the tray first. Events about tasks reach the core.
func (d *daemon) dispatch(ev xpanel.Event) {
	if !d.tray.HandleEvent(ev) {
		d.core.HandleEvent(ev)
	}
}

func (d *daemon) reload() {
	cfg, err := loadConfig(d.opts)
	if err != nil {
		log.Error("Failed to reload config: ", err)
		return
	}

	gateCompositing(cfg, d.conn.Composited())

	d.render.cfg = cfg
	d.core.ApplyConfig(cfg)
	d.tray.ApplyConfig(cfg)
	d.applyTrayEnabled(cfg)

	log.Info("Reloaded config ", d.opts.config)
}

func (d *daemon) applyTrayEnabled(cfg *xpanel.Config) {
	switch {
	case cfg.Systray.Enabled && !d.tray.Running():
		if err := d.tray.Start(); err != nil {
			log.Warn("System tray disabled: ", err)
		}
	case !cfg.Systray.Enabled && d.tray.Running():
		if err := d.tray.Stop(); err != nil {
			log.Warn("Failed to stop system tray: ", err)
		}
	}
}

// gateCompositing turns tray compositing off when the X server cannot
// report damage.
func gateCompositing(cfg *xpanel.Config, available bool) {
	if cfg.Systray.Composited && !available {
		log.Warn("Tray compositing disabled: DAMAGE extension is not available")
		cfg.Systray.Composited = false
	}
}

// loadConfig reads the configuration file and applies the command line
// overrides.
func loadConfig(opts options) (*xpanel.Config, error) {
	cfg := xpanel.DefaultConfig()
	if opts.config != "" {
		var err error
		cfg, err = xpanel.LoadConfig(opts.config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", opts.config, err)
		}
	}

	if opts.noSystray {
		cfg.Systray.Enabled = false
	}
	if opts.noDBus {
		cfg.DBus.Enabled = false
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := setLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}
