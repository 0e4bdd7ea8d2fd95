package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/api"
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/pkg/engine"
	"github.com/dixieflatline76/AetherDesk/pkg/hotkey"
	"github.com/dixieflatline76/AetherDesk/pkg/platform"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/pkg/sysevent"
	"github.com/dixieflatline76/AetherDesk/pkg/sysinfo"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// shutdownTimeout bounds how long the active renderer may take to exit.
const shutdownTimeout = 10 * time.Second

type daemon struct {
	cfg    *config.Config
	engine *engine.Engine
	sched  *schedule.Scheduler
	api    *api.Server
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	dopts, err := desktop.OptionsFromConfig(cfg.Desktop)
	if err != nil {
		return nil, err
	}
	sopts, err := process.OptionsFromConfig(cfg.Supervisor)
	if err != nil {
		return nil, err
	}
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}

	pm, err := platform.New(platform.Options{
		Windows:    desktop.New(dopts),
		Supervisor: process.NewSupervisor(sopts),
		Renderers:  wallpaper.RenderersFromConfig(cfg.Renderers),
		CacheDir:   cacheDir,
		Screen:     sysinfo.GetScreenDimensions,
	})
	if err != nil {
		return nil, err
	}

	eng := engine.New(pm)
	sched := schedule.New(eng, schedule.Options{
		Tick:     cfg.Scheduler.Tick,
		OnChange: engine.ScheduleSaver(cfg),
	})
	schedule.RegisterBuiltins(sched)
	if err := sched.Load(engine.ItemsFromRecords(cfg.ScheduleRecords())); err != nil {
		return nil, err
	}
	eng.SetScheduler(sched)

	d := &daemon{cfg: cfg, engine: eng, sched: sched}
	if cfg.API.Enabled {
		library, _ := config.WallpaperDir()
		d.api = api.NewServer(eng, api.Options{
			Addr:    cfg.API.Addr,
			Rate:    cfg.API.Rate,
			Burst:   cfg.API.Burst,
			Library: library,
		})
	}
	return d, nil
}

func run(configPath, apply string) error {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Printf("%s %s starting (config %s)", config.AppName, config.AppVersion, cfg.Path())

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.run(ctx, apply)
}

// run starts every component and blocks until ctx is done or one of them
// fails. The active wallpaper is stopped before it returns.
func (d *daemon) run(ctx context.Context, apply string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.sched.Run(gctx) })
	g.Go(func() error { return sysevent.Watch(gctx, d.sched) })
	if d.api != nil {
		g.Go(func() error { return d.api.Run(gctx) })
	}
	if d.cfg.Hotkeys.Enabled {
		g.Go(func() error { return hotkey.Listen(gctx, d.engine) })
	}
	g.Go(func() error {
		d.applyStartup(gctx, apply)
		return nil
	})

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := d.engine.Stop(stopCtx); serr != nil {
		log.Printf("Failed to stop the active wallpaper: %v", serr)
	}
	log.Printf("%s stopped.", config.AppName)
	return err
}

// applyStartup applies the -apply flag, or else the configured startup
// wallpaper. Failures are logged; the daemon keeps running.
func (d *daemon) applyStartup(ctx context.Context, apply string) {
	var (
		spec wallpaper.Spec
		err  error
	)
	switch {
	case apply != "":
		spec, err = parseApply(apply)
	case d.cfg.Startup != nil:
		spec, err = engine.SpecFromRecord(*d.cfg.Startup)
	default:
		return
	}
	if err == nil {
		err = d.engine.Switch(ctx, spec)
	}
	if err != nil {
		log.Printf("Startup wallpaper not applied: %v", err)
	}
}

// parseApply parses "type:path". A bare path gets its type from the extension.
func parseApply(s string) (wallpaper.Spec, error) {
	spec := wallpaper.Spec{Path: s, Options: wallpaper.Options{Loop: true}}
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		if t, err := wallpaper.ParseType(prefix); err == nil {
			spec.Type, spec.Path = t, rest
			return spec, spec.Validate()
		}
	}
	t, ok := wallpaper.TypeForPath(s)
	if !ok {
		return wallpaper.Spec{}, apperror.Config("parse -apply", "cannot tell the wallpaper type of %q, use type:path", s)
	}
	spec.Type = t
	return spec, spec.Validate()
}
