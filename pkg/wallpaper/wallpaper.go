// Package wallpaper implements the wallpaper variants and their shared
// lifecycle. A static wallpaper is handed to the OS wallpaper setting; video,
// shader and audio wallpapers run a supervised mpv in an embedded desktop
// surface; a web wallpaper runs a kiosk browser whose window is adopted into
// the desktop.
package wallpaper

import (
	"context"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
)

// Wallpaper is a running (or runnable) piece of desktop background content.
type Wallpaper interface {
	// Start allocates resources and moves Stopped -> Starting -> Running.
	// On failure the wallpaper is back in Stopped with nothing leaked.
	Start(ctx context.Context) error
	// Stop releases every resource. It is valid from any state and idempotent.
	// Stop during Starting cancels the start.
	Stop(ctx context.Context) error
	// Pause is valid only from Running.
	Pause(ctx context.Context) error
	// Resume is valid only from Paused.
	Resume(ctx context.Context) error

	Type() Type
	Path() string
	Spec() Spec
	State() State

	// Check verifies that the content and the renderer binary are available
	// without allocating anything.
	Check() error
	// Process returns the renderer handle while one is alive.
	Process() (process.Handle, bool)
	// Degraded reports a full-screen fallback embedding.
	Degraded() bool
}

// NativeSetter applies an image through the OS wallpaper setting.
type NativeSetter interface {
	SetNative(ctx context.Context, path string) error
}

// Renderers lists candidate binaries per renderer.
type Renderers struct {
	Video   []string
	Layer   []string
	Browser []string
}

// RenderersFromConfig converts the renderers section of the configuration.
func RenderersFromConfig(c config.RendererConfig) Renderers {
	return Renderers{Video: c.Video, Layer: c.Layer, Browser: c.Browser}
}

// Deps are the collaborators a wallpaper is built from.
type Deps struct {
	Windows    desktop.WindowManager
	Supervisor *process.Supervisor
	Native     NativeSetter
	Renderers  Renderers
	// CacheDir holds fitted images and the browser profile.
	CacheDir string
	// Screen returns the primary screen size.
	Screen func() (int, int, error)

	// OnFailure is called when a running wallpaper dies and could not be
	// recovered. The wallpaper is already Stopped.
	OnFailure func(w Wallpaper, err error)
	// OnState observes every state change.
	OnState func(w Wallpaper, s State)
}

// New builds the variant for spec. It allocates nothing until Start.
func New(spec Spec, deps Deps) (Wallpaper, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.Clone()

	var drv driver
	switch spec.Type {
	case TypeStatic:
		if deps.Native == nil {
			return nil, apperror.Unsupported("static wallpaper", "this desktop")
		}
		drv = &static{spec: spec, deps: deps}
	case TypeWeb:
		if deps.Windows == nil || deps.Supervisor == nil {
			return nil, apperror.Unsupported("web wallpaper", "this desktop")
		}
		drv = &rendered{spec: spec, deps: deps, adopt: true}
	default:
		if deps.Windows == nil || deps.Supervisor == nil {
			return nil, apperror.Unsupported(spec.Type.String()+" wallpaper", "this desktop")
		}
		drv = &rendered{spec: spec, deps: deps}
	}

	w := &wallpaper{spec: spec, drv: drv, deps: deps}
	return w, nil
}

// driver is the variant-specific half of a wallpaper. The lifecycle in
// wallpaper serialises calls, so drivers never see overlapping start/stop.
type driver interface {
	check() error
	// start allocates resources. It must release whatever it allocated before
	// returning an error. onFailure reports an unrecoverable crash later on.
	start(ctx context.Context, onFailure func(error)) error
	// stop releases resources and tolerates being called with nothing allocated.
	stop()
	pause() error
	resume() error
	handle() (process.Handle, bool)
	degraded() bool
}
