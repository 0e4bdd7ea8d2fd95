// Package platform is the desktop-facing façade of the engine. It knows how to
// talk to the OS wallpaper setting of each supported platform and builds
// wallpaper variants wired to the window manager and process supervisor.
//
// The set of platforms is closed: Windows, generic Linux desktop environments
// and Hyprland on Wayland.
package platform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// Variant identifies a platform implementation.
type Variant int

// Platform variants.
const (
	VariantWindows Variant = iota
	VariantLinux
	VariantHyprland
)

func (v Variant) String() string {
	switch v {
	case VariantWindows:
		return "windows"
	case VariantLinux:
		return "linux"
	case VariantHyprland:
		return "hyprland"
	}
	return "unknown"
}

// native is the OS wallpaper setting of one platform variant.
type native interface {
	// set applies an image. It fails only when every strategy failed.
	set(ctx context.Context, path string) error
	// current returns the configured image, if it can be determined.
	current(ctx context.Context) (string, bool)
	clear(ctx context.Context) error
}

// Runner executes helper tools such as gsettings or hyprctl.
type Runner interface {
	// Run executes name and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Hooks are the engine callbacks attached to every wallpaper the façade builds.
type Hooks struct {
	OnFailure func(w wallpaper.Wallpaper, err error)
	OnState   func(w wallpaper.Wallpaper, s wallpaper.State)
}

// Options configures New.
type Options struct {
	Windows    desktop.WindowManager
	Supervisor *process.Supervisor
	Renderers  wallpaper.Renderers
	CacheDir   string
	Screen     func() (int, int, error)

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Runner defaults to running the real tools.
	Runner Runner
	// Home defaults to the user's home directory.
	Home string
}

func (o *Options) setDefaults() {
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.Runner == nil {
		o.Runner = execRunner{}
	}
	if o.Home == "" {
		o.Home, _ = os.UserHomeDir()
	}
}

// Manager is the platform façade.
type Manager struct {
	variant Variant
	env     DesktopEnv
	native  native
	deps    wallpaper.Deps

	mu      sync.Mutex
	lastSet string
}

// New returns the façade for the running platform. Platforms outside the
// supported set get an UnsupportedPlatformError.
func New(opts Options) (*Manager, error) {
	opts.setDefaults()
	n, variant, err := newNative(opts)
	if err != nil {
		return nil, err
	}
	m := newManager(variant, n, opts)
	log.Printf("Platform: %s (desktop environment %s)", variant, m.env)
	return m, nil
}

func newManager(variant Variant, n native, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		variant: variant,
		env:     DetectDesktopEnv(opts.Getenv),
		native:  n,
		deps: wallpaper.Deps{
			Windows:    opts.Windows,
			Supervisor: opts.Supervisor,
			Renderers:  opts.Renderers,
			CacheDir:   opts.CacheDir,
			Screen:     opts.Screen,
		},
	}
}

// Name returns the platform variant name.
func (m *Manager) Name() string {
	return m.variant.String()
}

// Variant returns the platform variant.
func (m *Manager) Variant() Variant {
	return m.variant
}

// DesktopEnv returns the detected desktop environment.
func (m *Manager) DesktopEnv() DesktopEnv {
	return m.env
}

// Resolve builds the wallpaper variant for spec. Static images go through the
// OS wallpaper setting; everything else is embedded by the window manager.
// Only the engine starts what Resolve returns, so one renderer runs at a time.
func (m *Manager) Resolve(spec wallpaper.Spec, hooks Hooks) (wallpaper.Wallpaper, error) {
	d := m.deps
	d.Native = m
	d.OnFailure = hooks.OnFailure
	d.OnState = hooks.OnState
	return wallpaper.New(spec, d)
}

// SetNative implements wallpaper.NativeSetter.
func (m *Manager) SetNative(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := m.native.set(ctx, path); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastSet = path
	m.mu.Unlock()
	log.Printf("Native wallpaper set: %s", path)
	return nil
}

// CurrentWallpaper returns the OS wallpaper image. When the OS cannot be
// queried it falls back to the image this process last set, and reports false
// if there is none.
func (m *Manager) CurrentWallpaper(ctx context.Context) (string, bool) {
	if p, ok := m.native.current(ctx); ok {
		return p, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSet, m.lastSet != ""
}

// Clear removes the OS wallpaper image, best effort.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.native.clear(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastSet = ""
	m.mu.Unlock()
	return nil
}
