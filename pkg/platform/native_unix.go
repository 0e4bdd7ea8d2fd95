//go:build !windows

package platform

import (
	"runtime"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
)

func newNative(opts Options) (native, Variant, error) {
	if runtime.GOOS == "darwin" {
		return nil, 0, apperror.Unsupported("wallpaper manager", runtime.GOOS)
	}
	if desktop.IsHyprland(opts.Getenv) {
		return &hyprlandNative{run: opts.Runner}, VariantHyprland, nil
	}
	return newLinuxNative(DetectDesktopEnv(opts.Getenv), opts.Runner, opts.Home), VariantLinux, nil
}
