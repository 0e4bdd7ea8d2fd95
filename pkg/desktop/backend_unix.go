//go:build !windows

package desktop

import (
	"os"
	"runtime"
)

func newBackend() backend {
	if runtime.GOOS == "darwin" {
		return unsupportedBackend{platform: runtime.GOOS}
	}
	switch DetectSession(os.Getenv) {
	case SessionWayland:
		return &layerBackend{hyprland: IsHyprland(os.Getenv), run: execOutput}
	case SessionX11:
		return &x11Backend{display: os.Getenv("DISPLAY")}
	}
	return unsupportedBackend{platform: runtime.GOOS + " without a graphical session"}
}
