//go:build linux && cgo

package hotkey

import "golang.design/x/hotkey"

// X11 only; under Wayland registration fails and the shortcuts are skipped.
const supported = true

const (
	modCtrl = hotkey.ModCtrl
	// Mod1 is Alt on X11.
	modAlt = hotkey.Mod1

	keyUp   = hotkey.KeyUp
	keyDown = hotkey.KeyDown
)
