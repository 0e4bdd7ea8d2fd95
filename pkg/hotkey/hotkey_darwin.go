//go:build darwin

package hotkey

import "golang.design/x/hotkey"

const supported = true

const (
	modCtrl = hotkey.ModCmd
	modAlt  = hotkey.ModOption

	keyUp   = hotkey.KeyUp
	keyDown = hotkey.KeyDown
)
