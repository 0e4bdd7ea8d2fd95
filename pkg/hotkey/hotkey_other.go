//go:build !darwin && !windows && !(linux && cgo)

package hotkey

import "golang.design/x/hotkey"

const supported = false

const (
	modCtrl = hotkey.Modifier(0)
	modAlt  = hotkey.Modifier(0)

	keyUp   = hotkey.Key(0)
	keyDown = hotkey.Key(0)
)
