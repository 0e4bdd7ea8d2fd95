package desktop

import (
	"os"
	"strings"
)

// Session is the kind of graphical session the daemon runs in.
type Session int

// Sessions.
const (
	SessionUnknown Session = iota
	SessionX11
	SessionWayland
	SessionWindows
)

func (s Session) String() string {
	switch s {
	case SessionX11:
		return "x11"
	case SessionWayland:
		return "wayland"
	case SessionWindows:
		return "windows"
	}
	return "unknown"
}

// DetectSession classifies a unix graphical session from its environment.
func DetectSession(getenv func(string) string) Session {
	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.EqualFold(getenv("XDG_SESSION_TYPE"), "wayland") || getenv("WAYLAND_DISPLAY") != "" {
		return SessionWayland
	}
	if getenv("DISPLAY") != "" || strings.EqualFold(getenv("XDG_SESSION_TYPE"), "x11") {
		return SessionX11
	}
	return SessionUnknown
}

// IsHyprland reports whether the session is a Hyprland compositor.
func IsHyprland(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" ||
		strings.Contains(strings.ToLower(getenv("XDG_CURRENT_DESKTOP")), "hyprland")
}
