package platform

import "strings"

// DesktopEnv is a Linux desktop environment or compositor.
type DesktopEnv int

// Desktop environments.
const (
	EnvGeneric DesktopEnv = iota
	EnvGNOME
	EnvKDE
	EnvXFCE
	EnvMATE
	EnvCinnamon
	EnvSway
	EnvHyprland
)

func (e DesktopEnv) String() string {
	switch e {
	case EnvGNOME:
		return "gnome"
	case EnvKDE:
		return "kde"
	case EnvXFCE:
		return "xfce"
	case EnvMATE:
		return "mate"
	case EnvCinnamon:
		return "cinnamon"
	case EnvSway:
		return "sway"
	case EnvHyprland:
		return "hyprland"
	}
	return "generic"
}

// envMarkers maps substrings of XDG_CURRENT_DESKTOP / DESKTOP_SESSION to
// environments. Order matters: "x-cinnamon" must not match gnome first.
var envMarkers = []struct {
	marker string
	env    DesktopEnv
}{
	{"hyprland", EnvHyprland},
	{"sway", EnvSway},
	{"cinnamon", EnvCinnamon},
	{"mate", EnvMATE},
	{"xfce", EnvXFCE},
	{"kde", EnvKDE},
	{"plasma", EnvKDE},
	{"gnome", EnvGNOME},
	{"unity", EnvGNOME},
	{"ubuntu", EnvGNOME},
	{"pop", EnvGNOME},
}

// DetectDesktopEnv identifies the desktop environment from the session
// environment variables.
func DetectDesktopEnv(getenv func(string) string) DesktopEnv {
	if getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return EnvHyprland
	}
	for _, key := range []string{"XDG_CURRENT_DESKTOP", "DESKTOP_SESSION"} {
		v := strings.ToLower(getenv(key))
		if v == "" {
			continue
		}
		for _, m := range envMarkers {
			if strings.Contains(v, m.marker) {
				return m.env
			}
		}
	}
	switch {
	case getenv("GNOME_DESKTOP_SESSION_ID") != "":
		return EnvGNOME
	case getenv("KDE_FULL_SESSION") != "":
		return EnvKDE
	case getenv("SWAYSOCK") != "":
		return EnvSway
	}
	return EnvGeneric
}
