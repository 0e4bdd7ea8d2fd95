package platform

import (
	"context"
	"fmt"
	"strconv"

	"github.com/godbus/dbus/v5"
)

// plasmaScripter runs a Plasma desktop script.
type plasmaScripter interface {
	evaluateScript(ctx context.Context, script string) error
}

// dbusPlasma talks to plasmashell on the session bus.
type dbusPlasma struct{}

const (
	plasmaService  = "org.kde.plasmashell"
	plasmaPath     = "/PlasmaShell"
	plasmaEvaluate = "org.kde.PlasmaShell.evaluateScript"
)

func (dbusPlasma) evaluateScript(ctx context.Context, script string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	call := conn.Object(plasmaService, dbus.ObjectPath(plasmaPath)).CallWithContext(ctx, plasmaEvaluate, 0, script)
	if call.Err != nil {
		return fmt.Errorf("plasmashell evaluateScript: %w", call.Err)
	}
	return nil
}

// plasmaWallpaperScript sets an image on every Plasma desktop.
func plasmaWallpaperScript(path string) string {
	return fmt.Sprintf(`var allDesktops = desktops();
for (var i = 0; i < allDesktops.length; i++) {
    var d = allDesktops[i];
    d.wallpaperPlugin = "org.kde.image";
    d.currentConfigGroup = Array("Wallpaper", "org.kde.image", "General");
    d.writeConfig("Image", %s);
}`, strconv.Quote(fileURI(path)))
}
