package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// strategy is one way of setting the wallpaper. tool is the binary it needs;
// strategies whose tool is missing are skipped.
type strategy struct {
	name string
	tool string
	set  func(ctx context.Context, path string) error
}

// linuxNative sets wallpapers through the desktop environment's own tool, then
// through generic X11/Wayland background setters.
type linuxNative struct {
	env  DesktopEnv
	run  Runner
	home string
	kde  plasmaScripter
}

func newLinuxNative(env DesktopEnv, run Runner, home string) *linuxNative {
	return &linuxNative{env: env, run: run, home: home, kde: dbusPlasma{}}
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func (l *linuxNative) exec(ctx context.Context, name string, args ...string) error {
	_, err := l.run.Run(ctx, name, args...)
	return err
}

// deStrategies are the desktop-environment specific setters, tried first.
func (l *linuxNative) deStrategies() []strategy {
	switch l.env {
	case EnvGNOME:
		return []strategy{{name: "gnome", tool: "gsettings", set: l.setGNOME}}
	case EnvCinnamon:
		return []strategy{{name: "cinnamon", tool: "gsettings", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "gsettings", "set", "org.cinnamon.desktop.background", "picture-uri", fileURI(path))
		}}}
	case EnvMATE:
		return []strategy{{name: "mate", tool: "gsettings", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "gsettings", "set", "org.mate.background", "picture-filename", path)
		}}}
	case EnvKDE:
		return []strategy{{name: "kde", set: func(ctx context.Context, path string) error {
			return l.kde.evaluateScript(ctx, plasmaWallpaperScript(path))
		}}}
	case EnvXFCE:
		return []strategy{{name: "xfce", tool: "xfconf-query", set: l.setXFCE}}
	case EnvSway:
		return []strategy{{name: "sway", tool: "swaymsg", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "swaymsg", "output", "*", "bg", path, "fill")
		}}}
	}
	return nil
}

// genericStrategies work across window managers.
func (l *linuxNative) genericStrategies() []strategy {
	return []strategy{
		{name: "feh", tool: "feh", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "feh", "--bg-fill", path)
		}},
		{name: "nitrogen", tool: "nitrogen", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "nitrogen", "--set-zoom-fill", "--save", path)
		}},
		{name: "xwallpaper", tool: "xwallpaper", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "xwallpaper", "--zoom", path)
		}},
		{name: "swww", tool: "swww", set: func(ctx context.Context, path string) error {
			return l.exec(ctx, "swww", "img", path)
		}},
	}
}

func (l *linuxNative) set(ctx context.Context, path string) error {
	strategies := append(l.deStrategies(), l.genericStrategies()...)

	var errs []error
	tried := 0
	for _, s := range strategies {
		if s.tool != "" {
			if _, err := l.run.LookPath(s.tool); err != nil {
				log.Debugf("Wallpaper strategy %s skipped: %s not installed", s.name, s.tool)
				continue
			}
		}
		tried++
		err := s.set(ctx, path)
		if err == nil {
			log.Debugf("Wallpaper set with %s", s.name)
			return nil
		}
		log.Printf("Wallpaper strategy %s failed: %v", s.name, err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if tried == 0 {
		tools := make([]string, 0, len(strategies))
		for _, s := range strategies {
			if s.tool != "" {
				tools = append(tools, s.tool)
			}
		}
		return apperror.Missing("set wallpaper", tools)
	}
	return fmt.Errorf("set wallpaper on %s: every strategy failed: %w", l.env, errors.Join(errs...))
}

func (l *linuxNative) setGNOME(ctx context.Context, path string) error {
	uri := fileURI(path)
	if err := l.exec(ctx, "gsettings", "set", "org.gnome.desktop.background", "picture-uri", uri); err != nil {
		return err
	}
	// picture-uri-dark only exists from GNOME 42 on.
	if err := l.exec(ctx, "gsettings", "set", "org.gnome.desktop.background", "picture-uri-dark", uri); err != nil {
		log.Debugf("gsettings picture-uri-dark: %v", err)
	}
	return nil
}

// setXFCE sets every last-image property, one per monitor and workspace.
func (l *linuxNative) setXFCE(ctx context.Context, path string) error {
	out, err := l.run.Run(ctx, "xfconf-query", "-c", "xfce4-desktop", "-l")
	if err != nil {
		return err
	}
	var props []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "/last-image") {
			props = append(props, line)
		}
	}
	if len(props) == 0 {
		return l.exec(ctx, "xfconf-query", "-c", "xfce4-desktop",
			"-p", "/backdrop/screen0/monitor0/workspace0/last-image", "-n", "-t", "string", "-s", path)
	}
	for _, p := range props {
		if err := l.exec(ctx, "xfconf-query", "-c", "xfce4-desktop", "-p", p, "-s", path); err != nil {
			return err
		}
	}
	return nil
}

func (l *linuxNative) current(ctx context.Context) (string, bool) {
	switch l.env {
	case EnvGNOME:
		return l.gsettingsGet(ctx, "org.gnome.desktop.background", "picture-uri")
	case EnvCinnamon:
		return l.gsettingsGet(ctx, "org.cinnamon.desktop.background", "picture-uri")
	case EnvMATE:
		return l.gsettingsGet(ctx, "org.mate.background", "picture-filename")
	case EnvXFCE:
		out, err := l.run.Run(ctx, "xfconf-query", "-c", "xfce4-desktop", "-p", "/backdrop/screen0/monitor0/workspace0/last-image")
		if err == nil {
			if p := strings.TrimSpace(string(out)); p != "" {
				return p, true
			}
		}
	case EnvKDE:
		return readPlasmaImage(filepath.Join(l.home, ".config", "plasma-org.kde.plasma.desktop-appletsrc"))
	}
	return readFehbg(filepath.Join(l.home, ".fehbg"))
}

func (l *linuxNative) gsettingsGet(ctx context.Context, schema, key string) (string, bool) {
	out, err := l.run.Run(ctx, "gsettings", "get", schema, key)
	if err != nil {
		return "", false
	}
	return parseGsettingsPath(string(out))
}

// parseGsettingsPath turns a gsettings string value such as 'file:///a%20b.png'
// into a filesystem path.
func parseGsettingsPath(v string) (string, bool) {
	v = strings.Trim(strings.TrimSpace(v), `'"`)
	if v == "" {
		return "", false
	}
	if strings.HasPrefix(v, "file://") {
		u, err := url.Parse(v)
		if err != nil {
			return "", false
		}
		v = u.Path
	}
	return v, v != ""
}

// readFehbg extracts the image from the script feh writes after --bg-*.
func readFehbg(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := lines[len(lines)-1]
	end := strings.LastIndex(last, "'")
	if end <= 0 {
		return "", false
	}
	start := strings.LastIndex(last[:end], "'")
	if start < 0 || start+1 >= end {
		return "", false
	}
	return last[start+1 : end], true
}

// readPlasmaImage reads the first image wallpaper from a Plasma appletsrc file.
func readPlasmaImage(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	inGroup := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "[") {
			inGroup = strings.HasSuffix(line, "[Wallpaper][org.kde.image][General]")
			continue
		}
		if inGroup && strings.HasPrefix(line, "Image=") {
			return parseGsettingsPath(strings.TrimPrefix(line, "Image="))
		}
	}
	return "", false
}

func (l *linuxNative) clear(ctx context.Context) error {
	var errs []error
	switch l.env {
	case EnvGNOME:
		err := l.exec(ctx, "gsettings", "set", "org.gnome.desktop.background", "picture-uri", "")
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	case EnvXFCE, EnvKDE, EnvMATE, EnvCinnamon, EnvSway:
		log.Debugf("No clear operation for %s, trying generic setters", l.env)
	}
	if _, err := l.run.LookPath("nitrogen"); err == nil {
		err := l.exec(ctx, "nitrogen", "--restore")
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return apperror.Unsupported("clear wallpaper", l.env.String())
	}
	return fmt.Errorf("clear wallpaper: %w", errors.Join(errs...))
}
