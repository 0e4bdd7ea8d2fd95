//go:build linux

package sysinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// GetScreenDimensions returns the desktop dimensions on Linux. X11 (including
// XWayland) is asked directly; Hyprland is asked for its focused monitor; xdpyinfo
// is the last resort.
func GetScreenDimensions() (int, int, error) {
	if os.Getenv("DISPLAY") != "" {
		if w, h, err := x11Dimensions(); err == nil {
			return w, h, nil
		}
	}
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		if out, err := exec.Command("hyprctl", "monitors", "-j").Output(); err == nil {
			if w, h, err := parseHyprlandMonitors(out); err == nil {
				return w, h, nil
			}
		}
	}
	out, err := exec.Command("xdpyinfo").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get screen resolution: %w", err)
	}
	return parseXdpyinfo(string(out))
}

func x11Dimensions() (int, int, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return int(screen.WidthInPixels), int(screen.HeightInPixels), nil
}

// parseHyprlandMonitors returns the size of the focused monitor, or the first one.
func parseHyprlandMonitors(data []byte) (int, int, error) {
	var monitors []struct {
		Width   int  `json:"width"`
		Height  int  `json:"height"`
		Focused bool `json:"focused"`
	}
	if err := json.Unmarshal(data, &monitors); err != nil {
		return 0, 0, err
	}
	if len(monitors) == 0 {
		return 0, 0, fmt.Errorf("hyprctl reported no monitors")
	}
	for _, m := range monitors {
		if m.Focused {
			return m.Width, m.Height, nil
		}
	}
	return monitors[0].Width, monitors[0].Height, nil
}

// parseXdpyinfo extracts "dimensions:    1920x1080 pixels (508x285 millimeters)".
func parseXdpyinfo(out string) (int, int, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "dimensions:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		dims := strings.Split(parts[1], "x")
		if len(dims) != 2 {
			continue
		}
		width, werr := strconv.Atoi(dims[0])
		height, herr := strconv.Atoi(dims[1])
		if werr == nil && herr == nil {
			return width, height, nil
		}
	}
	return 0, 0, fmt.Errorf("failed to parse screen resolution")
}
