package desktop

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
)

// layerBackend serves Wayland sessions. Compositors there do not allow foreign
// windows to be reparented, so renderers draw their own wlr-layer-shell
// background surface and the backend only tells them which outputs to cover.
type layerBackend struct {
	hyprland bool
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (b *layerBackend) name() string  { return "wayland-layer" }
func (b *layerBackend) layered() bool { return true }

func (b *layerBackend) outputs(ctx context.Context) ([]string, error) {
	if !b.hyprland {
		return []string{"*"}, nil
	}
	out, err := b.run(ctx, "hyprctl", "monitors", "-j")
	if err != nil {
		return nil, fmt.Errorf("hyprctl monitors: %w", err)
	}
	monitors, err := ParseHyprlandMonitors(out)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(monitors))
	for _, m := range monitors {
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return []string{"*"}, nil
	}
	return names, nil
}

func (b *layerBackend) findHost(context.Context) (Host, error) {
	return Host{}, apperror.Unsupported("locate desktop host", b.name())
}

func (b *layerBackend) screen() (Rect, error) {
	return Rect{}, apperror.Unsupported("screen bounds", b.name())
}

func (b *layerBackend) createSurface(Host, Rect) (surface, error) {
	return nil, apperror.Unsupported("create surface", b.name())
}

func (b *layerBackend) adopt(int, Host, Rect) (surface, error) {
	return nil, apperror.Unsupported("adopt window", b.name())
}

// Monitor is an output reported by `hyprctl monitors -j`.
type Monitor struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Focused bool   `json:"focused"`
}

// ParseHyprlandMonitors decodes the JSON output of `hyprctl monitors -j`.
func ParseHyprlandMonitors(data []byte) ([]Monitor, error) {
	var monitors []Monitor
	if err := json.Unmarshal(data, &monitors); err != nil {
		return nil, fmt.Errorf("parse hyprctl monitors: %w", err)
	}
	return monitors, nil
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
