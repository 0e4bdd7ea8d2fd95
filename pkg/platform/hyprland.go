package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// hyprlandNative drives hyprpaper through hyprctl, with swww as fallback.
type hyprlandNative struct {
	run Runner
}

func (h *hyprlandNative) monitors(ctx context.Context) ([]string, error) {
	out, err := h.run.Run(ctx, "hyprctl", "monitors", "-j")
	if err != nil {
		return nil, err
	}
	monitors, err := desktop.ParseHyprlandMonitors(out)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(monitors))
	for _, m := range monitors {
		names = append(names, m.Name)
	}
	return names, nil
}

func (h *hyprlandNative) set(ctx context.Context, path string) error {
	err := h.setHyprpaper(ctx, path)
	if err == nil {
		return nil
	}
	log.Printf("hyprpaper failed, trying swww: %v", err)

	if _, lerr := h.run.LookPath("swww"); lerr != nil {
		return fmt.Errorf("set wallpaper on hyprland: %w", err)
	}
	if _, serr := h.run.Run(ctx, "swww", "img", path); serr != nil {
		return fmt.Errorf("set wallpaper on hyprland: %w", errors.Join(err, serr))
	}
	return nil
}

func (h *hyprlandNative) setHyprpaper(ctx context.Context, path string) error {
	if _, err := h.run.Run(ctx, "hyprctl", "hyprpaper", "preload", path); err != nil {
		// Already preloaded images report an error too.
		log.Debugf("hyprpaper preload %s: %v", path, err)
	}

	monitors, err := h.monitors(ctx)
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		// An empty monitor name applies to every monitor.
		monitors = []string{""}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range monitors {
		target := m + "," + path
		g.Go(func() error {
			_, err := h.run.Run(gctx, "hyprctl", "hyprpaper", "wallpaper", target)
			return err
		})
	}
	return g.Wait()
}

// current parses `hyprctl hyprpaper listactive`, whose lines look like
// "DP-1 = /path/to/image.png".
func (h *hyprlandNative) current(ctx context.Context) (string, bool) {
	out, err := h.run.Run(ctx, "hyprctl", "hyprpaper", "listactive")
	if err != nil {
		return "", false
	}
	return parseListActive(string(out))
}

func parseListActive(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		_, p, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		if p = strings.TrimSpace(p); p != "" {
			return p, true
		}
	}
	return "", false
}

func (h *hyprlandNative) clear(ctx context.Context) error {
	_, err := h.run.Run(ctx, "hyprctl", "hyprpaper", "unload", "all")
	return err
}
