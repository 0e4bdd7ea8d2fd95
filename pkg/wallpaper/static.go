package wallpaper

import (
	"context"
	"os"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// static hands an image to the OS wallpaper setting. There is no process to
// supervise, so pause and resume only move the state machine.
type static struct {
	spec Spec
	deps Deps
}

func (s *static) check() error {
	if _, err := os.Stat(s.spec.Path); err != nil {
		return apperror.Config("static wallpaper", "image %s: %v", s.spec.Path, err)
	}
	return nil
}

func (s *static) start(ctx context.Context, _ func(error)) error {
	if err := s.check(); err != nil {
		return err
	}
	path := s.spec.Path
	if s.spec.Options.Fit {
		fitted, err := s.fit()
		if err != nil {
			log.Printf("Fitting %s failed, using the original: %v", path, err)
		} else {
			path = fitted
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.deps.Native.SetNative(ctx, path); err != nil {
		return err
	}
	log.Debugf("Native wallpaper set to %s", path)
	return nil
}

func (s *static) fit() (string, error) {
	w, h := defaultScreenWidth, defaultScreenHeight
	if s.deps.Screen != nil {
		if sw, sh, err := s.deps.Screen(); err == nil && sw > 0 && sh > 0 {
			w, h = sw, sh
		} else if err != nil {
			log.Debugf("Screen size unavailable, fitting to %dx%d: %v", w, h, err)
		}
	}
	return FitImage(s.spec.Path, s.deps.CacheDir, w, h)
}

// stop leaves the OS wallpaper as it is; clearing it is a façade operation.
func (s *static) stop() {}

func (s *static) pause() error  { return nil }
func (s *static) resume() error { return nil }

func (s *static) handle() (process.Handle, bool) { return process.Handle{}, false }
func (s *static) degraded() bool                 { return false }
