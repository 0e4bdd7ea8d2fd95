package wallpaper

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// rendered drives an external renderer. In surface mode (video, shader, audio)
// the window manager creates the content window first and mpv draws into it;
// in adopt mode (web) the browser creates its own window and the window
// manager reparents it once it appears.
type rendered struct {
	spec  Spec
	deps  Deps
	adopt bool

	mu   sync.Mutex
	proc *process.Process
	emb  *desktop.Embedding
}

func (r *rendered) candidates() []string {
	switch {
	case r.adopt:
		return orDefault(r.deps.Renderers.Browser, DefaultBrowserRenderers)
	case r.deps.Windows.Layered():
		return orDefault(r.deps.Renderers.Layer, DefaultLayerRenderers)
	}
	return orDefault(r.deps.Renderers.Video, DefaultVideoRenderers)
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func (r *rendered) check() error {
	op := r.spec.Type.String() + " wallpaper"
	if r.adopt && r.deps.Windows.Layered() {
		return apperror.Unsupported(op, "wayland")
	}
	if !(r.spec.Type == TypeWeb && isURL(r.spec.Path)) {
		if _, err := os.Stat(r.spec.Path); err != nil {
			return apperror.Config(op, "content %s: %v", r.spec.Path, err)
		}
	}
	_, err := r.deps.Supervisor.Resolve(r.candidates())
	return err
}

func (r *rendered) start(ctx context.Context, onFailure func(error)) error {
	if err := r.check(); err != nil {
		return err
	}
	if r.adopt {
		return r.startAdopted(ctx, onFailure)
	}
	return r.startSurface(ctx, onFailure)
}

func (r *rendered) startSurface(ctx context.Context, onFailure func(error)) error {
	emb, err := r.deps.Windows.CreateSurface(ctx)
	if err != nil {
		return err
	}

	cmd := process.Command{Candidates: r.candidates()}
	if emb.Layer {
		width, height := defaultScreenWidth, defaultScreenHeight
		if r.deps.Screen != nil {
			if w, h, err := r.deps.Screen(); err == nil && w > 0 && h > 0 {
				width, height = w, h
			}
		}
		cmd.Args = layerArgs(r.spec, emb, width, height)
	} else {
		cmd.Args = mpvArgs(r.spec, emb)
		cmd.WindowID = uint64(emb.Window)
	}

	proc, err := r.deps.Supervisor.Spawn(ctx, cmd, onFailure)
	if err != nil {
		r.deps.Windows.Release(emb)
		return err
	}

	r.mu.Lock()
	r.proc, r.emb = proc, emb
	r.mu.Unlock()
	return nil
}

func (r *rendered) startAdopted(ctx context.Context, onFailure func(error)) error {
	binary, err := r.deps.Supervisor.Resolve(r.candidates())
	if err != nil {
		return err
	}
	target, err := pageURL(r.spec.Path)
	if err != nil {
		return apperror.Config("web wallpaper", "page %s: %v", r.spec.Path, err)
	}
	profile := filepath.Join(r.deps.CacheDir, "browser")
	if err := os.MkdirAll(profile, 0755); err != nil {
		return apperror.Wrap(apperror.KindProcessSpawn, "browser profile", err)
	}

	cmd := process.Command{
		Candidates: r.candidates(),
		Args:       browserArgs(binary, target, profile),
		OnRestart:  r.readopt,
	}
	proc, err := r.deps.Supervisor.Spawn(ctx, cmd, onFailure)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.proc = proc
	r.mu.Unlock()

	emb, err := r.deps.Windows.Adopt(ctx, proc.Handle().PID)
	if err != nil {
		r.stop()
		return err
	}

	r.mu.Lock()
	stale := r.emb != nil
	if !stale {
		r.emb = emb
	}
	r.mu.Unlock()
	if stale {
		// The browser was relaunched while we waited and readopt already
		// embedded the new window.
		r.deps.Windows.Release(emb)
	}
	return nil
}

// readopt embeds the window of a browser the supervisor relaunched after a
// crash. The old embedding belongs to a dead window.
func (r *rendered) readopt(ctx context.Context, h process.Handle) error {
	r.mu.Lock()
	old := r.emb
	r.emb = nil
	r.mu.Unlock()
	if old != nil {
		r.deps.Windows.Release(old)
	}

	emb, err := r.deps.Windows.Adopt(ctx, h.PID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.proc == nil {
		r.mu.Unlock()
		r.deps.Windows.Release(emb)
		return nil
	}
	prev := r.emb
	r.emb = emb
	r.mu.Unlock()
	if prev != nil {
		r.deps.Windows.Release(prev)
	}
	log.Printf("Re-embedded relaunched browser (pid %d)", h.PID)
	return nil
}

// stop disarms crash handling, tears the embedding down, then reaps the
// renderer.
func (r *rendered) stop() {
	r.mu.Lock()
	proc, emb := r.proc, r.emb
	r.proc, r.emb = nil, nil
	r.mu.Unlock()

	if proc != nil {
		proc.Disarm()
	}
	if emb != nil {
		r.deps.Windows.Release(emb)
	}
	if proc != nil {
		proc.Stop()
	}
}

func (r *rendered) pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return nil
	}
	return r.proc.Suspend()
}

func (r *rendered) resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return nil
	}
	return r.proc.Resume()
}

func (r *rendered) handle() (process.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return process.Handle{}, false
	}
	h := r.proc.Handle()
	if r.emb != nil && h.WindowID == 0 {
		h.WindowID = uint64(r.emb.Window)
	}
	return h, true
}

func (r *rendered) degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emb != nil && r.emb.Degraded
}
