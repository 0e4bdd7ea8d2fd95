package wallpaper

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("content"), 0644))
	return p
}

func TestVideoStartRunsRenderer(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}
	rec := newStateRecorder()
	path := tempFile(t, "a.mp4")

	w, err := New(Spec{Type: TypeVideo, Path: path, Options: Options{Loop: true}}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
		OnState:    rec.record,
	})
	require.NoError(t, err)
	assert.Equal(t, Stopped, w.State())

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, Running, w.State())
	assert.Equal(t, []State{Starting, Running}, rec.seen())

	h, ok := w.Process()
	require.True(t, ok)
	assert.NotZero(t, h.PID)
	assert.Equal(t, uint64(0x400001), h.WindowID)

	l := launcher.last()
	assert.Equal(t, "/usr/bin/mpv", l.path)
	assert.Contains(t, l.args, "--loop-file=inf")
	assert.Contains(t, l.args, "--no-audio")
	assert.Contains(t, l.args, "--wid=4194305")
	assert.Equal(t, path, l.args[len(l.args)-1])

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, Stopped, w.State())
	assert.Zero(t, launcher.live.Load())
	created, released := windows.counts()
	assert.Equal(t, created, released)
	_, ok = w.Process()
	assert.False(t, ok)
}

func TestVideoMissingRenderer(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}

	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 0),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, w.Check(), apperror.ErrExternalDependencyMissing)
	err = w.Start(context.Background())
	assert.ErrorIs(t, err, apperror.ErrExternalDependencyMissing)
	assert.Equal(t, Stopped, w.State())
	assert.Empty(t, launcher.all())
	created, _ := windows.counts()
	assert.Zero(t, created, "no surface may be created without a renderer")
}

func TestMissingContentIsConfigError(t *testing.T) {
	w, err := New(Spec{Type: TypeVideo, Path: filepath.Join(t.TempDir(), "gone.mp4")}, Deps{
		Windows:    &fakeWindows{},
		Supervisor: newTestSupervisor(newFakeLauncher(), 0, "mpv"),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Check(), apperror.ErrConfig)
}

func TestSurfaceFailureReleasesNothingExtra(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{createErr: apperror.New(apperror.KindWindowEmbed, "create surface", "no host")}

	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, w.Start(context.Background()), apperror.ErrWindowEmbed)
	assert.Equal(t, Stopped, w.State())
	assert.Empty(t, launcher.all())
}

func TestStopIsIdempotent(t *testing.T) {
	launcher := newFakeLauncher()
	w, err := New(Spec{Type: TypeVideo, Path: "a.mp4"}, Deps{
		Windows:    &fakeWindows{},
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
	})
	require.NoError(t, err)

	assert.NoError(t, w.Stop(context.Background()))
	assert.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, Stopped, w.State())
	assert.Empty(t, launcher.all(), "stop must not spawn anything")
}

func TestStopDuringStarting(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}
	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "x.mp4")}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 5*time.Second, "mpv"),
	})
	require.NoError(t, err)

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(context.Background()) }()

	select {
	case <-launcher.launched:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer was never launched")
	}
	assert.Equal(t, Starting, w.State())

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, Stopped, w.State())
	assert.Error(t, <-startErr)

	assert.Zero(t, launcher.live.Load(), "no renderer may outlive stop")
	created, released := windows.counts()
	assert.Equal(t, created, released)
}

func TestPauseResumeStateRules(t *testing.T) {
	launcher := newFakeLauncher()
	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    &fakeWindows{},
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, w.Pause(ctx), apperror.ErrInvalidState)
	assert.Equal(t, Stopped, w.State())

	require.NoError(t, w.Start(ctx))
	assert.ErrorIs(t, w.Resume(ctx), apperror.ErrInvalidState)
	assert.Equal(t, Running, w.State())

	proc := launcher.last().proc
	require.NoError(t, w.Pause(ctx))
	assert.Equal(t, Paused, w.State())
	assert.True(t, proc.isSuspended())
	assert.ErrorIs(t, w.Pause(ctx), apperror.ErrInvalidState)
	assert.ErrorIs(t, w.Start(ctx), apperror.ErrInvalidState)

	require.NoError(t, w.Resume(ctx))
	assert.Equal(t, Running, w.State())
	assert.False(t, proc.isSuspended())

	require.NoError(t, w.Stop(ctx))
}

func TestStaticUsesNativeSetter(t *testing.T) {
	native := new(MockNativeSetter)
	path := tempFile(t, "b.png")
	native.On("SetNative", mock.Anything, path).Return(nil).Once()

	w, err := New(Spec{Type: TypeStatic, Path: path}, Deps{Native: native})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Start(ctx))
	assert.Equal(t, Running, w.State())
	_, ok := w.Process()
	assert.False(t, ok)

	require.NoError(t, w.Pause(ctx))
	assert.Equal(t, Paused, w.State())
	require.NoError(t, w.Resume(ctx))
	assert.Equal(t, Running, w.State())
	require.NoError(t, w.Stop(ctx))
	assert.Equal(t, Stopped, w.State())

	native.AssertExpectations(t)
}

func TestStaticNativeFailure(t *testing.T) {
	native := new(MockNativeSetter)
	path := tempFile(t, "b.png")
	native.On("SetNative", mock.Anything, path).Return(errors.New("gsettings failed"))

	w, err := New(Spec{Type: TypeStatic, Path: path}, Deps{Native: native})
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
	assert.Equal(t, Stopped, w.State())
}

func TestStaticWithoutNativeSetterIsUnsupported(t *testing.T) {
	_, err := New(Spec{Type: TypeStatic, Path: "b.png"}, Deps{})
	assert.ErrorIs(t, err, apperror.ErrUnsupportedPlatform)
}

func TestCrashSurfacesFailure(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}
	failed := make(chan error, 1)

	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
		OnFailure:  func(_ Wallpaper, err error) { failed <- err },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	launcher.last().proc.die()

	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "exited unexpectedly")
	case <-time.After(2 * time.Second):
		t.Fatal("failure was not reported")
	}
	assert.Equal(t, Stopped, w.State())
	created, released := windows.counts()
	assert.Equal(t, created, released)
}

// crashingDriver reports a renderer failure before start returns.
type crashingDriver struct {
	stops int
}

func (d *crashingDriver) check() error { return nil }
func (d *crashingDriver) start(_ context.Context, onFailure func(error)) error {
	onFailure(errors.New("renderer exited with status 1"))
	return nil
}
func (d *crashingDriver) stop()                          { d.stops++ }
func (d *crashingDriver) pause() error                   { return nil }
func (d *crashingDriver) resume() error                  { return nil }
func (d *crashingDriver) handle() (process.Handle, bool) { return process.Handle{}, false }
func (d *crashingDriver) degraded() bool                 { return false }

func TestCrashWhileStartingFailsStart(t *testing.T) {
	rec := newStateRecorder()
	drv := &crashingDriver{}
	failures := 0
	w := &wallpaper{
		spec: Spec{Type: TypeVideo, Path: "/v/a.mp4"},
		drv:  drv,
		deps: Deps{
			OnState:   rec.record,
			OnFailure: func(Wallpaper, error) { failures++ },
		},
	}

	err := w.Start(context.Background())
	assert.ErrorContains(t, err, "renderer exited")
	assert.Equal(t, Stopped, w.State())
	assert.Equal(t, 1, drv.stops)
	assert.Zero(t, failures, "the error is returned by Start instead")
	assert.Equal(t, []State{Starting, Stopping, Stopped}, rec.seen())
}

func TestDegradedEmbeddingRunsFullscreen(t *testing.T) {
	launcher := newFakeLauncher()
	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    &fakeWindows{degraded: true},
		Supervisor: newTestSupervisor(launcher, 0, "mpv"),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	assert.True(t, w.Degraded())
	args := launcher.last().args
	assert.Contains(t, args, "--fs")
	assert.Contains(t, args, "--ontop")
	for _, a := range args {
		assert.False(t, strings.HasPrefix(a, "--wid="))
	}
}

func TestLayeredUsesMpvpaper(t *testing.T) {
	launcher := newFakeLauncher()
	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4"), Options: Options{Volume: 40}}, Deps{
		Windows:    &fakeWindows{layered: true},
		Supervisor: newTestSupervisor(launcher, 0, "mpvpaper"),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	l := launcher.last()
	assert.Equal(t, "/usr/bin/mpvpaper", l.path)
	require.Len(t, l.args, 4)
	assert.Equal(t, "-o", l.args[0])
	assert.Contains(t, l.args[1], "volume=40")
	assert.NotContains(t, l.args[1], "--")
	assert.Equal(t, "DP-1", l.args[2])
}

func TestWebAdoptsBrowserWindow(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}
	page := tempFile(t, "index.html")

	w, err := New(Spec{Type: TypeWeb, Path: page}, Deps{
		Windows:    windows,
		Supervisor: newTestSupervisor(launcher, 0, "chromium"),
		CacheDir:   t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	l := launcher.last()
	assert.Equal(t, []int{l.proc.pid}, windows.adopted)
	assert.Contains(t, l.args, "--kiosk")
	assert.True(t, strings.HasPrefix(l.args[0], "--app=file://"))

	h, ok := w.Process()
	require.True(t, ok)
	assert.Equal(t, uint64(0x500000+l.proc.pid), h.WindowID)

	require.NoError(t, w.Stop(context.Background()))
	assert.Zero(t, launcher.live.Load())
}

func TestWebReadoptsRelaunchedBrowser(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}

	w, err := New(Spec{Type: TypeWeb, Path: tempFile(t, "index.html")}, Deps{
		Windows:    windows,
		Supervisor: newPolicySupervisor(launcher, process.PolicyRestart, 0, "chromium"),
		CacheDir:   t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	first := launcher.last().proc
	first.die()

	require.Eventually(t, func() bool { return len(windows.adoptedPIDs()) == 2 }, 2*time.Second, 5*time.Millisecond)
	second := launcher.last().proc
	assert.Equal(t, []int{first.pid, second.pid}, windows.adoptedPIDs())
	assert.Equal(t, Running, w.State())

	h, ok := w.Process()
	require.True(t, ok)
	assert.Equal(t, second.pid, h.PID)
	assert.Equal(t, uint64(0x500000+second.pid), h.WindowID)

	require.NoError(t, w.Stop(context.Background()))
	created, released := windows.counts()
	assert.Equal(t, created, released)
	assert.Zero(t, launcher.live.Load())
}

func TestWebReadoptFailureSurfaces(t *testing.T) {
	launcher := newFakeLauncher()
	windows := &fakeWindows{}
	failed := make(chan error, 1)

	w, err := New(Spec{Type: TypeWeb, Path: tempFile(t, "index.html")}, Deps{
		Windows:    windows,
		Supervisor: newPolicySupervisor(launcher, process.PolicyRestart, 0, "chromium"),
		CacheDir:   t.TempDir(),
		OnFailure:  func(_ Wallpaper, err error) { failed <- err },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	windows.failAdopt(errors.New("no window for pid"))
	launcher.last().proc.die()

	select {
	case err := <-failed:
		assert.ErrorContains(t, err, "no window for pid")
	case <-time.After(2 * time.Second):
		t.Fatal("failed re-adoption was not reported")
	}
	assert.Equal(t, Stopped, w.State())
	assert.Eventually(t, func() bool { return launcher.live.Load() == 0 }, time.Second, 5*time.Millisecond)
	created, released := windows.counts()
	assert.Equal(t, created, released)
}

func TestWebUnsupportedOnLayeredSession(t *testing.T) {
	w, err := New(Spec{Type: TypeWeb, Path: "https://example.com"}, Deps{
		Windows:    &fakeWindows{layered: true},
		Supervisor: newTestSupervisor(newFakeLauncher(), 0, "chromium"),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Start(context.Background()), apperror.ErrUnsupportedPlatform)
	assert.Equal(t, Stopped, w.State())
}

// Random interleavings of lifecycle calls never leave more than one renderer alive.
func TestAtMostOneRendererAlive(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.launched = make(chan struct{}, 4096)
	w, err := New(Spec{Type: TypeVideo, Path: tempFile(t, "a.mp4")}, Deps{
		Windows:    &fakeWindows{},
		Supervisor: newTestSupervisor(launcher, time.Millisecond, "mpv"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	ops := []func(context.Context) error{w.Start, w.Stop, w.Pause, w.Resume}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				_ = ops[r.Intn(len(ops))](ctx)
			}
		}(int64(g))
	}
	wg.Wait()

	require.NoError(t, w.Stop(ctx))
	assert.LessOrEqual(t, launcher.maxLive.Load(), int32(1))
	assert.Zero(t, launcher.live.Load())
}
