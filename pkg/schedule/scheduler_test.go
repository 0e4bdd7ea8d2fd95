package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{now: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// recordingSwitcher records every switch; block, when set, holds each switch
// until it is closed.
type recordingSwitcher struct {
	mu      sync.Mutex
	specs   []wallpaper.Spec
	started chan wallpaper.Spec
	block   chan struct{}
}

func newRecordingSwitcher() *recordingSwitcher {
	return &recordingSwitcher{started: make(chan wallpaper.Spec, 16)}
}

func (r *recordingSwitcher) Switch(ctx context.Context, spec wallpaper.Spec) error {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	block := r.block
	r.mu.Unlock()
	r.started <- spec
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	return nil
}

func (r *recordingSwitcher) switched() []wallpaper.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wallpaper.Spec(nil), r.specs...)
}

var (
	staticB   = wallpaper.Spec{Type: wallpaper.TypeStatic, Path: "b.png"}
	staticC   = wallpaper.Spec{Type: wallpaper.TypeStatic, Path: "c.png"}
	videoA    = wallpaper.Spec{Type: wallpaper.TypeVideo, Path: "a.mp4"}
	startTime = time.Date(2026, 3, 14, 7, 0, 0, 0, time.Local)
)

func startedScheduler(t *testing.T, clock *manualClock, sw Switcher, opts Options) (*Scheduler, context.CancelFunc) {
	t.Helper()
	opts.Clock = clock
	if opts.Tick == 0 {
		opts.Tick = time.Hour // keep the real ticker out of the way
	}
	s := New(sw, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.started
	}, time.Second, time.Millisecond)
	return s, func() {
		cancel()
		<-done
	}
}

func TestIntervalFiresOncePerPeriod(t *testing.T) {
	clock := newManualClock(startTime)
	sw := newRecordingSwitcher()
	s, stop := startedScheduler(t, clock, sw, Options{})
	defer stop()

	_, err := s.Add(Item{Trigger: Every(2 * time.Hour), Target: staticB, Enabled: true})
	require.NoError(t, err)

	// Tick every simulated second for just under two hours: nothing fires.
	for i := 0; i < 2*3600-1; i++ {
		assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))
	}

	fired := s.Evaluate(clock.Advance(time.Second))
	require.Len(t, fired, 1)
	assert.Equal(t, "b.png", fired[0].Target.Path)

	// Re-evaluating the same instant and the following ticks does not fire again.
	assert.Empty(t, s.Evaluate(clock.Now()))
	assert.Empty(t, s.Evaluate(clock.Advance(time.Minute)))

	select {
	case spec := <-sw.started:
		assert.Equal(t, staticB, spec)
	case <-time.After(2 * time.Second):
		t.Fatal("switch was not issued")
	}
	assert.Len(t, sw.switched(), 1)

	// The next period counts from the firing, not from the start.
	clock.Advance(2*time.Hour - time.Minute)
	assert.Len(t, s.Evaluate(clock.Now()), 1)
}

func TestIntervalCountsFromLastFired(t *testing.T) {
	clock := newManualClock(startTime)
	s := New(newRecordingSwitcher(), Options{Clock: clock})
	last := startTime.Add(-90 * time.Minute)
	require.NoError(t, s.Load([]Item{{ID: "i", Trigger: Every(2 * time.Hour), Target: staticB, Enabled: true, LastFired: last}}))

	assert.Empty(t, s.Evaluate(startTime.Add(29*time.Minute)))
	assert.Len(t, s.Evaluate(startTime.Add(30*time.Minute)), 1)
}

func TestTimeTriggerOncePerDay(t *testing.T) {
	clock := newManualClock(time.Date(2026, 3, 14, 7, 59, 0, 0, time.Local))
	s := New(newRecordingSwitcher(), Options{Clock: clock})
	_, err := s.Add(Item{ID: "morning", Trigger: At(8, 0), Target: staticB, Enabled: true})
	require.NoError(t, err)

	assert.Empty(t, s.Evaluate(clock.Now()))

	fires := 0
	for i := 0; i < 120; i++ {
		fires += len(s.Evaluate(clock.Advance(time.Second)))
	}
	assert.Equal(t, 1, fires, "the 08:00 minute is ticked sixty times but fires once")

	// Next day at 08:00 fires again.
	next := time.Date(2026, 3, 15, 8, 0, 30, 0, time.Local)
	assert.Len(t, s.Evaluate(next), 1)
	assert.Empty(t, s.Evaluate(next.Add(time.Second)))

	items := s.Items()
	assert.Equal(t, next, items[0].LastFired)
}

func TestDisabledItemsNeverFireOrChange(t *testing.T) {
	clock := newManualClock(startTime)
	var changes int
	s := New(newRecordingSwitcher(), Options{Clock: clock, OnChange: func([]Item) { changes++ }})
	require.NoError(t, s.Load([]Item{
		{ID: "t", Trigger: At(7, 0), Target: staticB},
		{ID: "i", Trigger: Every(time.Minute), Target: staticB},
		{ID: "e", Trigger: OnEvent(EventStartup), Target: staticB},
	}))

	s.Notify(EventStartup)
	for i := 0; i < 600; i++ {
		assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))
	}
	for _, it := range s.Items() {
		assert.True(t, it.LastFired.IsZero(), it.ID)
	}
	assert.Zero(t, changes)
}

func TestSystemEventFiresOnceUntilRearmed(t *testing.T) {
	clock := newManualClock(startTime)
	s := New(newRecordingSwitcher(), Options{Clock: clock})
	_, err := s.Add(Item{ID: "wake", Trigger: OnEvent(EventResume), Target: videoA, Enabled: true})
	require.NoError(t, err)

	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)), "no event yet")

	s.Notify(EventResume)
	assert.Len(t, s.Evaluate(clock.Advance(time.Second)), 1)
	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))

	s.Notify(EventResume)
	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)), "consumed")

	require.NoError(t, s.Rearm("wake"))
	s.Notify(EventResume)
	assert.Len(t, s.Evaluate(clock.Advance(time.Second)), 1)

	s.Notify(EventLock)
	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)), "other events do not match")
}

func TestCustomPredicateIsEdgeTriggered(t *testing.T) {
	clock := newManualClock(startTime)
	s := New(newRecordingSwitcher(), Options{Clock: clock})
	var on bool
	s.RegisterPredicate("on-battery", func(time.Time) bool { return on })
	_, err := s.Add(Item{Trigger: When("on-battery"), Target: staticC, Enabled: true})
	require.NoError(t, err)

	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))
	on = true
	assert.Len(t, s.Evaluate(clock.Advance(time.Second)), 1)
	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))
	on = false
	assert.Empty(t, s.Evaluate(clock.Advance(time.Second)))
	on = true
	assert.Len(t, s.Evaluate(clock.Advance(time.Second)), 1)
}

func TestUnknownPredicateNeverFires(t *testing.T) {
	s := New(newRecordingSwitcher(), Options{Clock: newManualClock(startTime)})
	_, err := s.Add(Item{Trigger: When("nobody-registered-me"), Target: staticC, Enabled: true})
	require.NoError(t, err)
	assert.Empty(t, s.Evaluate(startTime.Add(time.Hour)))
}

func TestQueuedSwitchesAreLatestWins(t *testing.T) {
	clock := newManualClock(startTime)
	sw := newRecordingSwitcher()
	sw.block = make(chan struct{})
	s, stop := startedScheduler(t, clock, sw, Options{})
	defer stop()

	s.queue.put(videoA)
	select {
	case <-sw.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first switch not dispatched")
	}

	// While videoA is in flight two more commands arrive; only the newer survives.
	s.queue.put(staticB)
	s.queue.put(staticC)
	close(sw.block)

	select {
	case spec := <-sw.started:
		assert.Equal(t, staticC, spec)
	case <-time.After(2 * time.Second):
		t.Fatal("queued switch not dispatched")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []wallpaper.Spec{videoA, staticC}, sw.switched())
}

func TestItemCRUD(t *testing.T) {
	clock := newManualClock(startTime)
	var last []Item
	s := New(newRecordingSwitcher(), Options{Clock: clock, OnChange: func(items []Item) { last = items }})

	it, err := s.Add(Item{Trigger: Every(time.Hour), Target: staticB, Enabled: true})
	require.NoError(t, err)
	assert.NotEmpty(t, it.ID)
	require.Len(t, last, 1)

	_, err = s.Add(Item{ID: it.ID, Trigger: Every(time.Hour), Target: staticB})
	assert.ErrorIs(t, err, apperror.ErrConfig)

	_, err = s.Add(Item{Trigger: Every(time.Millisecond), Target: staticB})
	assert.ErrorIs(t, err, apperror.ErrConfig)
	_, err = s.Add(Item{Trigger: At(8, 0), Target: wallpaper.Spec{Type: wallpaper.TypeStatic}})
	assert.ErrorIs(t, err, apperror.ErrConfig)

	toggled, err := s.Toggle(it.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	it.Trigger = At(9, 30)
	it.Target = staticC
	require.NoError(t, s.Update(it))
	got := s.Items()[0]
	assert.Equal(t, "09:30", got.Trigger.Clock())
	assert.Equal(t, staticC, got.Target)
	assert.True(t, got.Enabled)

	assert.ErrorIs(t, s.Update(Item{ID: "missing", Trigger: At(1, 0), Target: staticB}), apperror.ErrConfig)
	_, err = s.Toggle("missing")
	assert.ErrorIs(t, err, apperror.ErrConfig)

	require.NoError(t, s.Remove(it.ID))
	assert.Empty(t, s.Items())
	assert.Empty(t, last)
	assert.ErrorIs(t, s.Remove(it.ID), apperror.ErrConfig)
}

func TestReenablingRearmsInterval(t *testing.T) {
	clock := newManualClock(startTime)
	s := New(newRecordingSwitcher(), Options{Clock: clock})
	it, err := s.Add(Item{Trigger: Every(time.Hour), Target: staticB, Enabled: true})
	require.NoError(t, err)

	_, err = s.Toggle(it.ID)
	require.NoError(t, err)
	clock.Advance(5 * time.Hour)
	_, err = s.Toggle(it.ID)
	require.NoError(t, err)

	assert.Empty(t, s.Evaluate(clock.Advance(59*time.Minute)))
	assert.Len(t, s.Evaluate(clock.Advance(time.Minute)), 1)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("08:05")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "8", "24:00", "12:60", "ab:cd", "-1:10"} {
		_, _, err := ParseClock(bad)
		assert.ErrorIs(t, err, apperror.ErrConfig, bad)
	}

	k, err := ParseTriggerKind("Interval")
	require.NoError(t, err)
	assert.Equal(t, TriggerInterval, k)
	_, err = ParseTriggerKind("cron")
	assert.Error(t, err)
}

func TestBuiltinPredicatesFireAtDayBoundaries(t *testing.T) {
	s := New(newRecordingSwitcher(), Options{})
	RegisterBuiltins(s)
	day := wallpaper.Spec{Type: wallpaper.TypeStatic, Path: "/i/day.jpg"}
	night := wallpaper.Spec{Type: wallpaper.TypeStatic, Path: "/i/night.jpg"}
	_, err := s.Add(Item{Trigger: When(PredicateDaytime), Target: day, Enabled: true})
	require.NoError(t, err)
	_, err = s.Add(Item{Trigger: When(PredicateNighttime), Target: night, Enabled: true})
	require.NoError(t, err)

	base := time.Date(2026, 5, 4, 5, 59, 0, 0, time.Local)
	fired := s.Evaluate(base)
	require.Len(t, fired, 1)
	assert.Equal(t, night.Path, fired[0].Target.Path)

	fired = s.Evaluate(base.Add(time.Minute))
	require.Len(t, fired, 1)
	assert.Equal(t, day.Path, fired[0].Target.Path)

	assert.Empty(t, s.Evaluate(base.Add(2*time.Hour)))

	fired = s.Evaluate(time.Date(2026, 5, 4, 18, 0, 0, 0, time.Local))
	require.Len(t, fired, 1)
	assert.Equal(t, night.Path, fired[0].Target.Path)
}
