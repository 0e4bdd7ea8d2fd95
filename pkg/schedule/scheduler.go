// Package schedule evaluates wallpaper schedule items on a fixed tick and
// issues switch commands for the items whose triggers fire.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// Switcher applies a wallpaper on behalf of the scheduler. Switch may block
// while another switch is in flight.
type Switcher interface {
	Switch(ctx context.Context, spec wallpaper.Spec) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Predicate is a custom trigger condition, evaluated every tick.
type Predicate func(now time.Time) bool

// Options configures a Scheduler.
type Options struct {
	// Tick is the evaluation period. Defaults to one second.
	Tick  time.Duration
	Clock Clock
	// OnChange receives a snapshot of all items after any change, including
	// LastFired updates. It is called without internal locks held.
	OnChange func(items []Item)
}

// entry is an item plus the evaluation state that is not persisted.
type entry struct {
	item Item
	// armedAt is the reference point of an interval that has not fired since
	// it was added, enabled or the scheduler started.
	armedAt time.Time
	// consumed marks a system-event item that already fired.
	consumed bool
	// predicateWas is the last predicate result, for edge detection.
	predicateWas bool
}

// Scheduler owns an ordered set of schedule items.
type Scheduler struct {
	switcher Switcher
	opts     Options
	queue    *latestQueue

	mu         sync.Mutex
	entries    []*entry
	predicates map[string]Predicate
	events     map[string]bool
	started    bool
}

// New creates a Scheduler that issues switches through sw.
func New(sw Switcher, opts Options) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	return &Scheduler{
		switcher:   sw,
		opts:       opts,
		queue:      newLatestQueue(),
		predicates: make(map[string]Predicate),
		events:     make(map[string]bool),
	}
}

// Load replaces the item set, typically with persisted items before Run.
func (s *Scheduler) Load(items []Item) error {
	entries := make([]*entry, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if seen[it.ID] {
			return apperror.Config("load schedule", "duplicate item id %s", it.ID)
		}
		seen[it.ID] = true
		if err := it.Validate(); err != nil {
			return err
		}
		it.Target = it.Target.Clone()
		entries = append(entries, &entry{item: it})
	}

	s.mu.Lock()
	s.entries = entries
	if s.started {
		now := s.opts.Clock.Now()
		for _, e := range entries {
			e.armedAt = now
		}
	}
	s.mu.Unlock()
	return nil
}

// RegisterPredicate makes fn available to Custom triggers under id.
func (s *Scheduler) RegisterPredicate(id string, fn Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predicates[id] = fn
}

func (s *Scheduler) find(id string) (int, *entry) {
	for i, e := range s.entries {
		if e.item.ID == id {
			return i, e
		}
	}
	return -1, nil
}

func (s *Scheduler) snapshotLocked() []Item {
	items := make([]Item, len(s.entries))
	for i, e := range s.entries {
		items[i] = e.item
		items[i].Target = e.item.Target.Clone()
	}
	return items
}

func (s *Scheduler) changed(items []Item) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(items)
	}
}

// Items returns a copy of the item set in order.
func (s *Scheduler) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Add appends an item. An empty ID is replaced by a fresh UUID.
func (s *Scheduler) Add(it Item) (Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	it.Target = it.Target.Clone()

	s.mu.Lock()
	if _, e := s.find(it.ID); e != nil {
		s.mu.Unlock()
		return Item{}, apperror.Config("add schedule item", "duplicate item id %s", it.ID)
	}
	s.entries = append(s.entries, &entry{item: it, armedAt: s.opts.Clock.Now()})
	items := s.snapshotLocked()
	s.mu.Unlock()

	log.Printf("Schedule item %s added: %s -> %s", it.ID, it.Trigger, it.Target)
	s.changed(items)
	return it, nil
}

// Update replaces the trigger, target and enabled flag of an existing item and
// re-arms it. LastFired is kept unless the trigger changed.
func (s *Scheduler) Update(it Item) error {
	if err := it.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	_, e := s.find(it.ID)
	if e == nil {
		s.mu.Unlock()
		return apperror.Config("update schedule item", "unknown item %s", it.ID)
	}
	if e.item.Trigger != it.Trigger {
		e.item.LastFired = time.Time{}
	}
	e.item.Trigger = it.Trigger
	e.item.Target = it.Target.Clone()
	e.item.Enabled = it.Enabled
	e.armedAt = s.opts.Clock.Now()
	e.consumed = false
	e.predicateWas = false
	items := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(items)
	return nil
}

// Remove deletes an item.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	i, e := s.find(id)
	if e == nil {
		s.mu.Unlock()
		return apperror.Config("remove schedule item", "unknown item %s", id)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	items := s.snapshotLocked()
	s.mu.Unlock()

	log.Printf("Schedule item %s removed", id)
	s.changed(items)
	return nil
}

// Toggle flips an item's enabled flag. Enabling re-arms the item.
func (s *Scheduler) Toggle(id string) (Item, error) {
	s.mu.Lock()
	_, e := s.find(id)
	if e == nil {
		s.mu.Unlock()
		return Item{}, apperror.Config("toggle schedule item", "unknown item %s", id)
	}
	e.item.Enabled = !e.item.Enabled
	if e.item.Enabled {
		e.armedAt = s.opts.Clock.Now()
		e.consumed = false
		e.predicateWas = false
	}
	it := e.item
	items := s.snapshotLocked()
	s.mu.Unlock()

	log.Printf("Schedule item %s enabled=%v", id, it.Enabled)
	s.changed(items)
	return it, nil
}

// Rearm lets a consumed system-event item fire again.
func (s *Scheduler) Rearm(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, e := s.find(id)
	if e == nil {
		return apperror.Config("rearm schedule item", "unknown item %s", id)
	}
	e.consumed = false
	log.Printf("Schedule item %s re-armed", id)
	return nil
}

// Notify records an observed system event. Matching items fire on the next
// tick.
func (s *Scheduler) Notify(event string) {
	s.mu.Lock()
	s.events[event] = true
	s.mu.Unlock()
	log.Debugf("Schedule: observed system event %s", event)
}

// Run evaluates triggers every tick and dispatches switches until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	now := s.opts.Clock.Now()
	for _, e := range s.entries {
		if e.item.LastFired.IsZero() {
			e.armedAt = now
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()

	log.Printf("Scheduler started (tick %s)", s.opts.Tick)
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Print("Scheduler stopped.")
			return nil
		case <-ticker.C:
			s.Evaluate(s.opts.Clock.Now())
		}
	}
}

// dispatch forwards queued switches to the switcher one at a time.
func (s *Scheduler) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.queue.ready():
		}
		spec, ok := s.queue.take()
		if !ok {
			continue
		}
		if err := s.switcher.Switch(ctx, spec); err != nil {
			log.Printf("Scheduled switch to %s failed: %v", spec, err)
		}
	}
}

// Evaluate runs one tick at now: it fires every due item, queues their
// targets and returns the fired items in order. When several items fire in
// the same tick the last one wins the queue.
func (s *Scheduler) Evaluate(now time.Time) []Item {
	s.mu.Lock()
	events := s.events
	s.events = make(map[string]bool)

	var fired []Item
	for _, e := range s.entries {
		if !e.item.Enabled {
			continue
		}
		if s.dueLocked(e, now, events) {
			if now.After(e.item.LastFired) {
				e.item.LastFired = now
			}
			fired = append(fired, e.item)
		}
	}
	var items []Item
	if len(fired) > 0 {
		items = s.snapshotLocked()
	}
	s.mu.Unlock()

	for _, it := range fired {
		log.Printf("Schedule item %s fired (%s) -> %s", it.ID, it.Trigger, it.Target)
		s.queue.put(it.Target.Clone())
	}
	if items != nil {
		s.changed(items)
	}
	return fired
}

func (s *Scheduler) dueLocked(e *entry, now time.Time, events map[string]bool) bool {
	t := e.item.Trigger
	switch t.Kind {
	case TriggerTime:
		if now.Hour() != t.Hour || now.Minute() != t.Minute {
			return false
		}
		return !sameDay(e.item.LastFired, now)

	case TriggerInterval:
		base := e.item.LastFired
		if e.armedAt.After(base) {
			base = e.armedAt
		}
		if base.IsZero() {
			// Never fired and not armed yet: start counting now.
			e.armedAt = now
			return false
		}
		return now.Sub(base) >= t.Every

	case TriggerSystemEvent:
		if e.consumed || !events[t.Event] {
			return false
		}
		e.consumed = true
		return true

	case TriggerCustom:
		fn, ok := s.predicates[t.Predicate]
		if !ok {
			return false
		}
		v := fn(now)
		was := e.predicateWas
		e.predicateWas = v
		return v && !was
	}
	return false
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
