package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
)

// TriggerKind is the kind of condition that fires a schedule item.
type TriggerKind int

// Trigger kinds.
const (
	TriggerTime TriggerKind = iota
	TriggerInterval
	TriggerSystemEvent
	TriggerCustom
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerTime:
		return "time"
	case TriggerInterval:
		return "interval"
	case TriggerSystemEvent:
		return "event"
	case TriggerCustom:
		return "custom"
	}
	return "unknown"
}

// ParseTriggerKind maps a trigger kind name to a TriggerKind.
func ParseTriggerKind(s string) (TriggerKind, error) {
	for _, k := range []TriggerKind{TriggerTime, TriggerInterval, TriggerSystemEvent, TriggerCustom} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return TriggerTime, apperror.Config("parse trigger", "unknown trigger kind %q", s)
}

// System events understood by SystemEvent triggers.
const (
	EventStartup = "startup"
	EventResume  = "resume"
	EventLock    = "lock"
	EventUnlock  = "unlock"
)

// Trigger is the firing condition of a schedule item. Only the fields of its
// Kind are meaningful.
type Trigger struct {
	Kind      TriggerKind
	Hour      int
	Minute    int
	Every     time.Duration
	Event     string
	Predicate string
}

// At returns a trigger that fires daily at hh:mm local time.
func At(hour, minute int) Trigger {
	return Trigger{Kind: TriggerTime, Hour: hour, Minute: minute}
}

// Every returns a trigger that fires each time d has elapsed.
func Every(d time.Duration) Trigger {
	return Trigger{Kind: TriggerInterval, Every: d}
}

// OnEvent returns a trigger that fires once when the system event is observed.
func OnEvent(event string) Trigger {
	return Trigger{Kind: TriggerSystemEvent, Event: event}
}

// When returns a trigger that fires when the registered predicate turns true.
func When(predicate string) Trigger {
	return Trigger{Kind: TriggerCustom, Predicate: predicate}
}

// ParseClock parses "hh:mm".
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if ok {
		hour, err = strconv.Atoi(h)
		if err == nil {
			minute, err = strconv.Atoi(m)
		}
	}
	if !ok || err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, apperror.Config("parse time trigger", "invalid time %q, want hh:mm", s)
	}
	return hour, minute, nil
}

// Clock formats a time trigger as "hh:mm".
func (t Trigger) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t Trigger) String() string {
	switch t.Kind {
	case TriggerTime:
		return "at " + t.Clock()
	case TriggerInterval:
		return "every " + t.Every.String()
	case TriggerSystemEvent:
		return "on " + t.Event
	case TriggerCustom:
		return "when " + t.Predicate
	}
	return t.Kind.String()
}

// Validate rejects triggers that can never fire.
func (t Trigger) Validate() error {
	const op = "validate trigger"
	switch t.Kind {
	case TriggerTime:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return apperror.Config(op, "invalid time %s", t.Clock())
		}
	case TriggerInterval:
		if t.Every < time.Second {
			return apperror.Config(op, "interval %s is shorter than a second", t.Every)
		}
	case TriggerSystemEvent:
		switch t.Event {
		case EventStartup, EventResume, EventLock, EventUnlock:
		default:
			return apperror.Config(op, "unknown system event %q", t.Event)
		}
	case TriggerCustom:
		if t.Predicate == "" {
			return apperror.Config(op, "custom trigger needs a predicate id")
		}
	default:
		return apperror.Config(op, "unknown trigger kind %d", int(t.Kind))
	}
	return nil
}

// Item is a scheduled wallpaper switch.
type Item struct {
	ID      string
	Trigger Trigger
	Target  wallpaper.Spec
	Enabled bool
	// LastFired is zero until the item fires.
	LastFired time.Time
}

// Validate checks the trigger and the target.
func (it Item) Validate() error {
	if err := it.Trigger.Validate(); err != nil {
		return err
	}
	return it.Target.Validate()
}
