package engine

import (
	"sync"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
)

// Status is a snapshot of the active wallpaper slot.
type Status struct {
	State      wallpaper.State `json:"state"`
	Type       string          `json:"type,omitempty"`
	Path       string          `json:"path,omitempty"`
	Since      time.Time       `json:"since"`
	LastError  string          `json:"last_error,omitempty"`
	Generation uint64          `json:"generation"`
	Degraded   bool            `json:"degraded,omitempty"`
	PID        int             `json:"pid,omitempty"`
}

// listeners fans status changes out to subscribers.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Status)
}

func (l *listeners) add(fn func(Status)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Status))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) publish(s Status) {
	l.mu.Lock()
	fns := make([]func(Status), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
