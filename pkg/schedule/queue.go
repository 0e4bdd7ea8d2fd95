package schedule

import (
	"sync"

	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// latestQueue holds at most one pending switch. A newer command replaces the
// one still waiting, so a slow switch never builds a backlog.
type latestQueue struct {
	mu      sync.Mutex
	pending *wallpaper.Spec
	signal  chan struct{}
}

func newLatestQueue() *latestQueue {
	return &latestQueue{signal: make(chan struct{}, 1)}
}

func (q *latestQueue) put(spec wallpaper.Spec) {
	q.mu.Lock()
	if q.pending != nil {
		log.Debugf("Schedule: %s replaces queued %s", spec, q.pending)
	}
	q.pending = &spec
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *latestQueue) take() (wallpaper.Spec, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return wallpaper.Spec{}, false
	}
	spec := *q.pending
	q.pending = nil
	return spec, true
}

// ready is signalled after put.
func (q *latestQueue) ready() <-chan struct{} {
	return q.signal
}
