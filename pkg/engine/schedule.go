package engine

import (
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
)

// SetScheduler attaches the scheduler the Schedule* methods delegate to.
func (e *Engine) SetScheduler(s *schedule.Scheduler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched = s
}

func (e *Engine) scheduler(op string) (*schedule.Scheduler, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil {
		return nil, apperror.Config(op, "no scheduler attached")
	}
	return e.sched, nil
}

// ScheduleItems lists the schedule in order.
func (e *Engine) ScheduleItems() ([]schedule.Item, error) {
	s, err := e.scheduler("list schedule")
	if err != nil {
		return nil, err
	}
	return s.Items(), nil
}

// ScheduleAdd appends an item and returns it with its assigned ID.
func (e *Engine) ScheduleAdd(it schedule.Item) (schedule.Item, error) {
	s, err := e.scheduler("add schedule item")
	if err != nil {
		return schedule.Item{}, err
	}
	return s.Add(it)
}

// ScheduleUpdate replaces an existing item.
func (e *Engine) ScheduleUpdate(it schedule.Item) error {
	s, err := e.scheduler("update schedule item")
	if err != nil {
		return err
	}
	return s.Update(it)
}

// ScheduleRemove deletes an item.
func (e *Engine) ScheduleRemove(id string) error {
	s, err := e.scheduler("remove schedule item")
	if err != nil {
		return err
	}
	return s.Remove(id)
}

// ScheduleRearm lets a system-event item that already fired fire again.
func (e *Engine) ScheduleRearm(id string) error {
	s, err := e.scheduler("rearm schedule item")
	if err != nil {
		return err
	}
	return s.Rearm(id)
}

// ScheduleToggle flips an item's enabled flag.
func (e *Engine) ScheduleToggle(id string) (schedule.Item, error) {
	s, err := e.scheduler("toggle schedule item")
	if err != nil {
		return schedule.Item{}, err
	}
	return s.Toggle(id)
}
