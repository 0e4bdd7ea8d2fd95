package api

import (
	"context"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dixieflatline76/AetherDesk/pkg/engine"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
)

// MockController is a testify mock for the engine operations. Status and
// Subscribe are served from plain fields so tests can push updates.
type MockController struct {
	mock.Mock

	mu     sync.Mutex
	status engine.Status
	subs   []func(engine.Status)
}

func (m *MockController) Apply(ctx context.Context, spec wallpaper.Spec) error {
	return m.Called(spec).Error(0)
}

func (m *MockController) Stop(ctx context.Context) error   { return m.Called().Error(0) }
func (m *MockController) Pause(ctx context.Context) error  { return m.Called().Error(0) }
func (m *MockController) Resume(ctx context.Context) error { return m.Called().Error(0) }
func (m *MockController) Clear(ctx context.Context) error  { return m.Called().Error(0) }

func (m *MockController) Current(ctx context.Context) (string, bool) {
	args := m.Called()
	return args.String(0), args.Bool(1)
}

func (m *MockController) ScheduleItems() ([]schedule.Item, error) {
	args := m.Called()
	items, _ := args.Get(0).([]schedule.Item)
	return items, args.Error(1)
}

func (m *MockController) ScheduleAdd(it schedule.Item) (schedule.Item, error) {
	args := m.Called(it)
	return args.Get(0).(schedule.Item), args.Error(1)
}

func (m *MockController) ScheduleUpdate(it schedule.Item) error {
	return m.Called(it).Error(0)
}

func (m *MockController) ScheduleRemove(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockController) ScheduleRearm(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockController) ScheduleToggle(id string) (schedule.Item, error) {
	args := m.Called(id)
	return args.Get(0).(schedule.Item), args.Error(1)
}

func (m *MockController) Status() engine.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockController) Subscribe(fn func(engine.Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	return func() {}
}

// publish sets the status and notifies subscribers.
func (m *MockController) publish(st engine.Status) {
	m.mu.Lock()
	m.status = st
	subs := slices.Clone(m.subs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}
