// Package sysevent feeds operating-system notifications (startup, resume from
// sleep, session lock and unlock) to SystemEvent schedule triggers.
package sysevent

import (
	"context"

	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// Notifier receives event names such as schedule.EventResume.
type Notifier interface {
	Notify(event string)
}

// Watch reports the startup event, then forwards platform notifications to n
// until ctx is done. A missing event source is logged, not returned.
func Watch(ctx context.Context, n Notifier) error {
	n.Notify(schedule.EventStartup)
	if err := watch(ctx, n); err != nil {
		log.Printf("System events unavailable: %v", err)
		<-ctx.Done()
	}
	return nil
}
