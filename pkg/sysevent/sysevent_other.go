//go:build !linux

package sysevent

import (
	"context"
	"runtime"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
)

// TODO: WTS session notifications (WM_WTSSESSION_CHANGE) and PBT_APMRESUMEAUTOMATIC for Windows lock/resume events.
func watch(ctx context.Context, n Notifier) error {
	return apperror.Unsupported("watch system events", runtime.GOOS)
}
