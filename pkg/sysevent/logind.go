package sysevent

import (
	"github.com/godbus/dbus/v5"

	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
)

const (
	logindManager = "org.freedesktop.login1.Manager"
	logindSession = "org.freedesktop.login1.Session"
)

// translate maps a logind signal to a schedule event.
func translate(sig *dbus.Signal) (string, bool) {
	switch sig.Name {
	case logindManager + ".PrepareForSleep":
		// The signal fires with true before sleep and false after waking.
		if len(sig.Body) == 1 {
			if sleeping, ok := sig.Body[0].(bool); ok && !sleeping {
				return schedule.EventResume, true
			}
		}
	case logindSession + ".Lock":
		return schedule.EventLock, true
	case logindSession + ".Unlock":
		return schedule.EventUnlock, true
	}
	return "", false
}
