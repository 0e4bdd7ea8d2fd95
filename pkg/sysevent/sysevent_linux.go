//go:build linux

package sysevent

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/dixieflatline76/AetherDesk/util/log"
)

func watch(ctx context.Context, n Notifier) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to the system bus: %w", err)
	}
	defer conn.Close()

	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(logindManager), dbus.WithMatchMember("PrepareForSleep")},
		{dbus.WithMatchInterface(logindSession), dbus.WithMatchMember("Lock")},
		{dbus.WithMatchInterface(logindSession), dbus.WithMatchMember("Unlock")},
	}
	for _, m := range matches {
		if err := conn.AddMatchSignalContext(ctx, m...); err != nil {
			return fmt.Errorf("failed to subscribe to logind: %w", err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)
	log.Print("Watching logind for sleep and lock events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("system bus closed")
			}
			if event, ok := translate(sig); ok {
				log.Debugf("System event %s from %s", event, sig.Path)
				n.Notify(event)
			}
		}
	}
}
