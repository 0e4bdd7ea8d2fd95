// Package hotkey binds global keyboard shortcuts to engine actions.
package hotkey

import (
	"context"
	"time"

	"golang.design/x/hotkey"
	"golang.org/x/time/rate"

	"github.com/dixieflatline76/AetherDesk/util/log"
)

// Actions are the engine operations reachable from the keyboard.
type Actions interface {
	TogglePause(ctx context.Context) error
	Stop(ctx context.Context) error
}

// debounce is the minimum gap between two handled presses of one shortcut.
const debounce = 200 * time.Millisecond

type binding struct {
	name   string
	mods   []hotkey.Modifier
	key    hotkey.Key
	action func(ctx context.Context) error
}

func bindings(a Actions) []binding {
	return []binding{
		// Ctrl + Alt + Up Arrow (Pause/Resume)
		{name: "Pause/Resume Wallpaper", mods: []hotkey.Modifier{modCtrl, modAlt}, key: keyUp, action: a.TogglePause},
		// Ctrl + Alt + Down Arrow (Stop)
		{name: "Stop Wallpaper", mods: []hotkey.Modifier{modCtrl, modAlt}, key: keyDown, action: a.Stop},
	}
}

// Listen registers the global hotkeys and runs their actions until ctx is done.
// Shortcuts that cannot be registered are logged and skipped.
func Listen(ctx context.Context, a Actions) error {
	if !supported {
		log.Print("Global hotkeys are not supported on this platform")
		<-ctx.Done()
		return nil
	}

	done := make(chan struct{})
	registered := 0
	for _, b := range bindings(a) {
		hk := hotkey.New(b.mods, b.key)
		if err := hk.Register(); err != nil {
			log.Printf("Failed to register hotkey %s: %v", b.name, err)
			continue
		}
		log.Printf("Registered hotkey: %s", b.name)
		registered++
		go func() {
			dispatch(ctx, b, hk.Keydown())
			if err := hk.Unregister(); err != nil {
				log.Debugf("Unregistering hotkey %s: %v", b.name, err)
			}
			done <- struct{}{}
		}()
	}

	<-ctx.Done()
	for i := 0; i < registered; i++ {
		<-done
	}
	return nil
}

// dispatch runs b.action for every press on keydown, dropping presses that
// arrive within the debounce window.
func dispatch(ctx context.Context, b binding, keydown <-chan hotkey.Event) {
	limiter := rate.NewLimiter(rate.Every(debounce), 1)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			if !limiter.Allow() {
				log.Debugf("Hotkey %s debounced", b.name)
				continue
			}
			log.Debugf("Hotkey pressed: %s", b.name)
			if err := b.action(ctx); err != nil {
				log.Printf("Hotkey %s: %v", b.name, err)
			}
		}
	}
}
