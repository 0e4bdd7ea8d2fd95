package util

import "sync/atomic"

// Generation is a monotonically increasing counter used to tell the current
// operation apart from superseded ones. The zero value is ready to use.
type Generation struct {
	value atomic.Uint64
}

// Next advances the generation and returns the new value.
func (g *Generation) Next() uint64 {
	return g.value.Add(1)
}

// Current returns the latest generation.
func (g *Generation) Current() uint64 {
	return g.value.Load()
}

// IsCurrent reports whether gen is still the latest generation.
func (g *Generation) IsCurrent(gen uint64) bool {
	return g.value.Load() == gen
}

// SafeCounter is safe to use concurrently.
type SafeCounter struct {
	value atomic.Int32
}

// Increment increments the counter's value and returns the new value.
func (sc *SafeCounter) Increment() int {
	return int(sc.value.Add(1))
}

// Decrement decrements the counter's value and returns the new value.
func (sc *SafeCounter) Decrement() int {
	return int(sc.value.Add(-1))
}

// Set sets the value of the counter.
func (sc *SafeCounter) Set(newValue int) {
	sc.value.Store(int32(newValue))
}

// Value returns the current value of the counter.
func (sc *SafeCounter) Value() int {
	return int(sc.value.Load())
}

// SafeFlag is safe to use concurrently.
type SafeFlag struct {
	value atomic.Bool
}

// Set sets the value of the flag and returns the new value.
func (sf *SafeFlag) Set(newValue bool) bool {
	sf.value.Store(newValue)
	return newValue
}

// Value returns the current value of the flag.
func (sf *SafeFlag) Value() bool {
	return sf.value.Load()
}

// Toggle flips the flag and returns the new value.
func (sf *SafeFlag) Toggle() bool {
	for {
		old := sf.value.Load()
		if sf.value.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
