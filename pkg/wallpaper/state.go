package wallpaper

import "fmt"

// State is a wallpaper lifecycle state.
//
//	Stopped -> Starting -> Running <-> Paused -> Stopping -> Stopped
type State int

// Lifecycle states.
const (
	Stopped State = iota
	Starting
	Running
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for v := Stopped; v <= Stopping; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown wallpaper state %q", b)
}

// Active reports whether the state holds resources.
func (s State) Active() bool {
	return s != Stopped
}
