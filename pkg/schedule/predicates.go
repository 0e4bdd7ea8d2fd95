package schedule

import "time"

// Built-in predicate ids for Custom triggers.
const (
	PredicateDaytime   = "daytime"
	PredicateNighttime = "nighttime"
)

// Day runs from 06:00 to 18:00 local time.
const (
	dayStartHour = 6
	dayEndHour   = 18
)

func isDaytime(now time.Time) bool {
	h := now.Hour()
	return h >= dayStartHour && h < dayEndHour
}

// RegisterBuiltins registers the predicates every daemon provides.
func RegisterBuiltins(s *Scheduler) {
	s.RegisterPredicate(PredicateDaytime, isDaytime)
	s.RegisterPredicate(PredicateNighttime, func(now time.Time) bool { return !isDaytime(now) })
}
