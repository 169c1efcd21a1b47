package playback

import "time"

// Clock is the single time source for playback runners. Tests install a
// fake; production uses the system clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }
