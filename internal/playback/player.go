// Package playback drives movie-mode playback over the ordered scene list.
package playback

import "time"

// MediaPlayer abstracts one playable media element (narration voice,
// background music, or generated video). Implementations deliver their
// natural end-of-playback events back to the synchronizer.
type MediaPlayer interface {
	Load(src string)
	Play()
	Pause()
	// Detach pauses and clears the current source.
	Detach()
	SetVolume(v float64)
	SetLoop(loop bool)
	Source() string
	Playing() bool
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks; injected so tests can fire them directly.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewClock returns the system clock.
func NewClock() Clock {
	return realClock{}
}
