package playback

import (
	"sync"
	"time"

	"storyboard-studio/internal/domain"
)

// State is the synchronizer's finite-state machine position.
type State string

const (
	StateClosed        State = "closed"
	StateShowing       State = "showing"
	StateTransitioning State = "transitioning"
)

// Default timing: visual crossfade between scenes and the silence
// fallback that keeps the sequence from stalling on a scene with no media.
const (
	DefaultFade     = 600 * time.Millisecond
	DefaultFallback = domain.DefaultSceneSeconds * time.Second
)

// Synchronizer advances through the scene list, coordinating narration,
// background music, and optional video. It assumes every scene already
// has narration audio; the opening collaborator validates that.
type Synchronizer struct {
	mu sync.Mutex

	narration MediaPlayer
	music     MediaPlayer
	video     MediaPlayer
	clock     Clock

	fade     time.Duration
	fallback time.Duration

	scenes []domain.Scene
	index  int
	state  State
	timer  Timer
	epoch  uint64

	onClose func()
}

// NewSynchronizer wires the three media tracks and the timer source.
// onClose fires once per open session when playback tears down.
func NewSynchronizer(narration, music, video MediaPlayer, clock Clock, onClose func()) *Synchronizer {
	return &Synchronizer{
		narration: narration,
		music:     music,
		video:     video,
		clock:     clock,
		fade:      DefaultFade,
		fallback:  DefaultFallback,
		state:     StateClosed,
		onClose:   onClose,
	}
}

// SetTimings overrides fade and fallback durations; zero keeps defaults.
func (s *Synchronizer) SetTimings(fade, fallback time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fade > 0 {
		s.fade = fade
	}
	if fallback > 0 {
		s.fallback = fallback
	}
}

// State returns the current machine state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Index returns the currently shown scene index.
func (s *Synchronizer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Open starts playback from the first scene. Opening while already open
// restarts from the beginning.
func (s *Synchronizer) Open(scenes []domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		s.teardownLocked(false)
	}
	if len(scenes) == 0 {
		return
	}

	s.scenes = make([]domain.Scene, len(scenes))
	copy(s.scenes, scenes)
	s.index = 0
	s.state = StateShowing
	s.enterSceneLocked()
}

// Close tears playback down from any state, including mid-transition.
// It is idempotent and safe to invoke repeatedly.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(true)
}

// NarrationEnded handles the narration track's natural end event. The
// video end event takes precedence when the scene also has video.
func (s *Synchronizer) NarrationEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateShowing {
		return
	}
	if s.currentLocked().VideoURL != "" {
		return
	}
	s.advanceLocked()
}

// VideoEnded handles the video track's natural end event.
func (s *Synchronizer) VideoEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateShowing {
		return
	}
	s.advanceLocked()
}

func (s *Synchronizer) currentLocked() domain.Scene {
	if s.index < 0 || s.index >= len(s.scenes) {
		return domain.Scene{}
	}
	return s.scenes[s.index]
}

// enterSceneLocked applies the scene-entry rules for the current index.
func (s *Synchronizer) enterSceneLocked() {
	scene := s.currentLocked()

	if scene.BackgroundMusicURL != "" {
		// Idempotent start: an unchanged track keeps playing and only
		// its volume is resynced.
		if s.music.Source() != scene.BackgroundMusicURL {
			s.music.Load(scene.BackgroundMusicURL)
		}
		s.music.SetLoop(true)
		s.music.SetVolume(float64(scene.MusicVolume) / 100)
		s.music.Play()
	} else {
		s.music.Detach()
	}

	if scene.AudioURL != "" {
		s.narration.Load(scene.AudioURL)
		s.narration.SetVolume(float64(scene.SpeechVolume) / 100)
		s.narration.Play()
	}

	if scene.VideoURL != "" {
		s.video.Load(scene.VideoURL)
		s.video.Play()
	}

	if scene.AudioURL == "" && scene.VideoURL == "" {
		epoch := s.epoch
		s.timer = s.clock.AfterFunc(s.fallback, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.epoch != epoch || s.state != StateShowing {
				return
			}
			s.advanceLocked()
		})
	}
}

// advanceLocked moves to the next scene through a timed transition, or
// closes when the current scene is the last one. The current scene's
// media is torn down before the next scene's begins loading.
func (s *Synchronizer) advanceLocked() {
	s.stopTimerLocked()
	s.epoch++

	s.narration.Detach()
	s.video.Detach()

	if s.index >= len(s.scenes)-1 {
		s.teardownLocked(true)
		return
	}

	s.state = StateTransitioning
	epoch := s.epoch
	s.timer = s.clock.AfterFunc(s.fade, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.state != StateTransitioning {
			return
		}
		s.index++
		s.state = StateShowing
		s.enterSceneLocked()
	})
}

// teardownLocked pauses and detaches every track, cancels pending timers,
// and resets to the closed state. Safe from any state.
func (s *Synchronizer) teardownLocked(notify bool) {
	wasOpen := s.state != StateClosed

	s.stopTimerLocked()
	s.epoch++
	s.narration.Detach()
	s.music.Detach()
	s.video.Detach()
	s.index = 0
	s.scenes = nil
	s.state = StateClosed

	if notify && wasOpen && s.onClose != nil {
		// Release the lock for the callback: it dispatches back into
		// the store and must not re-enter while held.
		onClose := s.onClose
		s.mu.Unlock()
		onClose()
		s.mu.Lock()
	}
}

func (s *Synchronizer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
