package store

import (
	"sync"

	"storyboard-studio/internal/domain"
)

// Listener observes each state produced by a dispatch. The sequence
// number is assigned under the store lock, so a consumer receiving
// snapshots out of order can drop any whose seq is below the highest
// it has already applied.
type Listener func(seq int64, state domain.ProjectState)

// Store is the single-writer project state cell. All mutation funnels
// through Dispatch, which serializes interleaved async completions.
type Store struct {
	mu       sync.RWMutex
	state    domain.ProjectState
	seq      int64
	ids      *IDAllocator
	listener Listener
}

// New creates a store holding the empty project.
func New() *Store {
	return &Store{
		state: InitialState(),
		ids:   NewIDAllocator(),
	}
}

// SetListener registers a single observer notified after each dispatch.
func (s *Store) SetListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Dispatch applies one action and returns the resulting state snapshot.
// AddToast actions get their id assigned here so the reducer stays pure.
func (s *Store) Dispatch(action Action) domain.ProjectState {
	s.mu.Lock()
	if add, ok := action.(AddToast); ok && add.Toast.ID == 0 {
		add.Toast.ID = s.ids.Next()
		action = add
	}
	s.state = apply(s.state, action)
	s.seq++
	seq := s.seq
	snapshot := cloneState(s.state)
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(seq, snapshot)
	}
	return snapshot
}

// BeginGeneration claims the given asset flag for a scene: it flips the
// flag from idle to in-progress and clears the prior error in a single
// step under the store lock, so exactly one of several concurrent
// callers wins the claim. found reports whether the scene exists,
// claimed whether this caller won; the snapshot reflects the claim.
func (s *Store) BeginGeneration(sceneID int64, kind domain.AssetKind) (snapshot domain.ProjectState, found, claimed bool) {
	s.mu.Lock()
	idx := -1
	for i := range s.state.Scenes {
		if s.state.Scenes[i].ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		snapshot = cloneState(s.state)
		s.mu.Unlock()
		return snapshot, false, false
	}

	scene := &s.state.Scenes[idx]
	switch kind {
	case domain.AssetImage:
		if scene.ImageFlag == domain.FlagInProgress {
			snapshot = cloneState(s.state)
			s.mu.Unlock()
			return snapshot, true, false
		}
		scene.ImageFlag = domain.FlagInProgress
		scene.ImageError = ""
	case domain.AssetVideo:
		if scene.VideoFlag == domain.FlagInProgress {
			snapshot = cloneState(s.state)
			s.mu.Unlock()
			return snapshot, true, false
		}
		scene.VideoFlag = domain.FlagInProgress
		scene.VideoError = ""
	case domain.AssetAudio:
		if scene.AudioFlag == domain.FlagInProgress {
			snapshot = cloneState(s.state)
			s.mu.Unlock()
			return snapshot, true, false
		}
		scene.AudioFlag = domain.FlagInProgress
		scene.AudioError = ""
	}

	s.seq++
	seq := s.seq
	snapshot = cloneState(s.state)
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(seq, snapshot)
	}
	return snapshot, true, true
}

// State returns a snapshot of the current project state.
func (s *Store) State() domain.ProjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// NextID allocates a fresh monotonic id for scenes and toasts.
func (s *Store) NextID() int64 {
	return s.ids.Next()
}

// cloneState deep-copies the slices so callers cannot alias the cell.
func cloneState(state domain.ProjectState) domain.ProjectState {
	out := state
	if state.Characters != nil {
		out.Characters = make([]domain.Character, len(state.Characters))
		copy(out.Characters, state.Characters)
	}
	if state.Scenes != nil {
		out.Scenes = make([]domain.Scene, len(state.Scenes))
		copy(out.Scenes, state.Scenes)
		for i := range out.Scenes {
			if state.Scenes[i].Parts != nil {
				parts := make([]domain.NarrationPart, len(state.Scenes[i].Parts))
				copy(parts, state.Scenes[i].Parts)
				out.Scenes[i].Parts = parts
			}
		}
	}
	if state.Toasts != nil {
		out.Toasts = make([]domain.Toast, len(state.Toasts))
		copy(out.Toasts, state.Toasts)
	}
	return out
}
