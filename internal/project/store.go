// Package project persists and exports project snapshots.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"storyboard-studio/internal/domain"
)

// Store defines persistence operations for project snapshots.
type Store interface {
	// Load returns the stored snapshot and whether one exists.
	Load() (domain.ProjectState, bool, error)
	Save(domain.ProjectState) error
	// Export streams the stored document unmodified.
	Export(w io.Writer) error
}

// JSONStore persists the snapshot in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed snapshot store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the stored snapshot. A missing file is not an error; it
// reports that no project has been saved yet.
func (s *JSONStore) Load() (domain.ProjectState, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ProjectState{}, false, nil
		}
		return domain.ProjectState{}, false, err
	}

	var state domain.ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.ProjectState{}, false, fmt.Errorf("parse project snapshot: %w", err)
	}
	if err := applyMixDefaults(data, &state); err != nil {
		return domain.ProjectState{}, false, fmt.Errorf("parse project snapshot: %w", err)
	}
	return state, true, nil
}

// applyMixDefaults fills in mix levels for documents written before the
// per-scene mix existed. Only an absent field gets the default; an
// explicit zero is a deliberate mute and stays zero.
func applyMixDefaults(data []byte, state *domain.ProjectState) error {
	var doc struct {
		Scenes []struct {
			MusicVolume  *int `json:"musicVolume"`
			SpeechVolume *int `json:"speechVolume"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for i := range state.Scenes {
		if i >= len(doc.Scenes) {
			break
		}
		if doc.Scenes[i].MusicVolume == nil {
			state.Scenes[i].MusicVolume = domain.DefaultMusicVolume
		}
		if doc.Scenes[i].SpeechVolume == nil {
			state.Scenes[i].SpeechVolume = domain.DefaultSpeechVolume
		}
	}
	return nil
}

// Save writes the snapshot as indented JSON, stripping transient fields
// so a reload never resumes in-flight work.
func (s *JSONStore) Save(state domain.ProjectState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(Sanitize(state), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Export copies the stored document to w, byte for byte.
func (s *JSONStore) Export(w io.Writer) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Sanitize returns a snapshot-ready copy: transient flags cleared and
// every generation flag back to idle. Toasts and the movie flag are
// excluded from serialization by the state type itself.
func Sanitize(state domain.ProjectState) domain.ProjectState {
	out := state
	out.StatusMessage = ""
	out.Err = ""
	out.Saving = false
	out.MovieOpen = false
	out.Toasts = nil

	out.Scenes = make([]domain.Scene, len(state.Scenes))
	copy(out.Scenes, state.Scenes)
	for i := range out.Scenes {
		out.Scenes[i].ImageFlag = domain.FlagIdle
		out.Scenes[i].VideoFlag = domain.FlagIdle
		out.Scenes[i].AudioFlag = domain.FlagIdle
	}
	return out
}
