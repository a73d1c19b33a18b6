package store

import "storyboard-studio/internal/domain"

// Action is one named transition of the project state. The vocabulary is
// closed: only types in this package implement it.
type Action interface {
	isAction()
}

// SetStep switches the active authoring screen.
type SetStep struct{ Step domain.AppStep }

// SetScriptText replaces the source script text.
type SetScriptText struct{ Text string }

// SetStatus replaces the transient status message.
type SetStatus struct{ Message string }

// SetError surfaces a global error and clears the status message.
type SetError struct{ Message string }

// StartAnalysis marks the character analysis stage as running.
type StartAnalysis struct{}

// AnalyzeSuccess stores the identified roster and advances to config.
type AnalyzeSuccess struct{ Characters []domain.Character }

// AnalyzeFailure surfaces an analysis error, leaving prior state untouched.
type AnalyzeFailure struct{ Message string }

// StartSceneGeneration marks the decomposition stage as running and
// advances to the scenes screen.
type StartSceneGeneration struct{}

// InitializeScenes replaces the scene sequence wholesale with freshly
// decomposed records. This is a hard reset of any prior scenes.
type InitializeScenes struct{ Scenes []domain.Scene }

// SceneGenerationComplete clears the stage status message.
type SceneGenerationComplete struct{}

// SceneGenerationFailure surfaces a decomposition error.
type SceneGenerationFailure struct{ Message string }

// ScenePatch is a shallow field-level patch for one scene. Nil fields are
// left unchanged, so concurrently resolving asset pipelines only touch
// their own fields.
type ScenePatch struct {
	ImageURL    *string
	ImagePrompt *string
	VideoURL    *string
	AudioURL    *string
	Duration    *float64

	ImageFlag *domain.GenerationFlag
	VideoFlag *domain.GenerationFlag
	AudioFlag *domain.GenerationFlag

	ImageError *string
	VideoError *string
	AudioError *string

	VideoJobID *string
}

// UpdateScene applies a patch to the scene with the given id. Unknown ids
// are a no-op: completions for deleted scenes vanish harmlessly.
type UpdateScene struct {
	SceneID int64
	Patch   ScenePatch
}

// ReorderScenes moves the scene at From to position To. Out-of-range
// indexes are a no-op.
type ReorderScenes struct{ From, To int }

// DeleteScene removes one scene by id.
type DeleteScene struct{ SceneID int64 }

// SetCharacterVoice assigns a palette voice to a named character.
type SetCharacterVoice struct {
	Name  string
	Voice string
}

// ConfigPatch carries optional style configuration updates.
type ConfigPatch struct {
	ImageStyle         *string
	ArtDirection       *string
	AspectRatio        *domain.AspectRatio
	IncludeTextInImage *bool
	NarratorVoice      *string
	Saving             *bool
	Saved              *bool
}

// SetConfig patches the global style configuration and save markers.
type SetConfig struct{ Patch ConfigPatch }

// MixPatch carries optional per-scene playback mix updates. Volume values
// must be validated to 0..100 by the caller before dispatch.
type MixPatch struct {
	BackgroundMusicURL *string
	MusicVolume        *int
	SpeechVolume       *int
}

// UpdateSceneMix patches one scene's background music and mix levels.
type UpdateSceneMix struct {
	SceneID int64
	Patch   MixPatch
}

// OpenMovie raises the movie-mode flag.
type OpenMovie struct{}

// CloseMovie clears the movie-mode flag.
type CloseMovie struct{}

// AddToast appends an ephemeral notification. ID is assigned by the
// dispatching store.
type AddToast struct{ Toast domain.Toast }

// RemoveToast drops one notification by id.
type RemoveToast struct{ ID int64 }

// LoadProject replaces the state wholesale from a deserialized snapshot.
// All generation flags are forced back to idle: in-flight work cannot
// survive a reload.
type LoadProject struct{ State domain.ProjectState }

// ResetProject returns the state to the empty value.
type ResetProject struct{}

// SetAPIKeyStatus records whether a generation credential is configured.
type SetAPIKeyStatus struct{ Present bool }

func (SetStep) isAction()                 {}
func (SetScriptText) isAction()           {}
func (SetStatus) isAction()               {}
func (SetError) isAction()                {}
func (StartAnalysis) isAction()           {}
func (AnalyzeSuccess) isAction()          {}
func (AnalyzeFailure) isAction()          {}
func (StartSceneGeneration) isAction()    {}
func (InitializeScenes) isAction()        {}
func (SceneGenerationComplete) isAction() {}
func (SceneGenerationFailure) isAction()  {}
func (UpdateScene) isAction()             {}
func (ReorderScenes) isAction()           {}
func (DeleteScene) isAction()             {}
func (SetCharacterVoice) isAction()       {}
func (SetConfig) isAction()               {}
func (UpdateSceneMix) isAction()          {}
func (OpenMovie) isAction()               {}
func (CloseMovie) isAction()              {}
func (AddToast) isAction()                {}
func (RemoveToast) isAction()             {}
func (LoadProject) isAction()             {}
func (ResetProject) isAction()            {}
func (SetAPIKeyStatus) isAction()         {}
