package store

import "storyboard-studio/internal/domain"

// InitialState returns the empty project created at process start.
func InitialState() domain.ProjectState {
	return domain.ProjectState{
		Step:          domain.StepInput,
		ImageStyle:    "Cinematic",
		ArtDirection:  "Saturated colors, dramatic noir lighting",
		AspectRatio:   domain.AspectLandscape,
		NarratorVoice: domain.DefaultNarratorVoice,
	}
}

// apply advances the state by one action. It is pure and total: every
// action is defined for every reachable state and nothing panics here.
// Payload validation happens in the calling component before dispatch.
func apply(state domain.ProjectState, action Action) domain.ProjectState {
	switch a := action.(type) {
	case SetStep:
		state.Step = a.Step
	case SetScriptText:
		state.ScriptText = a.Text
	case SetStatus:
		state.StatusMessage = a.Message
	case SetError:
		state.Err = a.Message
		state.StatusMessage = ""
	case StartAnalysis:
		state.StatusMessage = "Reading the soul of your story..."
		state.Err = ""
	case AnalyzeSuccess:
		state.Characters = a.Characters
		state.Step = domain.StepConfig
		state.StatusMessage = ""
	case AnalyzeFailure:
		state.Err = a.Message
		state.StatusMessage = ""
	case StartSceneGeneration:
		state.StatusMessage = "Drafting the visual storyboard..."
		state.Step = domain.StepScenes
		state.Err = ""
	case InitializeScenes:
		state.Scenes = a.Scenes
	case SceneGenerationComplete:
		state.StatusMessage = ""
	case SceneGenerationFailure:
		state.Err = a.Message
		state.StatusMessage = ""
	case UpdateScene:
		state.Scenes = patchScene(state.Scenes, a.SceneID, a.Patch)
	case ReorderScenes:
		state.Scenes = moveScene(state.Scenes, a.From, a.To)
	case DeleteScene:
		state.Scenes = deleteScene(state.Scenes, a.SceneID)
	case SetCharacterVoice:
		state.Characters = setVoice(state.Characters, a.Name, a.Voice)
	case SetConfig:
		state = patchConfig(state, a.Patch)
	case UpdateSceneMix:
		state.Scenes = patchMix(state.Scenes, a.SceneID, a.Patch)
	case OpenMovie:
		state.MovieOpen = true
	case CloseMovie:
		state.MovieOpen = false
	case AddToast:
		toasts := make([]domain.Toast, 0, len(state.Toasts)+1)
		toasts = append(toasts, state.Toasts...)
		state.Toasts = append(toasts, a.Toast)
	case RemoveToast:
		state.Toasts = removeToast(state.Toasts, a.ID)
	case LoadProject:
		state = sanitizeLoaded(a.State)
	case ResetProject:
		state = InitialState()
	case SetAPIKeyStatus:
		state.HasAPIKey = a.Present
	}
	return state
}

// patchScene merges non-nil patch fields into the matching scene. A
// missing scene id leaves the slice unchanged.
func patchScene(scenes []domain.Scene, id int64, patch ScenePatch) []domain.Scene {
	out := make([]domain.Scene, len(scenes))
	copy(out, scenes)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		s := &out[i]
		if patch.ImageURL != nil {
			s.ImageURL = *patch.ImageURL
		}
		if patch.ImagePrompt != nil {
			s.ImagePrompt = *patch.ImagePrompt
		}
		if patch.VideoURL != nil {
			s.VideoURL = *patch.VideoURL
		}
		if patch.AudioURL != nil {
			s.AudioURL = *patch.AudioURL
		}
		if patch.Duration != nil {
			s.Duration = *patch.Duration
		}
		if patch.ImageFlag != nil {
			s.ImageFlag = *patch.ImageFlag
		}
		if patch.VideoFlag != nil {
			s.VideoFlag = *patch.VideoFlag
		}
		if patch.AudioFlag != nil {
			s.AudioFlag = *patch.AudioFlag
		}
		if patch.ImageError != nil {
			s.ImageError = *patch.ImageError
		}
		if patch.VideoError != nil {
			s.VideoError = *patch.VideoError
		}
		if patch.AudioError != nil {
			s.AudioError = *patch.AudioError
		}
		if patch.VideoJobID != nil {
			s.VideoJobID = *patch.VideoJobID
		}
		break
	}
	return out
}

// moveScene relocates one element; the result is always a permutation of
// the input. Out-of-range indexes return the input unchanged.
func moveScene(scenes []domain.Scene, from, to int) []domain.Scene {
	if from < 0 || from >= len(scenes) || to < 0 || to >= len(scenes) || from == to {
		return scenes
	}
	out := make([]domain.Scene, 0, len(scenes))
	out = append(out, scenes...)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	rest := make([]domain.Scene, 0, len(scenes))
	rest = append(rest, out[:to]...)
	rest = append(rest, moved)
	rest = append(rest, out[to:]...)
	return rest
}

func deleteScene(scenes []domain.Scene, id int64) []domain.Scene {
	out := make([]domain.Scene, 0, len(scenes))
	for _, scene := range scenes {
		if scene.ID == id {
			continue
		}
		out = append(out, scene)
	}
	return out
}

func setVoice(characters []domain.Character, name, voice string) []domain.Character {
	out := make([]domain.Character, len(characters))
	copy(out, characters)
	for i := range out {
		if out[i].Name == name {
			out[i].Voice = voice
		}
	}
	return out
}

func patchConfig(state domain.ProjectState, patch ConfigPatch) domain.ProjectState {
	if patch.ImageStyle != nil {
		state.ImageStyle = *patch.ImageStyle
	}
	if patch.ArtDirection != nil {
		state.ArtDirection = *patch.ArtDirection
	}
	if patch.AspectRatio != nil {
		state.AspectRatio = *patch.AspectRatio
	}
	if patch.IncludeTextInImage != nil {
		state.IncludeTextInImage = *patch.IncludeTextInImage
	}
	if patch.NarratorVoice != nil {
		state.NarratorVoice = *patch.NarratorVoice
	}
	if patch.Saving != nil {
		state.Saving = *patch.Saving
	}
	if patch.Saved != nil {
		state.Saved = *patch.Saved
	}
	return state
}

func patchMix(scenes []domain.Scene, id int64, patch MixPatch) []domain.Scene {
	out := make([]domain.Scene, len(scenes))
	copy(out, scenes)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if patch.BackgroundMusicURL != nil {
			out[i].BackgroundMusicURL = *patch.BackgroundMusicURL
		}
		if patch.MusicVolume != nil {
			out[i].MusicVolume = *patch.MusicVolume
		}
		if patch.SpeechVolume != nil {
			out[i].SpeechVolume = *patch.SpeechVolume
		}
		break
	}
	return out
}

func removeToast(toasts []domain.Toast, id int64) []domain.Toast {
	out := make([]domain.Toast, 0, len(toasts))
	for _, toast := range toasts {
		if toast.ID == id {
			continue
		}
		out = append(out, toast)
	}
	return out
}

// sanitizeLoaded normalizes a deserialized snapshot: transient fields are
// cleared and every in-flight generation flag returns to idle, because
// in-flight work is abandoned on reload, not resumed.
func sanitizeLoaded(loaded domain.ProjectState) domain.ProjectState {
	state := InitialState()
	state.Step = loaded.Step
	state.ScriptText = loaded.ScriptText
	state.Characters = loaded.Characters
	state.ImageStyle = loaded.ImageStyle
	state.ArtDirection = loaded.ArtDirection
	state.AspectRatio = loaded.AspectRatio
	state.IncludeTextInImage = loaded.IncludeTextInImage
	state.NarratorVoice = loaded.NarratorVoice
	state.HasAPIKey = loaded.HasAPIKey
	state.Saved = loaded.Saved

	scenes := make([]domain.Scene, len(loaded.Scenes))
	copy(scenes, loaded.Scenes)
	for i := range scenes {
		scenes[i].ImageFlag = domain.FlagIdle
		scenes[i].VideoFlag = domain.FlagIdle
		scenes[i].AudioFlag = domain.FlagIdle
	}
	state.Scenes = scenes
	return state
}
