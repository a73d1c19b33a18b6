package domain

// AppStep identifies which screen of the authoring flow is active.
type AppStep string

const (
	StepInput  AppStep = "input"
	StepConfig AppStep = "config"
	StepScenes AppStep = "scenes"
)

// PartKind classifies one storyboard narration part.
type PartKind string

const (
	PartNarration   PartKind = "NARRATION"
	PartDialogue    PartKind = "DIALOGUE"
	PartInstruction PartKind = "INSTRUCTION"
)

// GenerationFlag tracks whether an asset request is in flight for a scene.
type GenerationFlag string

const (
	FlagIdle       GenerationFlag = "idle"
	FlagInProgress GenerationFlag = "inProgress"
)

// AssetKind identifies one generated asset family on a scene.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
	AssetAudio AssetKind = "audio"
)

// AspectRatio is the output frame ratio for generated images and video.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Default mix levels applied to every freshly decomposed scene.
const (
	DefaultMusicVolume  = 40
	DefaultSpeechVolume = 100
)

// DefaultSceneSeconds is assumed when narration duration cannot be measured.
const DefaultSceneSeconds = 6

// Character is one person identified in the script, with an assigned voice.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Voice       string `json:"voice,omitempty"`
}

// NarrationPart is one ordered fragment of a scene's storyboard text.
// Parts are immutable once produced and are spoken in sequence.
type NarrationPart struct {
	Kind    PartKind `json:"kind"`
	Speaker string   `json:"speaker,omitempty"`
	Text    string   `json:"text"`
}

// Scene bundles narration text with its generated assets and mix settings.
// Each asset kind carries its own progress flag and last error.
type Scene struct {
	ID    int64           `json:"id"`
	Parts []NarrationPart `json:"parts"`

	ImageURL    string `json:"imageUrl,omitempty"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`

	BackgroundMusicURL string  `json:"backgroundMusicUrl,omitempty"`
	MusicVolume        int     `json:"musicVolume"`
	SpeechVolume       int     `json:"speechVolume"`
	Duration           float64 `json:"duration,omitempty"`

	ImageFlag GenerationFlag `json:"imageFlag"`
	VideoFlag GenerationFlag `json:"videoFlag"`
	AudioFlag GenerationFlag `json:"audioFlag"`

	ImageError string `json:"imageError,omitempty"`
	VideoError string `json:"videoError,omitempty"`
	AudioError string `json:"audioError,omitempty"`

	VideoJobID string `json:"videoJobId,omitempty"`
}

// SpeakableParts returns parts that produce narration audio, in order.
func (s Scene) SpeakableParts() []NarrationPart {
	out := make([]NarrationPart, 0, len(s.Parts))
	for _, part := range s.Parts {
		if part.Kind == PartInstruction {
			continue
		}
		if part.Text == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ToastSeverity classifies an ephemeral notification.
type ToastSeverity string

const (
	ToastSuccess ToastSeverity = "success"
	ToastError   ToastSeverity = "error"
	ToastInfo    ToastSeverity = "info"
)

// Toast is one ephemeral UI notification; never persisted.
type Toast struct {
	ID       int64         `json:"id"`
	Message  string        `json:"message"`
	Severity ToastSeverity `json:"severity"`
}

// ProjectState is the single authoritative project value. It is advanced
// only through store transitions and copied on every read.
type ProjectState struct {
	Step       AppStep     `json:"currentStep"`
	ScriptText string      `json:"scriptText"`
	Characters []Character `json:"characters"`
	Scenes     []Scene     `json:"scenes"`

	ImageStyle         string      `json:"imageStyle"`
	ArtDirection       string      `json:"artDirection"`
	AspectRatio        AspectRatio `json:"aspectRatio"`
	IncludeTextInImage bool        `json:"includeTextInImage"`
	NarratorVoice      string      `json:"narratorVoice"`

	StatusMessage string `json:"statusMessage"`
	Err           string `json:"error"`
	HasAPIKey     bool   `json:"hasApiKey"`
	Saving        bool   `json:"isSaving"`
	Saved         bool   `json:"isProjectSaved"`

	MovieOpen bool    `json:"-"`
	Toasts    []Toast `json:"-"`
}

// SceneByID returns the scene with the given id and whether it exists.
func (p ProjectState) SceneByID(id int64) (Scene, bool) {
	for _, scene := range p.Scenes {
		if scene.ID == id {
			return scene, true
		}
	}
	return Scene{}, false
}

// CharacterByName returns the roster entry for a speaker name.
func (p ProjectState) CharacterByName(name string) (Character, bool) {
	for _, char := range p.Characters {
		if char.Name == name {
			return char, true
		}
	}
	return Character{}, false
}

// AllScenesNarrated reports whether every scene has narration audio, the
// entry condition for movie mode.
func (p ProjectState) AllScenesNarrated() bool {
	if len(p.Scenes) == 0 {
		return false
	}
	for _, scene := range p.Scenes {
		if scene.AudioURL == "" {
			return false
		}
	}
	return true
}
