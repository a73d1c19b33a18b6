// Package generate defines the asset generation ports and their Gemini
// HTTP implementation. The orchestrator only depends on the interfaces.
package generate

import (
	"context"

	"storyboard-studio/internal/domain"
)

// SceneSpec is one decomposed storyboard scene before asset generation.
type SceneSpec struct {
	Parts []domain.NarrationPart `json:"parts"`
}

// ImageResult is a finished still frame for one scene.
type ImageResult struct {
	Data     []byte
	MIMEType string
	Prompt   string
}

// AudioSegment is the raw synthesized samples for one narration part.
type AudioSegment struct {
	PCM        []byte
	SampleRate int
}

// VideoJob is the opaque handle of an asynchronous video generation job.
type VideoJob struct {
	Name string
}

// VideoPoll is one poll outcome: pending, or done with a media reference.
type VideoPoll struct {
	Done     bool
	MediaURI string
}

// Analyzer extracts structure from the raw script text.
type Analyzer interface {
	AnalyzeCharacters(ctx context.Context, text string) ([]domain.Character, error)
	DecomposeIntoScenes(ctx context.Context, text string) ([]SceneSpec, error)
}

// StyleConfig carries the global look settings an image request needs.
type StyleConfig struct {
	ImageStyle         string
	ArtDirection       string
	AspectRatio        domain.AspectRatio
	IncludeTextInImage bool
	Characters         []domain.Character
}

// ImageGenerator produces a still frame for a scene's narration parts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, parts []domain.NarrationPart, style StyleConfig) (ImageResult, error)
}

// SpeechSynthesizer voices a single narration part.
type SpeechSynthesizer interface {
	GenerateNarrationSegment(ctx context.Context, text, voice string) (AudioSegment, error)
}

// VideoAnimator runs the two-phase video generation: submit then poll.
type VideoAnimator interface {
	SubmitVideoJob(ctx context.Context, parts []domain.NarrationPart, aspect domain.AspectRatio) (VideoJob, error)
	PollVideoJob(ctx context.Context, job VideoJob) (VideoPoll, error)
}

// Ports bundles every generation capability the pipeline consumes.
type Ports interface {
	Analyzer
	ImageGenerator
	SpeechSynthesizer
	VideoAnimator
}
