// Package pipeline orchestrates the per-scene asset generation stages.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storyboard-studio/internal/audio"
	"storyboard-studio/internal/domain"
	"storyboard-studio/internal/generate"
	"storyboard-studio/internal/notify"
	"storyboard-studio/internal/store"
)

// CredentialSigner turns a raw media reference into a playable handle by
// attaching the process's access credential.
type CredentialSigner interface {
	SignedMediaURL(uri string) string
}

// Orchestrator drives the multi-stage generation sequence against the
// project store. Failures stay scoped to the scene and asset kind they
// concern; they never crash the pipeline or block sibling scenes.
type Orchestrator struct {
	store  *store.Store
	ports  generate.Ports
	signer CredentialSigner
	bus    *notify.Bus

	mediaDir     string
	pollInterval time.Duration

	writeFile func(name string, data []byte) error
	mkdirAll  func(path string, perm os.FileMode) error

	group errgroup.Group
}

// New constructs the production orchestrator.
func New(st *store.Store, ports generate.Ports, signer CredentialSigner, bus *notify.Bus, mediaDir string, pollInterval time.Duration) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 8 * time.Second
	}
	return &Orchestrator{
		store:        st,
		ports:        ports,
		signer:       signer,
		bus:          bus,
		mediaDir:     mediaDir,
		pollInterval: pollInterval,
		writeFile: func(name string, data []byte) error {
			return os.WriteFile(name, data, 0o644)
		},
		mkdirAll: os.MkdirAll,
	}
}

// Close waits for outstanding video poll loops to finish.
func (o *Orchestrator) Close() error {
	return o.group.Wait()
}

// AnalyzeText validates the script, identifies characters, and assigns
// each a default voice by round-robin over the palette.
func (o *Orchestrator) AnalyzeText(ctx context.Context) error {
	state := o.store.State()
	if strings.TrimSpace(state.ScriptText) == "" {
		err := validationError("analyze", "the script cannot be empty")
		o.store.Dispatch(store.SetError{Message: err.Message})
		return err
	}

	runID := uuid.NewString()
	o.store.Dispatch(store.StartAnalysis{})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeStatus, Stage: "analyze", Message: "Identifying characters"})

	characters, err := o.ports.AnalyzeCharacters(ctx, state.ScriptText)
	if err != nil {
		stageErr := generationError("analyze", "character analysis failed", err)
		o.store.Dispatch(store.AnalyzeFailure{Message: stageErr.Message})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "analyze", Message: stageErr.Error()})
		return stageErr
	}

	for i := range characters {
		characters[i].Voice = domain.DefaultVoiceFor(i)
	}
	o.store.Dispatch(store.AnalyzeSuccess{Characters: characters})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeResult, Stage: "analyze",
		Message: fmt.Sprintf("Identified %d characters", len(characters))})
	return nil
}

// GenerateScenes decomposes the script into fresh scene records, then
// populates images strictly sequentially. A scene's image failure is
// recorded on that scene alone and the loop proceeds.
func (o *Orchestrator) GenerateScenes(ctx context.Context) error {
	state := o.store.State()
	if strings.TrimSpace(state.ScriptText) == "" {
		err := validationError("decompose", "the script cannot be empty")
		o.store.Dispatch(store.SetError{Message: err.Message})
		return err
	}

	runID := uuid.NewString()
	o.store.Dispatch(store.StartSceneGeneration{})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeStatus, Stage: "decompose", Message: "Splitting script into scenes"})

	specs, err := o.ports.DecomposeIntoScenes(ctx, state.ScriptText)
	if err != nil {
		stageErr := generationError("decompose", "storyboard decomposition failed", err)
		o.store.Dispatch(store.SceneGenerationFailure{Message: stageErr.Message})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "decompose", Message: stageErr.Error()})
		return stageErr
	}

	scenes := make([]domain.Scene, 0, len(specs))
	for _, spec := range specs {
		scenes = append(scenes, domain.Scene{
			ID:           o.store.NextID(),
			Parts:        spec.Parts,
			MusicVolume:  domain.DefaultMusicVolume,
			SpeechVolume: domain.DefaultSpeechVolume,
			ImageFlag:    domain.FlagIdle,
			VideoFlag:    domain.FlagIdle,
			AudioFlag:    domain.FlagIdle,
		})
	}
	o.store.Dispatch(store.InitializeScenes{Scenes: scenes})

	// One scene's image request must settle before the next begins: the
	// image model keeps style more consistent under serialized requests.
	for _, scene := range scenes {
		if err := o.generateImage(ctx, runID, scene.ID); err != nil {
			log.Printf("[pipeline] scene %d image: %v", scene.ID, err)
		}
	}

	o.store.Dispatch(store.SceneGenerationComplete{})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeResult, Stage: "decompose",
		Message: fmt.Sprintf("Storyboard ready with %d scenes", len(scenes))})
	return nil
}

// RegenerateImage re-runs the image stage for one scene.
func (o *Orchestrator) RegenerateImage(ctx context.Context, sceneID int64) error {
	return o.generateImage(ctx, uuid.NewString(), sceneID)
}

// generateImage performs one guarded image request for a scene. The
// claim on the scene's image flag happens inside the store, so of any
// number of concurrent triggers exactly one runs the stage.
func (o *Orchestrator) generateImage(ctx context.Context, runID string, sceneID int64) error {
	state, found, claimed := o.store.BeginGeneration(sceneID, domain.AssetImage)
	if !found {
		return ErrSceneNotFound
	}
	if !claimed {
		return ErrGenerationBusy
	}
	scene, _ := state.SceneByID(sceneID)

	result, err := o.ports.GenerateImage(ctx, scene.Parts, generate.StyleConfig{
		ImageStyle:         state.ImageStyle,
		ArtDirection:       state.ArtDirection,
		AspectRatio:        state.AspectRatio,
		IncludeTextInImage: state.IncludeTextInImage,
		Characters:         state.Characters,
	})
	if err != nil {
		stageErr := generationError("image", "image generation failed", err)
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			ImageFlag:  flagPtr(domain.FlagIdle),
			ImageError: strPtr(stageErr.Message),
		}})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "image", SceneID: sceneID, Message: stageErr.Error()})
		return stageErr
	}

	path, err := o.writeMedia(imageFileName(sceneID, result.MIMEType), result.Data)
	if err != nil {
		stageErr := storageError("image", "cannot store generated image", err)
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			ImageFlag:  flagPtr(domain.FlagIdle),
			ImageError: strPtr(stageErr.Message),
		}})
		return stageErr
	}

	o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
		ImageFlag:   flagPtr(domain.FlagIdle),
		ImageURL:    strPtr(path),
		ImagePrompt: strPtr(result.Prompt),
	}})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeResult, Stage: "image", SceneID: sceneID, Message: "Image ready"})
	return nil
}

// NarrateScene synthesizes a scene's narration part by part, concatenates
// the raw samples in original order, and wraps them into a WAV stream.
// A failed part is logged and omitted; when some parts survive the audio
// is still stored and a partial-narration error reports the gaps. The
// stage only fully fails when every part failed.
func (o *Orchestrator) NarrateScene(ctx context.Context, sceneID int64) error {
	state, found, claimed := o.store.BeginGeneration(sceneID, domain.AssetAudio)
	if !found {
		return ErrSceneNotFound
	}
	if !claimed {
		return ErrGenerationBusy
	}
	scene, _ := state.SceneByID(sceneID)

	runID := uuid.NewString()

	parts := scene.SpeakableParts()
	segments := make([][]byte, 0, len(parts))
	failed := 0
	for _, part := range parts {
		voice := state.NarratorVoice
		if part.Kind == domain.PartDialogue {
			if char, ok := state.CharacterByName(part.Speaker); ok && char.Voice != "" {
				voice = char.Voice
			}
		}

		segment, err := o.ports.GenerateNarrationSegment(ctx, part.Text, voice)
		if err != nil {
			failed++
			log.Printf("[pipeline] scene %d narration part skipped: %v", sceneID, err)
			continue
		}
		segments = append(segments, segment.PCM)
	}

	if len(segments) == 0 {
		stageErr := generationError("narrate", "no narration audio could be generated", nil)
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			AudioFlag:  flagPtr(domain.FlagIdle),
			AudioError: strPtr(stageErr.Message),
		}})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "narrate", SceneID: sceneID, Message: stageErr.Error()})
		return stageErr
	}
	var partialErr *StageError
	if failed > 0 {
		partialErr = partialNarrationError(fmt.Sprintf("%d of %d narration parts skipped", failed, len(parts)))
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeLog, Stage: "narrate", SceneID: sceneID, Message: partialErr.Error()})
	}

	pcm := audio.Concat(segments)
	wav := audio.EncodeWAV(pcm, audio.SampleRate, audio.NumChannels, audio.BitsPerSample)
	path, err := o.writeMedia(fmt.Sprintf("scene_%d_narration.wav", sceneID), wav)
	if err != nil {
		stageErr := storageError("narrate", "cannot store narration audio", err)
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			AudioFlag:  flagPtr(domain.FlagIdle),
			AudioError: strPtr(stageErr.Message),
		}})
		return stageErr
	}

	duration := audio.Duration(pcm, audio.SampleRate, audio.NumChannels, audio.BitsPerSample)
	if duration == 0 {
		duration = domain.DefaultSceneSeconds
	}

	o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
		AudioFlag: flagPtr(domain.FlagIdle),
		AudioURL:  strPtr(path),
		Duration:  f64Ptr(duration),
	}})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeResult, Stage: "narrate", SceneID: sceneID,
		Message: fmt.Sprintf("Narration ready (%.1fs)", duration)})
	if partialErr != nil {
		return partialErr
	}
	return nil
}

// AnimateScene submits an asynchronous video job for a scene and starts
// its poll loop. The scene must already have a still frame: video is
// generated from it.
func (o *Orchestrator) AnimateScene(ctx context.Context, sceneID int64) error {
	state, found, claimed := o.store.BeginGeneration(sceneID, domain.AssetVideo)
	if !found {
		return ErrSceneNotFound
	}
	if !claimed {
		return ErrGenerationBusy
	}
	scene, _ := state.SceneByID(sceneID)
	if scene.ImageURL == "" {
		err := validationError("animate", "generate the scene image before animating")
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			VideoFlag:  flagPtr(domain.FlagIdle),
			VideoError: strPtr(err.Message),
		}})
		return err
	}

	runID := uuid.NewString()

	job, err := o.ports.SubmitVideoJob(ctx, scene.Parts, state.AspectRatio)
	if err != nil {
		stageErr := generationError("animate", "video submission failed", err)
		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			VideoFlag:  flagPtr(domain.FlagIdle),
			VideoError: strPtr(stageErr.Message),
		}})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "animate", SceneID: sceneID, Message: stageErr.Error()})
		return stageErr
	}

	o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
		VideoJobID: strPtr(job.Name),
	}})
	o.publish(notify.Event{RunID: runID, Type: notify.EventTypeStatus, Stage: "animate", SceneID: sceneID, Message: "Video job submitted"})

	// Polling for one scene never blocks work for another: each job owns
	// its own loop, sequential only with itself.
	o.group.Go(func() error {
		o.pollVideoJob(ctx, runID, sceneID, job)
		return nil
	})
	return nil
}

// pollVideoJob polls one job on a fixed interval until it settles.
func (o *Orchestrator) pollVideoJob(ctx context.Context, runID string, sceneID int64, job generate.VideoJob) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
				VideoFlag:  flagPtr(domain.FlagIdle),
				VideoError: strPtr("video polling aborted"),
			}})
			return
		case <-ticker.C:
		}

		poll, err := o.ports.PollVideoJob(ctx, job)
		if err != nil {
			stageErr := generationError("animate", "video generation failed", err)
			o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
				VideoFlag:  flagPtr(domain.FlagIdle),
				VideoError: strPtr(stageErr.Message),
			}})
			o.publish(notify.Event{RunID: runID, Type: notify.EventTypeError, Stage: "animate", SceneID: sceneID, Message: stageErr.Error()})
			return
		}
		if !poll.Done {
			continue
		}

		o.store.Dispatch(store.UpdateScene{SceneID: sceneID, Patch: store.ScenePatch{
			VideoFlag: flagPtr(domain.FlagIdle),
			VideoURL:  strPtr(o.signer.SignedMediaURL(poll.MediaURI)),
		}})
		o.publish(notify.Event{RunID: runID, Type: notify.EventTypeResult, Stage: "animate", SceneID: sceneID, Message: "Video ready"})
		return
	}
}

// writeMedia stores one asset under the media directory.
func (o *Orchestrator) writeMedia(name string, data []byte) (string, error) {
	if err := o.mkdirAll(o.mediaDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(o.mediaDir, name)
	if err := o.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// publish forwards one event when a bus is configured.
func (o *Orchestrator) publish(event notify.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}

// imageFileName derives the stored file name from the returned MIME type.
func imageFileName(sceneID int64, mimeType string) string {
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("scene_%d_image%s", sceneID, ext)
}

func strPtr(v string) *string { return &v }

func f64Ptr(v float64) *float64 { return &v }

func flagPtr(v domain.GenerationFlag) *domain.GenerationFlag { return &v }
