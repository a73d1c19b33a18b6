// Package bootstrap wires configuration, state, pipeline, and playback
// behind the desktop runtime.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"storyboard-studio/internal/config"
	"storyboard-studio/internal/diagnostics"
	"storyboard-studio/internal/domain"
	"storyboard-studio/internal/generate"
	"storyboard-studio/internal/notify"
	"storyboard-studio/internal/pipeline"
	"storyboard-studio/internal/playback"
	"storyboard-studio/internal/project"
	"storyboard-studio/internal/store"
)

// App wires settings, the project store, the generation pipeline, the
// playback synchronizer, and UI runtime callbacks.
type App struct {
	Settings    config.Settings
	Store       config.Store
	Projects    project.Store
	State       *store.Store
	Pipeline    stageRunner
	Player      *playback.Synchronizer
	Diagnostics domain.DiagnosticReport

	assets  fs.FS
	checker *diagnostics.Checker
	events  *notify.Bus

	// pipelineCtx parents every async generation stage; cancelling it on
	// shutdown unblocks the video poll loops Pipeline.Close waits on.
	pipelineCtx    context.Context
	cancelPipeline context.CancelFunc

	mu         sync.Mutex
	runtimeCtx context.Context
}

// statePush wraps a state snapshot with its dispatch sequence number so
// the frontend can drop pushes that arrive out of order.
type statePush struct {
	Seq   int64               `json:"seq"`
	State domain.ProjectState `json:"state"`
}

// stageRunner isolates the generation pipeline behind an interface.
type stageRunner interface {
	AnalyzeText(ctx context.Context) error
	GenerateScenes(ctx context.Context) error
	NarrateScene(ctx context.Context, sceneID int64) error
	RegenerateImage(ctx context.Context, sceneID int64) error
	AnimateScene(ctx context.Context, sceneID int64) error
	Close() error
}

// New builds the application with persisted settings and startup
// diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	settingsStore := config.NewYAMLStore(homeDir + "/.storyboard-studio/settings.yaml")
	settings, err := settingsStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	apiKey := os.Getenv(diagnostics.APIKeyEnv)
	client := generate.NewClient(apiKey, settings.APIEndpoint)

	stateStore := store.New()
	bus := notify.NewBus(1000)
	orchestrator := pipeline.New(stateStore, client, client, bus, settings.MediaDir,
		time.Duration(settings.VideoPollSecs)*time.Second)

	pipelineCtx, cancelPipeline := context.WithCancel(context.Background())
	app := &App{
		Settings:       settings,
		Store:          settingsStore,
		Projects:       project.NewJSONStore(settings.ProjectPath),
		State:          stateStore,
		Pipeline:       orchestrator,
		Diagnostics:    report,
		assets:         assets,
		checker:        checker,
		events:         bus,
		pipelineCtx:    pipelineCtx,
		cancelPipeline: cancelPipeline,
	}

	app.Player = playback.NewSynchronizer(
		app.newRuntimePlayer("narration"),
		app.newRuntimePlayer("music"),
		app.newRuntimePlayer("video"),
		playback.NewClock(),
		func() { app.State.Dispatch(store.CloseMovie{}) },
	)
	app.Player.SetTimings(
		time.Duration(settings.FadeMillis)*time.Millisecond,
		time.Duration(settings.FallbackSecs)*time.Second,
	)

	stateStore.Dispatch(store.SetAPIKeyStatus{Present: strings.TrimSpace(apiKey) != ""})
	stateStore.SetListener(func(seq int64, state domain.ProjectState) {
		app.emit("project:state", statePush{Seq: seq, State: state})
	})

	return app, nil
}

// Run starts the desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Storyboard Studio",
		Width:       1280,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.Shutdown()
		},
		Bind: []interface{}{a},
	})
}

// Shutdown stops playback, cancels in-flight generation so pending
// video poll loops unwind, and waits for the pipeline to drain.
func (a *App) Shutdown() {
	a.Player.Close()
	a.cancelPipeline()
	_ = a.Pipeline.Close()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// Startup stores the runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// GetSettings returns the persisted application settings.
func (a *App) GetSettings() (config.Settings, error) {
	return a.Store.Load()
}

// SaveSettings persists settings, re-applies playback timings, and
// reruns diagnostics against the new paths.
func (a *App) SaveSettings(settings config.Settings) error {
	if err := a.Store.Save(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	a.Settings = settings
	a.Player.SetTimings(
		time.Duration(settings.FadeMillis)*time.Millisecond,
		time.Duration(settings.FallbackSecs)*time.Second,
	)
	a.Diagnostics = a.checker.Run(settings)
	return nil
}

// ProjectSnapshot returns the current project state for the frontend.
func (a *App) ProjectSnapshot() domain.ProjectState {
	return a.State.State()
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []notify.Event {
	return a.events.Since(sinceSeq)
}

// VoicePalette returns the selectable narration voices.
func (a *App) VoicePalette() []domain.VoiceOption {
	voices := make([]domain.VoiceOption, len(domain.VoicePalette))
	copy(voices, domain.VoicePalette)
	return voices
}

// SetScriptText stores the source script text.
func (a *App) SetScriptText(text string) {
	a.State.Dispatch(store.SetScriptText{Text: text})
}

// SetStep switches the active authoring screen.
func (a *App) SetStep(step string) error {
	switch domain.AppStep(step) {
	case domain.StepInput, domain.StepConfig, domain.StepScenes:
	default:
		return fmt.Errorf("unknown step: %s", step)
	}
	a.State.Dispatch(store.SetStep{Step: domain.AppStep(step)})
	return nil
}

// AnalyzeText runs the character analysis stage asynchronously. Errors
// surface through the project state and the event stream.
func (a *App) AnalyzeText() {
	go func() {
		_ = a.Pipeline.AnalyzeText(a.pipelineCtx)
	}()
}

// GenerateScenes runs decomposition and sequential image population.
func (a *App) GenerateScenes() {
	go func() {
		_ = a.Pipeline.GenerateScenes(a.pipelineCtx)
	}()
}

// NarrateScene synthesizes one scene's narration audio.
func (a *App) NarrateScene(sceneID int64) {
	go func() {
		_ = a.Pipeline.NarrateScene(a.pipelineCtx, sceneID)
	}()
}

// RegenerateImage re-runs the image stage for one scene.
func (a *App) RegenerateImage(sceneID int64) {
	go func() {
		_ = a.Pipeline.RegenerateImage(a.pipelineCtx, sceneID)
	}()
}

// AnimateScene submits the asynchronous video job for one scene.
func (a *App) AnimateScene(sceneID int64) {
	go func() {
		_ = a.Pipeline.AnimateScene(a.pipelineCtx, sceneID)
	}()
}

// ConfigUpdate carries optional style configuration changes from the UI.
type ConfigUpdate struct {
	ImageStyle         *string `json:"imageStyle,omitempty"`
	ArtDirection       *string `json:"artDirection,omitempty"`
	AspectRatio        *string `json:"aspectRatio,omitempty"`
	IncludeTextInImage *bool   `json:"includeTextInImage,omitempty"`
	NarratorVoice      *string `json:"narratorVoice,omitempty"`
}

// SetConfig validates and applies style configuration changes.
func (a *App) SetConfig(update ConfigUpdate) error {
	patch := store.ConfigPatch{
		ImageStyle:         update.ImageStyle,
		ArtDirection:       update.ArtDirection,
		IncludeTextInImage: update.IncludeTextInImage,
	}

	if update.AspectRatio != nil {
		ratio := domain.AspectRatio(*update.AspectRatio)
		if ratio != domain.AspectLandscape && ratio != domain.AspectPortrait {
			return fmt.Errorf("unsupported aspect ratio: %s", *update.AspectRatio)
		}
		patch.AspectRatio = &ratio
	}
	if update.NarratorVoice != nil {
		if !domain.IsKnownVoice(*update.NarratorVoice) {
			return fmt.Errorf("unknown voice: %s", *update.NarratorVoice)
		}
		patch.NarratorVoice = update.NarratorVoice
	}

	a.State.Dispatch(store.SetConfig{Patch: patch})
	return nil
}

// SetCharacterVoice assigns a palette voice to a named character.
func (a *App) SetCharacterVoice(name, voice string) error {
	if !domain.IsKnownVoice(voice) {
		return fmt.Errorf("unknown voice: %s", voice)
	}
	if _, ok := a.State.State().CharacterByName(name); !ok {
		return fmt.Errorf("unknown character: %s", name)
	}
	a.State.Dispatch(store.SetCharacterVoice{Name: name, Voice: voice})
	return nil
}

// ReorderScenes moves one scene to a new position.
func (a *App) ReorderScenes(from, to int) error {
	count := len(a.State.State().Scenes)
	if from < 0 || from >= count || to < 0 || to >= count {
		return fmt.Errorf("reorder out of range: %d -> %d", from, to)
	}
	a.State.Dispatch(store.ReorderScenes{From: from, To: to})
	return nil
}

// DeleteScene removes one scene. Any in-flight generation for it will
// resolve into a no-op patch.
func (a *App) DeleteScene(sceneID int64) {
	a.State.Dispatch(store.DeleteScene{SceneID: sceneID})
}

// MixUpdate carries optional per-scene playback mix changes from the UI.
type MixUpdate struct {
	BackgroundMusicURL *string `json:"backgroundMusicUrl,omitempty"`
	MusicVolume        *int    `json:"musicVolume,omitempty"`
	SpeechVolume       *int    `json:"speechVolume,omitempty"`
}

// UpdateSceneMix validates and applies mix changes for one scene.
// Out-of-range volumes are rejected before any mutation, not clamped.
func (a *App) UpdateSceneMix(sceneID int64, update MixUpdate) error {
	if update.MusicVolume != nil && (*update.MusicVolume < 0 || *update.MusicVolume > 100) {
		return fmt.Errorf("music volume out of range: %d", *update.MusicVolume)
	}
	if update.SpeechVolume != nil && (*update.SpeechVolume < 0 || *update.SpeechVolume > 100) {
		return fmt.Errorf("speech volume out of range: %d", *update.SpeechVolume)
	}
	if _, ok := a.State.State().SceneByID(sceneID); !ok {
		return fmt.Errorf("unknown scene: %d", sceneID)
	}

	a.State.Dispatch(store.UpdateSceneMix{SceneID: sceneID, Patch: store.MixPatch{
		BackgroundMusicURL: update.BackgroundMusicURL,
		MusicVolume:        update.MusicVolume,
		SpeechVolume:       update.SpeechVolume,
	}})
	return nil
}

// SaveProject persists the current snapshot.
func (a *App) SaveProject() error {
	saving := true
	a.State.Dispatch(store.SetConfig{Patch: store.ConfigPatch{Saving: &saving}})

	err := a.Projects.Save(a.State.State())

	saving = false
	saved := err == nil
	a.State.Dispatch(store.SetConfig{Patch: store.ConfigPatch{Saving: &saving, Saved: &saved}})

	if err != nil {
		a.AddToast("Could not save the project.", domain.ToastError)
		return fmt.Errorf("save project: %w", err)
	}
	a.AddToast("Project saved.", domain.ToastSuccess)
	return nil
}

// LoadProject replaces the state from the stored snapshot. Generation
// flags come back idle regardless of their value at save time.
func (a *App) LoadProject() error {
	state, found, err := a.Projects.Load()
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if !found {
		return fmt.Errorf("no saved project")
	}

	a.State.Dispatch(store.LoadProject{State: state})
	a.AddToast("Project loaded.", domain.ToastSuccess)
	return nil
}

// ExportProject writes the stored snapshot, unmodified, to the path the
// user picked.
func (a *App) ExportProject(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("export path is empty")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := a.Projects.Export(f); err != nil {
		return fmt.Errorf("export project: %w", err)
	}
	return nil
}

// ResetProject returns the state to the empty project.
func (a *App) ResetProject() {
	a.State.Dispatch(store.ResetProject{})
	a.AddToast("Project reset.", domain.ToastInfo)
}

// OpenMovie starts movie-mode playback. Every scene must already have
// narration audio; the synchronizer does not re-validate this.
func (a *App) OpenMovie() error {
	state := a.State.State()
	if !state.AllScenesNarrated() {
		return fmt.Errorf("narrate every scene before playing the movie")
	}

	a.State.Dispatch(store.OpenMovie{})
	a.Player.Open(state.Scenes)
	return nil
}

// CloseMovie tears playback down; safe from any state.
func (a *App) CloseMovie() {
	a.Player.Close()
}

// MovieNarrationEnded forwards the narration element's end event.
func (a *App) MovieNarrationEnded() {
	a.Player.NarrationEnded()
}

// MovieVideoEnded forwards the video element's end event.
func (a *App) MovieVideoEnded() {
	a.Player.VideoEnded()
}

// AddToast publishes an ephemeral notification that expires on its own.
func (a *App) AddToast(message string, severity domain.ToastSeverity) {
	state := a.State.Dispatch(store.AddToast{Toast: domain.Toast{
		Message:  message,
		Severity: severity,
	}})

	if len(state.Toasts) == 0 {
		return
	}
	id := state.Toasts[len(state.Toasts)-1].ID
	expiry := time.Duration(a.Settings.ToastExpirySecs) * time.Second
	if expiry <= 0 {
		expiry = 4 * time.Second
	}
	time.AfterFunc(expiry, func() {
		a.State.Dispatch(store.RemoveToast{ID: id})
	})
}

// emit pushes one runtime event to the frontend when it is attached.
func (a *App) emit(name string, payload any) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}
