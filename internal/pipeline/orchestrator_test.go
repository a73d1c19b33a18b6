package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyboard-studio/internal/domain"
	"storyboard-studio/internal/generate"
	"storyboard-studio/internal/store"
)

// fakePorts implements every generation port with injectable behavior.
type fakePorts struct {
	analyzeCharacters func(ctx context.Context, text string) ([]domain.Character, error)
	decompose         func(ctx context.Context, text string) ([]generate.SceneSpec, error)
	generateImage     func(ctx context.Context, parts []domain.NarrationPart, style generate.StyleConfig) (generate.ImageResult, error)
	narrate           func(ctx context.Context, text, voice string) (generate.AudioSegment, error)
	submitVideo       func(ctx context.Context, parts []domain.NarrationPart, aspect domain.AspectRatio) (generate.VideoJob, error)
	pollVideo         func(ctx context.Context, job generate.VideoJob) (generate.VideoPoll, error)
}

func (f *fakePorts) AnalyzeCharacters(ctx context.Context, text string) ([]domain.Character, error) {
	return f.analyzeCharacters(ctx, text)
}

func (f *fakePorts) DecomposeIntoScenes(ctx context.Context, text string) ([]generate.SceneSpec, error) {
	return f.decompose(ctx, text)
}

func (f *fakePorts) GenerateImage(ctx context.Context, parts []domain.NarrationPart, style generate.StyleConfig) (generate.ImageResult, error) {
	return f.generateImage(ctx, parts, style)
}

func (f *fakePorts) GenerateNarrationSegment(ctx context.Context, text, voice string) (generate.AudioSegment, error) {
	return f.narrate(ctx, text, voice)
}

func (f *fakePorts) SubmitVideoJob(ctx context.Context, parts []domain.NarrationPart, aspect domain.AspectRatio) (generate.VideoJob, error) {
	return f.submitVideo(ctx, parts, aspect)
}

func (f *fakePorts) PollVideoJob(ctx context.Context, job generate.VideoJob) (generate.VideoPoll, error) {
	return f.pollVideo(ctx, job)
}

// fakeSigner appends a deterministic marker instead of a credential.
type fakeSigner struct{}

func (fakeSigner) SignedMediaURL(uri string) string { return uri + "?key=test" }

func newTestOrchestrator(t *testing.T, ports generate.Ports) (*Orchestrator, *store.Store) {
	t.Helper()
	st := store.New()
	o := New(st, ports, fakeSigner{}, nil, t.TempDir(), time.Millisecond)
	return o, st
}

func narrationPart(text string) domain.NarrationPart {
	return domain.NarrationPart{Kind: domain.PartNarration, Text: text}
}

// TestAnalyzeTextEmptyScript checks validation happens before any port call.
func TestAnalyzeTextEmptyScript(t *testing.T) {
	ports := &fakePorts{
		analyzeCharacters: func(context.Context, string) ([]domain.Character, error) {
			t.Fatal("port must not be called for an empty script")
			return nil, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)

	err := o.AnalyzeText(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindValidation {
		t.Fatalf("err = %v, want validation StageError", err)
	}
	if st.State().Err == "" {
		t.Fatal("expected the error to surface in project state")
	}
}

// TestAnalyzeTextAssignsDefaultVoices checks round-robin voice assignment.
func TestAnalyzeTextAssignsDefaultVoices(t *testing.T) {
	ports := &fakePorts{
		analyzeCharacters: func(context.Context, string) ([]domain.Character, error) {
			return []domain.Character{{Name: "Mira"}, {Name: "Theo"}, {Name: "Ines"}}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.SetScriptText{Text: "a story"})

	if err := o.AnalyzeText(context.Background()); err != nil {
		t.Fatalf("AnalyzeText() error = %v", err)
	}

	state := st.State()
	if state.Step != domain.StepConfig {
		t.Fatalf("step = %q, want %q", state.Step, domain.StepConfig)
	}
	for i, char := range state.Characters {
		want := domain.DefaultVoiceFor(i)
		if char.Voice != want {
			t.Fatalf("character %d voice = %q, want %q", i, char.Voice, want)
		}
	}
	if state.Characters[0].Voice == state.Characters[1].Voice {
		t.Fatal("adjacent characters must get distinct default voices")
	}
}

// TestGenerateScenesSequentialImages checks one image request settles
// before the next begins and failures stay scoped to their scene.
func TestGenerateScenesSequentialImages(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	calls := 0

	ports := &fakePorts{
		decompose: func(context.Context, string) ([]generate.SceneSpec, error) {
			return []generate.SceneSpec{
				{Parts: []domain.NarrationPart{narrationPart("one")}},
				{Parts: []domain.NarrationPart{narrationPart("two")}},
				{Parts: []domain.NarrationPart{narrationPart("three")}},
			}, nil
		},
		generateImage: func(context.Context, []domain.NarrationPart, generate.StyleConfig) (generate.ImageResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > 1 {
				mu.Unlock()
				t.Fatal("image requests overlapped")
			}
			calls++
			call := calls
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()

			if call == 2 {
				return generate.ImageResult{}, fmt.Errorf("model refused")
			}
			return generate.ImageResult{Data: []byte{1}, MIMEType: "image/png", Prompt: "p"}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.SetScriptText{Text: "a story"})

	if err := o.GenerateScenes(context.Background()); err != nil {
		t.Fatalf("GenerateScenes() error = %v", err)
	}

	state := st.State()
	if len(state.Scenes) != 3 {
		t.Fatalf("scenes = %d, want 3", len(state.Scenes))
	}
	if state.Scenes[0].ImageURL == "" || state.Scenes[2].ImageURL == "" {
		t.Fatal("surviving scenes must have images")
	}
	if state.Scenes[1].ImageURL != "" || state.Scenes[1].ImageError == "" {
		t.Fatalf("failed scene = %+v, want error and no image", state.Scenes[1])
	}
	if state.Scenes[1].ImageFlag != domain.FlagIdle {
		t.Fatalf("failed scene flag = %q, want idle", state.Scenes[1].ImageFlag)
	}
	if state.StatusMessage != "" {
		t.Fatalf("status = %q, want cleared after completion", state.StatusMessage)
	}
}

// TestGenerateScenesAppliesMixDefaults checks fresh scenes carry the
// default mix levels.
func TestGenerateScenesAppliesMixDefaults(t *testing.T) {
	ports := &fakePorts{
		decompose: func(context.Context, string) ([]generate.SceneSpec, error) {
			return []generate.SceneSpec{{Parts: []domain.NarrationPart{narrationPart("one")}}}, nil
		},
		generateImage: func(context.Context, []domain.NarrationPart, generate.StyleConfig) (generate.ImageResult, error) {
			return generate.ImageResult{Data: []byte{1}, MIMEType: "image/png"}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.SetScriptText{Text: "a story"})

	if err := o.GenerateScenes(context.Background()); err != nil {
		t.Fatalf("GenerateScenes() error = %v", err)
	}

	scene := st.State().Scenes[0]
	if scene.MusicVolume != domain.DefaultMusicVolume || scene.SpeechVolume != domain.DefaultSpeechVolume {
		t.Fatalf("mix = %d/%d, want defaults", scene.MusicVolume, scene.SpeechVolume)
	}
}

// TestRegenerateImageBusyGuard checks a second request is rejected while
// one is in flight.
func TestRegenerateImageBusyGuard(t *testing.T) {
	ports := &fakePorts{}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, ImageFlag: domain.FlagInProgress}}})

	if err := o.RegenerateImage(context.Background(), 1); !errors.Is(err, ErrGenerationBusy) {
		t.Fatalf("err = %v, want ErrGenerationBusy", err)
	}
}

// TestRegenerateImageConcurrentTriggers checks that of several racing
// requests for one scene exactly one reaches the port; the rest are
// rejected as busy without ever overlapping the winner.
func TestRegenerateImageConcurrentTriggers(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	calls := 0

	ports := &fakePorts{
		generateImage: func(context.Context, []domain.NarrationPart, generate.StyleConfig) (generate.ImageResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			calls++
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return generate.ImageResult{Data: []byte{1}, MIMEType: "image/png"}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, Parts: []domain.NarrationPart{narrationPart("one")}}}})

	var wg sync.WaitGroup
	var busy int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.RegenerateImage(context.Background(), 1); errors.Is(err, ErrGenerationBusy) {
				atomic.AddInt32(&busy, 1)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Fatalf("max concurrent image requests = %d, want 1", maxInFlight)
	}
	if calls != 1 || busy != 3 {
		t.Fatalf("calls = %d, busy rejections = %d, want 1 and 3", calls, busy)
	}
}

// TestRegenerateImageUnknownScene checks the missing-scene sentinel.
func TestRegenerateImageUnknownScene(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakePorts{})
	if err := o.RegenerateImage(context.Background(), 42); !errors.Is(err, ErrSceneNotFound) {
		t.Fatalf("err = %v, want ErrSceneNotFound", err)
	}
}

// TestNarrateSceneVoiceResolution checks dialogue uses the speaker's
// assigned voice and everything else uses the narrator.
func TestNarrateSceneVoiceResolution(t *testing.T) {
	var voices []string
	ports := &fakePorts{
		narrate: func(_ context.Context, _, voice string) (generate.AudioSegment, error) {
			voices = append(voices, voice)
			return generate.AudioSegment{PCM: make([]byte, 48000), SampleRate: 24000}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.AnalyzeSuccess{Characters: []domain.Character{{Name: "Mira", Voice: "Kore"}, {Name: "Theo"}}})
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, Parts: []domain.NarrationPart{
		narrationPart("the rain began"),
		{Kind: domain.PartDialogue, Speaker: "Mira", Text: "we should go"},
		{Kind: domain.PartDialogue, Speaker: "Theo", Text: "not yet"},
		{Kind: domain.PartInstruction, Text: "camera pans left"},
	}}}})

	if err := o.NarrateScene(context.Background(), 1); err != nil {
		t.Fatalf("NarrateScene() error = %v", err)
	}

	want := []string{domain.DefaultNarratorVoice, "Kore", domain.DefaultNarratorVoice}
	if len(voices) != len(want) {
		t.Fatalf("synthesized %d parts, want %d (instructions are silent)", len(voices), len(want))
	}
	for i := range want {
		if voices[i] != want[i] {
			t.Fatalf("voices = %v, want %v", voices, want)
		}
	}
}

// TestNarrateScenePartialFailure checks failed parts are skipped, the
// surviving audio is still written with a measured duration, and the
// gaps are reported as a partial-narration error.
func TestNarrateScenePartialFailure(t *testing.T) {
	call := 0
	ports := &fakePorts{
		narrate: func(context.Context, string, string) (generate.AudioSegment, error) {
			call++
			if call == 2 {
				return generate.AudioSegment{}, fmt.Errorf("synthesis refused")
			}
			return generate.AudioSegment{PCM: make([]byte, 48000), SampleRate: 24000}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, Parts: []domain.NarrationPart{
		narrationPart("one"), narrationPart("two"), narrationPart("three"),
	}}}})

	err := o.NarrateScene(context.Background(), 1)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindPartialNarration {
		t.Fatalf("err = %v, want partial-narration StageError", err)
	}

	scene, _ := st.State().SceneByID(1)
	if scene.AudioURL == "" {
		t.Fatal("expected narration audio despite one failed part")
	}
	if scene.AudioError != "" {
		t.Fatalf("audioError = %q, want empty on partial success", scene.AudioError)
	}
	// Two surviving one-second segments plus the 44-byte header.
	data, err := os.ReadFile(scene.AudioURL)
	if err != nil {
		t.Fatalf("read narration: %v", err)
	}
	if len(data) != 44+2*48000 {
		t.Fatalf("wav size = %d, want %d", len(data), 44+2*48000)
	}
	if scene.Duration != 2 {
		t.Fatalf("duration = %v, want 2", scene.Duration)
	}
}

// TestNarrateSceneTotalFailure checks the stage errors only when every
// part failed.
func TestNarrateSceneTotalFailure(t *testing.T) {
	ports := &fakePorts{
		narrate: func(context.Context, string, string) (generate.AudioSegment, error) {
			return generate.AudioSegment{}, fmt.Errorf("synthesis refused")
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, Parts: []domain.NarrationPart{
		narrationPart("one"), narrationPart("two"),
	}}}})

	err := o.NarrateScene(context.Background(), 1)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindGeneration {
		t.Fatalf("err = %v, want generation StageError", err)
	}

	scene, _ := st.State().SceneByID(1)
	if scene.AudioURL != "" || scene.AudioError == "" {
		t.Fatalf("scene = %+v, want error and no audio", scene)
	}
	if scene.AudioFlag != domain.FlagIdle {
		t.Fatalf("audioFlag = %q, want idle", scene.AudioFlag)
	}
}

// TestNarrateSceneDurationFallback checks unmeasurable audio falls back
// to the default scene length.
func TestNarrateSceneDurationFallback(t *testing.T) {
	ports := &fakePorts{
		narrate: func(context.Context, string, string) (generate.AudioSegment, error) {
			return generate.AudioSegment{PCM: []byte{}, SampleRate: 24000}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, Parts: []domain.NarrationPart{
		narrationPart("one"),
	}}}})

	if err := o.NarrateScene(context.Background(), 1); err != nil {
		t.Fatalf("NarrateScene() error = %v", err)
	}

	scene, _ := st.State().SceneByID(1)
	if scene.Duration != domain.DefaultSceneSeconds {
		t.Fatalf("duration = %v, want %d", scene.Duration, domain.DefaultSceneSeconds)
	}
}

// TestAnimateSceneRequiresImage checks video is gated on a still frame.
func TestAnimateSceneRequiresImage(t *testing.T) {
	o, st := newTestOrchestrator(t, &fakePorts{})
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1}}})

	err := o.AnimateScene(context.Background(), 1)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindValidation {
		t.Fatalf("err = %v, want validation StageError", err)
	}
	scene, _ := st.State().SceneByID(1)
	if scene.VideoError == "" {
		t.Fatal("expected the validation message on the scene")
	}
}

// TestAnimateScenePollsUntilDone checks the submit/poll sequence and the
// credential-signed result URL.
func TestAnimateScenePollsUntilDone(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	ports := &fakePorts{
		submitVideo: func(_ context.Context, _ []domain.NarrationPart, aspect domain.AspectRatio) (generate.VideoJob, error) {
			if aspect != domain.AspectLandscape {
				t.Errorf("aspect = %q, want %q", aspect, domain.AspectLandscape)
			}
			return generate.VideoJob{Name: "operations/vid-1"}, nil
		},
		pollVideo: func(_ context.Context, job generate.VideoJob) (generate.VideoPoll, error) {
			if job.Name != "operations/vid-1" {
				t.Errorf("job = %q, want operations/vid-1", job.Name)
			}
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls < 3 {
				return generate.VideoPoll{}, nil
			}
			return generate.VideoPoll{Done: true, MediaURI: "https://media.example/vid-1"}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, ImageURL: "scene_1_image.png"}}})

	if err := o.AnimateScene(context.Background(), 1); err != nil {
		t.Fatalf("AnimateScene() error = %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	scene, _ := st.State().SceneByID(1)
	if scene.VideoJobID != "operations/vid-1" {
		t.Fatalf("videoJobID = %q", scene.VideoJobID)
	}
	if scene.VideoURL != "https://media.example/vid-1?key=test" {
		t.Fatalf("videoURL = %q, want signed URL", scene.VideoURL)
	}
	if scene.VideoFlag != domain.FlagIdle {
		t.Fatalf("videoFlag = %q, want idle", scene.VideoFlag)
	}
	mu.Lock()
	defer mu.Unlock()
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}
}

// TestAnimateScenePollFailure checks a failed poll records the error and
// releases the flag.
func TestAnimateScenePollFailure(t *testing.T) {
	ports := &fakePorts{
		submitVideo: func(context.Context, []domain.NarrationPart, domain.AspectRatio) (generate.VideoJob, error) {
			return generate.VideoJob{Name: "operations/vid-2"}, nil
		},
		pollVideo: func(context.Context, generate.VideoJob) (generate.VideoPoll, error) {
			return generate.VideoPoll{}, fmt.Errorf("job expired")
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, ImageURL: "scene_1_image.png"}}})

	if err := o.AnimateScene(context.Background(), 1); err != nil {
		t.Fatalf("AnimateScene() error = %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	scene, _ := st.State().SceneByID(1)
	if scene.VideoURL != "" || scene.VideoError == "" {
		t.Fatalf("scene = %+v, want error and no video", scene)
	}
	if scene.VideoFlag != domain.FlagIdle {
		t.Fatalf("videoFlag = %q, want idle", scene.VideoFlag)
	}
}

// TestCloseUnblocksWhenContextCancelled checks cancelling the stage
// context unwinds a pending poll loop so Close does not wait forever,
// and the abort lands on the scene.
func TestCloseUnblocksWhenContextCancelled(t *testing.T) {
	ports := &fakePorts{
		submitVideo: func(context.Context, []domain.NarrationPart, domain.AspectRatio) (generate.VideoJob, error) {
			return generate.VideoJob{Name: "operations/vid-3"}, nil
		},
		pollVideo: func(context.Context, generate.VideoJob) (generate.VideoPoll, error) {
			return generate.VideoPoll{}, nil
		},
	}
	o, st := newTestOrchestrator(t, ports)
	st.Dispatch(store.InitializeScenes{Scenes: []domain.Scene{{ID: 1, ImageURL: "scene_1_image.png"}}})

	ctx, cancel := context.WithCancel(context.Background())
	if err := o.AnimateScene(ctx, 1); err != nil {
		t.Fatalf("AnimateScene() error = %v", err)
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- o.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() still blocked after the context was cancelled")
	}

	scene, _ := st.State().SceneByID(1)
	if scene.VideoFlag != domain.FlagIdle {
		t.Fatalf("videoFlag = %q, want idle", scene.VideoFlag)
	}
	if scene.VideoError != "video polling aborted" {
		t.Fatalf("videoError = %q, want the abort message", scene.VideoError)
	}
}

// TestWriteMediaCreatesDirectory checks assets land under the media dir.
func TestWriteMediaCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")
	st := store.New()
	o := New(st, &fakePorts{}, fakeSigner{}, nil, dir, time.Millisecond)

	path, err := o.writeMedia("scene_1_image.png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("writeMedia() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path = %q, want under %q", path, dir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat written asset: %v", err)
	}
}

// TestImageFileName checks extension selection from MIME type.
func TestImageFileName(t *testing.T) {
	cases := map[string]string{
		"image/png":    "scene_7_image.png",
		"image/jpeg":   "scene_7_image.jpg",
		"image/webp":   "scene_7_image.webp",
		"":             "scene_7_image.png",
		"image/exotic": "scene_7_image.png",
	}
	for mime, want := range cases {
		if got := imageFileName(7, mime); got != want {
			t.Fatalf("imageFileName(%q) = %q, want %q", mime, got, want)
		}
	}
}
