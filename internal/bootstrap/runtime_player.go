package bootstrap

import (
	"sync"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// runtimePlayer drives one frontend media element over runtime events.
// The backend holds the authoritative source and play state; the element
// reports natural end events back through the bound App methods.
type runtimePlayer struct {
	app   *App
	track string

	mu      sync.Mutex
	source  string
	playing bool
}

// playerCommand is the payload for every track control event.
type playerCommand struct {
	Track  string  `json:"track"`
	Op     string  `json:"op"`
	Source string  `json:"source,omitempty"`
	Volume float64 `json:"volume,omitempty"`
	Loop   bool    `json:"loop,omitempty"`
}

func (a *App) newRuntimePlayer(track string) *runtimePlayer {
	return &runtimePlayer{app: a, track: track}
}

func (p *runtimePlayer) send(cmd playerCommand) {
	cmd.Track = p.track

	p.app.mu.Lock()
	ctx := p.app.runtimeCtx
	p.app.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "player:command", cmd)
	}
}

func (p *runtimePlayer) Load(source string) {
	p.mu.Lock()
	p.source = source
	p.playing = false
	p.mu.Unlock()
	p.send(playerCommand{Op: "load", Source: source})
}

func (p *runtimePlayer) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.send(playerCommand{Op: "play"})
}

func (p *runtimePlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.send(playerCommand{Op: "pause"})
}

// Detach stops playback and releases the element's source.
func (p *runtimePlayer) Detach() {
	p.mu.Lock()
	p.source = ""
	p.playing = false
	p.mu.Unlock()
	p.send(playerCommand{Op: "detach"})
}

func (p *runtimePlayer) SetVolume(volume float64) {
	p.send(playerCommand{Op: "volume", Volume: volume})
}

func (p *runtimePlayer) SetLoop(loop bool) {
	p.send(playerCommand{Op: "loop", Loop: loop})
}

func (p *runtimePlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *runtimePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
