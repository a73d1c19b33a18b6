package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyboard-studio/internal/domain"
	"storyboard-studio/internal/store"
)

const trackDownloadTimeout = 10 * time.Minute

var musicTrackCatalog = []domain.MusicTrackOption{
	{
		ID:          "gentle-piano",
		Name:        "Gentle Piano",
		FileName:    "gentle-piano.mp3",
		URL:         "https://cdn.pixabay.com/audio/2022/03/10/audio_4bd4f04b4a.mp3",
		SizeLabel:   "~3 MB",
		Description: "Soft solo piano for quiet and emotional scenes.",
	},
	{
		ID:          "cinematic-rise",
		Name:        "Cinematic Rise",
		FileName:    "cinematic-rise.mp3",
		URL:         "https://cdn.pixabay.com/audio/2022/10/25/audio_5b6ed2da3f.mp3",
		SizeLabel:   "~4 MB",
		Description: "Building orchestral swell for reveals and openings.",
	},
	{
		ID:          "dark-tension",
		Name:        "Dark Tension",
		FileName:    "dark-tension.mp3",
		URL:         "https://cdn.pixabay.com/audio/2023/01/08/audio_7a8bc86de3.mp3",
		SizeLabel:   "~4 MB",
		Description: "Low drones and pulses for suspenseful moments.",
	},
	{
		ID:          "upbeat-adventure",
		Name:        "Upbeat Adventure",
		FileName:    "upbeat-adventure.mp3",
		URL:         "https://cdn.pixabay.com/audio/2022/08/02/audio_884fe92c21.mp3",
		SizeLabel:   "~5 MB",
		Description: "Driving rhythm for action and travel sequences.",
	},
	{
		ID:          "ambient-dream",
		Name:        "Ambient Dream",
		FileName:    "ambient-dream.mp3",
		URL:         "https://cdn.pixabay.com/audio/2022/05/27/audio_1808fbf07a.mp3",
		SizeLabel:   "~6 MB",
		Description: "Washed-out pads for dream sequences and memories.",
	},
	{
		ID:          "noir-jazz",
		Name:        "Noir Jazz",
		FileName:    "noir-jazz.mp3",
		URL:         "https://cdn.pixabay.com/audio/2023/06/14/audio_2c4a9ed731.mp3",
		SizeLabel:   "~4 MB",
		Description: "Smoky brush kit and upright bass for noir scenes.",
	},
}

// GetMusicTracks returns the built-in background music presets, marking
// tracks already downloaded into the media directory.
func (a *App) GetMusicTracks() []domain.MusicTrackOption {
	tracks := make([]domain.MusicTrackOption, len(musicTrackCatalog))
	copy(tracks, musicTrackCatalog)
	markDownloadedTracks(tracks, a.musicDir())
	return tracks
}

// DownloadMusicTrack fetches one preset into the media directory and
// returns it with its local path filled in.
func (a *App) DownloadMusicTrack(trackID string) (domain.MusicTrackOption, error) {
	id := strings.TrimSpace(trackID)
	if id == "" {
		return domain.MusicTrackOption{}, fmt.Errorf("track id is required")
	}

	track, found := getMusicTrackByID(id)
	if !found {
		return domain.MusicTrackOption{}, fmt.Errorf("unknown track id: %s", id)
	}

	targetPath := filepath.Join(a.musicDir(), track.FileName)
	if err := downloadURLToFile(targetPath, track.URL, trackDownloadTimeout); err != nil {
		return domain.MusicTrackOption{}, fmt.Errorf("download track %s: %w", track.Name, err)
	}

	track.Downloaded = true
	track.LocalPath = targetPath
	return track, nil
}

// SetSceneMusic attaches a downloaded preset to one scene. An empty
// track id clears the scene's background music.
func (a *App) SetSceneMusic(sceneID int64, trackID string) error {
	if _, ok := a.State.State().SceneByID(sceneID); !ok {
		return fmt.Errorf("unknown scene: %d", sceneID)
	}

	musicURL := ""
	if id := strings.TrimSpace(trackID); id != "" {
		track, found := getMusicTrackByID(id)
		if !found {
			return fmt.Errorf("unknown track id: %s", id)
		}
		localPath := filepath.Join(a.musicDir(), track.FileName)
		if info, err := os.Stat(localPath); err != nil || info.IsDir() {
			return fmt.Errorf("track %s is not downloaded", track.Name)
		}
		musicURL = localPath
	}

	a.State.Dispatch(store.UpdateSceneMix{SceneID: sceneID, Patch: store.MixPatch{
		BackgroundMusicURL: &musicURL,
	}})
	return nil
}

func (a *App) musicDir() string {
	return filepath.Join(a.Settings.MediaDir, "music")
}

func getMusicTrackByID(id string) (domain.MusicTrackOption, bool) {
	for _, track := range musicTrackCatalog {
		if track.ID == id {
			return track, true
		}
	}
	return domain.MusicTrackOption{}, false
}

func markDownloadedTracks(tracks []domain.MusicTrackOption, musicDir string) {
	for i := range tracks {
		candidate := filepath.Join(musicDir, tracks[i].FileName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		tracks[i].Downloaded = true
		tracks[i].LocalPath = candidate
	}
}

// downloadURLToFile fetches a URL into destinationPath through a temp
// file, so an interrupted download never leaves a partial track behind.
func downloadURLToFile(destinationPath string, sourceURL string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "storyboard-studio")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write download: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize download: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}
