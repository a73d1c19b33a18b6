// Package diagnostics runs startup environment checks.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"storyboard-studio/internal/config"
	"storyboard-studio/internal/domain"
)

// APIKeyEnv is the environment variable holding the generation credential.
const APIKeyEnv = "GEMINI_API_KEY"

// Checker validates credentials and required filesystem paths.
type Checker struct {
	getenv     func(string) string
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		getenv:     os.Getenv,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	getenv func(string) string,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		getenv:     getenv,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings config.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkAPIKey(),
		c.checkMediaDir(settings.MediaDir),
		c.checkProjectFile(settings.ProjectPath),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkAPIKey verifies the generation credential is configured.
func (c *Checker) checkAPIKey() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_key",
		Name: "Generation API key",
	}

	if strings.TrimSpace(c.getenv(APIKeyEnv)) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is not set.", APIKeyEnv)
		item.Hint = "Export the key or add it to a .env file before generating assets."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "API key is configured."
	return item
}

// checkMediaDir validates media directory existence and write access.
func (c *Checker) checkMediaDir(mediaDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "media_dir",
		Name: "Media directory",
	}

	if strings.TrimSpace(mediaDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Media directory is empty."
		item.Hint = "Set a directory where generated images and audio can be written."
		return item
	}

	if err := c.mkdirAll(mediaDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create media directory: %s", mediaDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(mediaDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Media directory is not writable: %s", mediaDir)
		item.Hint = "Choose a writable directory for generated assets."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", mediaDir)
	return item
}

// checkProjectFile validates the saved project file when one exists.
func (c *Checker) checkProjectFile(projectPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "project_file",
		Name: "Saved project",
	}

	if strings.TrimSpace(projectPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Project path is empty."
		item.Hint = "Set a file path where the project snapshot can be stored."
		return item
	}

	info, err := c.stat(projectPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = "No saved project yet."
			return item
		}
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access project file: %s", projectPath)
		item.Hint = "Check permissions for the project file."
		return item
	}

	if info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Project path is a directory: %s", projectPath)
		item.Hint = "Point the project path at a file, not a directory."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Saved project found: %s", projectPath)
	return item
}
