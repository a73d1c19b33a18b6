package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"storyboard-studio/internal/config"
	"storyboard-studio/internal/domain"
)

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	dir := t.TempDir()
	return config.Settings{
		MediaDir:    filepath.Join(dir, "media"),
		ProjectPath: filepath.Join(dir, "project.json"),
	}
}

func checkerWithEnv(key string) *Checker {
	return NewCheckerForTests(
		func(name string) string {
			if name == APIKeyEnv {
				return key
			}
			return ""
		},
		os.Stat,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)
}

func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("no diagnostic item %q in %+v", id, report.Items)
	return domain.DiagnosticItem{}
}

// TestRunAllPassing checks a healthy environment produces no failures.
func TestRunAllPassing(t *testing.T) {
	report := checkerWithEnv("secret").Run(testSettings(t))
	if report.HasFailures {
		t.Fatalf("report = %+v, want no failures", report)
	}
	if len(report.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(report.Items))
	}
}

// TestMissingAPIKeyFails checks the credential check.
func TestMissingAPIKeyFails(t *testing.T) {
	report := checkerWithEnv("").Run(testSettings(t))
	if !report.HasFailures {
		t.Fatal("expected a failure without the API key")
	}
	item := itemByID(t, report, "api_key")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %q, want fail", item.Status)
	}
	if item.Hint == "" {
		t.Fatal("expected a remediation hint")
	}
}

// TestUnwritableMediaDirFails checks the write probe.
func TestUnwritableMediaDirFails(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) string { return "secret" },
		os.Stat,
		os.MkdirAll,
		func(string, string) (*os.File, error) { return nil, fmt.Errorf("read-only filesystem") },
		os.Remove,
	)

	report := checker.Run(testSettings(t))
	item := itemByID(t, report, "media_dir")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %q, want fail", item.Status)
	}
}

// TestEmptyMediaDirFails checks an unset media dir is rejected.
func TestEmptyMediaDirFails(t *testing.T) {
	settings := testSettings(t)
	settings.MediaDir = "  "
	report := checkerWithEnv("secret").Run(settings)
	item := itemByID(t, report, "media_dir")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %q, want fail", item.Status)
	}
}

// TestMissingProjectFilePasses checks a fresh install is not a failure.
func TestMissingProjectFilePasses(t *testing.T) {
	report := checkerWithEnv("secret").Run(testSettings(t))
	item := itemByID(t, report, "project_file")
	if item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("status = %q, want pass for a fresh install", item.Status)
	}
}

// TestProjectPathIsDirectoryFails checks a misconfigured project path.
func TestProjectPathIsDirectoryFails(t *testing.T) {
	settings := testSettings(t)
	settings.ProjectPath = t.TempDir()

	report := checkerWithEnv("secret").Run(settings)
	item := itemByID(t, report, "project_file")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %q, want fail for a directory path", item.Status)
	}
}

// TestExistingProjectFilePasses checks a saved project is reported.
func TestExistingProjectFilePasses(t *testing.T) {
	settings := testSettings(t)
	if err := os.WriteFile(settings.ProjectPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report := checkerWithEnv("secret").Run(settings)
	item := itemByID(t, report, "project_file")
	if item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("status = %q, want pass", item.Status)
	}
}
