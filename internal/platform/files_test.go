package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}

	// Second call on an existing directory is a no-op
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir on existing dir failed: %v", err)
	}
}

func TestResolveOutput_ExactPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Some Title.mp4")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	resolved, err := ResolveOutput(path)
	if err != nil {
		t.Fatalf("ResolveOutput failed: %v", err)
	}
	if resolved != path {
		t.Errorf("ResolveOutput = %q, expected %q", resolved, path)
	}
}

func TestResolveOutput_ExtensionChanged(t *testing.T) {
	dir := t.TempDir()
	// The tool reported a .webm destination but post-processing produced .mp3
	if err := os.WriteFile(filepath.Join(dir, "Track.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	resolved, err := ResolveOutput(filepath.Join(dir, "Track.webm"))
	if err != nil {
		t.Fatalf("ResolveOutput failed: %v", err)
	}
	if resolved != filepath.Join(dir, "Track.mp3") {
		t.Errorf("ResolveOutput = %q, expected the post-processed sibling", resolved)
	}
}

func TestResolveOutput_SkipsPartials(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Clip.mp4.part"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ResolveOutput(filepath.Join(dir, "Clip.mp4")); err == nil {
		t.Error("ResolveOutput should not match a .part file")
	}
}

func TestResolveOutput_Missing(t *testing.T) {
	if _, err := ResolveOutput(filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Error("ResolveOutput should fail for a missing file")
	}

	if _, err := ResolveOutput(""); err == nil {
		t.Error("ResolveOutput should fail for an empty path")
	}
}

func TestRemovePartials(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "Video.mp4")
	for _, name := range []string{"Video.mp4", "Video.mp4.part", "Video.mp4.ytdl"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	RemovePartials(dest)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory after RemovePartials, found %d entries", len(entries))
	}
}
