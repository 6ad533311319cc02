package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Command constants
const (
	OpenCommand     = "open"
	ExplorerCommand = "explorer"
	XDGOpenCommand  = "xdg-open"
)

// Fallback file managers on Linux when xdg-open is unavailable
var LinuxFileManagers = []string{"nautilus", "dolphin", "thunar", "nemo", "pcmanfm"}

// In-flight file extensions the fetch tool leaves behind
var PartialExtensions = []string{".part", ".ytdl"}

// OpenFolder opens the directory in the system file manager
func OpenFolder(dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return fmt.Errorf("directory does not exist: %s", absPath)
	}

	switch runtime.GOOS {
	case OSDarwin:
		return exec.Command(OpenCommand, absPath).Run()
	case OSWindows:
		return exec.Command(ExplorerCommand, absPath).Run()
	case OSLinux:
		return openFolderLinux(absPath)
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// openFolderLinux tries xdg-open first, then common file managers
func openFolderLinux(dir string) error {
	if err := exec.Command(XDGOpenCommand, dir).Run(); err == nil {
		return nil
	}

	for _, fm := range LinuxFileManagers {
		if _, err := exec.LookPath(fm); err == nil {
			return exec.Command(fm, dir).Run()
		}
	}

	return fmt.Errorf("no suitable file manager found")
}

// EnsureDir creates the directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, DefaultDirPermissions)
	}
	return nil
}

// ResolveOutput locates the file the fetch tool actually produced. The
// reported destination may not match the final file because post-processing
// changes the extension (e.g. .webm becomes .mp3 after audio extraction), so
// when the exact path is missing the directory is searched for a file with
// the same base name.
func ResolveOutput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output path is empty")
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	base := strings.TrimSuffix(name, filepath.Ext(name))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || isPartialFile(entry.Name()) {
			continue
		}
		entryBase := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if entryBase == base {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("output file not found: %s", path)
}

// RemovePartials deletes the output file and any leftover in-flight artifacts
// for the reported destination. Used when a job is cancelled mid-transfer.
func RemovePartials(path string) {
	if path == "" {
		return
	}

	_ = os.Remove(path)
	for _, ext := range PartialExtensions {
		_ = os.Remove(path + ext)
	}

	// Post-processed sibling, if the tool got that far
	if resolved, err := ResolveOutput(path); err == nil {
		_ = os.Remove(resolved)
	}
}

func isPartialFile(name string) bool {
	for _, ext := range PartialExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
