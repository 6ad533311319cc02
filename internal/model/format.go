package model

import "fmt"

// Format is the requested output format of a download job
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// ParseFormat normalizes a user-supplied format value. The legacy aliases
// "mp3" and "mp4" are accepted for compatibility with older clients.
func ParseFormat(raw string) (Format, error) {
	switch raw {
	case "audio", "mp3":
		return FormatAudio, nil
	case "video", "mp4":
		return FormatVideo, nil
	default:
		return "", fmt.Errorf("%w: unrecognized format %q", ErrInvalidRequest, raw)
	}
}

// Subdir returns the per-format directory name under the downloads root
func (f Format) Subdir() string {
	if f == FormatAudio {
		return "audio"
	}
	return "video"
}
