package platform

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// EventKind discriminates what a single output line of the fetch tool means
type EventKind int

const (
	// EventNone marks a line with no machine-readable meaning; ignored.
	EventNone EventKind = iota

	// EventProgress carries percent / rate / ETA figures.
	EventProgress

	// EventDestination reports the path the tool is writing to.
	EventDestination

	// EventFinished reports that the transfer itself completed.
	EventFinished

	// EventDiagnostic carries an error line emitted by the tool.
	EventDiagnostic
)

// Event is the structured form of one fetch-tool output line
type Event struct {
	Kind     EventKind
	Percent  float64
	SpeedBPS float64
	ETASec   int
	Path     string
	Message  string
}

// Line prefixes emitted by the fetch tool
const (
	errorPrefix        = "ERROR:"
	destinationPrefix  = "[download] Destination: "
	extractAudioPrefix = "[ExtractAudio] Destination: "
	mergerPrefix       = "[Merger] Merging formats into "
)

var classicProgressRe = regexp.MustCompile(
	`^\[download\]\s+([0-9.]+)%(?:\s+of\s+~?\s*\S+)?(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

// ParseProgressLine maps one raw output line to a structured Event.
// Unrecognized lines yield EventNone and are never an error. The function is
// stateless; monotonic percent enforcement happens where updates are applied.
func ParseProgressLine(line string) Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{Kind: EventNone}
	}

	if strings.HasPrefix(line, "{") {
		return parseJSONProgress(line)
	}

	if msg, ok := strings.CutPrefix(line, errorPrefix); ok {
		return Event{Kind: EventDiagnostic, Message: strings.TrimSpace(msg)}
	}

	if path, ok := strings.CutPrefix(line, destinationPrefix); ok {
		return Event{Kind: EventDestination, Path: strings.TrimSpace(path)}
	}
	if path, ok := strings.CutPrefix(line, extractAudioPrefix); ok {
		return Event{Kind: EventDestination, Path: strings.TrimSpace(path)}
	}
	if path, ok := strings.CutPrefix(line, mergerPrefix); ok {
		return Event{Kind: EventDestination, Path: strings.Trim(strings.TrimSpace(path), `"`)}
	}

	if m := classicProgressRe.FindStringSubmatch(line); m != nil {
		ev := Event{Kind: EventProgress, ETASec: -1}
		ev.Percent, _ = strconv.ParseFloat(m[1], 64)
		if m[2] != "" {
			ev.SpeedBPS = parseRate(m[2])
		}
		if m[3] != "" {
			ev.ETASec = parseClock(m[3])
		}
		return ev
	}

	return Event{Kind: EventNone}
}

// parseJSONProgress handles the --progress-template JSON line format. Both
// the wrapped {"progress": {...}} shape and the flat progress dict are
// accepted.
func parseJSONProgress(line string) Event {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{Kind: EventNone}
	}
	if wrapped, ok := raw["progress"].(map[string]any); ok {
		raw = wrapped
	}

	ev := Event{Kind: EventProgress, ETASec: -1}

	if p, ok := asFloat(raw["percent"]); ok {
		ev.Percent = p
	} else if s, ok := raw["_percent_str"].(string); ok {
		ev.Percent, _ = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	} else {
		downloaded, okDown := asFloat(raw["downloaded_bytes"])
		total, okTotal := asFloat(raw["total_bytes"])
		if !okTotal {
			total, okTotal = asFloat(raw["total_bytes_estimate"])
		}
		if okDown && okTotal && total > 0 {
			ev.Percent = downloaded / total * 100
		} else if !okDown {
			return Event{Kind: EventNone}
		}
	}

	if speed, ok := asFloat(raw["speed"]); ok {
		ev.SpeedBPS = speed
	}
	if eta, ok := asFloat(raw["eta"]); ok {
		ev.ETASec = int(eta)
	}

	if status, _ := raw["status"].(string); status == "finished" {
		ev.Kind = EventFinished
		ev.Percent = 100
	}

	if ev.Percent < 0 {
		ev.Percent = 0
	}
	if ev.Percent > 100 {
		ev.Percent = 100
	}
	return ev
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// parseRate converts rates like "1.25MiB/s" or "740.1KiB/s" to bytes/sec
func parseRate(raw string) float64 {
	raw = strings.TrimSuffix(raw, "/s")
	mult := 1.0
	switch {
	case strings.HasSuffix(raw, "GiB"):
		mult, raw = 1024*1024*1024, strings.TrimSuffix(raw, "GiB")
	case strings.HasSuffix(raw, "MiB"):
		mult, raw = 1024*1024, strings.TrimSuffix(raw, "MiB")
	case strings.HasSuffix(raw, "KiB"):
		mult, raw = 1024, strings.TrimSuffix(raw, "KiB")
	case strings.HasSuffix(raw, "B"):
		raw = strings.TrimSuffix(raw, "B")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// parseClock converts "MM:SS" or "HH:MM:SS" to seconds, -1 if unparseable
func parseClock(raw string) int {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return -1
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return -1
		}
		total = total*60 + n
	}
	return total
}
