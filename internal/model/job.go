package model

import (
	"fmt"
	"time"
)

// Job represents a single user-requested download.
//
// A Job occupies exactly one state at any instant and transitions are
// monotonic: once a terminal state is reached no field is mutated again.
// Only the store mutates jobs; everything outside works on snapshots.
type Job struct {
	ID     string   `json:"id"`
	URL    string   `json:"source_url"`
	Format Format   `json:"format"`
	State  JobState `json:"state"`

	Percent  float64 `json:"progress_percent"` // 0 to 100, non-decreasing
	SpeedBPS float64 `json:"-"`                // bytes per second, 0 if unknown
	ETASec   int     `json:"-"`                // seconds remaining, -1 if unknown

	Title      string     `json:"title,omitempty"`
	OutputPath string     `json:"output_path,omitempty"` // set only on Completed
	Error      *ErrorInfo `json:"error_info,omitempty"`  // set only on Failed

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	CancelRequested bool `json:"cancel_requested"`
}

// SpeedString returns the transfer rate in human-readable form, or "" if unknown
func (j *Job) SpeedString() string {
	return FormatSpeed(j.SpeedBPS)
}

// ETAString returns the estimated time remaining in human-readable form,
// or "" if unknown
func (j *Job) ETAString() string {
	return FormatETA(j.ETASec)
}

// FormatSpeed converts bytes per second to a human-readable rate
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return ""
	}
	const mib = 1024 * 1024
	if bps >= mib {
		return fmt.Sprintf("%.2f MB/s", bps/mib)
	}
	return fmt.Sprintf("%.1f KB/s", bps/1024)
}

// FormatETA converts seconds to a human-readable remaining time
func FormatETA(sec int) string {
	if sec < 0 {
		return ""
	}
	m, s := sec/60, sec%60
	h, m := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
