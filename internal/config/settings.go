package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values
const (
	DefaultAddr           = "127.0.0.1:8000"
	DefaultDownloadsDir   = "downloads"
	DefaultMaxParallel    = 3
	DefaultFetchBin       = "yt-dlp"
	DefaultProbeBin       = "yt-dlp"
	DefaultCancelGrace    = 5 * time.Second
	DefaultPreviewTimeout = 30 * time.Second
	DefaultJobTimeout     = 2 * time.Hour
	DefaultMaxQueueLen    = 100
	DefaultHistorySize    = 50
	DefaultPreviewPerSec  = 1.0
)

// Parallelism bounds
const (
	MinParallel = 1
	MaxParallel = 10
)

// Duration wraps time.Duration so it can be written as "30s" or "2h" in YAML
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings holds all runtime configuration
type Settings struct {
	Addr         string `yaml:"addr"`
	DownloadsDir string `yaml:"downloads_dir"`

	MaxParallel int  `yaml:"max_parallel"`
	QueueMode   bool `yaml:"queue_mode"`
	MaxQueueLen int  `yaml:"max_queue_len"`

	FetchBin string `yaml:"fetch_bin"`
	ProbeBin string `yaml:"probe_bin"`

	CancelGrace    Duration `yaml:"cancel_grace"`
	JobTimeout     Duration `yaml:"job_timeout"`
	PreviewTimeout Duration `yaml:"preview_timeout"`

	HistorySize   int     `yaml:"history_size"`
	PreviewPerSec float64 `yaml:"preview_per_sec"`
}

// Defaults returns settings with all built-in default values
func Defaults() Settings {
	return Settings{
		Addr:           DefaultAddr,
		DownloadsDir:   DefaultDownloadsDir,
		MaxParallel:    DefaultMaxParallel,
		MaxQueueLen:    DefaultMaxQueueLen,
		FetchBin:       DefaultFetchBin,
		ProbeBin:       DefaultProbeBin,
		CancelGrace:    Duration(DefaultCancelGrace),
		JobTimeout:     Duration(DefaultJobTimeout),
		PreviewTimeout: Duration(DefaultPreviewTimeout),
		HistorySize:    DefaultHistorySize,
		PreviewPerSec:  DefaultPreviewPerSec,
	}
}

// Load reads settings from the YAML file at path (skipped if path is empty or
// the file does not exist), applies environment overrides, and clamps values
// into valid ranges.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s.applyEnv()
	s.clamp()
	return s, nil
}

func (s *Settings) applyEnv() {
	s.Addr = getenv("ECHODL_ADDR", s.Addr)
	s.DownloadsDir = getenv("ECHODL_DOWNLOADS_DIR", s.DownloadsDir)
	s.FetchBin = getenv("ECHODL_FETCH_BIN", s.FetchBin)
	s.ProbeBin = getenv("ECHODL_PROBE_BIN", s.ProbeBin)
	s.MaxParallel = getenvInt("ECHODL_MAX_PARALLEL", s.MaxParallel)
	s.MaxQueueLen = getenvInt("ECHODL_MAX_QUEUE_LEN", s.MaxQueueLen)
	s.QueueMode = getenvBool("ECHODL_QUEUE_MODE", s.QueueMode)
	s.CancelGrace = getenvDuration("ECHODL_CANCEL_GRACE", s.CancelGrace)
	s.JobTimeout = getenvDuration("ECHODL_JOB_TIMEOUT", s.JobTimeout)
	s.PreviewTimeout = getenvDuration("ECHODL_PREVIEW_TIMEOUT", s.PreviewTimeout)
}

func (s *Settings) clamp() {
	if s.MaxParallel < MinParallel {
		s.MaxParallel = MinParallel
	}
	if s.MaxParallel > MaxParallel {
		s.MaxParallel = MaxParallel
	}
	if s.MaxQueueLen < 1 {
		s.MaxQueueLen = DefaultMaxQueueLen
	}
	if s.HistorySize < 1 {
		s.HistorySize = DefaultHistorySize
	}
	if s.PreviewPerSec <= 0 {
		s.PreviewPerSec = DefaultPreviewPerSec
	}
	if s.CancelGrace <= 0 {
		s.CancelGrace = Duration(DefaultCancelGrace)
	}
	if s.JobTimeout <= 0 {
		s.JobTimeout = Duration(DefaultJobTimeout)
	}
	if s.PreviewTimeout <= 0 {
		s.PreviewTimeout = Duration(DefaultPreviewTimeout)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback Duration) Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return Duration(v)
}
