package platform

import (
	"strings"

	"github.com/echodl/echo-downloader/internal/model"
)

// classifyRule maps diagnostic text fragments to an error kind. Rules are
// evaluated in order; the first match wins.
type classifyRule struct {
	fragments []string
	kind      model.ErrorKind
}

var classifyRules = []classifyRule{
	{
		fragments: []string{
			"no supported javascript runtime",
			"ffmpeg not found",
			"ffprobe not found",
			"executable file not found",
		},
		kind: model.ErrKindDependencyMissing,
	},
	{
		fragments: []string{
			"video unavailable",
			"private video",
			"has been removed",
			"sign in to confirm your age",
			"age-restricted",
			"premium members",
			"members-only",
			"not available in your country",
			"sign in to confirm",
		},
		kind: model.ErrKindUnavailable,
	},
	{
		fragments: []string{
			"unable to download webpage",
			"connection reset",
			"connection refused",
			"timed out",
			"temporary failure in name resolution",
			"getaddrinfo",
			"network is unreachable",
			"http error 5",
		},
		kind: model.ErrKindNetwork,
	},
}

// ClassifyFailure turns the fetch tool's final diagnostic line into a
// structured ErrorInfo. Unmatched text defaults to ProcessFailure with the
// raw diagnostic preserved.
func ClassifyFailure(diag string) model.ErrorInfo {
	diag = strings.TrimSpace(diag)
	if diag == "" {
		return model.ErrorInfo{
			Kind:   model.ErrKindProcessFailure,
			Detail: "external tool exited with an error",
		}
	}

	lower := strings.ToLower(diag)
	for _, rule := range classifyRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return model.ErrorInfo{Kind: rule.kind, Detail: diag}
			}
		}
	}

	return model.ErrorInfo{Kind: model.ErrKindProcessFailure, Detail: diag}
}
