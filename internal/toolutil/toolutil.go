// Package toolutil provides shared helper functions for go_ytcrawl MCP tools.
package toolutil

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
)

// NormLang normalises a language field: empty string → configured default.
func NormLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return engine.Cfg.Language
	}
	return lang
}

// VideoID resolves a URL or bare id to a video id.
func VideoID(urlOrID string) (string, error) {
	if strings.TrimSpace(urlOrID) == "" {
		return "", fmt.Errorf("url is required")
	}
	id := engine.ExtractVideoID(urlOrID)
	if id == "" {
		return "", fmt.Errorf("not a YouTube video url or id: %q", urlOrID)
	}
	return id, nil
}

// ClampLimit returns def for n <= 0 and caps n at max.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
