package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders CLI results.
type Formatter interface {
	FormatRateLimits(entries []store.RateLimitEntry, now time.Time) (string, error)
	FormatResponses(rows []store.CachedResponse, now time.Time) (string, error)
	FormatGeneration(result *humanizer.Result) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

const previewLen = 48

// preview returns a single-line excerpt of a cached body.
func preview(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen-3]) + "..."
}

func responseState(row store.CachedResponse, now time.Time) string {
	if row.Expired(now) {
		return "expired"
	}
	return "fresh"
}

func rateLimitState(entry store.RateLimitEntry, now time.Time) string {
	if !now.Before(entry.WindowResetAt) {
		return "expired"
	}
	return "active"
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
