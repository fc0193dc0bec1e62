package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/store"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatRateLimits(entries []store.RateLimitEntry, now time.Time) (string, error) {
	return "## Rate limits\n\n" + rateLimitTable(entries, now).RenderMarkdown() + "\n", nil
}

func (f *MarkdownFormatter) FormatResponses(rows []store.CachedResponse, now time.Time) (string, error) {
	return "## Offline cache\n\n" + responseTable(rows, now).RenderMarkdown() + "\n", nil
}

func (f *MarkdownFormatter) FormatGeneration(result *humanizer.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString(result.Text)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("_%s / %s, %d tokens_\n", escapeMarkdownCell(result.Provider), escapeMarkdownCell(result.Model), result.TotalTokens))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
