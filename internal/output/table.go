package output

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func (f *TableFormatter) FormatRateLimits(entries []store.RateLimitEntry, now time.Time) (string, error) {
	return rateLimitTable(entries, now).Render(), nil
}

func (f *TableFormatter) FormatResponses(rows []store.CachedResponse, now time.Time) (string, error) {
	return responseTable(rows, now).Render(), nil
}

func (f *TableFormatter) FormatGeneration(result *humanizer.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Model", "Tokens"})
	t.AppendRow(table.Row{result.Provider, result.Model, result.TotalTokens})
	return result.Text + "\n\n" + t.Render(), nil
}

func rateLimitTable(entries []store.RateLimitEntry, now time.Time) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Count", "Window Reset", "State"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Key, e.Count, timestamp(e.WindowResetAt), rateLimitState(e, now)})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d entries", len(entries))})
	return t
}

func responseTable(rows []store.CachedResponse, now time.Time) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Created", "Expires", "Size", "State", "Preview"})
	expired := 0
	for _, r := range rows {
		state := responseState(r, now)
		if state == "expired" {
			expired++
		}
		t.AppendRow(table.Row{
			r.URL,
			timestamp(r.Timestamp),
			humanize.RelTime(r.ExpiresAt, now, "ago", "from now"),
			humanize.IBytes(uint64(len(r.Response))),
			state,
			preview(r.Response),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d expired", expired, len(rows)), ""})
	return t
}
