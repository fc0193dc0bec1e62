package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/output"
)

// addOutputFlags registers --output-format (restricted to formats, first is
// the default), --out and --out-dir. Passing no formats registers only --out.
func addOutputFlags(cmd *cobra.Command, formats ...output.Format) {
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	if len(formats) == 0 {
		return
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	cmd.Flags().String("output-format", names[0], "Output format: "+strings.Join(names, "|"))
	cmd.Flags().String("out-dir", "", "Write output to <dir>/<name>.<ext>")
	cmd.Annotations = map[string]string{"output-formats": strings.Join(names, ",")}
}

// outputTarget is the destination and encoding chosen by the output flags.
type outputTarget struct {
	format output.Format
	path   string
	dir    string
}

// resolveOutput validates the output flags registered by addOutputFlags.
func resolveOutput(cmd *cobra.Command) (outputTarget, error) {
	var t outputTarget
	t.path = strings.TrimSpace(flagString(cmd, "out"))
	t.dir = strings.TrimSpace(flagString(cmd, "out-dir"))
	if t.path != "" && t.dir != "" {
		return t, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}

	t.format = output.FormatTable
	if cmd.Flags().Lookup("output-format") == nil {
		return t, nil
	}
	format, err := output.ParseFormat(flagString(cmd, "output-format"))
	if err != nil {
		return t, err
	}
	if allowed := strings.Split(cmd.Annotations["output-formats"], ","); !slices.Contains(allowed, string(format)) {
		return t, fmt.Errorf("unsupported output format for %s: %s", cmd.Name(), format)
	}
	t.format = format
	return t, nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

// open returns the writer for the target. With --out-dir the file is named
// after stem plus the format's extension. Callers must invoke the returned
// close func.
func (t outputTarget) open(cmd *cobra.Command, stem string) (io.Writer, func() error, error) {
	path := t.path
	if t.dir != "" {
		path = filepath.Join(t.dir, safeFilename(stem)+"."+extensionFor(t.format))
	}
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path) // #nosec G304 -- path comes from the user's own flags
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// write opens the target and writes rendered followed by a newline.
func (t outputTarget) write(cmd *cobra.Command, stem, rendered string) error {
	w, closeFn, err := t.open(cmd, stem)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, rendered); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func safeFilename(stem string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(stem)), "-")
	if clean = strings.Trim(clean, "-."); clean == "" {
		return "output"
	}
	return clean
}
