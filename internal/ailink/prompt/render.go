package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{name}} placeholders in the system and user templates.
// Missing required variables are an error; unknown placeholders render empty.
func (p *Prompt) Render(vars map[string]string) (system string, user string, err error) {
	if p == nil {
		return "", "", fmt.Errorf("prompt is nil")
	}

	var missing []string
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", "", fmt.Errorf("prompt %s: missing variables: %s", p.Config.Slug, strings.Join(missing, ", "))
	}

	values := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		values[k] = v
	}
	if p.Config.MaxChars > 0 {
		if _, ok := values["max_chars"]; !ok {
			values["max_chars"] = fmt.Sprintf("%d", p.Config.MaxChars)
		}
	}

	fill := func(tmpl string) string {
		return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
			name := placeholderPattern.FindStringSubmatch(match)[1]
			return values[name]
		})
	}
	return strings.TrimSpace(fill(p.Config.SystemTemplate)), strings.TrimSpace(fill(p.Config.UserTemplate)), nil
}
