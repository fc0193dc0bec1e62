package prompt

import (
	"fmt"
	"slices"
	"strings"
)

// Registry resolves templates by slug.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// Catalog is the in-memory Registry.
type Catalog struct {
	bySlug map[string]*Prompt
}

// NewRegistry indexes prompts by slug. Blank or repeated slugs are rejected.
func NewRegistry(prompts []*Prompt) (*Catalog, error) {
	c := &Catalog{bySlug: make(map[string]*Prompt, len(prompts))}
	if err := c.Override(prompts); err != nil {
		return nil, err
	}
	return c, nil
}

// Override adds prompts, replacing catalog entries that share a slug. The
// batch itself must not repeat a slug.
func (c *Catalog) Override(prompts []*Prompt) error {
	seen := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			return fmt.Errorf("prompt %s: missing slug", p.Source)
		}
		if seen[slug] {
			return fmt.Errorf("duplicate prompt slug: %s", slug)
		}
		seen[slug] = true
	}
	for _, p := range prompts {
		if p != nil {
			c.bySlug[strings.TrimSpace(p.Config.Slug)] = p
		}
	}
	return nil
}

// Get returns the template for slug.
func (c *Catalog) Get(slug string) (*Prompt, error) {
	if c == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	p, ok := c.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found (have %s)", slug, strings.Join(c.Slugs(), ", "))
	}
	return p, nil
}

// Slugs returns the known slugs, sorted.
func (c *Catalog) Slugs() []string {
	if c == nil {
		return nil
	}
	slugs := make([]string, 0, len(c.bySlug))
	for slug := range c.bySlug {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)
	return slugs
}

// List returns the templates sorted by slug.
func (c *Catalog) List() []*Prompt {
	slugs := c.Slugs()
	prompts := make([]*Prompt, 0, len(slugs))
	for _, slug := range slugs {
		prompts = append(prompts, c.bySlug[slug])
	}
	return prompts
}
