package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook-post", "linkedin-post", "reply", "x-post"}, reg.Slugs())

	for _, p := range reg.List() {
		assert.NotEmpty(t, p.Config.SystemTemplate, p.Config.Slug)
		assert.NotEmpty(t, p.Config.UserTemplate, p.Config.Slug)
	}
}

func TestLoadFrontmatter(t *testing.T) {
	p, err := Load("x.md", []byte("---\nslug: x\nuser_template: hi\n---\nSystem line one.\nLine two.\n"))
	require.NoError(t, err)
	assert.Equal(t, "System line one.\nLine two.", p.Config.SystemTemplate)

	p, err = Load("plain.yaml", []byte("slug: plain\nsystem_template: sys\nuser_template: hi\n"))
	require.NoError(t, err)
	assert.Equal(t, "sys", p.Config.SystemTemplate)

	_, err = Load("open.md", []byte("---\nslug: open\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")

	_, err = Load("empty.md", []byte("  \n"))
	require.Error(t, err)
}

func TestLoadRejectsMissingUserTemplate(t *testing.T) {
	_, err := Load("bad.md", []byte("---\nslug: bad\n---\nsystem text\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UserTemplate")
}

func TestLoadRejectsUnknownPlatform(t *testing.T) {
	_, err := Load("bad.md", []byte("---\nslug: bad\nplatform: myspace\nuser_template: hi\n---\nsystem\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Platform")
}

func TestRender(t *testing.T) {
	p, err := Load("x.md", []byte(`---
slug: x
max_chars: 280
input:
  required_variables: [topic]
user_template: "Topic: {{topic}} / {{ tone }}"
---
Limit {{max_chars}} chars.
`))
	require.NoError(t, err)

	system, user, err := p.Render(map[string]string{"topic": "launch"})
	require.NoError(t, err)
	assert.Equal(t, "Limit 280 chars.", system)
	assert.Equal(t, "Topic: launch /", user)

	_, _, err = p.Render(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/a.md":      {Data: []byte("---\nslug: a\nuser_template: a\n---\nA\n")},
		"tpl/b.md":      {Data: []byte("---\nslug: b\nuser_template: b\n---\nB\n")},
		"tpl/notes.txt": {Data: []byte("ignored")},
	}
	prompts, err := LoadFS(fsys, "tpl")
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "a", prompts[0].Config.Slug)
	assert.Equal(t, "tpl/b.md", prompts[1].Source)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	a, err := Load("a.md", []byte("---\nslug: same\nuser_template: a\n---\nA\n"))
	require.NoError(t, err)
	b, err := Load("b.md", []byte("---\nslug: same\nuser_template: b\n---\nB\n"))
	require.NoError(t, err)

	_, err = NewRegistry([]*Prompt{a, b})
	require.Error(t, err)

	var nilCatalog *Catalog
	_, err = nilCatalog.Get("same")
	require.Error(t, err)
}

func TestLoadRegistryOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.md"), []byte("---\nslug: custom\nuser_template: \"{{topic}}\"\n---\nBe nice.\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.md"), []byte("---\nslug: x-post\nplatform: x\nuser_template: \"{{topic}}\"\n---\nHouse style.\n"), 0o600))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	_, err = reg.Get("custom")
	require.NoError(t, err)
	x, err := reg.Get("x-post")
	require.NoError(t, err)
	assert.Equal(t, "House style.", x.Config.SystemTemplate)
	_, err = reg.Get("reply")
	require.NoError(t, err, "defaults not overridden stay available")

	_, err = LoadRegistry(t.TempDir())
	require.Error(t, err)

	reg, err = LoadRegistry("")
	require.NoError(t, err)
	assert.Len(t, reg.List(), 4)
}
