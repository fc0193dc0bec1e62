package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var builtin embed.FS

var validate = validator.New()

var frontmatterFence = []byte("---")

// Load parses one template: YAML frontmatter fenced by "---" lines, followed
// by a markdown body. The body is the system template unless the frontmatter
// sets system_template. A file without a fence is parsed as plain YAML.
func Load(source string, data []byte) (*Prompt, error) {
	cfg, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}
	if strings.TrimSpace(cfg.SystemTemplate) == "" {
		cfg.SystemTemplate = strings.TrimSpace(body)
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			err = fmt.Errorf("%s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}
	return &Prompt{Config: cfg, Source: source}, nil
}

func splitFrontmatter(data []byte) (Config, string, error) {
	var cfg Config
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return cfg, "", errors.New("empty prompt")
	}
	if !bytes.HasPrefix(trimmed, frontmatterFence) {
		if err := yaml.Unmarshal(trimmed, &cfg); err != nil {
			return cfg, "", fmt.Errorf("invalid yaml: %w", err)
		}
		return cfg, "", nil
	}

	front, body, found := bytes.Cut(trimmed[len(frontmatterFence):], []byte("\n---"))
	if !found {
		return cfg, "", errors.New("unterminated frontmatter")
	}
	if err := yaml.Unmarshal(front, &cfg); err != nil {
		return cfg, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	// Drop the rest of the closing fence line.
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}
	return cfg, string(body), nil
}

// LoadFS loads every *.md template in dir of fsys, in lexical order.
func LoadFS(fsys fs.FS, dir string) ([]*Prompt, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	prompts := make([]*Prompt, 0, len(matches))
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		p, err := Load(name, data)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// LoadDefaults loads the templates compiled into the binary.
func LoadDefaults() ([]*Prompt, error) {
	return LoadFS(builtin, "prompts")
}

// LoadRegistry returns the built-in templates, overridden slug by slug by the
// templates found in dir when dir is set. A dir without templates is an error.
func LoadRegistry(dir string) (Registry, error) {
	defaults, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	catalog, err := NewRegistry(defaults)
	if err != nil {
		return nil, err
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return catalog, nil
	}

	custom, err := LoadFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
	}
	if len(custom) == 0 {
		return nil, fmt.Errorf("no prompts found in %s", dir)
	}
	if err := catalog.Override(custom); err != nil {
		return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
	}
	return catalog, nil
}
