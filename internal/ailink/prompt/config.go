package prompt

// Config describes a post template loaded from YAML frontmatter.
type Config struct {
	Slug           string         `yaml:"slug" json:"slug" validate:"required,max=64"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string         `yaml:"version,omitempty" json:"version,omitempty"`
	Platform       string         `yaml:"platform,omitempty" json:"platform,omitempty" validate:"omitempty,oneof=x linkedin facebook instagram any"`
	MaxChars       int            `yaml:"max_chars,omitempty" json:"max_chars,omitempty" validate:"gte=0"`
	Input          InputSpec      `yaml:"input,omitempty" json:"input,omitempty"`
	SystemTemplate string         `yaml:"system_template,omitempty" json:"system_template,omitempty" validate:"required"`
	UserTemplate   string         `yaml:"user_template,omitempty" json:"user_template,omitempty" validate:"required"`
	ProviderHints  map[string]any `yaml:"provider_hints,omitempty" json:"provider_hints,omitempty"`
}

// InputSpec defines template variables.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty" validate:"dive,required"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}
