// Package prompt loads platform prompt templates and renders them for a topic.
package prompt

import "strings"

// TopicPlaceholder is the only substitution slot a template may contain.
const TopicPlaceholder = "{{topic}}"

// Config is the YAML frontmatter of a prompt file.
type Config struct {
	Platform    string `yaml:"platform" json:"platform"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Template    string `yaml:"template,omitempty" json:"template,omitempty"`
}

// Prompt wraps a loaded prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

// angleEscaper keeps a topic from opening or closing markup-style sections
// of the prompt.
var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Render substitutes topic into the template in a single literal pass.
// Braces or placeholder text inside topic are never expanded; angle
// brackets are entity-escaped.
func (p *Prompt) Render(topic string) string {
	if p == nil {
		return ""
	}
	return strings.ReplaceAll(p.Config.Template, TopicPlaceholder, angleEscaper.Replace(strings.TrimSpace(topic)))
}
