package prompt

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var defaultPromptsFS embed.FS

// Load parses a prompt definition: YAML frontmatter followed by the template body.
func Load(source string, data []byte) (*Prompt, error) {
	config, body, err := parseFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(config.Template) == "" {
		config.Template = strings.TrimSpace(body)
	}
	config.Platform = strings.ToLower(strings.TrimSpace(config.Platform))

	if config.Platform == "" {
		return nil, fmt.Errorf("prompt %s missing platform", source)
	}
	if config.Template == "" {
		return nil, fmt.Errorf("prompt %s missing template", source)
	}
	if !strings.Contains(config.Template, TopicPlaceholder) {
		return nil, fmt.Errorf("prompt %s template has no %s slot", source, TopicPlaceholder)
	}

	return &Prompt{Config: config, Source: source}, nil
}

// LoadDefaults loads the embedded prompt set.
func LoadDefaults() ([]*Prompt, error) {
	entries, err := defaultPromptsFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := defaultPromptsFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", entry.Name(), err)
		}
		prompt, err := Load(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

// LoadFromDir reads all .md prompt files from dir.
func LoadFromDir(dir string) ([]*Prompt, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, path := range entries {
		data, err := os.ReadFile(path) // #nosec G304 -- prompt dir is operator-provided
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", path, err)
		}
		prompt, err := Load(path, data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

func parseFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	lines := bufio.NewScanner(bytes.NewReader(trimmed))
	lines.Split(bufio.ScanLines)

	var (
		frontmatter []string
		body        []string
		inFront     bool
		headerSeen  bool
	)

	for lines.Scan() {
		line := lines.Text()
		switch {
		case !headerSeen && len(frontmatter) == 0 && len(body) == 0 && strings.TrimSpace(line) == "---":
			headerSeen = true
			inFront = true
		case inFront && strings.TrimSpace(line) == "---":
			inFront = false
		default:
			if inFront {
				frontmatter = append(frontmatter, line)
			} else {
				body = append(body, line)
			}
		}
	}
	if err := lines.Err(); err != nil {
		return Config{}, "", err
	}
	if !headerSeen {
		return Config{}, "", fmt.Errorf("missing frontmatter")
	}
	if inFront {
		return Config{}, "", fmt.Errorf("unterminated frontmatter")
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(strings.Join(frontmatter, "\n")), &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	return cfg, strings.Join(body, "\n"), nil
}
