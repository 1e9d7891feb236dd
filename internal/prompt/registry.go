package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves prompts by platform.
type Registry interface {
	Get(platform string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry stores prompts by platform.
type InMemoryRegistry struct {
	prompts map[string]*Prompt
}

// NewRegistry builds a registry from prompts.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{prompts: make(map[string]*Prompt)}
	for _, prompt := range prompts {
		if prompt == nil {
			continue
		}
		platform := prompt.Config.Platform
		if _, ok := reg.prompts[platform]; ok {
			return nil, fmt.Errorf("duplicate prompt for platform: %s", platform)
		}
		reg.prompts[platform] = prompt
	}
	return reg, nil
}

// DefaultRegistry builds a registry from the embedded prompts.
func DefaultRegistry() (*InMemoryRegistry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

// NewRegistryWithOverrides starts from the embedded prompts and replaces any
// platform that has a file in dir. An empty dir yields the defaults.
func NewRegistryWithOverrides(dir string) (*InMemoryRegistry, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return reg, nil
	}

	overrides, err := LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	for _, p := range overrides {
		reg.prompts[p.Config.Platform] = p
	}
	return reg, nil
}

// Get returns the prompt for the platform.
func (r *InMemoryRegistry) Get(platform string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return nil, fmt.Errorf("platform is required")
	}
	prompt, ok := r.prompts[platform]
	if !ok {
		return nil, fmt.Errorf("no prompt for platform %q", platform)
	}
	return prompt, nil
}

// List returns prompts sorted by platform.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.prompts))
	for platform := range r.prompts {
		keys = append(keys, platform)
	}
	sort.Strings(keys)
	result := make([]*Prompt, 0, len(keys))
	for _, platform := range keys {
		result = append(result, r.prompts[platform])
	}
	return result
}
