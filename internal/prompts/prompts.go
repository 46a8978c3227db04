// Package prompts loads the directive templates used for each pipeline
// stage. Templates are embedded YAML files with a system directive and a
// user template; placeholders use {name} syntax.
package prompts

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

// Template is one stage's directive pair plus optional named fragments
// (the reviser carries per-situation length instructions).
type Template struct {
	System    string            `yaml:"system_prompt"`
	User      string            `yaml:"template"`
	Fragments map[string]string `yaml:"fragments,omitempty"`
}

// Library holds all loaded templates keyed by stage name.
type Library struct {
	templates map[string]Template
}

// Load parses every embedded template file.
func Load() (*Library, error) {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	lib := &Library{templates: make(map[string]Template, len(entries))}
	for _, entry := range entries {
		data, err := templatesFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		var tmpl Template
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		lib.templates[name] = tmpl
	}

	return lib, nil
}

// Get returns the template for a stage.
func (l *Library) Get(name string) (Template, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown template: %s", name)
	}
	return tmpl, nil
}

// Fragment returns a named fragment of a template, or fallback when the
// template or fragment is missing.
func (l *Library) Fragment(name, fragment, fallback string) string {
	tmpl, ok := l.templates[name]
	if !ok {
		return fallback
	}
	if v, ok := tmpl.Fragments[fragment]; ok && v != "" {
		return v
	}
	return fallback
}

// Format substitutes {key} placeholders in template. Placeholders without
// a provided value are left intact, so a malformed template never fails
// a stage.
func Format(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
