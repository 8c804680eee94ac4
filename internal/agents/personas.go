package agents

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml prompts
var promptFiles embed.FS

// Persona is one advisory voter. Template is an f-string with {data} and
// {symbol} placeholders.
type Persona struct {
	Name     string `yaml:"name"`
	Prompt   string `yaml:"prompt"`
	Template string `yaml:"template"`
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// LoadPersonas reads the persona list from path, or the built-in list when
// path is empty. Personas without an inline template use the named prompt.
func LoadPersonas(path string) ([]Persona, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = promptFiles.ReadFile("personas.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}

	var file personaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if len(file.Personas) == 0 {
		return nil, fmt.Errorf("no personas defined")
	}

	seen := make(map[string]bool, len(file.Personas))
	for i := range file.Personas {
		p := &file.Personas[i]
		if p.Name == "" {
			return nil, fmt.Errorf("persona %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate persona %q", p.Name)
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Template) != "" {
			continue
		}
		if p.Prompt == "" {
			return nil, fmt.Errorf("persona %q has neither template nor prompt", p.Name)
		}
		tpl, err := LoadPrompt(p.Prompt)
		if err != nil {
			return nil, err
		}
		p.Template = tpl
	}
	return file.Personas, nil
}
