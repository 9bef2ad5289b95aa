package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona shapes the tone and focus of designed questions.
type Persona struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Focus       string `yaml:"focus"`
}

// DefaultPersonas are the built-in interviewer modes.
func DefaultPersonas() map[string]Persona {
	return map[string]Persona{
		"neutral": {
			Name:        "neutral",
			Description: "A calm, professional interviewer. Questions are direct and free of leading language.",
			Focus:       "balanced coverage of experience and judgment",
		},
		"friendly": {
			Name:        "friendly",
			Description: "A warm interviewer who puts the candidate at ease while still probing for specifics.",
			Focus:       "concrete stories and personal contribution",
		},
		"pressure": {
			Name:        "pressure",
			Description: "A demanding interviewer who challenges claims and asks for evidence at every step.",
			Focus:       "trade-offs, failure handling and measurable results",
		},
	}
}

// LoadPersonas reads persona presets from a YAML file and merges them over the
// defaults. An empty path returns the defaults unchanged.
func LoadPersonas(path string) (map[string]Persona, error) {
	out := DefaultPersonas()
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=planner.load_personas: %w", err)
	}
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("op=planner.load_personas: parse %s: %w", path, err)
	}
	for _, p := range doc.Personas {
		if p.Name == "" {
			continue
		}
		out[p.Name] = p
	}
	return out, nil
}
