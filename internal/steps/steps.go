// Package steps loads the ordered analysis-step configuration. The core
// has no opinion about where the list comes from; this loader reads the
// YAML shape used by the CLI.
package steps

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archhub/investigator/internal/types"
)

// Config is the caller-supplied step configuration: the processing order
// drives both execution and final document ordering.
type Config struct {
	ProcessingOrder []types.StepDescriptor `yaml:"processing_order"`
}

// rawStep exists so that an omitted required flag defaults to true rather
// than Go's zero value.
type rawStep struct {
	Name                string   `yaml:"name"`
	Description         string   `yaml:"description"`
	Required            *bool    `yaml:"required"`
	ContextDependencies []string `yaml:"context_dependencies"`
}

type rawConfig struct {
	ProcessingOrder []rawStep `yaml:"processing_order"`
}

// Load reads and validates a step configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates step configuration YAML.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse step config: %w", err)
	}

	cfg := &Config{ProcessingOrder: make([]types.StepDescriptor, 0, len(raw.ProcessingOrder))}
	seen := make(map[string]bool, len(raw.ProcessingOrder))
	for i, step := range raw.ProcessingOrder {
		if step.Name == "" {
			return nil, fmt.Errorf("step config: step %d has no name", i)
		}
		if seen[step.Name] {
			return nil, fmt.Errorf("step config: duplicate step name %q", step.Name)
		}
		seen[step.Name] = true

		required := true
		if step.Required != nil {
			required = *step.Required
		}
		cfg.ProcessingOrder = append(cfg.ProcessingOrder, types.StepDescriptor{
			Name:                step.Name,
			Description:         step.Description,
			Required:            required,
			ContextDependencies: step.ContextDependencies,
		})
	}

	// Context dependencies must name earlier steps; the core does not
	// topologically sort, it only checks the declared order is usable.
	for i, step := range cfg.ProcessingOrder {
		for _, dep := range step.ContextDependencies {
			found := false
			for j := 0; j < i; j++ {
				if cfg.ProcessingOrder[j].Name == dep {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("step config: %q depends on %q which does not precede it", step.Name, dep)
			}
		}
	}

	return cfg, nil
}

// Names returns the configured step names in processing order.
func (c *Config) Names() []string {
	names := make([]string, len(c.ProcessingOrder))
	for i, step := range c.ProcessingOrder {
		names[i] = step.Name
	}
	return names
}

// Find returns the descriptor for a step name.
func (c *Config) Find(name string) (types.StepDescriptor, bool) {
	for _, step := range c.ProcessingOrder {
		if step.Name == name {
			return step, true
		}
	}
	return types.StepDescriptor{}, false
}
