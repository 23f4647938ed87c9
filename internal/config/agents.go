package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

type agentsFile struct {
	Agents []domain.AgentDescriptor `yaml:"agents"`
}

// AgentRoster resolves the search agent descriptors. A YAML roster file
// takes precedence, then the inline JSON env value, then a single
// default agent. Disabled entries are dropped and the remainder is
// ordered by priority.
func (c Config) AgentRoster() ([]domain.AgentDescriptor, error) {
	agents, err := c.loadRoster()
	if err != nil {
		return nil, err
	}

	enabled := make([]domain.AgentDescriptor, 0, len(agents))
	for _, a := range agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent roster: descriptor without id")
		}
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("agent roster: no enabled agents")
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	return enabled, nil
}

func (c Config) loadRoster() ([]domain.AgentDescriptor, error) {
	if c.AgentsFile != "" {
		data, err := os.ReadFile(c.AgentsFile)
		if err != nil {
			return nil, fmt.Errorf("agent roster: read %s: %w", c.AgentsFile, err)
		}
		var parsed agentsFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("agent roster: parse %s: %w", c.AgentsFile, err)
		}
		return parsed.Agents, nil
	}

	if c.AgentsJSON != "" {
		var agents []domain.AgentDescriptor
		if err := json.Unmarshal([]byte(c.AgentsJSON), &agents); err != nil {
			return nil, fmt.Errorf("agent roster: parse SEARCH_AGENTS: %w", err)
		}
		return agents, nil
	}

	return []domain.AgentDescriptor{
		{ID: "primary", Name: "Primary Search", Enabled: true, Priority: 0},
	}, nil
}
