package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// PolicyProfile is a YAML-declared verification policy: the level
// ladder plus the agent roster. Deployments use profiles to tighten or
// extend the default ladder (e.g. enabling the QUANTUM tier) without
// rebuilding.
type PolicyProfile struct {
	Name         string         `yaml:"name"`
	DefaultLevel string         `yaml:"default_level,omitempty"`
	Levels       []LevelProfile `yaml:"levels"`
	Agents       []AgentProfile `yaml:"agents,omitempty"`
}

// LevelProfile declares one verification level.
type LevelProfile struct {
	Level         string   `yaml:"level"`
	MinConfidence float64  `yaml:"min_confidence"`
	AgentTimeout  Duration `yaml:"agent_timeout"`
	Capabilities  []string `yaml:"capabilities,omitempty"`
}

// Duration parses Go duration strings ("500ms", "2s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// AgentProfile declares one agent's registration parameters.
type AgentProfile struct {
	ID         string  `yaml:"id"`
	Capability string  `yaml:"capability"`
	Weight     float64 `yaml:"weight"`
	Veto       bool    `yaml:"veto,omitempty"`
}

// LoadProfile reads and validates a policy profile from a YAML file.
func LoadProfile(path string) (*PolicyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile parses profile YAML and validates the resulting ladder.
func ParseProfile(data []byte) (*PolicyProfile, error) {
	var profile PolicyProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("profile must have a name")
	}
	if _, err := profile.Ladder(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
	}
	if profile.DefaultLevel != "" {
		if _, err := contracts.ParseLevel(profile.DefaultLevel); err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
	}
	for _, a := range profile.Agents {
		if a.ID == "" || a.Capability == "" {
			return nil, fmt.Errorf("profile %s: agent entries need id and capability", profile.Name)
		}
		if a.Weight < 0 {
			return nil, fmt.Errorf("profile %s: agent %s: weight must be non-negative", profile.Name, a.ID)
		}
	}
	return &profile, nil
}

// Ladder converts the profile's level declarations into a validated
// ladder.
func (p *PolicyProfile) Ladder() (contracts.Ladder, error) {
	ladder := make(contracts.Ladder, 0, len(p.Levels))
	for _, lp := range p.Levels {
		level, err := contracts.ParseLevel(lp.Level)
		if err != nil {
			return nil, err
		}
		caps := make([]contracts.Capability, 0, len(lp.Capabilities))
		for _, c := range lp.Capabilities {
			caps = append(caps, contracts.Capability(c))
		}
		ladder = append(ladder, contracts.LevelPolicy{
			Level:         level,
			MinConfidence: lp.MinConfidence,
			AgentTimeout:  time.Duration(lp.AgentTimeout),
			Capabilities:  caps,
		})
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}
	return ladder, nil
}
