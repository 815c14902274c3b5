package action

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is an ordered, externally supplied action list. Order is
// significant: actions with implicit dependencies (install a package before
// enabling its service) must be declared in dependency order.
type Profile struct {
	Name    string   `yaml:"profile" json:"profile"`
	Actions []Action `yaml:"actions" json:"actions"`
}

// LoadProfile reads and validates a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("action: read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates profile YAML. Missing action keys are
// filled in from DefaultKey before uniqueness is checked.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("action: parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every action and enforces key uniqueness across the
// profile. It assigns default keys in place.
func (p *Profile) Validate() error {
	if len(p.Actions) == 0 {
		return fmt.Errorf("action: profile %q declares no actions", p.Name)
	}
	seen := make(map[string]int, len(p.Actions))
	for i := range p.Actions {
		a := &p.Actions[i]
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action: profile %q: %w", p.Name, err)
		}
		if a.Key == "" {
			a.Key = a.DefaultKey()
		}
		if prev, dup := seen[a.Key]; dup {
			return fmt.Errorf("action: profile %q: duplicate key %q (actions %d and %d)", p.Name, a.Key, prev, i)
		}
		seen[a.Key] = i
	}
	return nil
}
