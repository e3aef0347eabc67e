// Package profile defines launch profiles: named bundles of environment
// variables plus the downstream command they apply to. Profiles are loaded
// from HCL files and may inherit from one another; a built-in default
// profile is always present.
package profile

import (
	"fmt"
	"sort"
)

// Profile is the resolved form of a `profile` block. Env holds the final
// variable set after inheritance has been applied.
type Profile struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// EnvNames returns the profile's variable names in sorted order.
func (p *Profile) EnvNames() []string {
	names := make([]string, 0, len(p.Env))
	for name := range p.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set is a collection of profiles indexed by name, with inheritance links
// still unresolved.
type Set struct {
	profiles map[string]*rawProfile
	// userDefined tracks names declared in config files, so the built-in
	// default can be replaced exactly once.
	userDefined map[string]bool
}

// rawProfile is a profile as declared, before inheritance resolution.
type rawProfile struct {
	name     string
	inherits string
	command  string
	args     []string
	env      map[string]string
}

// Names returns all declared profile names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve walks the inheritance chain of the named profile and returns its
// final form. Child env keys override parent keys; command and args fall
// back to the nearest ancestor that sets them.
func (s *Set) Resolve(name string) (*Profile, error) {
	chain, err := s.chain(name)
	if err != nil {
		return nil, err
	}

	resolved := &Profile{
		Name: name,
		Env:  map[string]string{},
	}
	// Apply parent-first, so later (more specific) profiles win.
	for i := len(chain) - 1; i >= 0; i-- {
		raw := chain[i]
		if raw.command != "" {
			resolved.Command = raw.command
		}
		if raw.args != nil {
			resolved.Args = append([]string(nil), raw.args...)
		}
		for k, v := range raw.env {
			resolved.Env[k] = v
		}
	}

	if resolved.Command == "" {
		return nil, fmt.Errorf("profile %q resolves to an empty command", name)
	}
	return resolved, nil
}

// chain returns the profile and its ancestors, child first.
func (s *Set) chain(name string) ([]*rawProfile, error) {
	var chain []*rawProfile
	seen := map[string]bool{}
	for current := name; current != ""; {
		if seen[current] {
			return nil, fmt.Errorf("profile %q has a circular inherits chain", name)
		}
		seen[current] = true

		raw, ok := s.profiles[current]
		if !ok {
			if current == name {
				return nil, fmt.Errorf("unknown profile %q, have %v", name, s.Names())
			}
			return nil, fmt.Errorf("profile %q inherits unknown profile %q", name, current)
		}
		chain = append(chain, raw)
		current = raw.inherits
	}
	return chain, nil
}
