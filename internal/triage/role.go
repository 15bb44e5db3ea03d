package triage

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleMedico             Role = "MEDICO"
	RoleEnfermero          Role = "ENFERMERO"
	RoleParamedico         Role = "PARAMEDICO"
	RolePrimerRespondiente Role = "PRIMER_RESPONDIENTE"
)

var ErrUnknownRole = errors.New("unknown role")

//go:embed roles.yaml
var defaultRolesYAML []byte

type RoleProfile struct {
	ID      Role   `yaml:"id" json:"id"`
	Label   string `yaml:"label" json:"label"`
	Context string `yaml:"context" json:"context"`
}

type rolesFile struct {
	Roles []RoleProfile `yaml:"roles"`
}

// Catalog maps each supported role to the instruction it adds to a
// consultation. Order follows the source file.
type Catalog struct {
	profiles []RoleProfile
	byID     map[Role]RoleProfile
}

func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultRolesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded roles.yaml is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from path, or returns the embedded one when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role prompts %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse role prompts %s: %w", path, err)
	}
	return c, nil
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f rolesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("no roles defined")
	}
	c := &Catalog{byID: make(map[Role]RoleProfile, len(f.Roles))}
	for _, p := range f.Roles {
		p.ID = Role(strings.ToUpper(strings.TrimSpace(string(p.ID))))
		p.Context = strings.TrimSpace(p.Context)
		if p.ID == "" {
			return nil, fmt.Errorf("role id is required")
		}
		if p.Context == "" {
			return nil, fmt.Errorf("role %s has no context", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("role %s is defined twice", p.ID)
		}
		if p.Label == "" {
			p.Label = string(p.ID)
		}
		c.byID[p.ID] = p
		c.profiles = append(c.profiles, p)
	}
	return c, nil
}

func (c *Catalog) Profiles() []RoleProfile {
	out := make([]RoleProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Lookup accepts the role id case-insensitively.
func (c *Catalog) Lookup(raw string) (RoleProfile, error) {
	id := Role(strings.ToUpper(strings.TrimSpace(raw)))
	p, ok := c.byID[id]
	if !ok {
		return RoleProfile{}, fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return p, nil
}
