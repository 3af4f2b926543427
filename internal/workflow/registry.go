package workflow

import (
	"fmt"
	"os"
	"strings"

	"procurement/internal/models"

	"gopkg.in/yaml.v3"
)

// NormalizeRoles trims role ids and rejects blank or repeated entries.
func NormalizeRoles(roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("workflow.NormalizeRoles: %w", models.ErrEmptyWorkflow)
	}

	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for i, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, fmt.Errorf("workflow.NormalizeRoles: %w", models.Invalidf("roles", "entry %d is blank", i))
		}
		if seen[role] {
			return nil, fmt.Errorf("workflow.NormalizeRoles: %w", models.Invalidf("roles", "role '%s' appears more than once", role))
		}
		seen[role] = true
		out = append(out, role)
	}
	return out, nil
}

type seedUser struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
}

type seedFile struct {
	Workflow []string   `yaml:"workflow"`
	Users    []seedUser `yaml:"users"`
}

// Seed is the start-up content of an empty installation.
type Seed struct {
	Roles []string
	Users []models.User
}

// LoadSeed reads the initial approval chain and the optional user directory
// from a YAML file of the form
//
//	workflow:
//	  - procurement_officer
//	  - finance_manager
//	users:
//	  - username: jdoe
//	    firstName: John
//	    lastName: Doe
//	    role: procurement_officer
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("workflow.LoadSeed: reading %s: %w", path, err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Seed{}, fmt.Errorf("workflow.LoadSeed: parsing %s: %w", path, err)
	}

	roles, err := NormalizeRoles(f.Workflow)
	if err != nil {
		return Seed{}, fmt.Errorf("workflow.LoadSeed: %s: %w", path, err)
	}

	users := make([]models.User, 0, len(f.Users))
	for i, u := range f.Users {
		username := strings.TrimSpace(u.Username)
		if username == "" {
			return Seed{}, fmt.Errorf("workflow.LoadSeed: %s: %w", path, models.Invalidf("users", "entry %d has no username", i))
		}
		users = append(users, models.User{
			Username:  username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			RoleId:    strings.TrimSpace(u.Role),
		})
	}

	return Seed{Roles: roles, Users: users}, nil
}
