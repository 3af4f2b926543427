package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"procurement/internal/models"
)

func TestNormalizeRoles(t *testing.T) {
	roles, err := NormalizeRoles([]string{" procurement_officer", "finance_manager "})
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 2 || roles[0] != "procurement_officer" || roles[1] != "finance_manager" {
		t.Errorf("Unexpected normalized roles: %v", roles)
	}

	bad := [][]string{
		nil,
		{"a", ""},
		{"a", "b", "a"},
	}
	for _, roles := range bad {
		if _, err := NormalizeRoles(roles); !errors.Is(err, models.ErrValidation) {
			t.Errorf("NormalizeRoles(%q) should fail with validation error, got %v", roles, err)
		}
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	content := `
workflow:
  - procurement_officer
  - finance_manager
  - exec_director
users:
  - username: " jdoe "
    firstName: John
    lastName: Doe
    role: procurement_officer
`
	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(seed.Roles) != 3 || seed.Roles[2] != "exec_director" {
		t.Errorf("Unexpected seed roles: %v", seed.Roles)
	}
	if len(seed.Users) != 1 || seed.Users[0].Username != "jdoe" || seed.Users[0].RoleId != "procurement_officer" || seed.Users[0].LastName != "Doe" {
		t.Errorf("Unexpected seed users: %+v", seed.Users)
	}

	if _, err := LoadSeed(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing seed file")
	}

	err = os.WriteFile(path, []byte("workflow: []\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeed(path); !errors.Is(err, models.ErrEmptyWorkflow) {
		t.Errorf("Empty seed should fail with %v, got %v", models.ErrEmptyWorkflow, err)
	}

	err = os.WriteFile(path, []byte("workflow: [a]\nusers:\n  - role: a\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeed(path); !errors.Is(err, models.ErrValidation) {
		t.Errorf("User without username should fail with validation error, got %v", err)
	}
}
