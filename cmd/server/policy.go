package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/storage"
)

// SecurityPolicy configures which roles may enroll biometric credentials and
// which admin accounts exist at startup. Loaded from a YAML file so operators
// can tighten the whitelist without a rebuild.
type SecurityPolicy struct {
	PrivilegedRoles []models.Role `yaml:"privileged_roles"`
	Users           []SeedUser    `yaml:"users"`
}

type SeedUser struct {
	ID    string      `yaml:"id"`
	Email string      `yaml:"email"`
	Name  string      `yaml:"name"`
	Role  models.Role `yaml:"role"`
}

// LoadPolicy reads the security policy file. A missing file is not an error;
// the built-in role whitelist applies and no users are seeded.
func LoadPolicy(path string) (*SecurityPolicy, error) {
	policy := &SecurityPolicy{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			policy.PrivilegedRoles = biometric.DefaultPrivilegedRoles
			return policy, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if len(policy.PrivilegedRoles) == 0 {
		policy.PrivilegedRoles = biometric.DefaultPrivilegedRoles
	}

	return policy, nil
}

// Seed writes the policy's user accounts into the directory.
func (p *SecurityPolicy) Seed(ctx context.Context, users storage.UserDirectory) error {
	for _, seed := range p.Users {
		if seed.Email == "" {
			return fmt.Errorf("seed user missing email")
		}

		id := seed.ID
		if id == "" {
			id = uuid.NewString()
		}

		user := &models.User{
			ID:        id,
			Email:     seed.Email,
			Name:      seed.Name,
			Role:      seed.Role,
			CreatedAt: time.Now().UTC(),
		}
		if err := users.Put(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", seed.Email, err)
		}
	}
	return nil
}
