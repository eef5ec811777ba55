package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VerifierPolicy seeds the on-ledger verifier allow-list at startup.
// Entries already present on the ledger are left untouched.
type VerifierPolicy struct {
	Verifiers []VerifierEntry `yaml:"verifiers"`
}

type VerifierEntry struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

func LoadVerifierPolicy(path string) (*VerifierPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var policy VerifierPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	for i, v := range policy.Verifiers {
		if v.Address == "" {
			return nil, fmt.Errorf("policy verifier %d has no address", i)
		}
	}
	return &policy, nil
}
