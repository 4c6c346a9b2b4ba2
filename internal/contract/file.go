package contract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates a contract from a YAML file.
func LoadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a contract from YAML bytes.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse contract: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}
	return &c, nil
}
