package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from environment variables via its `env` struct
// tags. target must be a pointer to a struct.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
