// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config is the server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string `env:"PORT" envDefault:"23564"`
	// Origin is the allowed CORS origin. "*" allows any.
	Origin string `env:"ORIGIN" envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// ShutdownTimeout bounds the graceful-shutdown drain.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration. A missing .env file is not an error; set
// variables always win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}
