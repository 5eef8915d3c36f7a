package main

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the full service configuration, populated from the
// environment.
type Config struct {
	// ListenAddress is where the HTTP server (WebSocket RPC + /metrics)
	// binds.
	ListenAddress string `env:"AUTHNODE_LISTEN_ADDRESS" env-default:":8000"`

	// JWTPrivateKey is a hex-encoded secp256k1 private key used to sign
	// session tokens. When empty an ephemeral key is generated at boot,
	// which invalidates outstanding sessions on restart.
	JWTPrivateKey string `env:"AUTHNODE_JWT_PRIVATE_KEY" env-default:""`

	Database DatabaseConfig
}

// LoadConfig reads the configuration from the environment. A full database
// URL, when present, takes precedence over the individual database fields.
func LoadConfig() (Config, error) {
	var cnf Config
	if err := cleanenv.ReadEnv(&cnf); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if cnf.Database.URL != "" {
		dbConf, err := ParseConnectionString(cnf.Database.URL)
		if err != nil {
			return Config{}, err
		}
		cnf.Database = dbConf
	}

	return cnf, nil
}
