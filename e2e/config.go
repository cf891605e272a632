package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR points the suite at an already-running relay; when empty
	// the suite boots a full in-process stack instead.
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// E2E_DEBUG_JSON dumps every websocket frame exchanged during the run
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours     bool   `envconfig:"E2E_COLOURS" default:"true"`
	AuthSecret  string `envconfig:"E2E_AUTH_SECRET"`
	ReadTimeout int    `envconfig:"E2E_READ_TIMEOUT_SECONDS" default:"5"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
