// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Engine names accepted by BRIDGE_ENGINE.
const (
	EngineNATS = "nats"
	EngineGoja = "goja"
)

// Config holds native-bridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"native-bridge"`

	// Subject overrides (empty = commsutil defaults)
	InboundSubject  string `envconfig:"BRIDGE_INBOUND_SUBJECT"`
	OutboundSubject string `envconfig:"BRIDGE_OUTBOUND_SUBJECT"`
	ScriptSubject   string `envconfig:"BRIDGE_SCRIPT_SUBJECT"`
	JournalSubject  string `envconfig:"BRIDGE_JOURNAL_SUBJECT"`

	// Tags whose calls are relayed to bridge.receiver.<tag>
	RelayTags []string `envconfig:"BRIDGE_RELAY_TAGS"`

	// Bootstrap file with relay declarations and subject defaults
	BootstrapFile string `envconfig:"BRIDGE_BOOTSTRAP_FILE"`

	// Script side
	Engine            string        `envconfig:"BRIDGE_ENGINE" default:"nats"`
	ScriptFile        string        `envconfig:"BRIDGE_SCRIPT_FILE"`
	ScriptTimeout     time.Duration `envconfig:"BRIDGE_SCRIPT_TIMEOUT" default:"5s"`
	VersionConstraint string        `envconfig:"SCRIPT_VERSION_CONSTRAINT" default:"^1.0.0"`

	// Concurrent receivers; 0 = unbounded. A bound makes nativeCall reject when all slots are busy.
	WorkerMax int `envconfig:"WORKER_MAX" default:"0"`

	// Database (optional; enables the Postgres call journal)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge server.
func (c *Config) ValidateForServe() error {
	switch c.Engine {
	case EngineNATS, EngineGoja:
	default:
		return fmt.Errorf("%s - BRIDGE_ENGINE must be %q or %q, got %q", logPrefix, EngineNATS, EngineGoja, c.Engine)
	}
	if c.ScriptFile != "" && c.Engine != EngineGoja {
		return fmt.Errorf("%s - BRIDGE_SCRIPT_FILE requires BRIDGE_ENGINE=%s", logPrefix, EngineGoja)
	}
	if c.WorkerMax < 0 {
		return fmt.Errorf("%s - WORKER_MAX must not be negative", logPrefix)
	}
	if c.ScriptTimeout < 0 {
		return fmt.Errorf("%s - BRIDGE_SCRIPT_TIMEOUT must not be negative", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if c.RunMigrations && c.DatabaseURL == "" {
		return fmt.Errorf("%s - RUN_MIGRATIONS requires DATABASE_URL", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// JournalEnabled reports whether calls should be persisted to Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}
