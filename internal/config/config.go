// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds ocpp-central-system configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL     string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName    string `envconfig:"SERVICE_NAME" default:"ocpp-central-system"`
	COMMSEnabled bool   `envconfig:"COMMS_ENABLED" default:"true"`

	// Subjects for the external command channel and traffic events
	CommandSubject     string        `envconfig:"OCPP_COMMAND_SUBJECT" default:"ocpp.v16.commands"`
	EventSubjectPrefix string        `envconfig:"OCPP_EVENT_SUBJECT_PREFIX" default:"ocpp.v16.events"`
	CommandTimeout     time.Duration `envconfig:"OCPP_COMMAND_TIMEOUT" default:"60s"`

	// Station websocket listener
	ListenAddr         string        `envconfig:"OCPP_LISTEN_ADDR" default:"0.0.0.0:9000"`
	PathPrefix         string        `envconfig:"OCPP_PATH_PREFIX" default:"/ocpp/"`
	SubprotocolRange   string        `envconfig:"OCPP_SUBPROTOCOL_RANGE" default:"~1.6"`
	RequireSubprotocol bool          `envconfig:"OCPP_REQUIRE_SUBPROTOCOL" default:"false"`
	PingInterval       time.Duration `envconfig:"OCPP_PING_INTERVAL" default:"30s"`

	// Calls and station-facing behavior
	CallTimeout         time.Duration `envconfig:"OCPP_CALL_TIMEOUT" default:"30s"`
	MaxIDAttempts       int           `envconfig:"OCPP_MAX_ID_ATTEMPTS" default:"5"`
	HeartbeatInterval   time.Duration `envconfig:"OCPP_HEARTBEAT_INTERVAL" default:"300s"`
	AcceptUnknownTags   bool          `envconfig:"OCPP_ACCEPT_UNKNOWN_TAGS" default:"false"`
	DataTransferVendors []string      `envconfig:"OCPP_DATA_TRANSFER_VENDORS"`
	JournalQueue        int           `envconfig:"OCPP_JOURNAL_QUEUE" default:"1024"`

	// Seed file with charge points and id tags
	SeedFile string `envconfig:"OCPP_SEED_FILE"`

	// Database (empty = keep state in memory)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP ops endpoint (OPS_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"OPS_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// OpsAddr is the listen address of the HTTP ops endpoint.
func (c *Config) OpsAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// PersistenceEnabled reports whether state is kept in PostgreSQL.
func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseURL != ""
}

// ValidateForServe checks required config when running the central system.
func (c *Config) ValidateForServe() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%s - OCPP_LISTEN_ADDR is required for serve", logPrefix)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s - OCPP_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.MaxIDAttempts <= 0 {
		return fmt.Errorf("%s - OCPP_MAX_ID_ATTEMPTS must be positive", logPrefix)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%s - OCPP_HEARTBEAT_INTERVAL must be positive", logPrefix)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("%s - OCPP_PING_INTERVAL must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.COMMSEnabled && c.CommandTimeout <= 0 {
		return fmt.Errorf("%s - OCPP_COMMAND_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, seed).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
