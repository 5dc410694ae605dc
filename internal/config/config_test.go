package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"COMMS_URL", "SERVICE_NAME", "COMMS_ENABLED",
	"OCPP_COMMAND_SUBJECT", "OCPP_EVENT_SUBJECT_PREFIX", "OCPP_COMMAND_TIMEOUT",
	"OCPP_LISTEN_ADDR", "OCPP_PATH_PREFIX", "OCPP_SUBPROTOCOL_RANGE", "OCPP_REQUIRE_SUBPROTOCOL",
	"OCPP_PING_INTERVAL", "OCPP_CALL_TIMEOUT", "OCPP_MAX_ID_ATTEMPTS", "OCPP_HEARTBEAT_INTERVAL",
	"OCPP_ACCEPT_UNKNOWN_TAGS", "OCPP_DATA_TRANSFER_VENDORS", "OCPP_JOURNAL_QUEUE", "OCPP_SEED_FILE",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"OPS_HTTP_ADDR", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "ocpp-central-system" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "ocpp-central-system")
	}
	if !cfg.COMMSEnabled {
		t.Error("config:config_test - expected COMMSEnabled=true by default")
	}
	if cfg.CommandSubject != "ocpp.v16.commands" {
		t.Errorf("config:config_test - CommandSubject = %q", cfg.CommandSubject)
	}
	if cfg.EventSubjectPrefix != "ocpp.v16.events" {
		t.Errorf("config:config_test - EventSubjectPrefix = %q", cfg.EventSubjectPrefix)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("config:config_test - ListenAddr = %q, want 0.0.0.0:9000", cfg.ListenAddr)
	}
	if cfg.PathPrefix != "/ocpp/" {
		t.Errorf("config:config_test - PathPrefix = %q, want /ocpp/", cfg.PathPrefix)
	}
	if cfg.CallTimeout != 30*time.Second {
		t.Errorf("config:config_test - CallTimeout = %v, want 30s", cfg.CallTimeout)
	}
	if cfg.MaxIDAttempts != 5 {
		t.Errorf("config:config_test - MaxIDAttempts = %d, want 5", cfg.MaxIDAttempts)
	}
	if cfg.HeartbeatInterval != 300*time.Second {
		t.Errorf("config:config_test - HeartbeatInterval = %v, want 300s", cfg.HeartbeatInterval)
	}
	if cfg.AcceptUnknownTags {
		t.Error("config:config_test - expected AcceptUnknownTags=false by default")
	}
	if len(cfg.DataTransferVendors) != 0 {
		t.Errorf("config:config_test - DataTransferVendors = %v, want empty", cfg.DataTransferVendors)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("config:config_test - PingInterval = %v, want 30s", cfg.PingInterval)
	}
	if cfg.DatabaseURL != "" || cfg.PersistenceEnabled() {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "migrations")
	}
	if cfg.OpsAddr() != ":8080" {
		t.Errorf("config:config_test - OpsAddr() = %q, want :8080", cfg.OpsAddr())
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults do not validate for serve: %v", err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"COMMS_URL":                  "nats://custom:4222",
		"SERVICE_NAME":               "test-server",
		"COMMS_ENABLED":              "false",
		"OCPP_COMMAND_SUBJECT":       "site.commands",
		"OCPP_LISTEN_ADDR":           "127.0.0.1:9100",
		"OCPP_CALL_TIMEOUT":          "10s",
		"OCPP_HEARTBEAT_INTERVAL":    "60s",
		"OCPP_ACCEPT_UNKNOWN_TAGS":   "true",
		"OCPP_DATA_TRANSFER_VENDORS": "com.acme,org.example",
		"OCPP_SEED_FILE":             "/tmp/seed.toml",
		"DATABASE_URL":               "postgres://test@localhost/test",
		"RUN_MIGRATIONS":             "true",
		"OPS_HTTP_ADDR":              "127.0.0.1:9090",
		"LOG_LEVEL":                  "debug",
	}
	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "test-server" || cfg.COMMSEnabled {
		t.Errorf("config:config_test - COMMS = %q %q %v", cfg.COMMSURL, cfg.COMMSName, cfg.COMMSEnabled)
	}
	if cfg.CommandSubject != "site.commands" {
		t.Errorf("config:config_test - CommandSubject = %q", cfg.CommandSubject)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("config:config_test - ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.CallTimeout != 10*time.Second || cfg.HeartbeatInterval != 60*time.Second {
		t.Errorf("config:config_test - timeouts = %v / %v", cfg.CallTimeout, cfg.HeartbeatInterval)
	}
	if !cfg.AcceptUnknownTags {
		t.Error("config:config_test - expected AcceptUnknownTags=true")
	}
	if strings.Join(cfg.DataTransferVendors, "|") != "com.acme|org.example" {
		t.Errorf("config:config_test - DataTransferVendors = %v", cfg.DataTransferVendors)
	}
	if cfg.SeedFile != "/tmp/seed.toml" {
		t.Errorf("config:config_test - SeedFile = %q", cfg.SeedFile)
	}
	if !cfg.PersistenceEnabled() || !cfg.RunMigrations {
		t.Errorf("config:config_test - persistence = %v, migrations = %v", cfg.PersistenceEnabled(), cfg.RunMigrations)
	}
	if cfg.OpsAddr() != "127.0.0.1:9090" {
		t.Errorf("config:config_test - OpsAddr() = %q", cfg.OpsAddr())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv()
	os.Setenv("OCPP_CALL_TIMEOUT", "soon")
	defer clearEnv()

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid duration")
	}
}

func TestConfig_ValidateForServe(t *testing.T) {
	base := func() Config {
		return Config{
			ListenAddr:         ":9000",
			CallTimeout:        time.Second,
			MaxIDAttempts:      5,
			HeartbeatInterval:  time.Minute,
			PingInterval:       time.Second,
			HealthCheckTimeout: time.Second,
			COMMSEnabled:       true,
			CommandTimeout:     time.Second,
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no listen addr", mutate: func(c *Config) { c.ListenAddr = "" }, wantErr: "OCPP_LISTEN_ADDR"},
		{name: "zero call timeout", mutate: func(c *Config) { c.CallTimeout = 0 }, wantErr: "OCPP_CALL_TIMEOUT"},
		{name: "zero id attempts", mutate: func(c *Config) { c.MaxIDAttempts = 0 }, wantErr: "OCPP_MAX_ID_ATTEMPTS"},
		{name: "zero heartbeat", mutate: func(c *Config) { c.HeartbeatInterval = 0 }, wantErr: "OCPP_HEARTBEAT_INTERVAL"},
		{name: "zero ping", mutate: func(c *Config) { c.PingInterval = 0 }, wantErr: "OCPP_PING_INTERVAL"},
		{name: "zero health timeout", mutate: func(c *Config) { c.HealthCheckTimeout = 0 }, wantErr: "HEALTH_CHECK_TIMEOUT"},
		{name: "zero command timeout", mutate: func(c *Config) { c.CommandTimeout = 0 }, wantErr: "OCPP_COMMAND_TIMEOUT"},
		{name: "command timeout ignored without comms", mutate: func(c *Config) { c.CommandTimeout, c.COMMSEnabled = 0, false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.ValidateForServe()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("config:config_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("config:config_test - err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateForDB(t *testing.T) {
	if err := (&Config{}).ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	if err := (&Config{DatabaseURL: "postgres://x"}).ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
