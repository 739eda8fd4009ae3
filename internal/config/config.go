package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the settings file is looked up when no path is given.
const DefaultPath = "config/NewU/settings.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NEWU_"

// Economy backends.
const (
	BackendNone     = ""
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Charge percent bounds.
const (
	MinChargePercent = 1.0
	MaxChargePercent = 50.0
)

// Settings holds all NewU configuration.
type Settings struct {
	DataDir       string `yaml:"data_dir" env:"DATA_DIR"`
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL"`
	ListenAddress string `yaml:"listen_address" env:"LISTEN_ADDRESS"`

	Respawn  RespawnConfig  `yaml:"respawn" envPrefix:"RESPAWN_"`
	Economy  EconomyConfig  `yaml:"economy" envPrefix:"ECONOMY_"`
	Messages MessagesConfig `yaml:"messages" envPrefix:"MESSAGES_"`
	Backup   BackupConfig   `yaml:"backup" envPrefix:"BACKUP_"`
	Tracing  TracingConfig  `yaml:"tracing" envPrefix:"TRACING_"`
}

// RespawnConfig controls respawn fees.
type RespawnConfig struct {
	Charge        bool    `yaml:"charge" env:"CHARGE"`
	ChargePercent float64 `yaml:"charge_percent" env:"CHARGE_PERCENT"` // 1..50
	WaivePayments bool    `yaml:"waive_payments" env:"WAIVE_PAYMENTS"`
}

// EconomyConfig selects the account ledger.
type EconomyConfig struct {
	Backend    string         `yaml:"backend" env:"BACKEND"`
	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Database   DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"DBNAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MessagesConfig points at an optional respawn message file.
type MessagesConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// BackupConfig controls station file backups.
type BackupConfig struct {
	Dir     string `yaml:"dir" env:"DIR"`
	OnStart bool   `yaml:"on_start" env:"ON_START"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Exporter string `yaml:"exporter" env:"EXPORTER"` // "stdout" or "none"
}

// Default returns Settings with the plugin's historical defaults.
func Default() Settings {
	return Settings{
		DataDir:       "config/NewU",
		LogLevel:      "info",
		ListenAddress: "127.0.0.1:8765",
		Respawn: RespawnConfig{
			Charge:        false,
			ChargePercent: 7.0,
			WaivePayments: true,
		},
		Economy: EconomyConfig{
			Backend:    BackendNone,
			SQLitePath: "config/NewU/economy.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "newu",
				Password: "newu",
				DBName:   "newu",
				SSLMode:  "disable",
			},
		},
		Backup: BackupConfig{
			Dir: "config/NewU/backups",
		},
		Tracing: TracingConfig{
			Exporter: "stdout",
		},
	}
}

// Load reads settings from a YAML file and applies NEWU_* environment
// overrides. If the file doesn't exist, defaults are used.
func Load(path string) (Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing env: %w", err)
	}
	return cfg, nil
}

// Validate reports every setting that prevents startup.
func (s Settings) Validate() error {
	var errs []error
	if s.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	p := s.Respawn.ChargePercent
	if p < MinChargePercent || p > MaxChargePercent {
		errs = append(errs, fmt.Errorf("respawn.charge_percent %.2f outside %.0f..%.0f", p, MinChargePercent, MaxChargePercent))
	}
	switch s.Economy.Backend {
	case BackendNone:
		if s.Respawn.Charge {
			errs = append(errs, errors.New("respawn.charge is enabled but economy.backend is empty"))
		}
	case BackendSQLite:
		if s.Economy.SQLitePath == "" {
			errs = append(errs, errors.New("economy.sqlite_path is empty"))
		}
	case BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown economy.backend %q", s.Economy.Backend))
	}
	switch s.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("unknown tracing.exporter %q", s.Tracing.Exporter))
	}
	return errors.Join(errs...)
}

// IsCharging reports whether respawns cost money.
func (s Settings) IsCharging() bool {
	return s.Respawn.Charge
}

// ChargePercent returns the fee as a fraction of the balance (0.07 for 7%).
func (s Settings) ChargePercent() float64 {
	return s.Respawn.ChargePercent / 100
}

// IsWaivable reports whether actors who cannot pay still respawn at a station.
func (s Settings) IsWaivable() bool {
	return s.Respawn.WaivePayments
}
