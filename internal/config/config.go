package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	ServerAddress    string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"DEBUG"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"json"`
	Storage          string `env:"STORAGE" envDefault:"postgres"`
	AdminRole        string `env:"ADMIN_ROLE" envDefault:"admin"`
	WorkflowSeedFile string `env:"WORKFLOW_SEED_FILE"`
	PostgresConfig
}

// NewConfig reads the environment, after loading .env from the working
// directory when one exists.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}

	err := env.Parse(config)
	if err != nil {
		return config, fmt.Errorf("config.NewConfig: %w", err)
	}

	switch config.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return config, fmt.Errorf("config.NewConfig: unknown STORAGE '%s'", config.Storage)
	}
	return config, nil
}

type PostgresConfig struct {
	Conn            string `env:"POSTGRES_CONN" envDefault:"postgres://test:test@db:5432/test?sslmode=disable"`
	AutoMigrateUp   string `env:"AUTO_MIGRATE_UP" envDefault:"true"`
	AutoMigrateDown string `env:"AUTO_MIGRATE_DOWN" envDefault:"false"`
	// Empty means the migrations embedded in the binary.
	MigrationsURL string `env:"MIGRATIONS_URL"`
}

func NewPostgresConfig() (*PostgresConfig, error) {
	config := &PostgresConfig{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewPostgresConfig: %w", err)
	}
	return config, err
}
