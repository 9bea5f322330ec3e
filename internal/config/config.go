package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"testing-platform"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:3000"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Scheduler Scheduler
	Transport Transport
	Security  Security
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds settings-store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Scheduler groups dispatcher defaults. The delivery window and repetition
// period are not here: those are live settings owned by the settings
// provider.
type Scheduler struct {
	Tick      time.Duration `env:"SCHEDULER_TICK" envDefault:"1s"`
	BunchSize int           `env:"SCHEDULER_BUNCH_SIZE" envDefault:"1"`
}

// Transport configures the outbound messaging integration.
type Transport struct {
	MessagingURL string        `env:"MESSAGING_URL,notEmpty"`
	WebhookURL   string        `env:"WEBHOOK_URL,notEmpty"`
	HTTPTimeout  time.Duration `env:"TRANSPORT_HTTP_TIMEOUT" envDefault:"10s"`
}

// Security stores secrets for the admin API.
type Security struct {
	ServiceTokenSecret string `env:"SERVICE_TOKEN_SECRET"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
