package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Hacienda"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"hacienda"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
		MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
		MaxUpload   int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
		Metrics     bool          `envconfig:"METRICS_ENABLED" default:"true"`
	}

	Auth struct {
		Secret   string        `envconfig:"JWT_SECRET" required:"true"`
		TokenTTL time.Duration `envconfig:"JWT_TTL" default:"12h"`
	}

	Storage struct {
		Bucket          string        `envconfig:"GCS_BUCKET"`
		CredentialsJSON string        `envconfig:"GCS_CREDENTIALS_JSON"`
		SignedURLTTL    time.Duration `envconfig:"GCS_SIGNED_URL_TTL" default:"15m"`
	}

	Exchange struct {
		BaseURL  string        `envconfig:"DOLAR_API_URL" default:"https://dolarapi.com/v1"`
		House    string        `envconfig:"DOLAR_HOUSE" default:"oficial"`
		CacheTTL time.Duration `envconfig:"DOLAR_CACHE_TTL" default:"10m"`
	}

	Redis struct {
		URL string `envconfig:"REDIS_URL"`
	}

	OCR struct {
		URL     string        `envconfig:"OCR_URL"`
		Timeout time.Duration `envconfig:"OCR_TIMEOUT" default:"60s"`
	}

	Billing struct {
		DefaultIVA          string `envconfig:"IVA_DEFAULT" default:"10.5"`
		ConfidenceThreshold int    `envconfig:"DUT_CONFIDENCE_THRESHOLD" default:"70"`
	}

	Alerts struct {
		SweepInterval time.Duration `envconfig:"ALERT_SWEEP_INTERVAL" default:"1h"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// DefaultIVA is the tax percentage applied to new sales.
func (c *Config) DefaultIVA() decimal.Decimal {
	return decimal.RequireFromString(c.Billing.DefaultIVA)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := decimal.NewFromString(cfg.Billing.DefaultIVA); err != nil {
		return nil, fmt.Errorf("invalid IVA_DEFAULT %q: %w", cfg.Billing.DefaultIVA, err)
	}

	return &cfg, nil
}
