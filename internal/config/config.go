package config

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBName      string `mapstructure:"DB_NAME"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	AIURL    string `mapstructure:"AI_URL"`
	AIModel  string `mapstructure:"AI_MODEL"`
	AIAPIKey string `mapstructure:"AI_API_KEY"`

	WorkersEnabled  bool   `mapstructure:"WORKERS_ENABLED"`
	ReplySchedule   string `mapstructure:"REPLY_WORKER_SCHEDULE"`
	MetricsSchedule string `mapstructure:"METRICS_WORKER_SCHEDULE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "l1_support")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WORKERS_ENABLED", false)
	v.SetDefault("REPLY_WORKER_SCHEDULE", "@every 1m")
	v.SetDefault("METRICS_WORKER_SCHEDULE", "@every 1h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DSN returns the pool connection string. DATABASE_URL wins when set,
// otherwise the URL is assembled from the DB_* parts.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName)
}
