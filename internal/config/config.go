package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Tokens     `yaml:"tokens"`
	Auth       `yaml:"auth"`
	Sessions   `yaml:"sessions"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	Mail       `yaml:"mail"`
	Catalog    `yaml:"catalog"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address       string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout       time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AllowedOrigin string        `yaml:"allowed_origin" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// Tokens holds the two independent signing secrets. TTLs are kept as durations and
// converted to whole seconds wherever a token expiry or cookie Max-Age is produced.
type Tokens struct {
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
}

type Auth struct {
	SecretKey            string `yaml:"secret_key" env:"SECRET_KEY" env-required:"true"`
	AppName              string `yaml:"app_name" env:"APP_NAME" env-default:"gametrack"`
	FrontendURL          string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	EmailSender          string `yaml:"email_sender" env:"EMAIL_SENDER" env-required:"true"`
	RequireVerifiedEmail bool   `yaml:"require_verified_email" env:"REQUIRE_VERIFIED_EMAIL" env-default:"false"`
}

type Sessions struct {
	RevokeOnLogout bool          `yaml:"revoke_on_logout" env:"REVOKE_ON_LOGOUT" env-default:"true"`
	PruneInterval  time.Duration `yaml:"prune_interval" env:"PRUNE_INTERVAL" env-default:"1h"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-required:"true"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-required:"true"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"redis:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"verification_emails"`
}

type Mail struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Catalog struct {
	IGDBURL         string        `yaml:"igdb_url" env:"IGDB_URL" env-default:"https://api.igdb.com/v4"`
	TwitchTokenURL  string        `yaml:"twitch_token_url" env:"TWITCH_TOKEN_URL" env-default:"https://id.twitch.tv/oauth2/token"`
	ClientID        string        `yaml:"client_id" env:"TWITCH_CLIENT_ID" env-required:"true"`
	ClientSecret    string        `yaml:"client_secret" env:"TWITCH_CLIENT_SECRET" env-required:"true"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env-default:"9h"`
}

// MustLoad reads the config from CONFIG_PATH (or ./config/config.yaml) and panics on failure.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}
