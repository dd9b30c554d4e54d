package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvDebug   = "debug"
	EnvRelease = "release"
	EnvTest    = "test"
)

type Config struct {
	Env  string `env:"GIN_MODE" env-default:"debug" env-description:"debug, release or test"`
	Port string `env:"PORT" env-default:"8080"`

	UseHTTPS    bool   `env:"USE_HTTPS" env-default:"false"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	Database Database
	Redis    Redis
	Auth     Auth
	Marvel   Marvel
	Game     Game

	RateLimitRPS   int      `env:"RATE_LIMIT_RPS" env-default:"20"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" env-default:"40"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,https://localhost:3000"`

	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogFile  string `env:"LOG_FILE" env-default:"logs/app.log"`
}

type Database struct {
	Driver string `env:"DB_DRIVER" env-default:"postgres" env-description:"postgres or sqlite"`
	URL    string `env:"DATABASE_URL" env-default:"host=localhost port=5432 user=postgres dbname=marvelalbum sslmode=disable"`
}

type Redis struct {
	URL      string `env:"REDIS_URL"`
	Password string `env:"REDIS_PASSWORD"`
}

type Auth struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"24h"`
}

type Marvel struct {
	BaseURL    string        `env:"MARVEL_BASE_URL" env-default:"https://gateway.marvel.com/v1/public"`
	PublicKey  string        `env:"MARVEL_PUBLIC_KEY"`
	PrivateKey string        `env:"MARVEL_PRIVATE_KEY"`
	IDsFile    string        `env:"CATALOG_IDS_FILE"`
	Timeout    time.Duration `env:"CATALOG_TIMEOUT" env-default:"10s"`
	Workers    int           `env:"CATALOG_WORKERS" env-default:"8"`
	RPS        int           `env:"CATALOG_RPS" env-default:"10"`
}

// Game holds the economy knobs of the album.
type Game struct {
	StartingCredits int `env:"STARTING_CREDITS" env-default:"10"`
	PacketCost      int `env:"PACKET_COST" env-default:"1"`
	PacketSize      int `env:"PACKET_SIZE" env-default:"5"`
	AlbumPageSize   int `env:"ALBUM_PAGE_SIZE" env-default:"18"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDebug, EnvRelease, EnvTest:
	default:
		return fmt.Errorf("invalid GIN_MODE %q", c.Env)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Game.PacketCost <= 0 || c.Game.PacketSize <= 0 {
		return errors.New("packet cost and size must be positive")
	}
	if c.Game.AlbumPageSize <= 0 {
		return errors.New("album page size must be positive")
	}
	if c.Game.StartingCredits < 0 {
		return errors.New("starting credits must not be negative")
	}
	if c.Auth.JWTSecret == "" {
		if c.Env == EnvRelease {
			return errors.New("JWT_SECRET is required in release mode")
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}
	if c.Marvel.Workers <= 0 {
		c.Marvel.Workers = 1
	}
	return nil
}

func (c *Config) IsRelease() bool {
	return c.Env == EnvRelease
}
