package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBFile       string
	APIAddr      string
	AdminAddr    string
	BaseURL      string
	SocketURL    string
	AuthSecret   string
	AdminKeyHash string
	TokenExpiry  time.Duration

	// Web push credentials. Push is disabled when the keys are empty.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushContact     string
}

func Load(cliMode bool) (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:          getEnv("STAYCHAT_DB", "staychat.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		AdminAddr:       getEnv("ADMIN_ADDR", "localhost:8081"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		SocketURL:       getEnv("SOCKET_URL", "ws://localhost:8080/api/chat"),
		AuthSecret:      os.Getenv("AUTH_SECRET"),
		AdminKeyHash:    os.Getenv("ADMIN_KEY_HASH"),
		TokenExpiry:     tokenExpiry,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		PushContact:     getEnv("PUSH_CONTACT", "mailto:support@localhost"),
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.AuthSecret == "" && !cliMode {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
