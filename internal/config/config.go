package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL   string
	SocketURL    string
	StatePath    string
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// Load reads a .env file when present, then the environment, falling back to
// local-development defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] .env not loaded: %v", err)
	}

	cfg := Config{
		APIBaseURL:   getenv("ZENROOM_API_URL", "http://localhost:8080"),
		SocketURL:    getenv("ZENROOM_SOCKET_URL", "ws://localhost:8080/ws/chat"),
		StatePath:    getenv("ZENROOM_STATE_PATH", defaultStatePath()),
		PollInterval: getdur("ZENROOM_POLL_INTERVAL", 30*time.Second),
		RetryDelay:   getdur("ZENROOM_RETRY_DELAY", 3*time.Second),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zenroom/credentials.json"
	}
	return filepath.Join(home, ".zenroom", "credentials.json")
}
