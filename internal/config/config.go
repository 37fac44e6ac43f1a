package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting, loaded from the environment
// with an optional .env overlay for development.
type Config struct {
	Port         string
	GeminiAPIKey string
	Model        string
	Voice        string

	// MongoURI empty means the in-memory store with file snapshots.
	MongoURI      string
	MongoDatabase string
	SnapshotPath  string
}

// Load reads configuration from the environment. The Gemini API key is
// the only required setting.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:         getEnv("COMPANION_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		Voice:         getEnv("COMPANION_VOICE", "Kore"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "companion"),
		SnapshotPath:  getEnv("STORE_SNAPSHOT_PATH", "data/companion.json"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
