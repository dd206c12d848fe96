package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	StaticFilesPath string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	LLMProvider  string
	OpenAIAPIKey string
	GeminiAPIKey string
	ChatModel    string

	SessionTTL          time.Duration
	SessionReapInterval time.Duration
	MaxTranscriptTurns  int

	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string

	ServerURL   string
	SaveBackend string
	SaveDir     string
	Profile     string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to read .env file: %v", err)
	}

	return &Config{
		ServerPort:      getEnv("PORT", "3001"),
		StaticFilesPath: getEnv("STATIC_PATH", ""),

		DatabaseType: strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath: getEnv("DB_PATH", "./medgame.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		ChatModel:    getEnv("CHAT_MODEL", ""),

		SessionTTL:          getEnvDuration("SESSION_TTL", time.Hour),
		SessionReapInterval: getEnvDuration("SESSION_REAP_INTERVAL", 10*time.Minute),
		MaxTranscriptTurns:  getEnvInt("MAX_TRANSCRIPT_TURNS", 120),

		RateLimit:      getEnvInt("RATE_LIMIT", 30),
		RateWindow:     getEnvDuration("RATE_WINDOW", time.Minute),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		ServerURL:   strings.TrimRight(getEnv("MEDGAME_SERVER", "http://localhost:3001"), "/"),
		SaveBackend: strings.ToLower(getEnv("SAVE_BACKEND", "file")),
		SaveDir:     getEnv("SAVE_DIR", defaultSaveDir()),
		Profile:     getEnv("PROFILE", "default"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultSaveDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".medgame"
	}
	return filepath.Join(dir, "medgame")
}
