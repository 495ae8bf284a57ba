package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	LogLevel      string
	Location      *time.Location
	Storage       StorageConfig
}

type StorageConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	BadgerDir     string
	FileDir       string
}

// Load reads the environment, after merging in a .env file if one exists.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/walknav.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Location:      getEnvLocation("TIMEZONE", time.Local),
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "sqlite")),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			BadgerDir:     getEnv("BADGER_DIR", "./data/badger"),
			FileDir:       getEnv("FILE_STORE_DIR", "./data/profiles"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func getEnvLocation(key string, fallback *time.Location) *time.Location {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	loc, err := time.LoadLocation(value)
	if err != nil {
		return fallback
	}
	return loc
}
