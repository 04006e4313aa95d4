package config

import (
	"strings"

	"github.com/bananalabs-oss/potassium/config"
	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Host         string
	Port         string
	DatabaseURL  string
	RedisURL     string
	ServiceToken string
	CORSOrigins  []string
}

// Load reads the process environment, after merging an optional .env file
// from the working directory. Variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:          config.EnvOrDefault("APP_ENV", "development"),
		Host:         config.EnvOrDefault("HOST", "0.0.0.0"),
		Port:         config.EnvOrDefault("PORT", "8000"),
		DatabaseURL:  config.EnvOrDefault("DATABASE_URL", "sqlite:///data/party.db"),
		RedisURL:     config.EnvOrDefault("REDIS_URL", ""),
		ServiceToken: config.EnvOrDefault("SERVICE_TOKEN", ""),
		CORSOrigins:  splitList(config.EnvOrDefault("CORS_ORIGINS", "*")),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
