package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string
	OllamaURL   string
	OllamaModel string
	NatsURL     string
	NatsToken   string
	Workers     int
	APIToken    string
}

func Load() Config {
	return Config{
		Port:        envInt("NOTEGEN_PORT", 8600),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		OllamaURL:   envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envStr("OLLAMA_MODEL", "llama3.1:8b"),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		Workers:     envInt("NOTEGEN_WORKERS", 4),
		APIToken:    envStr("NOTEGEN_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
