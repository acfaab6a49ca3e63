package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all ariadne server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath    string `json:"db_path"`
	LogLevel  string `json:"log_level"`
	PoolSize  int    `json:"pool_size"`
	Scheduler bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		PoolSize:  4,
		Scheduler: true,
	}
}

func ariadneDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ariadne"
	}
	return filepath.Join(home, ".ariadne")
}

func settingsPath() string {
	return filepath.Join(ariadneDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("ARIADNE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ARIADNE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ARIADNE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("ARIADNE_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}
