/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment  string
	HTTPBind     string
	HTTPPort     int
	DBPath       string
	MediaRoot    string
	PlaybackPath string // YAML file holding the playback session config
	LogBufferCap int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  getEnv("MUNIN_ENV", "development"),
		HTTPBind:     getEnv("MUNIN_HTTP_BIND", "127.0.0.1"),
		HTTPPort:     getEnvInt("MUNIN_HTTP_PORT", 8090),
		DBPath:       getEnv("MUNIN_DB_PATH", "./munin.db"),
		MediaRoot:    getEnv("MUNIN_MEDIA_ROOT", "./media"),
		PlaybackPath: getEnv("MUNIN_PLAYBACK_CONFIG", "./playback.yaml"),
		LogBufferCap: getEnvInt("MUNIN_LOG_BUFFER_CAP", 5000),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("MUNIN_DB_PATH must not be empty")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("MUNIN_HTTP_PORT out of range: %d", cfg.HTTPPort)
	}
	if strings.EqualFold(cfg.Environment, "production") && cfg.HTTPBind == "0.0.0.0" {
		return nil, fmt.Errorf("MUNIN_HTTP_BIND must not expose the control API on all interfaces in production")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
