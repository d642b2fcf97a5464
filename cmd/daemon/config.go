package main

import (
	"os"
	"strings"
)

// DaemonConfig holds daemon-specific configuration
type DaemonConfig struct {
	ConfigPath string   // Path to gexdex config YAML
	EnvFile    string   // Dotenv file with broker credentials
	Timezone   string   // Exchange timezone (default: Asia/Kolkata)
	StateFile  string   // File to track the last reported session
	Symbols    []string // Symbols to record (default: every configured symbol)
}

// LoadDaemonConfig loads configuration from environment variables
func LoadDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		ConfigPath: getEnvOrDefault("DAEMON_CONFIG_PATH", "/app/configs/default.yaml"),
		EnvFile:    getEnvOrDefault("DAEMON_ENV_FILE", ""),
		Timezone:   getEnvOrDefault("DAEMON_TIMEZONE", "Asia/Kolkata"),
		StateFile:  getEnvOrDefault("DAEMON_STATE_FILE", "/app/data/.daemon-state"),
		Symbols:    getEnvListOrDefault("DAEMON_SYMBOLS", nil),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
