package config

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Addr              string
	AllowOrigin       string
	DefaultFQBN       string
	ArduinoCLIPath    string
	EsptoolPath       string
	WorkspaceDir      string
	DBPath            string
	StaticDir         string
	LogLevel          string
	DedupWindow       int
	InsecureDeviceTLS bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Addr = getEnv("FLEET_ADDR", ":8080")
	cfg.AllowOrigin = getEnv("FLEET_ALLOW_ORIGIN", "*")
	cfg.DefaultFQBN = getEnv("FLEET_FQBN", "esp32:esp32:esp32")
	cfg.ArduinoCLIPath = getEnv("FLEET_ARDUINO_CLI", "")
	cfg.EsptoolPath = getEnv("FLEET_ESPTOOL", "esptool.py")
	cfg.WorkspaceDir = getEnv("FLEET_WORKSPACE", getDefaultWorkspaceDir())
	cfg.DBPath = getEnv("FLEET_DB", "")
	cfg.StaticDir = getEnv("FLEET_STATIC", "./web/console")
	cfg.LogLevel = getEnv("FLEET_LOG_LEVEL", "info")
	cfg.DedupWindow = getEnvInt("FLEET_DEDUP_WINDOW", 50)
	cfg.InsecureDeviceTLS = getEnvBool("FLEET_INSECURE_DEVICE_TLS", false)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.AllowOrigin, "allow-origin", cfg.AllowOrigin, "Access-Control-Allow-Origin value")
	flag.StringVar(&cfg.DefaultFQBN, "fqbn", cfg.DefaultFQBN, "Default firmware target identifier")
	flag.StringVar(&cfg.ArduinoCLIPath, "arduino-cli", cfg.ArduinoCLIPath, "Path to arduino-cli (empty: vendored binary, then PATH)")
	flag.StringVar(&cfg.EsptoolPath, "esptool", cfg.EsptoolPath, "Path to esptool for vendor-mode device reset")
	flag.StringVar(&cfg.WorkspaceDir, "workspace", cfg.WorkspaceDir, "Workspace directory (config, builds, data)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite audit database (default: <workspace>/fleet.db)")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Directory with the console front-end")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log verbosity: debug|info|warn|error")
	flag.IntVar(&cfg.DedupWindow, "dedup-window", cfg.DedupWindow, "Install-log dedup window size")
	flag.BoolVar(&cfg.InsecureDeviceTLS, "insecure-device-tls", cfg.InsecureDeviceTLS, "Skip TLS verification for loopback/private device addresses")

	flag.Parse()

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.WorkspaceDir, "fleet.db")
	}

	return cfg
}

// SlogLevel maps the configured verbosity onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultWorkspaceDir returns the default workspace in the user's home
// directory, creating it if needed.
func getDefaultWorkspaceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return ".fleetd"
	}

	dir := filepath.Join(home, ".fleetd")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .fleetd directory, using current dir: %v", err)
		return ".fleetd"
	}

	return dir
}
