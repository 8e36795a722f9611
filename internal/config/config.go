// Package config provides QoC server configuration with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Acquisition modes.
const (
	ModeDownload = "download"
	ModeStream   = "stream"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	QoC    QoCConfig
	Tools  ToolsConfig
	Fetch  FetchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        // Server port (default: 8080)
	ReadTimeout        time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout       time.Duration // HTTP write timeout (default: 10m, checks are slow)
	IdleTimeout        time.Duration // HTTP idle timeout (default: 60s)
	CheckTimeout       time.Duration // Upper bound for one check, 0 disables (default: 10m)
	RateLimitPerMinute int           // Check requests per client IP per minute (default: 10)
	RateLimitBurst     int           // Burst for the per-IP limiter (default: 3)
	CORSOrigins        []string      // Allowed CORS origins (default: *)
}

// QoCConfig holds pipeline configuration.
type QoCConfig struct {
	// DownloadDir is where sources and intermediates are written (default: {tmp}/qoc-downloads)
	DownloadDir string
	// Mode is download (fetch the whole file) or stream (probe and transcode from the URL).
	Mode string
	// MaxConcurrent caps simultaneous checks (default: 2)
	MaxConcurrent int
	// EnableDLS runs the DLS clipping stage (default: false)
	EnableDLS bool
	// ClippingThreshold is the minimum run length for a clip event (default: 3)
	ClippingThreshold int
	// DLSThreshold is the minimum run length for a DLS event (default: 5)
	DLSThreshold int
	// MinBitrate is the lossy bitrate pass bar in bits/sec (default: 300000)
	MinBitrate int
}

// ToolsConfig holds external tool locations.
type ToolsConfig struct {
	FFmpegPath  string // default: ffmpeg on PATH
	FFprobePath string // default: ffprobe on PATH
}

// FetchConfig holds outbound HTTP configuration.
type FetchConfig struct {
	RequestTimeout time.Duration // Response header timeout (default: 10s)
	MaxRedirects   int           // default: 10
	HostRPS        float64       // Outbound requests per second per host (default: 2)
	HostBurst      int           // default: 4
	UserAgent      string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("qoc", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 10m)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	checkTimeout := fs.String("check-timeout", "", "Per-check timeout, 0 disables (default: 10m)")
	rateLimit := fs.String("rate-limit", "", "Check requests per IP per minute (default: 10)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins (default: *)")

	// QoC flags
	downloadDir := fs.String("download-dir", "", "Directory for downloaded rips")
	mode := fs.String("mode", "", "Acquisition mode: download or stream (default: download)")
	maxConcurrent := fs.String("max-concurrent", "", "Max concurrent checks (default: 2)")
	enableDLS := fs.String("dls", "", "Run the DLS clipping check (default: false)")

	// Tool flags
	ffmpegPath := fs.String("ffmpeg-path", "", "Path to ffmpeg binary (default: ffmpeg)")
	ffprobePath := fs.String("ffprobe-path", "", "Path to ffprobe binary (default: ffprobe)")

	requestTimeout := fs.String("request-timeout", "", "Outbound request timeout (default: 10s)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			RateLimitPerMinute: getIntConfigValue(*rateLimit, "RATE_LIMIT_PER_MINUTE", 10),
			RateLimitBurst:     getIntConfigValue("", "RATE_LIMIT_BURST", 3),
			CORSOrigins:        splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		QoC: QoCConfig{
			DownloadDir:       getConfigValue(*downloadDir, "QOC_DOWNLOAD_DIR", ""),
			Mode:              strings.ToLower(getConfigValue(*mode, "QOC_MODE", ModeDownload)),
			MaxConcurrent:     getIntConfigValue(*maxConcurrent, "QOC_MAX_CONCURRENT", 2),
			EnableDLS:         getBoolConfigValue(*enableDLS, "QOC_ENABLE_DLS", false),
			ClippingThreshold: getIntConfigValue("", "QOC_CLIPPING_THRESHOLD", 3),
			DLSThreshold:      getIntConfigValue("", "QOC_DLS_THRESHOLD", 5),
			MinBitrate:        getIntConfigValue("", "QOC_MIN_BITRATE", 300000),
		},
		Tools: ToolsConfig{
			FFmpegPath:  getConfigValue(*ffmpegPath, "FFMPEG_PATH", "ffmpeg"),
			FFprobePath: getConfigValue(*ffprobePath, "FFPROBE_PATH", "ffprobe"),
		},
		Fetch: FetchConfig{
			MaxRedirects: getIntConfigValue("", "FETCH_MAX_REDIRECTS", 10),
			HostRPS:      getFloatConfigValue("", "FETCH_HOST_RPS", 2),
			HostBurst:    getIntConfigValue("", "FETCH_HOST_BURST", 4),
			UserAgent:    getConfigValue("", "FETCH_USER_AGENT", "qoc-server/1.0"),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Server.CheckTimeout, err = getDurationConfigValue(*checkTimeout, "QOC_CHECK_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if cfg.Fetch.RequestTimeout, err = getDurationConfigValue(*requestTimeout, "FETCH_REQUEST_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDownloadDir(); err != nil {
		return nil, fmt.Errorf("invalid download dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.QoC.Mode != ModeDownload && c.QoC.Mode != ModeStream {
		return fmt.Errorf("invalid mode: %s (must be download or stream)", c.QoC.Mode)
	}

	if c.QoC.DownloadDir == "" {
		return errors.New("download dir cannot be empty after expansion")
	}

	if c.QoC.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent must be positive, got %d", c.QoC.MaxConcurrent)
	}

	if c.QoC.ClippingThreshold < 1 || c.QoC.DLSThreshold < 1 {
		return errors.New("clipping thresholds must be positive")
	}

	if c.QoC.MinBitrate < 1 {
		return fmt.Errorf("min bitrate must be positive, got %d", c.QoC.MinBitrate)
	}

	if c.Fetch.MaxRedirects < 0 {
		return errors.New("max redirects cannot be negative")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDownloadDir defaults the download dir to {tmp}/qoc-downloads.
func (c *Config) expandDownloadDir() error {
	expanded, err := expandPath(c.QoC.DownloadDir, filepath.Join(os.TempDir(), "qoc-downloads"))
	if err != nil {
		return err
	}
	c.QoC.DownloadDir = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Environment variables take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
