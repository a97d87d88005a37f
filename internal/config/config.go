package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the voicemail IVR service.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir        string
	LogLevel       string
	LogFormat      string // log output format: "text" or "json"
	MaxPINAttempts int    // wrong PIN entries per session before hangup
	PINDebug       bool   // log candidate PINs at debug level (never enable in production)
	RetentionDays  int    // messages older than this are purged; 0 disables
	MaxRecordSecs  int    // hard cap on caller message recording length
	PINFile        string // optional "extension:pin" file for provisioning plaintext PINs
}

// defaults
const (
	defaultDataDir        = "./data"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultMaxPINAttempts = 3
	defaultRetentionDays  = 90
	defaultMaxRecordSecs  = 180
)

// envPrefix is the prefix for all voicemail IVR environment variables.
const envPrefix = "VMIVR_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("vmivr", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for database, prompts, and recordings")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.IntVar(&cfg.MaxPINAttempts, "max-pin-attempts", defaultMaxPINAttempts, "failed PIN entries per session before hangup")
	fs.BoolVar(&cfg.PINDebug, "pin-debug", false, "log candidate PINs at debug level (never enable in production)")
	fs.IntVar(&cfg.RetentionDays, "retention-days", defaultRetentionDays, "delete messages older than this many days (0 disables)")
	fs.IntVar(&cfg.MaxRecordSecs, "max-record-secs", defaultMaxRecordSecs, "maximum caller message recording length in seconds")
	fs.StringVar(&cfg.PINFile, "pin-file", "", "path to an extension:pin provisioning file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":         envPrefix + "DATA_DIR",
		"log-level":        envPrefix + "LOG_LEVEL",
		"log-format":       envPrefix + "LOG_FORMAT",
		"max-pin-attempts": envPrefix + "MAX_PIN_ATTEMPTS",
		"pin-debug":        envPrefix + "PIN_DEBUG",
		"retention-days":   envPrefix + "RETENTION_DAYS",
		"max-record-secs":  envPrefix + "MAX_RECORD_SECS",
		"pin-file":         envPrefix + "PIN_FILE",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "max-pin-attempts":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxPINAttempts = v
			}
		case "pin-debug":
			if v, err := strconv.ParseBool(val); err == nil {
				cfg.PINDebug = v
			}
		case "retention-days":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.RetentionDays = v
			}
		case "max-record-secs":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxRecordSecs = v
			}
		case "pin-file":
			cfg.PINFile = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.MaxPINAttempts < 1 {
		return fmt.Errorf("max-pin-attempts must be at least 1, got %d", c.MaxPINAttempts)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention-days must not be negative, got %d", c.RetentionDays)
	}
	if c.MaxRecordSecs < 1 {
		return fmt.Errorf("max-record-secs must be at least 1, got %d", c.MaxRecordSecs)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// ParsePINFile reads an "extension:pin" provisioning file, one entry per
// line. Blank lines and lines starting with '#' are skipped. These PINs
// are plaintext and only serve mailboxes that have no hashed credential
// stored; setting a PIN through the IVR supersedes them.
func ParsePINFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pin file: %w", err)
	}

	pins := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ext, pin, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("pin file line %d: expected extension:pin, got %q", i+1, line)
		}
		ext, pin = strings.TrimSpace(ext), strings.TrimSpace(pin)
		if ext == "" || pin == "" {
			return nil, fmt.Errorf("pin file line %d: empty extension or pin", i+1)
		}
		pins[ext] = pin
	}
	return pins, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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
