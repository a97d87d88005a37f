package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	// Clear any env vars that might interfere.
	for _, env := range []string{
		"VMIVR_DATA_DIR", "VMIVR_LOG_LEVEL", "VMIVR_LOG_FORMAT",
		"VMIVR_MAX_PIN_ATTEMPTS", "VMIVR_PIN_DEBUG",
		"VMIVR_RETENTION_DAYS", "VMIVR_MAX_RECORD_SECS", "VMIVR_PIN_FILE",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	os.Args = []string{"vmivr"}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.MaxPINAttempts != defaultMaxPINAttempts {
		t.Errorf("MaxPINAttempts = %d, want %d", cfg.MaxPINAttempts, defaultMaxPINAttempts)
	}
	if cfg.PINDebug {
		t.Error("PINDebug = true, want false")
	}
	if cfg.RetentionDays != defaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", cfg.RetentionDays, defaultRetentionDays)
	}
	if cfg.MaxRecordSecs != defaultMaxRecordSecs {
		t.Errorf("MaxRecordSecs = %d, want %d", cfg.MaxRecordSecs, defaultMaxRecordSecs)
	}
}

func TestEnvVarOverride(t *testing.T) {
	os.Args = []string{"vmivr"}
	t.Setenv("VMIVR_DATA_DIR", "/tmp/vmivr-test")
	t.Setenv("VMIVR_LOG_LEVEL", "debug")
	t.Setenv("VMIVR_MAX_PIN_ATTEMPTS", "5")
	t.Setenv("VMIVR_PIN_DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "/tmp/vmivr-test" {
		t.Errorf("DataDir = %q, want /tmp/vmivr-test", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MaxPINAttempts != 5 {
		t.Errorf("MaxPINAttempts = %d, want 5", cfg.MaxPINAttempts)
	}
	if !cfg.PINDebug {
		t.Error("PINDebug = false, want true")
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	// CLI flags should override env vars.
	os.Args = []string{"vmivr", "--max-pin-attempts", "4", "--log-level", "warn"}
	t.Setenv("VMIVR_MAX_PIN_ATTEMPTS", "9")
	t.Setenv("VMIVR_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MaxPINAttempts != 4 {
		t.Errorf("MaxPINAttempts = %d, want 4", cfg.MaxPINAttempts)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero pin attempts", []string{"vmivr", "--max-pin-attempts", "0"}},
		{"negative retention", []string{"vmivr", "--retention-days", "-1"}},
		{"zero record cap", []string{"vmivr", "--max-record-secs", "0"}},
		{"bad log level", []string{"vmivr", "--log-level", "verbose"}},
		{"bad log format", []string{"vmivr", "--log-format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			if _, err := Load(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParsePINFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins")
	content := "# provisioning pins\n100:1234\n\n101: 567890 \n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	pins, err := ParsePINFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pins) != 2 {
		t.Fatalf("got %d entries, want 2", len(pins))
	}
	if pins["100"] != "1234" {
		t.Errorf("pins[100] = %q, want 1234", pins["100"])
	}
	if pins["101"] != "567890" {
		t.Errorf("pins[101] = %q, want 567890", pins["101"])
	}
}

func TestParsePINFileRejectsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins")
	if err := os.WriteFile(path, []byte("100-1234\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ParsePINFile(path); err == nil {
		t.Error("expected error for malformed line, got nil")
	}
}
