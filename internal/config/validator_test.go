package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got: %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero fallback", func(c *Config) { c.Build.FallbackDelay = 0 }, "build.fallback_delay"},
		{"negative grace", func(c *Config) { c.Build.RestartGrace = -time.Second }, "build.restart_grace"},
		{"tiny buffer", func(c *Config) { c.Build.BufferSize = MinBufferSize - 1 }, "build.buffer_size"},
		{"unknown transport", func(c *Config) { c.Build.Transport = "ssh" }, "build.transport"},
		{"zero terminate timeout", func(c *Config) { c.Build.TerminateTimeout = 0 }, "build.terminate_timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() = %v, want exactly one error", errs)
			}
			if errs[0].Field != tc.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tc.field)
			}
		})
	}
}

func TestConfig_Validate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "Warn", "error"} {
		cfg := Default()
		cfg.Logging.Level = level
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("level %q rejected: %v", level, errs)
		}
	}
}

func TestConfig_Validate_IgnoresCustomTools(t *testing.T) {
	cfg := Default()
	cfg.Build.CustomTools = map[string]any{"broken": "not a map"}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("custom tools should be validated at compile time, got %v", errs)
	}
}
