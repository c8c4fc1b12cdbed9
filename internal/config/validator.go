package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/transport"
)

// MinBufferSize is the smallest accepted rolling buffer.
const MinBufferSize = 1024

// ValidationError is one rejected config field.
type ValidationError struct {
	Field   string // dotted key, e.g. "build.buffer_size"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors reports every rejected field at once so a user can fix
// a config file in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err)
	}
	return sb.String()
}

// rule rejects a field when ok is false.
type rule struct {
	field   string
	value   any
	ok      bool
	message string
}

func oneOf(options []string) string {
	return "must be one of: " + strings.Join(options, ", ")
}

// Validate checks the Config for invalid values and returns all validation
// errors found. Custom tool entries are not validated here; bad entries are
// skipped with a warning when profiles are compiled.
func (c *Config) Validate() []ValidationError {
	b, l := c.Build, c.Logging
	rules := []rule{
		{"build.fallback_delay", b.FallbackDelay, b.FallbackDelay > 0, "must be positive"},
		{"build.restart_grace", b.RestartGrace, b.RestartGrace >= 0, "must be non-negative"},
		{"build.buffer_size", b.BufferSize, b.BufferSize >= MinBufferSize, fmt.Sprintf("must be at least %d bytes", MinBufferSize)},
		{"build.transport", b.Transport, slices.Contains(transport.ValidModes(), b.Transport), oneOf(transport.ValidModes())},
		{"build.terminate_timeout", b.TerminateTimeout, b.TerminateTimeout > 0, "must be positive"},
		{"logging.level", l.Level, slices.Contains(logging.ValidLevels(), strings.ToUpper(l.Level)), oneOf(logging.ValidLevels())},
		{"logging.max_size_mb", l.MaxSizeMB, l.MaxSizeMB >= 1, "must be at least 1"},
		{"logging.max_backups", l.MaxBackups, l.MaxBackups >= 0, "must be non-negative"},
	}

	var errs []ValidationError
	for _, r := range rules {
		if !r.ok {
			errs = append(errs, ValidationError{Field: r.field, Value: r.value, Message: r.message})
		}
	}
	return errs
}
