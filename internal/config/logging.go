package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s100fed/fedroute/internal/logging"
)

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is a zerolog level name. Default "info".
	Level string `yaml:"level" json:"level"`
	// Format is "json" or "console". Default "json".
	Format string `yaml:"format" json:"format"`
	// File, when set, sends logs to this file instead of stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// Caller adds the source location to each event.
	Caller bool `yaml:"caller,omitempty" json:"caller,omitempty"`
}

// Validate checks the level and format names.
func (lc LoggingConfig) Validate() error {
	if lc.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(lc.Level)); err != nil {
			return fmt.Errorf("invalid level %q: %w", lc.Level, err)
		}
	}
	switch strings.ToLower(lc.Format) {
	case "", logging.FormatJSON, logging.FormatConsole:
		return nil
	default:
		return fmt.Errorf("invalid format %q (must be %q or %q)", lc.Format, logging.FormatJSON, logging.FormatConsole)
	}
}

// ToLoggingConfig converts config.LoggingConfig to logging.Config for use with
// the internal/logging package.
//
// The conversion applies these rules:
//   - Level, Format and Caller are copied directly
//   - If File is set, Output becomes "file" and File is passed through
//   - If File is empty, Output defaults to "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
		Caller: lc.Caller,
	}
}
