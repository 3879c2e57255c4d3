// Package util holds small environment parsing helpers used by the
// ZapFunnel entrypoint for flags like debug logging and pairing mode.
package util

import (
	"log/slog"
	"os"
	"strings"
)

var boolWords = map[string]bool{
	"true": true, "1": true, "yes": true, "on": true,
	"false": false, "0": false, "no": false, "off": false,
}

// ParseBoolEnv reads a boolean environment variable, case-insensitively
// accepting true/1/yes/on and false/0/no/off. Unset or unrecognized values
// fall back to the default; unrecognized ones are also logged.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if v, ok := boolWords[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	slog.Warn("ParseBoolEnv: invalid boolean value, using default",
		"key", key, "value", raw, "default", defaultValue)
	return defaultValue
}
