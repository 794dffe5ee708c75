// Package env reads process settings that must be known before config.Load
// runs, such as the log format used to report config errors.
package env

import (
	"os"
	"strconv"
	"strings"
)

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}

// Get returns the trimmed value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return fallback
}

// Bool yields fallback for unset or malformed values.
func Bool(key string, fallback bool) bool {
	val, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
