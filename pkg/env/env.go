// Package env reads process environment variables with fallbacks, for the
// few knobs that sit outside the envconfig-backed configuration.
package env

import "os"

// Get returns the named variable, or fallback when unset or empty.
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
