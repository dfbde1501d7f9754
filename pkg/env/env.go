// Package env reads process environment variables with fallbacks, for the
// few knobs that sit outside the envconfig-managed configuration.
package env

import "os"

// Get returns the value of key, or fallback when the variable is unset or
// blank.
func Get(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
