package main

import "os"

// Default configuration values
const (
	DefaultPort = "8080"
)

// GetEnvOrDefault returns the value of an environment variable, or the
// provided default when it is unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
