package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable this service reads.
const Prefix = "ORDERING_"

// Get looks up ORDERING_<key> first and then the bare key, returning fallback
// when neither is set. Keys already carrying the prefix are read as given.
func Get(key, fallback string) string {
	for _, name := range candidates(key) {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}

func candidates(key string) []string {
	if strings.HasPrefix(key, Prefix) {
		return []string{key}
	}
	return []string{Prefix + key, key}
}
