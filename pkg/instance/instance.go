package instance

import "os"

var idEnvKeys = []string{"ORDERING_INSTANCE_ID", "DYNO", "HOSTNAME"}

// GetID identifies this process in logs and lock ownership. The first
// non-empty variable in idEnvKeys wins.
func GetID() string {
	for _, key := range idEnvKeys {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
