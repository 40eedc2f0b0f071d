package instance

import (
	"os"
	"strings"
)

const envInstanceID = "BREWPOS_INSTANCE_ID"

// GetID returns the process identifier used to tag lock ownership.
// BREWPOS_INSTANCE_ID wins, then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(envInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
