package instance

import (
	"os"

	"github.com/exclusivemerch/store-backend/pkg/env"
)

const defaultID = "worker-0"

// GetID returns the replica identifier used to tell worker logs apart.
// MERCH_WORKER_ID wins, then the container hostname.
func GetID() string {
	if id := env.Get("MERCH_WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
