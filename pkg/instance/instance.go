package instance

import (
	"os"

	"github.com/angelmondragon/playgate/pkg/env"
)

// GetID identifies the running process in logs. Heroku dynos and containers
// set one of these; local runs fall back to fallback.
func GetID(fallback string) string {
	if id := env.First("", "PLAYGATE_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
