package env

import (
	"cmp"
	"os"
	"strings"
)

// Get reads key from the process environment, ignoring surrounding
// whitespace, and falls back when the variable is unset or blank.
func Get(key, fallback string) string {
	return cmp.Or(strings.TrimSpace(os.Getenv(key)), fallback)
}
