package analytics

import (
	"net/http"
	"strings"
	"time"

	"github.com/exclusivemerch/store-backend/api/validators"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
)

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

// resolveSalesRange reads either an explicit from/to pair (RFC3339) or a
// preset window ending now.
func resolveSalesRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	start, hasFrom, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, hasTo, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if hasFrom || hasTo {
		if !hasFrom || !hasTo {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
		}
		return start, end, nil
	}

	duration, ok := presetDuration(strings.TrimSpace(r.URL.Query().Get("preset")))
	if !ok {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid preset")
	}
	return now.Add(-duration), now, nil
}

func presetDuration(value string) (time.Duration, bool) {
	if value == "" {
		value = "30d"
	}
	switch strings.ToLower(value) {
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	case "90d":
		return 90 * 24 * time.Hour, true
	case "1y":
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
