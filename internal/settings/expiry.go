package settings

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var errBadExpiry = errors.New("expected a duration such as 15m, 12h or 7d")

// ParseExpiry reads token lifetimes in the form deployments already use:
// a bare number of seconds, a Go duration ("90m", "1h30m"), or a whole
// number of days or weeks ("7d", "2w").
func ParseExpiry(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, errBadExpiry
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return positive(time.Duration(n) * time.Second)
	}

	unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[raw[len(raw)-1]]
	if unit != 0 {
		n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
		if err != nil {
			return 0, errBadExpiry
		}
		return positive(time.Duration(n) * unit)
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errBadExpiry
	}
	return positive(d)
}

func positive(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, errBadExpiry
	}
	return d, nil
}
